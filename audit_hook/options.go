package audithook

import (
	"log/slog"
	"slices"
)

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used to report recorder failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithActions restricts recording to the listed actions. Repeated calls
// widen the allow-list.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		if e.only == nil {
			e.only = make(map[string]struct{}, len(actions))
		}
		for _, a := range actions {
			e.only[a] = struct{}{}
		}
	}
}

// WithoutActions drops the listed actions. It wins over WithActions.
func WithoutActions(actions ...string) Option {
	return func(e *Extension) {
		if e.skip == nil {
			e.skip = make(map[string]struct{}, len(actions))
		}
		for _, a := range actions {
			e.skip[a] = struct{}{}
		}
	}
}

// WithMinSeverity drops events less severe than sev. Unknown severities
// are ignored.
func WithMinSeverity(sev string) Option {
	return func(e *Extension) {
		if rank := slices.Index(severityOrder, sev); rank >= 0 {
			e.minRank = rank
		}
	}
}

var severityOrder = []string{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}

// allows reports whether an event passes the configured filters.
func (e *Extension) allows(action, severity string) bool {
	if _, skipped := e.skip[action]; skipped {
		return false
	}
	if e.only != nil {
		if _, ok := e.only[action]; !ok {
			return false
		}
	}
	return slices.Index(severityOrder, severity) >= e.minRank
}
