package audithook

import (
	"context"
	"log/slog"
)

// LogRecorder writes each audit event as one structured log line.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, event *AuditEvent) error {
		level := slog.LevelInfo
		switch event.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityError, SeverityCritical:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "audit",
			"action", event.Action,
			"resource", event.Resource,
			"resource_id", event.ResourceID,
			"category", event.Category,
			"outcome", event.Outcome,
			"reason", event.Reason,
			"metadata", event.Metadata,
		)
		return nil
	})
}
