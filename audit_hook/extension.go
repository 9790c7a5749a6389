// Package audithook bridges parklot lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/plugin"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnVehicleEntered      = (*Extension)(nil)
	_ plugin.OnVehicleExited       = (*Extension)(nil)
	_ plugin.OnAllocationExhausted = (*Extension)(nil)
	_ plugin.OnOperationFailed     = (*Extension)(nil)
	_ plugin.OnSpotReleased        = (*Extension)(nil)
	_ plugin.OnMaintenanceChanged  = (*Extension)(nil)
	_ plugin.OnRateCardUpdated     = (*Extension)(nil)
	_ plugin.OnOverstayDetected    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	logger   *slog.Logger

	only    map[string]struct{} // nil = every action
	skip    map[string]struct{}
	minRank int
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Gate hooks
// ──────────────────────────────────────────────────

// OnVehicleEntered implements plugin.OnVehicleEntered.
func (e *Extension) OnVehicleEntered(ctx context.Context, txn *transaction.Transaction, s *spot.Spot) error {
	return e.record(ctx, ActionVehicleEntered, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryGate, nil,
		"plate", txn.LicensePlate,
		"vehicle_type", string(txn.VehicleType),
		"spot_id", s.ID.String(),
		"spot", s.Label(),
		"entry_time", txn.EntryTime.Format(time.RFC3339),
	)
}

// OnVehicleExited implements plugin.OnVehicleExited.
func (e *Extension) OnVehicleExited(ctx context.Context, txn *transaction.Transaction) error {
	kv := []any{
		"plate", txn.LicensePlate,
		"spot_id", txn.SpotID.String(),
		"duration_minutes", txn.DurationMinutes.Int64,
		"payment_status", string(txn.PaymentStatus),
	}
	if txn.ParkingFee != nil {
		kv = append(kv, "fee", txn.ParkingFee.FormatMajor(), "currency", txn.ParkingFee.Currency)
	}
	if txn.Fee != nil {
		kv = append(kv,
			"hourly_units", txn.Fee.HourlyUnits,
			"grace_applied", txn.Fee.GraceApplied,
			"daily_cap_applied", txn.Fee.DailyCapApplied,
		)
	}
	return e.record(ctx, ActionVehicleExited, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryBilling, nil,
		kv...,
	)
}

// OnAllocationExhausted implements plugin.OnAllocationExhausted.
func (e *Extension) OnAllocationExhausted(ctx context.Context, v vehicle.Vehicle) error {
	return e.record(ctx, ActionAllocationExhausted, SeverityWarning, OutcomeFailure,
		ResourceVehicle, v.LicensePlate, CategoryGate, parklot.ErrNoSpotAvailable,
		"vehicle_type", string(v.Type),
	)
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (e *Extension) OnOperationFailed(ctx context.Context, op string, err error) error {
	severity := SeverityWarning
	if parklot.KindOf(err) == parklot.KindInternal {
		severity = SeverityError
	}
	return e.record(ctx, ActionOperationFailed, severity, OutcomeFailure,
		ResourceVehicle, "", CategoryGate, err,
		"op", op,
		"kind", parklot.KindOf(err).String(),
		"code", parklot.Code(err),
	)
}

// OnOverstayDetected implements plugin.OnOverstayDetected.
func (e *Extension) OnOverstayDetected(ctx context.Context, txn *transaction.Transaction, parked time.Duration) error {
	return e.record(ctx, ActionOverstayDetected, SeverityWarning, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryGate, nil,
		"plate", txn.LicensePlate,
		"parked_minutes", int64(parked/time.Minute),
	)
}

// ──────────────────────────────────────────────────
// Inventory hooks
// ──────────────────────────────────────────────────

// OnSpotReleased implements plugin.OnSpotReleased.
func (e *Extension) OnSpotReleased(ctx context.Context, s *spot.Spot) error {
	return e.record(ctx, ActionSpotReleased, SeverityInfo, OutcomeSuccess,
		ResourceSpot, s.ID.String(), CategoryInventory, nil,
		"spot", s.Label(),
	)
}

// OnMaintenanceChanged implements plugin.OnMaintenanceChanged.
func (e *Extension) OnMaintenanceChanged(ctx context.Context, s *spot.Spot) error {
	action := ActionMaintenanceCleared
	if s.Status == spot.StatusMaintenance {
		action = ActionMaintenanceStarted
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceSpot, s.ID.String(), CategoryInventory, nil,
		"spot", s.Label(),
		"status", string(s.Status),
	)
}

// OnRateCardUpdated implements plugin.OnRateCardUpdated.
func (e *Extension) OnRateCardUpdated(ctx context.Context, card *ratecard.RateCard) error {
	kv := []any{
		"vehicle_type", string(card.VehicleType),
		"hourly_rate", card.HourlyRate.FormatMajor(),
		"rounding", string(card.Rounding),
		"grace_minutes", card.GracePeriodMinutes,
	}
	if card.DailyMaxRate != nil {
		kv = append(kv, "daily_max_rate", card.DailyMaxRate.FormatMajor())
	}
	return e.record(ctx, ActionRateCardUpdated, SeverityInfo, OutcomeSuccess,
		ResourceRateCard, card.ID.String(), CategoryBilling, nil,
		kv...,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if it passes the filters.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if !e.allows(action, severity) {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
