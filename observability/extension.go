// Package observability provides a metrics extension for parklot that
// records gate and inventory event counts via a MetricFactory.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/plugin"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnVehicleEntered      = (*MetricsExtension)(nil)
	_ plugin.OnVehicleExited       = (*MetricsExtension)(nil)
	_ plugin.OnAllocationExhausted = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed     = (*MetricsExtension)(nil)
	_ plugin.OnSpotReleased        = (*MetricsExtension)(nil)
	_ plugin.OnMaintenanceChanged  = (*MetricsExtension)(nil)
	_ plugin.OnRateCardUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnOverstayDetected    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records lot-wide lifecycle metrics.
// Register it as an engine plugin to track gate traffic automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Gate metrics
	VehiclesEntered     Counter
	VehiclesExited      Counter
	AllocationExhausted Counter
	ParkingDuration     Histogram
	Overstays           Counter

	// Billing metrics
	FeeCollected    Counter
	FeeAmount       Histogram
	GraceApplied    Counter
	DailyCapApplied Counter
	RateCardUpdated Counter

	// Inventory metrics
	SpotsReleased      Counter
	MaintenanceEntered Counter
	MaintenanceCleared Counter

	// Error metrics
	OperationFailures Counter
	SystemBusy        Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		VehiclesEntered:     factory.Counter("parklot.vehicle.entered"),
		VehiclesExited:      factory.Counter("parklot.vehicle.exited"),
		AllocationExhausted: factory.Counter("parklot.allocation.exhausted"),
		ParkingDuration:     factory.Histogram("parklot.parking.duration_minutes"),
		Overstays:           factory.Counter("parklot.parking.overstays"),

		FeeCollected:    factory.Counter("parklot.fee.collected_minor"),
		FeeAmount:       factory.Histogram("parklot.fee.amount"),
		GraceApplied:    factory.Counter("parklot.fee.grace_applied"),
		DailyCapApplied: factory.Counter("parklot.fee.daily_cap_applied"),
		RateCardUpdated: factory.Counter("parklot.ratecard.updated"),

		SpotsReleased:      factory.Counter("parklot.spot.released"),
		MaintenanceEntered: factory.Counter("parklot.spot.maintenance.entered"),
		MaintenanceCleared: factory.Counter("parklot.spot.maintenance.cleared"),

		OperationFailures: factory.Counter("parklot.operation.failures"),
		SystemBusy:        factory.Counter("parklot.operation.system_busy"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Gate hooks
// ──────────────────────────────────────────────────

// OnVehicleEntered implements plugin.OnVehicleEntered.
func (m *MetricsExtension) OnVehicleEntered(_ context.Context, _ *transaction.Transaction, _ *spot.Spot) error {
	m.VehiclesEntered.Inc()
	return nil
}

// OnVehicleExited implements plugin.OnVehicleExited.
func (m *MetricsExtension) OnVehicleExited(_ context.Context, txn *transaction.Transaction) error {
	m.VehiclesExited.Inc()
	m.ParkingDuration.Observe(float64(txn.DurationMinutes.Int64))

	if txn.ParkingFee != nil {
		m.FeeCollected.Add(float64(txn.ParkingFee.Amount))
		f, _ := txn.ParkingFee.Decimal().Float64()
		m.FeeAmount.Observe(f)
	}
	if txn.Fee != nil {
		if txn.Fee.GraceApplied {
			m.GraceApplied.Inc()
		}
		if txn.Fee.DailyCapApplied {
			m.DailyCapApplied.Inc()
		}
	}
	return nil
}

// OnAllocationExhausted implements plugin.OnAllocationExhausted.
func (m *MetricsExtension) OnAllocationExhausted(_ context.Context, _ vehicle.Vehicle) error {
	m.AllocationExhausted.Inc()
	return nil
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ string, err error) error {
	m.OperationFailures.Inc()
	if errors.Is(err, parklot.ErrSystemBusy) {
		m.SystemBusy.Inc()
	}
	return nil
}

// OnOverstayDetected implements plugin.OnOverstayDetected.
func (m *MetricsExtension) OnOverstayDetected(_ context.Context, _ *transaction.Transaction, _ time.Duration) error {
	m.Overstays.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Inventory hooks
// ──────────────────────────────────────────────────

// OnSpotReleased implements plugin.OnSpotReleased.
func (m *MetricsExtension) OnSpotReleased(_ context.Context, _ *spot.Spot) error {
	m.SpotsReleased.Inc()
	return nil
}

// OnMaintenanceChanged implements plugin.OnMaintenanceChanged.
func (m *MetricsExtension) OnMaintenanceChanged(_ context.Context, s *spot.Spot) error {
	if s.Status == spot.StatusMaintenance {
		m.MaintenanceEntered.Inc()
	} else {
		m.MaintenanceCleared.Inc()
	}
	return nil
}

// OnRateCardUpdated implements plugin.OnRateCardUpdated.
func (m *MetricsExtension) OnRateCardUpdated(_ context.Context, _ *ratecard.RateCard) error {
	m.RateCardUpdated.Inc()
	return nil
}
