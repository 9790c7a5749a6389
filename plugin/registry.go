package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration and cached per
// interface.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onVehicleEntered      []OnVehicleEntered
	onVehicleExited       []OnVehicleExited
	onAllocationExhausted []OnAllocationExhausted
	onOperationFailed     []OnOperationFailed
	onSpotReleased        []OnSpotReleased
	onMaintenanceChanged  []OnMaintenanceChanged
	onRateCardUpdated     []OnRateCardUpdated
	onOverstayDetected    []OnOverstayDetected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnVehicleEntered); ok {
		r.onVehicleEntered = append(r.onVehicleEntered, v)
	}
	if v, ok := p.(OnVehicleExited); ok {
		r.onVehicleExited = append(r.onVehicleExited, v)
	}
	if v, ok := p.(OnAllocationExhausted); ok {
		r.onAllocationExhausted = append(r.onAllocationExhausted, v)
	}
	if v, ok := p.(OnOperationFailed); ok {
		r.onOperationFailed = append(r.onOperationFailed, v)
	}
	if v, ok := p.(OnSpotReleased); ok {
		r.onSpotReleased = append(r.onSpotReleased, v)
	}
	if v, ok := p.(OnMaintenanceChanged); ok {
		r.onMaintenanceChanged = append(r.onMaintenanceChanged, v)
	}
	if v, ok := p.(OnRateCardUpdated); ok {
		r.onRateCardUpdated = append(r.onRateCardUpdated, v)
	}
	if v, ok := p.(OnOverstayDetected); ok {
		r.onOverstayDetected = append(r.onOverstayDetected, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", implementedHooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnVehicleEntered", reflect.TypeOf((*OnVehicleEntered)(nil)).Elem()},
	{"OnVehicleExited", reflect.TypeOf((*OnVehicleExited)(nil)).Elem()},
	{"OnAllocationExhausted", reflect.TypeOf((*OnAllocationExhausted)(nil)).Elem()},
	{"OnOperationFailed", reflect.TypeOf((*OnOperationFailed)(nil)).Elem()},
	{"OnSpotReleased", reflect.TypeOf((*OnSpotReleased)(nil)).Elem()},
	{"OnMaintenanceChanged", reflect.TypeOf((*OnMaintenanceChanged)(nil)).Elem()},
	{"OnRateCardUpdated", reflect.TypeOf((*OnRateCardUpdated)(nil)).Elem()},
	{"OnOverstayDetected", reflect.TypeOf((*OnOverstayDetected)(nil)).Elem()},
}

// implementedHooks lists the hook interfaces p satisfies, for logging.
func implementedHooks(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// snapshot copies a cached hook list under the read lock.
func snapshot[T Plugin](r *Registry, hooks *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *hooks
}

// emit invokes fn for every plugin in hooks, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitVehicleEntered emits a vehicle entered event.
func (r *Registry) EmitVehicleEntered(ctx context.Context, txn *transaction.Transaction, s *spot.Spot) {
	emit(ctx, r, "OnVehicleEntered", snapshot(r, &r.onVehicleEntered), func(p OnVehicleEntered) error {
		return p.OnVehicleEntered(ctx, txn, s)
	})
}

// EmitVehicleExited emits a vehicle exited event.
func (r *Registry) EmitVehicleExited(ctx context.Context, txn *transaction.Transaction) {
	emit(ctx, r, "OnVehicleExited", snapshot(r, &r.onVehicleExited), func(p OnVehicleExited) error {
		return p.OnVehicleExited(ctx, txn)
	})
}

// EmitAllocationExhausted emits an allocation exhausted event.
func (r *Registry) EmitAllocationExhausted(ctx context.Context, v vehicle.Vehicle) {
	emit(ctx, r, "OnAllocationExhausted", snapshot(r, &r.onAllocationExhausted), func(p OnAllocationExhausted) error {
		return p.OnAllocationExhausted(ctx, v)
	})
}

// EmitOperationFailed emits an operation failed event.
func (r *Registry) EmitOperationFailed(ctx context.Context, op string, err error) {
	emit(ctx, r, "OnOperationFailed", snapshot(r, &r.onOperationFailed), func(p OnOperationFailed) error {
		return p.OnOperationFailed(ctx, op, err)
	})
}

// EmitSpotReleased emits a spot released event.
func (r *Registry) EmitSpotReleased(ctx context.Context, s *spot.Spot) {
	emit(ctx, r, "OnSpotReleased", snapshot(r, &r.onSpotReleased), func(p OnSpotReleased) error {
		return p.OnSpotReleased(ctx, s)
	})
}

// EmitMaintenanceChanged emits a maintenance changed event.
func (r *Registry) EmitMaintenanceChanged(ctx context.Context, s *spot.Spot) {
	emit(ctx, r, "OnMaintenanceChanged", snapshot(r, &r.onMaintenanceChanged), func(p OnMaintenanceChanged) error {
		return p.OnMaintenanceChanged(ctx, s)
	})
}

// EmitRateCardUpdated emits a rate card updated event.
func (r *Registry) EmitRateCardUpdated(ctx context.Context, card *ratecard.RateCard) {
	emit(ctx, r, "OnRateCardUpdated", snapshot(r, &r.onRateCardUpdated), func(p OnRateCardUpdated) error {
		return p.OnRateCardUpdated(ctx, card)
	})
}

// EmitOverstayDetected emits an overstay detected event.
func (r *Registry) EmitOverstayDetected(ctx context.Context, txn *transaction.Transaction, parked time.Duration) {
	emit(ctx, r, "OnOverstayDetected", snapshot(r, &r.onOverstayDetected), func(p OnOverstayDetected) error {
		return p.OnOverstayDetected(ctx, txn, parked)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the gate.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
