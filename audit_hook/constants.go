package audithook

// Action constants for audit events.
const (
	// Gate actions
	ActionVehicleEntered      = "vehicle.entered"
	ActionVehicleExited       = "vehicle.exited"
	ActionAllocationExhausted = "allocation.exhausted"
	ActionOperationFailed     = "operation.failed"
	ActionOverstayDetected    = "overstay.detected"

	// Inventory actions
	ActionSpotReleased       = "spot.released"
	ActionMaintenanceStarted = "spot.maintenance_started"
	ActionMaintenanceCleared = "spot.maintenance_cleared"

	// Billing actions
	ActionRateCardUpdated = "ratecard.updated"
)

// Resource constants for audit events.
const (
	ResourceTransaction = "transaction"
	ResourceSpot        = "spot"
	ResourceRateCard    = "rate_card"
	ResourceVehicle     = "vehicle"
)

// Category constants for audit events.
const (
	CategoryGate      = "gate"
	CategoryInventory = "inventory"
	CategoryBilling   = "billing"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
