package parklot

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/parklot/fee"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("parklot: not found")
	ErrInvalidInput = errors.New("parklot: invalid input")

	// Allocation errors
	ErrNoSpotAvailable = errors.New("parklot: no spot available")

	// Inventory errors
	ErrSpotNotFound         = errors.New("parklot: spot not found")
	ErrDuplicateSpot        = errors.New("parklot: spot already exists at that position")
	ErrSpotNotOccupied      = errors.New("parklot: spot is not occupied")
	ErrSpotNotAvailable     = errors.New("parklot: spot is not available")
	ErrSpotNotInMaintenance = errors.New("parklot: spot is not in maintenance")
	ErrSpotInUse            = errors.New("parklot: spot is referenced by an open transaction")

	// Ledger errors
	ErrVehicleAlreadyParked = errors.New("parklot: vehicle already parked")
	ErrTransactionNotFound  = errors.New("parklot: transaction not found")
	ErrVehicleNotFound      = fmt.Errorf("%w: vehicle has no parking history", ErrTransactionNotFound)
	ErrAlreadyExited        = fmt.Errorf("%w: vehicle has already exited", ErrTransactionNotFound)

	// Rate card errors
	ErrRateCardNotFound = errors.New("parklot: rate card not found")

	// Store errors
	ErrSystemBusy    = errors.New("parklot: system busy, retry later")
	ErrStoreClosed   = errors.New("parklot: store is closed")
	ErrInconsistency = errors.New("parklot: inventory and ledger disagree")
)

// Errors owned by leaf packages, re-exported for callers of the engine.
var (
	ErrInvalidVehicleType = vehicle.ErrInvalidType
	ErrInvalidPlate       = vehicle.ErrInvalidPlate
	ErrInvalidInterval    = fee.ErrInvalidInterval
	ErrInvalidRateCard    = ratecard.ErrInvalid
	ErrInvalidSpot        = spot.ErrInvalid
	ErrAlreadyClosed      = transaction.ErrAlreadyClosed
	ErrInvalidAmount      = types.ErrInvalidAmount
	ErrInvalidID          = id.ErrInvalid
)

// Kind classifies an error by how a caller should react to it.
type Kind int

const (
	KindInternal Kind = iota
	// KindExhaustion: no matching spot. Not retried internally.
	KindExhaustion
	// KindInvalidInput: rejected immediately, never coerced.
	KindInvalidInput
	// KindConflict: the request contradicts current state.
	KindConflict
	// KindNotFound: the referenced entity does not exist.
	KindNotFound
	// KindContention: lock or transaction timeout. Retryable.
	KindContention
	// KindConfiguration: the lot is missing required setup, such as a rate card.
	KindConfiguration
	// KindCanceled: the caller abandoned the request.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindExhaustion:
		return "exhaustion"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindContention:
		return "contention"
	case KindConfiguration:
		return "configuration"
	case KindCanceled:
		return "canceled"
	}
	return "internal"
}

type classified struct {
	err  error
	kind Kind
	code string
}

// Ordered most specific first: ErrVehicleNotFound and ErrAlreadyExited wrap
// ErrTransactionNotFound and must match before it, and ErrInconsistency
// outranks whatever cause it wraps.
var taxonomy = []classified{
	{ErrInconsistency, KindInternal, "INCONSISTENT_STATE"},
	{ErrStoreClosed, KindInternal, "STORE_CLOSED"},

	{ErrNoSpotAvailable, KindExhaustion, "NO_SPOT_AVAILABLE"},

	{ErrInvalidVehicleType, KindInvalidInput, "INVALID_VEHICLE_TYPE"},
	{ErrInvalidPlate, KindInvalidInput, "INVALID_LICENSE_PLATE"},
	{ErrInvalidInterval, KindInvalidInput, "INVALID_INTERVAL"},
	{ErrInvalidRateCard, KindInvalidInput, "INVALID_RATE_CARD"},
	{ErrInvalidSpot, KindInvalidInput, "INVALID_SPOT"},
	{ErrInvalidAmount, KindInvalidInput, "INVALID_AMOUNT"},
	{ErrInvalidID, KindInvalidInput, "INVALID_ID"},
	{ErrInvalidInput, KindInvalidInput, "INVALID_INPUT"},

	{ErrVehicleAlreadyParked, KindConflict, "VEHICLE_ALREADY_PARKED"},
	{ErrVehicleNotFound, KindNotFound, "VEHICLE_NOT_FOUND"},
	{ErrAlreadyExited, KindConflict, "ALREADY_EXITED"},
	{ErrTransactionNotFound, KindConflict, "TRANSACTION_NOT_FOUND"},
	{ErrAlreadyClosed, KindConflict, "ALREADY_EXITED"},
	{ErrSpotNotOccupied, KindConflict, "SPOT_NOT_OCCUPIED"},
	{ErrSpotNotAvailable, KindConflict, "SPOT_NOT_AVAILABLE"},
	{ErrSpotNotInMaintenance, KindConflict, "SPOT_NOT_IN_MAINTENANCE"},
	{ErrSpotInUse, KindConflict, "SPOT_IN_USE"},
	{ErrDuplicateSpot, KindConflict, "DUPLICATE_SPOT"},

	{ErrSpotNotFound, KindNotFound, "SPOT_NOT_FOUND"},
	{ErrNotFound, KindNotFound, "NOT_FOUND"},

	{ErrSystemBusy, KindContention, "SYSTEM_BUSY"},

	{ErrRateCardNotFound, KindConfiguration, "RATE_CARD_NOT_FOUND"},
}

func lookup(err error) (classified, bool) {
	for _, c := range taxonomy {
		if errors.Is(err, c.err) {
			return c, true
		}
	}
	return classified{}, false
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if c, ok := lookup(err); ok {
		return c.kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindContention
	}
	return KindInternal
}

// Code returns the stable wire code for err, or "INTERNAL" when unknown.
func Code(err error) string {
	if c, ok := lookup(err); ok {
		return c.code
	}
	switch KindOf(err) {
	case KindCanceled:
		return "CANCELED"
	case KindContention:
		return "SYSTEM_BUSY"
	}
	return "INTERNAL"
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("parklot: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap classifies every ValidationError as invalid input.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError collects independent failures, such as those from provisioning
// a batch of spots.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "parklot: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("parklot: %d errors occurred (first: %v)", len(e.Errors), e.Errors[0])
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// ErrOrNil returns e when it holds errors, nil otherwise.
func (e *MultiError) ErrOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *MultiError) Unwrap() []error { return e.Errors }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict returns true if the request contradicts current state.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool { return KindOf(err) == KindContention }
