package ratecard

import (
	"context"

	"github.com/xraph/parklot/vehicle"
)

// Store persists one rate card per vehicle type. Put replaces any existing
// card for the same type; reads return copies.
type Store interface {
	PutRateCard(ctx context.Context, c *RateCard) error
	GetRateCard(ctx context.Context, vt vehicle.Type) (*RateCard, error)
	ListRateCards(ctx context.Context) ([]*RateCard, error)
	DeleteRateCard(ctx context.Context, vt vehicle.Type) error
}
