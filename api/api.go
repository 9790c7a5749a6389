// Package api exposes the parklot engine over HTTP with gin.
//
// Every request is bound and validated once at the boundary, then handed to
// the engine. Failures come back as {"code", "error", "request_id"} with a
// status chosen by the error's kind.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/fee"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// Lot is the engine surface the handlers use. *parklot.Engine implements it.
type Lot interface {
	Entry(ctx context.Context, plate string, vt vehicle.Type) (*parklot.EntryResult, error)
	Exit(ctx context.Context, plate string) (*parklot.ExitResult, error)
	EstimateFee(ctx context.Context, vt vehicle.Type, entry time.Time, exit *time.Time) (*fee.Breakdown, error)
	Availability(ctx context.Context, f spot.Filter) (*spot.Availability, error)

	AddSpot(ctx context.Context, floor, number int, typ vehicle.Type) (*spot.Spot, error)
	GetSpot(ctx context.Context, spotID id.SpotID) (*spot.Spot, error)
	ListSpots(ctx context.Context, opts spot.ListOpts) ([]*spot.Spot, error)
	Release(ctx context.Context, spotID id.SpotID) (*spot.Spot, error)
	MarkMaintenance(ctx context.Context, spotID id.SpotID) (*spot.Spot, error)
	ClearMaintenance(ctx context.Context, spotID id.SpotID) (*spot.Spot, error)

	FindActive(ctx context.Context, plate string) (*transaction.Transaction, error)
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error)
	History(ctx context.Context, plate string, limit int) ([]*transaction.Transaction, error)

	SetRateCard(ctx context.Context, c *ratecard.RateCard) error
	GetRateCard(ctx context.Context, vt vehicle.Type) (*ratecard.RateCard, error)
	ListRateCards(ctx context.Context) ([]*ratecard.RateCard, error)
	Currency() string
}

var _ Lot = (*parklot.Engine)(nil)

// Server holds the HTTP handlers.
type Server struct {
	lot    Lot
	logger *slog.Logger
	extra  []func(*gin.Engine)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRoutes lets the caller mount extra routes, such as /metrics.
func WithRoutes(mount func(*gin.Engine)) Option {
	return func(s *Server) { s.extra = append(s.extra, mount) }
}

// New creates a Server for lot.
func New(lot Lot, opts ...Option) *Server {
	s := &Server{lot: lot, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin router.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), accessLog(s.logger))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/entry", s.entry)
	r.POST("/exit", s.exit)
	r.POST("/estimate", s.estimate)
	r.GET("/availability", s.availability)

	vehicles := r.Group("/vehicles/:plate")
	{
		vehicles.GET("", s.vehicleStatus)
		vehicles.GET("/history", s.vehicleHistory)
	}

	r.GET("/transactions/:id", s.getTransaction)

	cards := r.Group("/rate-cards")
	{
		cards.GET("", s.listRateCards)
		cards.GET("/:type", s.getRateCard)
		cards.PUT("/:type", s.putRateCard)
	}

	spots := r.Group("/spots")
	{
		spots.GET("", s.listSpots)
		spots.POST("", s.addSpot)
		spots.GET("/:id", s.getSpot)
		spots.POST("/:id/release", s.releaseSpot)
		spots.POST("/:id/maintenance", s.markMaintenance)
		spots.DELETE("/:id/maintenance", s.clearMaintenance)
	}

	for _, mount := range s.extra {
		mount(r)
	}
	return r
}
