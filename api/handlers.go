package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// ──────────────────────────────────────────────────
// Gate
// ──────────────────────────────────────────────────

// POST /entry
func (s *Server) entry(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	vt, err := vehicle.ParseType(req.VehicleType)
	if err != nil {
		abort(c, err)
		return
	}

	res, err := s.lot.Entry(c.Request.Context(), req.LicensePlate, vt)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /exit
//
// A plate that never entered gets 404 VEHICLE_NOT_FOUND; a plate whose latest
// session is already closed, including one closed by a concurrent exit, gets
// 409 ALREADY_EXITED. Both wrap parklot.ErrTransactionNotFound.
func (s *Server) exit(c *gin.Context) {
	var req ExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := s.lot.Exit(c.Request.Context(), req.LicensePlate)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /estimate
func (s *Server) estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	vt, err := vehicle.ParseType(req.VehicleType)
	if err != nil {
		abort(c, err)
		return
	}

	b, err := s.lot.EstimateFee(c.Request.Context(), vt, req.EntryTime, req.ExitTime)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type availabilityResponse struct {
	*spot.Availability
	VehicleType vehicle.Type `json:"vehicle_type,omitempty"`
	Eligible    *int         `json:"eligible,omitempty"`
}

// GET /availability
//
// spot_type narrows the counts to one spot type. vehicle_type adds the
// number of spots that vehicle could take right now.
func (s *Server) availability(c *gin.Context) {
	var q spotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	f, err := q.filter()
	if err != nil {
		abort(c, err)
		return
	}

	// A single read: the narrowed counts and the eligible figure both come
	// from this snapshot.
	all, err := s.lot.Availability(c.Request.Context(), spot.Filter{Floor: f.Floor})
	if err != nil {
		abort(c, err)
		return
	}
	resp := availabilityResponse{Availability: all.Narrow(f)}

	if q.VehicleType != "" {
		vt, err := vehicle.ParseType(q.VehicleType)
		if err != nil {
			abort(c, err)
			return
		}
		n := all.AvailableFor(vt)
		resp.VehicleType = vt
		resp.Eligible = &n
	}
	c.JSON(http.StatusOK, resp)
}

// ──────────────────────────────────────────────────
// Vehicles and ledger
// ──────────────────────────────────────────────────

// GET /vehicles/:plate
func (s *Server) vehicleStatus(c *gin.Context) {
	plate := c.Param("plate")
	t, err := s.lot.FindActive(c.Request.Context(), plate)
	if err != nil {
		abort(c, err)
		return
	}
	if t == nil {
		abort(c, fmt.Errorf("%w: %s is not parked", parklot.ErrVehicleNotFound, plate))
		return
	}
	c.JSON(http.StatusOK, t)
}

// GET /vehicles/:plate/history
func (s *Server) vehicleHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	hist, err := s.lot.History(c.Request.Context(), c.Param("plate"), q.Limit)
	if err != nil {
		abort(c, err)
		return
	}
	if hist == nil {
		hist = []*transaction.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": hist})
}

// GET /transactions/:id
func (s *Server) getTransaction(c *gin.Context) {
	txnID, err := id.ParseTransactionID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	t, err := s.lot.GetTransaction(c.Request.Context(), txnID)
	switch {
	case errors.Is(err, parklot.ErrTransactionNotFound):
		// A lookup miss, not an exit conflict.
		abortStatus(c, http.StatusNotFound, err)
		return
	case err != nil:
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// ──────────────────────────────────────────────────
// Rate cards
// ──────────────────────────────────────────────────

// GET /rate-cards
func (s *Server) listRateCards(c *gin.Context) {
	cards, err := s.lot.ListRateCards(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": s.lot.Currency(), "rate_cards": cards})
}

// GET /rate-cards/:type
func (s *Server) getRateCard(c *gin.Context) {
	vt, err := vehicle.ParseType(c.Param("type"))
	if err != nil {
		abort(c, err)
		return
	}
	card, err := s.lot.GetRateCard(c.Request.Context(), vt)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// PUT /rate-cards/:type
func (s *Server) putRateCard(c *gin.Context) {
	vt, err := vehicle.ParseType(c.Param("type"))
	if err != nil {
		abort(c, err)
		return
	}
	var req RateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	card, err := req.toRateCard(vt, s.lot.Currency())
	if err != nil {
		abort(c, err)
		return
	}

	if err := s.lot.SetRateCard(c.Request.Context(), card); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// ──────────────────────────────────────────────────
// Spots
// ──────────────────────────────────────────────────

// GET /spots
func (s *Server) listSpots(c *gin.Context) {
	var q spotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	f, err := q.filter()
	if err != nil {
		abort(c, err)
		return
	}
	spots, err := s.lot.ListSpots(c.Request.Context(), spot.ListOpts{Filter: f, Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		abort(c, err)
		return
	}
	if spots == nil {
		spots = []*spot.Spot{}
	}
	c.JSON(http.StatusOK, gin.H{"spots": spots})
}

// POST /spots
func (s *Server) addSpot(c *gin.Context) {
	var req SpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	typ, err := vehicle.ParseType(req.SpotType)
	if err != nil {
		abort(c, err)
		return
	}
	sp, err := s.lot.AddSpot(c.Request.Context(), req.Floor, req.Number, typ)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

// GET /spots/:id
func (s *Server) getSpot(c *gin.Context) {
	s.withSpot(c, s.lot.GetSpot)
}

// POST /spots/:id/release
func (s *Server) releaseSpot(c *gin.Context) {
	s.withSpot(c, s.lot.Release)
}

// POST /spots/:id/maintenance
func (s *Server) markMaintenance(c *gin.Context) {
	s.withSpot(c, s.lot.MarkMaintenance)
}

// DELETE /spots/:id/maintenance
func (s *Server) clearMaintenance(c *gin.Context) {
	s.withSpot(c, s.lot.ClearMaintenance)
}

// withSpot parses the :id parameter and replies with the spot op returns.
func (s *Server) withSpot(c *gin.Context, op func(ctx context.Context, spotID id.SpotID) (*spot.Spot, error)) {
	spotID, err := id.ParseSpotID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	sp, err := op(c.Request.Context(), spotID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}
