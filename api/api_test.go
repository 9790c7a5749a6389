package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/api"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/store/memory"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

func init() { gin.SetMode(gin.TestMode) }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t      *testing.T
	clock  *clock
	engine *parklot.Engine
	h      http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.DiscardHandler)
	e := parklot.New(memory.New(), parklot.WithClock(clk.Now), parklot.WithLogger(logger))

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	t.Cleanup(func() { _ = e.Stop() })

	require.NoError(t, e.SetRateCard(ctx, &ratecard.RateCard{
		VehicleType:        vehicle.Car,
		HourlyRate:         types.USD(800),
		Rounding:           ratecard.RoundingCeiling,
		GracePeriodMinutes: 15,
	}))
	for n := 1; n <= 2; n++ {
		_, err := e.AddSpot(ctx, 1, n, vehicle.Car)
		require.NoError(t, err)
	}

	return &harness{t: t, clock: clk, engine: e, h: api.New(e, api.WithLogger(logger)).Handler()}
}

func (h *harness) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.h.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestEntryAndExit(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(http.MethodPost, "/entry", map[string]string{
		"license_plate": "ab-123",
		"vehicle_type":  "car",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "AB123", body["license_plate"])
	assert.Equal(t, "CAR", body["vehicle_type"])
	spotRef := body["spot"].(map[string]any)
	assert.EqualValues(t, 1, spotRef["floor"])
	assert.EqualValues(t, 1, spotRef["spot_number"])
	assert.NotEmpty(t, rec.Header().Get(api.HeaderRequestID))

	rec, body = h.do(http.MethodGet, "/vehicles/AB123", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AB123", body["license_plate"])

	h.clock.Advance(155 * time.Minute)
	rec, body = h.do(http.MethodPost, "/exit", map[string]string{"license_plate": "AB123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 155, body["duration_minutes"])
	assert.Equal(t, "PENDING", body["payment_status"])
	fee := body["parking_fee"].(map[string]any)
	assert.EqualValues(t, 2400, fee["amount"])
	assert.Equal(t, "usd", fee["currency"])

	rec, body = h.do(http.MethodGet, "/vehicles/AB123/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["transactions"], 1)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)

	_, _ = h.do(http.MethodPost, "/entry", map[string]string{"license_plate": "P1", "vehicle_type": "CAR"})
	_, _ = h.do(http.MethodPost, "/entry", map[string]string{"license_plate": "P2", "vehicle_type": "CAR"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"lot full", http.MethodPost, "/entry", map[string]string{"license_plate": "P3", "vehicle_type": "CAR"},
			http.StatusConflict, "NO_SPOT_AVAILABLE"},
		{"already parked", http.MethodPost, "/entry", map[string]string{"license_plate": "p1", "vehicle_type": "CAR"},
			http.StatusConflict, "VEHICLE_ALREADY_PARKED"},
		{"unknown vehicle type", http.MethodPost, "/entry", map[string]string{"license_plate": "P4", "vehicle_type": "TRUCK"},
			http.StatusBadRequest, "INVALID_VEHICLE_TYPE"},
		{"missing plate", http.MethodPost, "/entry", map[string]string{"vehicle_type": "CAR"},
			http.StatusBadRequest, "INVALID_INPUT"},
		{"no rate card", http.MethodPost, "/entry", map[string]string{"license_plate": "B1", "vehicle_type": "BUS"},
			http.StatusUnprocessableEntity, "RATE_CARD_NOT_FOUND"},
		{"never entered", http.MethodPost, "/exit", map[string]string{"license_plate": "ZZ9"},
			http.StatusNotFound, "VEHICLE_NOT_FOUND"},
		{"not parked", http.MethodGet, "/vehicles/ZZ9", nil,
			http.StatusNotFound, "VEHICLE_NOT_FOUND"},
		{"unknown transaction", http.MethodGet, "/transactions/" + id.NewTransactionID().String(), nil,
			http.StatusNotFound, "TRANSACTION_NOT_FOUND"},
		{"bad spot id", http.MethodPost, "/spots/not-an-id/maintenance", nil,
			http.StatusBadRequest, "INVALID_ID"},
		{"duplicate spot", http.MethodPost, "/spots", map[string]any{"floor": 1, "spot_number": 1, "spot_type": "CAR"},
			http.StatusConflict, "DUPLICATE_SPOT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := h.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestExitTwiceIsAlreadyExited(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(http.MethodPost, "/entry", map[string]string{"license_plate": "X1", "vehicle_type": "CAR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	h.clock.Advance(time.Hour)
	rec, _ = h.do(http.MethodPost, "/exit", map[string]string{"license_plate": "X1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := h.do(http.MethodPost, "/exit", map[string]string{"license_plate": "X1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_EXITED", body["code"])
}

func TestAvailability(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(http.MethodPost, "/spots", map[string]any{"floor": 2, "spot_number": 1, "spot_type": "bus"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, _ = h.do(http.MethodPost, "/entry", map[string]string{"license_plate": "C1", "vehicle_type": "CAR"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := h.do(http.MethodGet, "/availability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["available"])
	assert.EqualValues(t, 1, body["occupied"])

	rec, body = h.do(http.MethodGet, "/availability?spot_type=CAR&vehicle_type=CAR", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["available"])
	assert.EqualValues(t, 2, body["eligible"], "a car also fits the bus spot")

	rec, body = h.do(http.MethodGet, "/availability?spot_type=VAN", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_VEHICLE_TYPE", body["code"])
}

// filterLog records the filters passed to Availability.
type filterLog struct {
	api.Lot
	filters []spot.Filter
}

func (l *filterLog) Availability(ctx context.Context, f spot.Filter) (*spot.Availability, error) {
	l.filters = append(l.filters, f)
	return l.Lot.Availability(ctx, f)
}

func TestAvailabilityReadsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.AddSpot(ctx, 1, 3, vehicle.Bus)
	require.NoError(t, err)
	_, err = h.engine.Entry(ctx, "C1", vehicle.Car)
	require.NoError(t, err)

	lot := &filterLog{Lot: h.engine}
	h.h = api.New(lot, api.WithLogger(slog.New(slog.DiscardHandler))).Handler()

	rec, body := h.do(http.MethodGet, "/availability?floor=1&spot_type=CAR&vehicle_type=CAR", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["available"])
	assert.EqualValues(t, 2, body["eligible"], "the bus spot counts for a car")

	require.Len(t, lot.filters, 1)
	assert.Nil(t, lot.filters[0].Type)
	require.NotNil(t, lot.filters[0].Floor)
	assert.Equal(t, 1, *lot.filters[0].Floor)
}

func TestMaintenanceRoutes(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(http.MethodGet, "/spots?floor=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	spots := body["spots"].([]any)
	require.Len(t, spots, 2)
	spotID := spots[0].(map[string]any)["id"].(string)

	rec, body = h.do(http.MethodPost, "/spots/"+spotID+"/maintenance", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MAINTENANCE", body["status"])

	rec, body = h.do(http.MethodPost, "/spots/"+spotID+"/maintenance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SPOT_NOT_AVAILABLE", body["code"])

	rec, body = h.do(http.MethodDelete, "/spots/"+spotID+"/maintenance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AVAILABLE", body["status"])
}

func TestRateCardRoutes(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(http.MethodPut, "/rate-cards/motorcycle", map[string]any{
		"hourly_rate":          "2.50",
		"daily_max_rate":       "12",
		"rounding_strategy":    "floor",
		"grace_period_minutes": 10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hourly := body["hourly_rate"].(map[string]any)
	assert.EqualValues(t, 250, hourly["amount"])
	assert.Equal(t, "FLOOR", body["rounding_strategy"])

	rec, body = h.do(http.MethodPut, "/rate-cards/BUS", map[string]any{
		"hourly_rate":       "1.234",
		"rounding_strategy": "CEILING",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_AMOUNT", body["code"])

	rec, body = h.do(http.MethodGet, "/rate-cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["rate_cards"], 2)

	rec, body = h.do(http.MethodPost, "/estimate", map[string]any{
		"vehicle_type": "MOTORCYCLE",
		"entry_time":   "2026-03-14T08:00:00Z",
		"exit_time":    "2026-03-14T10:05:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, body["hourly_units"])
	final := body["final_fee"].(map[string]any)
	assert.EqualValues(t, 250, final["amount"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(api.HeaderRequestID, "gate-7-abc")
	rec := httptest.NewRecorder()
	h.h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gate-7-abc", rec.Header().Get(api.HeaderRequestID))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{parklot.ErrNoSpotAvailable, http.StatusConflict},
		{parklot.ErrInvalidPlate, http.StatusBadRequest},
		{parklot.ErrVehicleAlreadyParked, http.StatusConflict},
		{parklot.ErrSpotNotFound, http.StatusNotFound},
		{parklot.ErrSystemBusy, http.StatusServiceUnavailable},
		{parklot.ErrRateCardNotFound, http.StatusUnprocessableEntity},
		{parklot.ErrInconsistency, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(parklot.Code(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, api.StatusOf(tt.err))
		})
	}
}
