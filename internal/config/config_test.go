package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/parklot/internal/config"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

const sample = `
server:
  addr: ":8181"
store:
  driver: sqlite
  dsn: /var/lib/parklot/lot.db
engine:
  currency: usd
  lock_timeout: 500ms
  overstay_threshold: 24h
log:
  level: debug
  format: text
lot:
  floors:
    - floor: 1
      motorcycle: 2
      car: 3
    - floor: 2
      bus: 1
rate_cards:
  car:
    hourly_rate: "8.00"
    daily_max_rate: "50"
    rounding_strategy: ceiling
    grace_period_minutes: 15
  MOTORCYCLE:
    hourly_rate: "2"
    rounding_strategy: FLOOR
`

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parklot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("PARKLOT_SERVER_ADDR", ":9000")

	cfg, err := config.Load(write(t, sample))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr, "env overrides the file")
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout, "default kept")
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.LockTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Engine.OverstayThreshold)
	assert.Equal(t, time.Minute, cfg.Engine.OverstayInterval)

	cards, err := cfg.RateCardList()
	require.NoError(t, err)
	require.Len(t, cards, 2)

	byType := map[vehicle.Type]*ratecard.RateCard{}
	for _, c := range cards {
		byType[c.VehicleType] = c
	}
	car := byType[vehicle.Car]
	require.NotNil(t, car)
	assert.True(t, car.HourlyRate.Equal(types.USD(800)))
	require.NotNil(t, car.DailyMaxRate)
	assert.True(t, car.DailyMaxRate.Equal(types.USD(5000)))
	assert.Equal(t, ratecard.RoundingCeiling, car.Rounding)
	assert.EqualValues(t, 15, car.GracePeriodMinutes)
	assert.Equal(t, ratecard.RoundingFloor, byType[vehicle.Motorcycle].Rounding)
}

func TestFloorLayoutSpots(t *testing.T) {
	spots := config.FloorLayout{Floor: 3, Motorcycle: 1, Car: 2, Bus: 1}.Spots()
	want := []config.SpotPlan{
		{Floor: 3, Number: 1, Type: vehicle.Motorcycle},
		{Floor: 3, Number: 2, Type: vehicle.Car},
		{Floor: 3, Number: 3, Type: vehicle.Car},
		{Floor: 3, Number: 4, Type: vehicle.Bus},
	}
	assert.Equal(t, want, spots)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"duplicate floor", "lot:\n  floors:\n    - floor: 1\n      car: 1\n    - floor: 1\n      bus: 1\n"},
		{"floor zero", "lot:\n  floors:\n    - floor: 0\n      car: 1\n"},
		{"unknown vehicle type", "rate_cards:\n  truck:\n    hourly_rate: \"1\"\n    rounding_strategy: CEILING\n"},
		{"sub-cent rate", "rate_cards:\n  car:\n    hourly_rate: \"1.001\"\n    rounding_strategy: CEILING\n"},
		{"bad rounding", "rate_cards:\n  car:\n    hourly_rate: \"1\"\n    rounding_strategy: UP\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(write(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
