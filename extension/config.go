package extension

import (
	"time"

	"github.com/xraph/parklot/store/backend"
)

// Config holds the parklot extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.parklot" or "parklot" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Store selects the backend when no store was passed with WithStore.
	Store backend.Config `json:"store" mapstructure:"store" yaml:"store"`

	// Currency is the lot's billing currency (default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// LockTimeout caps each entry, exit and inventory operation (default: 2s).
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout" yaml:"lock_timeout"`

	// OverstayThreshold enables the overstay monitor when positive.
	OverstayThreshold time.Duration `json:"overstay_threshold" mapstructure:"overstay_threshold" yaml:"overstay_threshold"`

	// OverstayInterval is how often the monitor scans (default: 1m).
	OverstayInterval time.Duration `json:"overstay_interval" mapstructure:"overstay_interval" yaml:"overstay_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:            backend.Config{Driver: backend.DriverMemory},
		Currency:         "usd",
		LockTimeout:      2 * time.Second,
		OverstayInterval: time.Minute,
	}
}
