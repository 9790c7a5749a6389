// Package config loads the parklotd daemon configuration.
//
// Values come from an optional YAML file, overridden by PARKLOT_* environment
// variables (PARKLOT_STORE_DSN for store.dsn). A .env file in the working
// directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/store/backend"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PARKLOT"

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type EngineConfig struct {
	Currency          string        `mapstructure:"currency"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout"`
	OverstayThreshold time.Duration `mapstructure:"overstay_threshold"`
	OverstayInterval  time.Duration `mapstructure:"overstay_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FloorLayout is the spot count per type on one floor. Spots are numbered
// from 1: motorcycles first, then cars, then buses.
type FloorLayout struct {
	Floor      int `mapstructure:"floor"`
	Motorcycle int `mapstructure:"motorcycle"`
	Car        int `mapstructure:"car"`
	Bus        int `mapstructure:"bus"`
}

// SpotPlan is one spot to provision.
type SpotPlan struct {
	Floor  int
	Number int
	Type   vehicle.Type
}

// Spots expands the layout into individual spots.
func (f FloorLayout) Spots() []SpotPlan {
	out := make([]SpotPlan, 0, f.Motorcycle+f.Car+f.Bus)
	n := 0
	for _, group := range []struct {
		typ   vehicle.Type
		count int
	}{
		{vehicle.Motorcycle, f.Motorcycle},
		{vehicle.Car, f.Car},
		{vehicle.Bus, f.Bus},
	} {
		for range group.count {
			n++
			out = append(out, SpotPlan{Floor: f.Floor, Number: n, Type: group.typ})
		}
	}
	return out
}

type LotConfig struct {
	Floors []FloorLayout `mapstructure:"floors"`
}

// RateCardConfig is a rate card with amounts as decimal strings in major
// units, such as "8.00".
type RateCardConfig struct {
	HourlyRate         string `mapstructure:"hourly_rate"`
	DailyMaxRate       string `mapstructure:"daily_max_rate"`
	Rounding           string `mapstructure:"rounding_strategy"`
	GracePeriodMinutes int64  `mapstructure:"grace_period_minutes"`
}

// RateCard converts the entry for vt into a card billed in currency.
func (c RateCardConfig) RateCard(vt vehicle.Type, currency string) (*ratecard.RateCard, error) {
	hourly, err := types.ParseMoney(c.HourlyRate, currency)
	if err != nil {
		return nil, fmt.Errorf("rate_cards.%s.hourly_rate: %w", strings.ToLower(string(vt)), err)
	}
	card := &ratecard.RateCard{
		VehicleType:        vt,
		HourlyRate:         hourly,
		Rounding:           ratecard.Rounding(strings.ToUpper(c.Rounding)),
		GracePeriodMinutes: c.GracePeriodMinutes,
	}
	if c.DailyMaxRate != "" {
		daily, err := types.ParseMoney(c.DailyMaxRate, currency)
		if err != nil {
			return nil, fmt.Errorf("rate_cards.%s.daily_max_rate: %w", strings.ToLower(string(vt)), err)
		}
		card.DailyMaxRate = &daily
	}
	return card, card.Validate()
}

// Config is the daemon configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Store     backend.Config            `mapstructure:"store"`
	Engine    EngineConfig              `mapstructure:"engine"`
	Log       LogConfig                 `mapstructure:"log"`
	Lot       LotConfig                 `mapstructure:"lot"`
	RateCards map[string]RateCardConfig `mapstructure:"rate_cards"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("store.driver", backend.DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.database", "parklot")
	v.SetDefault("store.lock_timeout", 0)

	v.SetDefault("engine.currency", "usd")
	v.SetDefault("engine.lock_timeout", 2*time.Second)
	v.SetDefault("engine.overstay_threshold", 0)
	v.SetDefault("engine.overstay_interval", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from path, or from parklot.yaml in the working
// directory or /etc/parklot when path is empty. A missing default file is
// not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("parklot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/parklot")
	} else {
		v.SetConfigFile(path)
	}

	// environment overrides, e.g. PARKLOT_SERVER_ADDR=:9000
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	seen := make(map[int]bool, len(c.Lot.Floors))
	for _, f := range c.Lot.Floors {
		if f.Floor < 1 {
			return fmt.Errorf("config: lot floor %d must be >= 1", f.Floor)
		}
		if seen[f.Floor] {
			return fmt.Errorf("config: lot floor %d listed twice", f.Floor)
		}
		if f.Motorcycle < 0 || f.Car < 0 || f.Bus < 0 {
			return fmt.Errorf("config: lot floor %d has a negative spot count", f.Floor)
		}
		seen[f.Floor] = true
	}

	_, err := c.RateCardList()
	return err
}

// RateCardList parses every configured rate card, ordered by vehicle type.
func (c *Config) RateCardList() ([]*ratecard.RateCard, error) {
	keys := make([]string, 0, len(c.RateCards))
	for k := range c.RateCards {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cards := make([]*ratecard.RateCard, 0, len(keys))
	for _, k := range keys {
		vt, err := vehicle.ParseType(k)
		if err != nil {
			return nil, fmt.Errorf("config: rate_cards: %w", err)
		}
		card, err := c.RateCards[k].RateCard(vt, c.Engine.Currency)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// Handler builds the slog handler the config describes.
func (l LogConfig) Handler(w *os.File) slog.Handler {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
