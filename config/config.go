package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkarls/tradewarden/market"
	"github.com/mkarls/tradewarden/risk"
)

// Config is the complete warden configuration
type Config struct {
	Risk    RiskConfig         `yaml:"risk"`
	Guards  []risk.GuardConfig `yaml:"guards"`
	Venue   VenueConfig        `yaml:"venue"`
	Ledger  LedgerConfig       `yaml:"ledger"`
	Orders  OrdersConfig       `yaml:"orders"`
	Audit   AuditConfig        `yaml:"audit"`
	Logging LoggingConfig      `yaml:"logging"`
}

// RiskConfig drives the circuit breaker
type RiskConfig struct {
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"`
	Window          string  `yaml:"window,omitempty"`   // e.g. "24h"
	Cooldown        string  `yaml:"cooldown,omitempty"` // e.g. "1h"
}

// ParseWindow converts the window string to time.Duration
func (r RiskConfig) ParseWindow() (time.Duration, error) {
	if r.Window == "" {
		return 0, nil
	}
	return time.ParseDuration(r.Window)
}

// ParseCooldown converts the cooldown string to time.Duration
func (r RiskConfig) ParseCooldown() (time.Duration, error) {
	if r.Cooldown == "" {
		return 0, nil
	}
	return time.ParseDuration(r.Cooldown)
}

// VenueConfig selects the trading venue and instrument preferences
type VenueConfig struct {
	Name           string  `yaml:"name"` // "paper" for the built-in simulator
	DefaultMarket  string  `yaml:"default_market"`
	PaperBalance   float64 `yaml:"paper_balance,omitempty"`
}

// MarketType resolves the configured default market type
func (v VenueConfig) MarketType() (market.MarketType, error) {
	switch v.DefaultMarket {
	case "", "swap":
		return market.TypeSwap, nil
	case "spot":
		return market.TypeSpot, nil
	case "future":
		return market.TypeFuture, nil
	}
	return "", fmt.Errorf("unknown default_market: %s", v.DefaultMarket)
}

// LedgerConfig contains ledger persistence parameters
type LedgerConfig struct {
	DBPath string `yaml:"db_path"`
	Name   string `yaml:"name,omitempty"` // state name within the store
}

// OrdersConfig contains order cache parameters
type OrdersConfig struct {
	CachePath string `yaml:"cache_path,omitempty"`
}

// AuditConfig contains audit trail parameters
type AuditConfig struct {
	Type   string `yaml:"type"` // "sqlite", "log" or "none"
	DBPath string `yaml:"db_path,omitempty"`
}

// LoggingConfig contains logger parameters
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct >= 1 {
		return fmt.Errorf("risk.max_daily_loss_pct must be between 0 and 1")
	}
	if _, err := c.Risk.ParseWindow(); err != nil {
		return fmt.Errorf("risk.window: %w", err)
	}
	if _, err := c.Risk.ParseCooldown(); err != nil {
		return fmt.Errorf("risk.cooldown: %w", err)
	}
	if c.Venue.Name != "paper" {
		return fmt.Errorf("venue.name must be 'paper'")
	}
	if c.Venue.PaperBalance < 0 {
		return fmt.Errorf("venue.paper_balance must not be negative")
	}
	if _, err := c.Venue.MarketType(); err != nil {
		return err
	}
	if c.Ledger.DBPath == "" {
		return fmt.Errorf("ledger.db_path is required")
	}
	switch c.Audit.Type {
	case "sqlite":
		if c.Audit.DBPath == "" {
			return fmt.Errorf("audit.db_path required for sqlite type")
		}
	case "log", "none":
	default:
		return fmt.Errorf("audit.type must be 'sqlite', 'log' or 'none'")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level: %s", c.Logging.Level)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Risk: RiskConfig{
			MaxDailyLossPct: 0.05,
			Window:          "24h",
			Cooldown:        "1h",
		},
		Venue: VenueConfig{
			Name:          "paper",
			DefaultMarket: "swap",
			PaperBalance:  100000,
		},
		Ledger: LedgerConfig{
			DBPath: "./warden.db",
			Name:   "default",
		},
		Orders: OrdersConfig{
			CachePath: "./orders.json",
		},
		Audit: AuditConfig{
			Type:   "log",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
