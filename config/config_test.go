package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarls/tradewarden/market"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	w, err := cfg.Risk.ParseWindow()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, w)

	cd, err := cfg.Risk.ParseCooldown()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cd)

	mt, err := cfg.Venue.MarketType()
	require.NoError(t, err)
	assert.Equal(t, market.TypeSwap, mt)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	raw := `
risk:
  max_daily_loss_pct: 0.03
  window: 12h
  cooldown: 30m
guards:
  - type: max-leverage
    max_leverage: 10
  - type: symbol-whitelist
    symbols: [BTC/USD, ETH/USD]
venue:
  name: paper
  default_market: spot
  paper_balance: 25000
ledger:
  db_path: /tmp/warden-test.db
audit:
  type: none
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.03, cfg.Risk.MaxDailyLossPct, 1e-12)
	assert.Len(t, cfg.Guards, 2)
	assert.Equal(t, "max-leverage", cfg.Guards[0].Type)
	assert.Equal(t, 25000.0, cfg.Venue.PaperBalance)

	mt, err := cfg.Venue.MarketType()
	require.NoError(t, err)
	assert.Equal(t, market.TypeSpot, mt)
}

func TestLoadFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero loss pct", func(c *Config) { c.Risk.MaxDailyLossPct = 0 }, "max_daily_loss_pct"},
		{"loss pct too high", func(c *Config) { c.Risk.MaxDailyLossPct = 1.5 }, "max_daily_loss_pct"},
		{"bad window", func(c *Config) { c.Risk.Window = "yesterday" }, "risk.window"},
		{"bad cooldown", func(c *Config) { c.Risk.Cooldown = "soon" }, "risk.cooldown"},
		{"unknown venue", func(c *Config) { c.Venue.Name = "binance" }, "venue.name"},
		{"negative balance", func(c *Config) { c.Venue.PaperBalance = -1 }, "paper_balance"},
		{"bad market", func(c *Config) { c.Venue.DefaultMarket = "options" }, "default_market"},
		{"missing db path", func(c *Config) { c.Ledger.DBPath = "" }, "ledger.db_path"},
		{"sqlite audit without path", func(c *Config) { c.Audit.Type = "sqlite" }, "audit.db_path"},
		{"bad audit type", func(c *Config) { c.Audit.Type = "kafka" }, "audit.type"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Risk.MaxDailyLossPct = 0.02
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	back, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, back.Risk.MaxDailyLossPct, 1e-12)
}
