package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mkarls/tradewarden/audit"
	"github.com/mkarls/tradewarden/broker/paper"
	"github.com/mkarls/tradewarden/config"
	"github.com/mkarls/tradewarden/execution"
	"github.com/mkarls/tradewarden/ledger"
	"github.com/mkarls/tradewarden/market"
	"github.com/mkarls/tradewarden/risk"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "A risk-gated order pipeline with a hash-chained trade ledger",
	Long: `Warden routes every order through a layered safety pipeline and records
each batch of operations as an immutable, hash-chained ledger commit.

It provides tools for:
  - Staging, committing and pushing order batches
  - A rolling-window circuit breaker with cooldown
  - Configurable pre-trade guards (position size, leverage, cooldown, whitelist)
  - Paper trading against a built-in simulated venue
  - What-if PnL simulation over open positions
  - Reconciling pending orders against venue state`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./warden.yaml)")
}

// app bundles everything a command needs, wired from one config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	venue    *paper.Venue
	executor *execution.Executor
	ledger   *ledger.Ledger[ledger.PerpWallet]
	store    *ledger.Store
	sink     audit.Sink
	closers  []func() error
}

// defaultCatalog is the instrument universe the paper venue serves.
func defaultCatalog() []market.CatalogEntry {
	return []market.CatalogEntry{
		{ID: "BTC/USDT:USDT", Base: "BTC", Quote: "USDT", Settle: "USDT", Type: market.TypeSwap, Active: true,
			Precision: market.Precision{Price: 1, Amount: 3}},
		{ID: "ETH/USDT:USDT", Base: "ETH", Quote: "USDT", Settle: "USDT", Type: market.TypeSwap, Active: true,
			Precision: market.Precision{Price: 2, Amount: 2}},
		{ID: "SOL/USDT:USDT", Base: "SOL", Quote: "USDT", Settle: "USDT", Type: market.TypeSwap, Active: true,
			Precision: market.Precision{Price: 3, Amount: 1}},
		{ID: "BTC/USDT", Base: "BTC", Quote: "USDT", Type: market.TypeSpot, Active: true,
			Precision: market.Precision{Price: 1, Amount: 5}},
		{ID: "ETH/USDT", Base: "ETH", Quote: "USDT", Type: market.TypeSpot, Active: true,
			Precision: market.Precision{Price: 2, Amount: 4}},
	}
}

// demoMarks seeds the paper venue so orders have a price to trade against.
var demoMarks = map[string]float64{
	"BTC/USDT:USDT": 95000,
	"ETH/USDT:USDT": 2800,
	"SOL/USDT:USDT": 150,
	"BTC/USDT":      95000,
	"ETH/USDT":      2800,
}

func buildApp() (*app, error) {
	// Env vars may carry secrets the YAML should not; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	venue := paper.New(cfg.Venue.PaperBalance)
	for sym, mark := range demoMarks {
		venue.SetMark(sym, mark)
	}
	a.venue = venue

	defaultType, err := cfg.Venue.MarketType()
	if err != nil {
		return nil, err
	}
	mapper := market.NewMapper(defaultCatalog(), defaultType)

	breaker := risk.NewBreaker(cfg.Risk.MaxDailyLossPct)
	if w, _ := cfg.Risk.ParseWindow(); w > 0 {
		breaker.WithWindow(w)
	}
	if c, _ := cfg.Risk.ParseCooldown(); c > 0 {
		breaker.WithCooldown(c)
	}

	guards, err := risk.BuildChain(cfg.Guards, logger)
	if err != nil {
		return nil, fmt.Errorf("build guard chain: %w", err)
	}

	sink, err := a.buildSink()
	if err != nil {
		return nil, err
	}
	a.sink = sink

	opts := []execution.Option{
		execution.WithLogger(logger),
		execution.WithAudit(sink),
	}
	if cfg.Orders.CachePath != "" {
		opts = append(opts, execution.WithCache(execution.NewOrderCache(cfg.Orders.CachePath, logger)))
	}
	a.executor = execution.NewExecutor(venue, mapper, breaker, guards, opts...)

	if err := a.openLedger(); err != nil {
		return nil, err
	}
	return a, nil
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = "./warden.yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	return config.LoadFromFile(path)
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func (a *app) buildSink() (audit.Sink, error) {
	switch a.cfg.Audit.Type {
	case "sqlite":
		s, err := audit.NewSQLiteSink(a.cfg.Audit.DBPath, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "none":
		return audit.Nop{}, nil
	default:
		return audit.NewZapSink(a.logger), nil
	}
}

// openLedger restores persisted ledger state, or starts fresh when none exists.
func (a *app) openLedger() error {
	store, err := ledger.NewStore(a.cfg.Ledger.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	name := a.cfg.Ledger.Name
	if name == "" {
		name = "default"
	}
	deps := ledger.Deps[ledger.PerpWallet]{
		Execute: a.executor.ExecuteOperation,
		Wallet:  a.executor.Wallet,
		OnCommit: func(blob []byte) {
			if err := store.Save(name, blob); err != nil {
				a.logger.Error("persist ledger state", zap.Error(err))
			}
		},
	}

	ledgerOpts := []ledger.Option[ledger.PerpWallet]{
		ledger.WithLogger[ledger.PerpWallet](a.logger),
		ledger.WithAudit[ledger.PerpWallet](a.sink),
	}

	blob, err := store.Load(name)
	if errors.Is(err, ledger.ErrStateNotFound) {
		a.ledger = ledger.New(deps, ledgerOpts...)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load ledger state: %w", err)
	}
	led, err := ledger.Restore(blob, deps, ledgerOpts...)
	if err != nil {
		return fmt.Errorf("restore ledger state: %w", err)
	}
	a.ledger = led
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
