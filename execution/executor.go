// Package execution orchestrates a single proposed order through the
// non-bypassable safety chain: governance gate, circuit breaker, guard
// chain, leverage hard ceiling, venue calls, and PnL accounting back into
// the breaker. Rejections come back as structured results, never panics.
package execution

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkarls/tradewarden/audit"
	"github.com/mkarls/tradewarden/broker"
	"github.com/mkarls/tradewarden/market"
	"github.com/mkarls/tradewarden/pkg/id"
	"github.com/mkarls/tradewarden/risk"
)

// HardLeverageCap is the absolute leverage ceiling. No configuration value
// can raise the effective maximum above it.
const HardLeverageCap = 20.0

// Gate is the optional governance pre-dispatch hook, consulted for order
// placement only, before the circuit breaker. A returned error blocks the
// order as a structured rejection.
type Gate interface {
	Enforce(ctx context.Context, req GateRequest) error
}

// GateRequest describes the action the gate is asked to approve.
type GateRequest struct {
	Action   string
	Symbol   string
	Notional float64
	Leverage float64
}

// OrderIntent is one proposed order in internal terms. Exactly one of Size
// (base units) or Notional (quote currency) must be set; a notional-only
// intent is converted at the current quoted price.
type OrderIntent struct {
	Symbol     string // internal, e.g. "BTC/USD"
	Side       broker.Side
	Type       string // "market" or "limit"
	Size       float64
	Notional   float64
	Price      float64 // limit price
	Leverage   float64 // 0 leaves the venue setting untouched
	ReduceOnly bool
}

// Result is the structured outcome of one pipeline run.
type Result struct {
	Success     bool
	Reason      string // rejection reason, empty on success
	Order       *broker.Order
	RealizedPnL float64 // reduce-only fills settled immediately
	Deferred    bool    // reduce-only accounting postponed to a later sync
}

// Executor runs the pipeline single-flight: one order's pipeline completes,
// through venue I/O, before the next starts. The mutex spans the whole call
// because the breaker, the pre-close snapshots and the ledger's staging
// state are not built for concurrent mutation.
type Executor struct {
	mu sync.Mutex

	venue   broker.Broker
	mapper  *market.Mapper
	breaker *risk.Breaker
	guards  risk.Chain
	gate    Gate
	sink    audit.Sink
	cache   *OrderCache
	logger  *zap.Logger
	now     func() time.Time

	lastTrade map[string]time.Time
	preClose  map[string]float64 // orderID -> pre-submit unrealized snapshot
}

type Option func(*Executor)

func WithGate(g Gate) Option            { return func(e *Executor) { e.gate = g } }
func WithAudit(s audit.Sink) Option     { return func(e *Executor) { e.sink = s } }
func WithCache(c *OrderCache) Option    { return func(e *Executor) { e.cache = c } }
func WithLogger(l *zap.Logger) Option   { return func(e *Executor) { e.logger = l } }
func WithClock(f func() time.Time) Option { return func(e *Executor) { e.now = f } }

func NewExecutor(venue broker.Broker, mapper *market.Mapper, breaker *risk.Breaker, guards risk.Chain, opts ...Option) *Executor {
	e := &Executor{
		venue:     venue,
		mapper:    mapper,
		breaker:   breaker,
		guards:    guards,
		sink:      audit.Nop{},
		logger:    zap.NewNop(),
		now:       time.Now,
		lastTrade: map[string]time.Time{},
		preClose:  map[string]float64{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Breaker exposes the circuit breaker for status reporting.
func (e *Executor) Breaker() *risk.Breaker { return e.breaker }

// PlaceOrder runs the full pipeline for one proposed order.
func (e *Executor) PlaceOrder(ctx context.Context, intent OrderIntent) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placeLocked(ctx, intent)
}

func (e *Executor) placeLocked(ctx context.Context, intent OrderIntent) Result {
	metricOrdersAttempted.Inc()

	// Governance gate runs before any other evaluation.
	if e.gate != nil {
		if err := e.gate.Enforce(ctx, GateRequest{
			Action:   "place_order",
			Symbol:   intent.Symbol,
			Notional: intent.Notional,
			Leverage: intent.Leverage,
		}); err != nil {
			return e.reject(intent, fmt.Sprintf("blocked by governance gate: %v", err))
		}
	}

	// Equity fetch failure is itself fail-closed: never default to allowed.
	account, err := e.venue.GetAccount(ctx)
	if err != nil {
		return e.reject(intent, fmt.Sprintf("equity unavailable (%v), failing closed", err))
	}

	verdict := e.breaker.Check(account.Equity)
	e.publishBreakerState()
	if !verdict.Allowed {
		return e.reject(intent, verdict.Reason)
	}

	external, err := e.mapper.ToExternal(intent.Symbol)
	if err != nil {
		return e.reject(intent, fmt.Sprintf("symbol not tradable: %v", err))
	}

	size, notional, res := e.resolveSize(ctx, intent, external)
	if res != nil {
		return *res
	}

	verdict = e.guards.Evaluate(risk.OrderCheck{
		Symbol:    intent.Symbol,
		Equity:    account.Equity,
		Notional:  notional,
		Leverage:  intent.Leverage,
		Now:       e.now(),
		LastTrade: e.lastTradeTime,
	})
	if !verdict.Allowed {
		return e.reject(intent, verdict.Reason)
	}

	// The hard ceiling holds regardless of configuration.
	if intent.Leverage > HardLeverageCap {
		return e.reject(intent, fmt.Sprintf(
			"requested leverage %.1fx exceeds the hard ceiling of %.0fx", intent.Leverage, HardLeverageCap))
	}

	// A leverage-set failure blocks the order entirely; falling through and
	// placing at the previous leverage would be fail-open.
	if intent.Leverage > 0 {
		if err := e.venue.AdjustLeverage(ctx, external, intent.Leverage); err != nil {
			return e.reject(intent, fmt.Sprintf("leverage change failed (%v), order not placed", err))
		}
	}

	var preUnrealized float64
	if intent.ReduceOnly {
		preUnrealized, err = e.unrealizedTotal(ctx)
		if err != nil {
			return e.reject(intent, fmt.Sprintf("position snapshot unavailable (%v), failing closed", err))
		}
	}

	order, err := e.venue.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:     external,
		Side:       intent.Side,
		Type:       intent.Type,
		Size:       size,
		Price:      intent.Price,
		ReduceOnly: intent.ReduceOnly,
		ClientID:   id.NewOrderID(),
	})
	if err != nil {
		return e.reject(intent, fmt.Sprintf("venue rejected order: %v", err))
	}
	if order.Status == broker.StatusRejected {
		return e.reject(intent, "venue rejected order")
	}

	metricOrdersPlaced.Inc()
	e.lastTrade[intent.Symbol] = e.now()
	if e.cache != nil {
		e.cache.Put(order.ID, external)
	}

	result := Result{Success: true, Order: &order}
	if intent.ReduceOnly {
		switch order.Status {
		case broker.StatusFilled:
			result.RealizedPnL = e.settleReduce(ctx, preUnrealized, order.Fee)
		case broker.StatusPending:
			// A resting reduce-only order settles when a later sync sees
			// the terminal fill.
			e.preClose[order.ID] = preUnrealized
			result.Deferred = true
		}
	}

	e.logger.Info("order placed",
		zap.String("symbol", intent.Symbol),
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Float64("size", size),
	)
	return result
}

// resolveSize turns a notional-only intent into base units at the quoted
// price, and estimates the notional either way. The third return is non-nil
// when the pipeline must stop.
func (e *Executor) resolveSize(ctx context.Context, intent OrderIntent, external string) (float64, float64, *Result) {
	size := intent.Size
	price := intent.Price

	if size == 0 || price == 0 {
		ticker, err := e.venue.GetTicker(ctx, external)
		if err != nil || ticker.Last <= 0 {
			r := e.reject(intent, fmt.Sprintf("no price resolvable for %s", intent.Symbol))
			return 0, 0, &r
		}
		price = ticker.Last
	}

	if size == 0 {
		if intent.Notional <= 0 {
			r := e.reject(intent, "neither size nor notional given")
			return 0, 0, &r
		}
		size = intent.Notional / price
		if p, err := e.mapper.Precision(intent.Symbol); err == nil {
			size = roundTo(size, p.Amount)
		}
		if size <= 0 {
			r := e.reject(intent, fmt.Sprintf("notional %.2f is below the minimum tradable size", intent.Notional))
			return 0, 0, &r
		}
	}
	return size, size * price, nil
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Floor(v*scale) / scale
}

// settleReduce computes realized PnL as the unrealized delta across the
// close, minus fees, and feeds it into the breaker.
func (e *Executor) settleReduce(ctx context.Context, preUnrealized, fee float64) float64 {
	postUnrealized, err := e.unrealizedTotal(ctx)
	if err != nil {
		e.logger.Warn("post-close position fetch failed, realized PnL not recorded", zap.Error(err))
		return 0
	}
	realized := preUnrealized - postUnrealized - fee
	e.breaker.RecordPnL(realized)
	return realized
}

// unrealizedTotal sums unrealized PnL over mapped positions and refreshes
// the breaker's unrealized snapshot as a side effect.
func (e *Executor) unrealizedTotal(ctx context.Context) (float64, error) {
	positions, err := e.venue.GetPositions(ctx)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, p := range positions {
		// Unmapped instruments are skipped, not fatal.
		if _, ok := e.mapper.TryToInternal(p.Symbol); !ok {
			continue
		}
		sum += p.UnrealizedPnL
	}
	e.breaker.UpdateUnrealizedPnL(sum)
	return sum, nil
}

func (e *Executor) lastTradeTime(symbol string) (time.Time, bool) {
	t, ok := e.lastTrade[symbol]
	return t, ok
}

func (e *Executor) reject(intent OrderIntent, reason string) Result {
	metricOrdersRejected.Inc()
	e.publishBreakerState()
	e.sink.Append(audit.EventRejected, map[string]any{
		"symbol": intent.Symbol,
		"side":   string(intent.Side),
		"reason": reason,
	})
	e.logger.Warn("order rejected",
		zap.String("symbol", intent.Symbol),
		zap.String("reason", reason),
	)
	return Result{Reason: reason}
}

func (e *Executor) publishBreakerState() {
	if e.breaker.IsTripped() {
		metricBreakerTripped.Set(1)
	} else {
		metricBreakerTripped.Set(0)
	}
}
