package execution

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkarls/tradewarden/broker"
	"github.com/mkarls/tradewarden/broker/paper"
	"github.com/mkarls/tradewarden/ledger"
	"github.com/mkarls/tradewarden/market"
	"github.com/mkarls/tradewarden/risk"
)

const btcExternal = "BTC/USDT:USDT"

func testMapper() *market.Mapper {
	return market.NewMapper([]market.CatalogEntry{
		{ID: btcExternal, Base: "BTC", Quote: "USDT", Settle: "USDT", Type: market.TypeSwap, Active: true,
			Precision: market.Precision{Price: 1, Amount: 3}},
		{ID: "ETH/USDT:USDT", Base: "ETH", Quote: "USDT", Settle: "USDT", Type: market.TypeSwap, Active: true,
			Precision: market.Precision{Price: 2, Amount: 2}},
	}, market.TypeSwap)
}

func testGuards() risk.Chain {
	return risk.Chain{
		risk.MaxPositionSizeGuard{MaxPercentOfEquity: 50},
		risk.MaxLeverageGuard{MaxLeverage: 25}, // above the hard ceiling on purpose
		risk.NewSymbolWhitelistGuard([]string{"BTC/USD", "ETH/USD"}),
	}
}

func newTestExecutor(t *testing.T, venue *paper.Venue, opts ...Option) *Executor {
	t.Helper()
	breaker := risk.NewBreaker(0.05)
	return NewExecutor(venue, testMapper(), breaker, testGuards(), opts...)
}

func marketBuy(notional float64) OrderIntent {
	return OrderIntent{
		Symbol:   "BTC/USD",
		Side:     broker.SideBuy,
		Type:     "market",
		Notional: notional,
	}
}

func TestPlaceOrderByNotional(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	e := newTestExecutor(t, venue)

	res := e.PlaceOrder(context.Background(), marketBuy(1000))
	require.True(t, res.Success, res.Reason)
	require.NotNil(t, res.Order)
	assert.Equal(t, broker.StatusFilled, res.Order.Status)
	// 1000 / 95000 = 0.01052..., floored to the 3-decimal amount precision.
	assert.InDelta(t, 0.010, res.Order.Size, 1e-12)
}

func TestPlaceOrderFailsClosedOnEquityError(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	venue.FailAccount = errors.New("venue timeout")
	e := newTestExecutor(t, venue)

	res := e.PlaceOrder(context.Background(), marketBuy(1000))
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "failing closed")
}

func TestPlaceOrderBlockedByBreaker(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	e := newTestExecutor(t, venue)

	// 6% rolling loss against 10k equity trips the 5% breaker.
	e.breaker.RecordPnL(-600)

	res := e.PlaceOrder(context.Background(), marketBuy(1000))
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "6.0%")
}

func TestPlaceOrderUnknownSymbol(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	e := newTestExecutor(t, venue)

	res := e.PlaceOrder(context.Background(), OrderIntent{
		Symbol: "DOGE/USD", Side: broker.SideBuy, Type: "market", Notional: 100,
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "symbol not tradable")
}

func TestPlaceOrderGuardRejection(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	e := newTestExecutor(t, venue)

	// 60% of equity breaches the 50% position cap.
	res := e.PlaceOrder(context.Background(), marketBuy(6000))
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "position value")
}

func TestPlaceOrderHardLeverageCeiling(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	e := newTestExecutor(t, venue)

	// The configured guard allows 25x, but the hard ceiling still rejects.
	intent := marketBuy(1000)
	intent.Leverage = 22
	res := e.PlaceOrder(context.Background(), intent)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "hard ceiling")
	assert.Zero(t, venue.Leverage(btcExternal))
}

func TestLeverageSetFailureBlocksOrder(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	venue.FailLeverage = errors.New("margin mode conflict")
	e := newTestExecutor(t, venue)

	intent := marketBuy(1000)
	intent.Leverage = 5
	res := e.PlaceOrder(context.Background(), intent)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "leverage change failed")

	// Nothing reached the venue order flow.
	orders, err := venue.GetOrders(context.Background(), btcExternal)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrderNoPriceResolvable(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	e := newTestExecutor(t, venue) // no mark set

	res := e.PlaceOrder(context.Background(), marketBuy(1000))
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "no price resolvable")
}

func TestCooldownGuardUsesExecutorHistory(t *testing.T) {
	t.Parallel()

	venue := paper.New(100000)
	venue.SetMark(btcExternal, 95000)

	breaker := risk.NewBreaker(0.05)
	guards := risk.Chain{risk.CooldownGuard{MinInterval: 5 * time.Minute}}
	e := NewExecutor(venue, testMapper(), breaker, guards)

	first := e.PlaceOrder(context.Background(), marketBuy(1000))
	require.True(t, first.Success, first.Reason)

	second := e.PlaceOrder(context.Background(), marketBuy(1000))
	assert.False(t, second.Success)
	assert.Contains(t, second.Reason, "cooldown")
}

type blockingGate struct {
	calls int
}

func (g *blockingGate) Enforce(context.Context, GateRequest) error {
	g.calls++
	return errors.New("trading paused by operator")
}

func TestGovernanceGateBlocksBeforeBreaker(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	// An account failure would also reject, but the gate must fire first.
	venue.FailAccount = errors.New("unreachable")

	gate := &blockingGate{}
	e := newTestExecutor(t, venue, WithGate(gate))

	res := e.PlaceOrder(context.Background(), marketBuy(1000))
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "governance gate")
	assert.Equal(t, 1, gate.calls)
}

func TestReduceOnlyImmediateFillRecordsPnL(t *testing.T) {
	t.Parallel()

	venue := paper.New(100000)
	venue.SetMark(btcExternal, 90000)
	e := newTestExecutor(t, venue)

	open := e.PlaceOrder(context.Background(), OrderIntent{
		Symbol: "BTC/USD", Side: broker.SideBuy, Type: "market", Size: 0.1,
	})
	require.True(t, open.Success, open.Reason)

	venue.SetMark(btcExternal, 95000)
	res := e.PlaceOrder(context.Background(), OrderIntent{
		Symbol: "BTC/USD", Side: broker.SideSell, Type: "market", Size: 0.1, ReduceOnly: true,
	})
	require.True(t, res.Success, res.Reason)
	assert.False(t, res.Deferred)

	// +500 price delta minus the closing fee (0.1 * 95000 * 0.0005).
	wantRealized := 500.0 - 4.75
	assert.InDelta(t, wantRealized, res.RealizedPnL, 1e-9)
	assert.InDelta(t, wantRealized, e.breaker.RollingPnL(), 1e-9)
}

func TestOrderCachePersistsAssociations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "orders.json")
	cache := NewOrderCache(path, zap.NewNop())

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	e := newTestExecutor(t, venue, WithCache(cache))

	res := e.PlaceOrder(context.Background(), marketBuy(1000))
	require.True(t, res.Success, res.Reason)
	require.NoError(t, cache.Flush())

	reloaded := NewOrderCache(path, zap.NewNop())
	symbol, ok := reloaded.Get(res.Order.ID)
	assert.True(t, ok)
	assert.Equal(t, btcExternal, symbol)
}

func newLedgerFor(e *Executor) *ledger.Ledger[ledger.PerpWallet] {
	return ledger.New(ledger.Deps[ledger.PerpWallet]{
		Execute: e.ExecuteOperation,
		Wallet:  e.Wallet,
	})
}

func TestPushThroughPipeline(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	e := newTestExecutor(t, venue)
	led := newLedgerFor(e)

	led.Add(ledger.Operation{Action: ActionPlaceOrder, Params: map[string]any{
		"symbol": "BTC/USD", "side": "buy", "notional": 1000.0,
	}})
	led.Add(ledger.Operation{Action: ActionPlaceOrder, Params: map[string]any{
		"symbol": "DOGE/USD", "side": "buy", "notional": 1000.0,
	}})
	_, err := led.Commit("one good, one unmapped")
	require.NoError(t, err)

	res, err := led.Push(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Filled, 1)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Error, "symbol not tradable")
}

func TestDeferredReduceOnlySettlesOnSync(t *testing.T) {
	t.Parallel()

	venue := paper.New(100000)
	venue.SetMark(btcExternal, 90000)
	e := newTestExecutor(t, venue)
	led := newLedgerFor(e)

	// Open a 0.1 long at 90000.
	open := e.PlaceOrder(context.Background(), OrderIntent{
		Symbol: "BTC/USD", Side: broker.SideBuy, Type: "market", Size: 0.1,
	})
	require.True(t, open.Success, open.Reason)
	venue.SetMark(btcExternal, 95000)

	// Stage a reduce-only limit close above the mark so it rests.
	led.Add(ledger.Operation{Action: ActionPlaceOrder, Params: map[string]any{
		"symbol": "BTC/USD", "side": "sell", "type": "limit",
		"size": 0.1, "price": 96000.0, "reduce_only": true,
	}})
	_, err := led.Commit("take profit")
	require.NoError(t, err)

	pushRes, err := led.Push(context.Background())
	require.NoError(t, err)
	require.Len(t, pushRes.Pending, 1)
	orderID := pushRes.Pending[0].OrderID
	require.Len(t, led.PendingOrders(), 1)

	// Nothing to settle yet: the order is still resting.
	syncRes, err := e.SyncOrders(context.Background(), led)
	require.NoError(t, err)
	assert.Zero(t, syncRes.UpdatedCount)

	// The market trades through the limit.
	require.NoError(t, venue.FillResting(orderID))

	syncRes, err = e.SyncOrders(context.Background(), led)
	require.NoError(t, err)
	assert.Equal(t, 1, syncRes.UpdatedCount)
	assert.Empty(t, led.PendingOrders())

	// Deferred realized PnL lands in the breaker, measured against the
	// unrealized snapshot taken at placement (+500 at the 95000 mark)
	// minus the closing fee.
	wantRealized := 500.0 - 0.1*96000*0.0005
	assert.InDelta(t, wantRealized, e.breaker.RollingPnL(), 1e-9)
}

func TestSyncOrdersNoPending(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	e := newTestExecutor(t, venue)
	led := newLedgerFor(e)

	res, err := e.SyncOrders(context.Background(), led)
	require.NoError(t, err)
	assert.Zero(t, res.UpdatedCount)
	assert.Zero(t, led.Status().CommitCount)
}

func TestAdjustLeverageOperation(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	venue.SetMark(btcExternal, 95000)
	e := newTestExecutor(t, venue)

	out, err := e.ExecuteOperation(context.Background(), ledger.Operation{
		Action: ActionAdjustLeverage,
		Params: map[string]any{"symbol": "BTC/USD", "leverage": 5.0},
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.InDelta(t, 5, venue.Leverage(btcExternal), 1e-12)

	// The hard ceiling applies to direct leverage operations too.
	out, err = e.ExecuteOperation(context.Background(), ledger.Operation{
		Action: ActionAdjustLeverage,
		Params: map[string]any{"symbol": "BTC/USD", "leverage": 50.0},
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "hard ceiling")
}

func TestUnknownOperationAction(t *testing.T) {
	t.Parallel()

	venue := paper.New(10000)
	e := newTestExecutor(t, venue)

	_, err := e.ExecuteOperation(context.Background(), ledger.Operation{Action: "transmogrify"})
	assert.Error(t, err)
}
