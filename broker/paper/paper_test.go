package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarls/tradewarden/broker"
)

func TestMarketOrderFillsImmediately(t *testing.T) {
	t.Parallel()

	v := New(10000)
	v.SetMark("BTC/USDT:USDT", 95000)

	order, err := v.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol: "BTC/USDT:USDT",
		Side:   broker.SideBuy,
		Type:   "market",
		Size:   0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, broker.StatusFilled, order.Status)
	assert.InDelta(t, 95000, order.FilledPrice, 1e-9)
	assert.Greater(t, order.Fee, 0.0)

	positions, err := v.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.1, positions[0].Size, 1e-12)
}

func TestLimitOrderRestsThenFills(t *testing.T) {
	t.Parallel()

	v := New(10000)
	v.SetMark("BTC/USDT:USDT", 95000)

	// A buy below the mark does not cross.
	order, err := v.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol: "BTC/USDT:USDT",
		Side:   broker.SideBuy,
		Type:   "limit",
		Size:   0.1,
		Price:  90000,
	})
	require.NoError(t, err)
	assert.Equal(t, broker.StatusPending, order.Status)

	require.NoError(t, v.FillResting(order.ID))

	orders, err := v.GetOrders(context.Background(), "BTC/USDT:USDT")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, broker.StatusFilled, orders[0].Status)
	assert.InDelta(t, 90000, orders[0].FilledPrice, 1e-9)
}

func TestReduceRealizesPnL(t *testing.T) {
	t.Parallel()

	v := New(10000)
	v.SetMark("ETH/USDT:USDT", 3000)

	_, err := v.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol: "ETH/USDT:USDT", Side: broker.SideBuy, Type: "market", Size: 1,
	})
	require.NoError(t, err)

	v.SetMark("ETH/USDT:USDT", 3200)
	_, err = v.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol: "ETH/USDT:USDT", Side: broker.SideSell, Type: "market", Size: 1, ReduceOnly: true,
	})
	require.NoError(t, err)

	positions, err := v.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)

	// +200 realized minus entry and exit fees.
	acct, err := v.GetAccount(context.Background())
	require.NoError(t, err)
	fees := 3000*0.0005 + 3200*0.0005
	assert.InDelta(t, 10200-fees, acct.Balance, 1e-9)
}

func TestEquityIncludesUnrealized(t *testing.T) {
	t.Parallel()

	v := New(10000)
	v.SetMark("BTC/USDT:USDT", 90000)

	_, err := v.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol: "BTC/USDT:USDT", Side: broker.SideBuy, Type: "market", Size: 0.1,
	})
	require.NoError(t, err)

	v.SetMark("BTC/USDT:USDT", 95000)
	acct, err := v.GetAccount(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 500, acct.UnrealizedPnL, 1e-9)
	assert.InDelta(t, acct.Balance+500, acct.Equity, 1e-9)
}

func TestCancelOrder(t *testing.T) {
	t.Parallel()

	v := New(10000)
	v.SetMark("BTC/USDT:USDT", 95000)
	v.RestLimits = true

	order, err := v.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol: "BTC/USDT:USDT", Side: broker.SideBuy, Type: "limit", Size: 0.1, Price: 96000,
	})
	require.NoError(t, err)
	require.Equal(t, broker.StatusPending, order.Status)

	require.NoError(t, v.CancelOrder(context.Background(), order.Symbol, order.ID))
	assert.Error(t, v.CancelOrder(context.Background(), order.Symbol, order.ID))
	assert.Error(t, v.FillResting(order.ID))
}

func TestAdjustLeverage(t *testing.T) {
	t.Parallel()

	v := New(10000)
	require.NoError(t, v.AdjustLeverage(context.Background(), "BTC/USDT:USDT", 5))
	assert.InDelta(t, 5, v.Leverage("BTC/USDT:USDT"), 1e-12)
}
