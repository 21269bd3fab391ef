package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() []CatalogEntry {
	return []CatalogEntry{
		{ID: "BTC/USDT:USDT", Base: "BTC", Quote: "USDT", Settle: "USDT", Type: TypeSwap, Active: true, Precision: Precision{Price: 1, Amount: 3}},
		{ID: "BTC/USDT", Base: "BTC", Quote: "USDT", Type: TypeSpot, Active: true, Precision: Precision{Price: 2, Amount: 6}},
		{ID: "BTC/USD:BTC", Base: "BTC", Quote: "USD", Settle: "BTC", Type: TypeSwap, Active: true, Precision: Precision{Price: 1, Amount: 0}},
		{ID: "ETH/USDT", Base: "ETH", Quote: "USDT", Type: TypeSpot, Active: true, Precision: Precision{Price: 2, Amount: 5}},
		{ID: "ETH/EUR", Base: "ETH", Quote: "EUR", Type: TypeSpot, Active: true},
		{ID: "SOL/USDT:USDT", Base: "SOL", Quote: "USDT", Settle: "USDT", Type: TypeSwap, Active: false},
		{ID: "SOL/USDT", Base: "SOL", Quote: "USDT", Type: TypeSpot, Active: true, Precision: Precision{Price: 3, Amount: 2}},
	}
}

func TestNewMapperSwapFirst(t *testing.T) {
	t.Parallel()

	m := NewMapper(testCatalog(), TypeSwap)

	ext, err := m.ToExternal("BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT:USDT", ext)

	// ETH has no derivative market, spot USDT still qualifies.
	ext, err = m.ToExternal("ETH/USD")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", ext)
}

func TestNewMapperSpotFirst(t *testing.T) {
	t.Parallel()

	m := NewMapper(testCatalog(), TypeSpot)

	ext, err := m.ToExternal("BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", ext)
}

func TestNewMapperSkipsInactive(t *testing.T) {
	t.Parallel()

	// The SOL swap is inactive; only the active spot market may win.
	m := NewMapper(testCatalog(), TypeSwap)

	ext, err := m.ToExternal("SOL/USD")
	require.NoError(t, err)
	assert.Equal(t, "SOL/USDT", ext)
}

func TestNewMapperSkipsNonUSD(t *testing.T) {
	t.Parallel()

	m := NewMapper([]CatalogEntry{
		{ID: "ETH/EUR", Base: "ETH", Quote: "EUR", Type: TypeSpot, Active: true},
	}, TypeSpot)

	_, err := m.ToExternal("ETH/USD")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMapperRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMapper(testCatalog(), TypeSwap)

	in, err := m.ToInternal("BTC/USDT:USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", in)

	p, err := m.Precision("BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, Precision{Price: 1, Amount: 3}, p)
}

func TestTryToInternal(t *testing.T) {
	t.Parallel()

	m := NewMapper(testCatalog(), TypeSwap)

	in, ok := m.TryToInternal("ETH/USDT")
	assert.True(t, ok)
	assert.Equal(t, "ETH/USD", in)

	_, ok = m.TryToInternal("DOGE/USDT")
	assert.False(t, ok)
}

func TestMapperUnknownSymbolErrors(t *testing.T) {
	t.Parallel()

	m := NewMapper(nil, TypeSwap)

	_, err := m.ToExternal("BTC/USD")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = m.ToInternal("BTC/USDT")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = m.Precision("BTC/USD")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}
