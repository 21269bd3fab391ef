package market

// MarketType distinguishes the instrument classes we are willing to trade.
type MarketType string

const (
	TypeSpot   MarketType = "spot"
	TypeSwap   MarketType = "swap"
	TypeFuture MarketType = "future"
)

// Precision carries the venue's decimal precision for an instrument.
type Precision struct {
	Price  int
	Amount int
}

// CatalogEntry is one instrument from a venue market-catalog snapshot.
type CatalogEntry struct {
	ID        string // venue-native id, e.g. "BTC/USDT:USDT"
	Base      string // "BTC"
	Quote     string // "USDT"
	Settle    string // "USDT", empty for spot
	Type      MarketType
	Active    bool
	Precision Precision
}

func (e CatalogEntry) derivative() bool {
	return e.Type == TypeSwap || e.Type == TypeFuture
}

func (e CatalogEntry) usdDenominated() bool {
	return isUSDLike(e.Quote) || isUSDLike(e.Settle)
}

func isUSDLike(currency string) bool {
	return currency == "USD" || currency == "USDT"
}
