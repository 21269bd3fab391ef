// Package broker defines the venue adapter contract the execution core
// depends on. Venue-specific SDKs live entirely behind this interface.
package broker

import (
	"context"
	"strings"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the canonical status vocabulary. Every venue's native
// vocabulary is folded onto these four values before the core sees it.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
)

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// StatusFromNative maps a venue's raw status string onto the canonical set.
// Unrecognized statuses are treated as pending: a later poll will settle them.
func StatusFromNative(raw string) OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "filled", "closed", "done", "executed", "full_fill":
		return StatusFilled
	case "canceled", "cancelled", "expired":
		return StatusCancelled
	case "rejected", "failed", "denied":
		return StatusRejected
	default:
		return StatusPending
	}
}

type OrderRequest struct {
	Symbol     string // venue-native instrument id
	Side       Side
	Type       string // "market" or "limit"
	Size       float64
	Price      float64 // limit price, 0 for market
	ReduceOnly bool
	ClientID   string
}

type Order struct {
	ID          string
	ClientID    string
	Symbol      string
	Side        Side
	Type        string
	Size        float64
	Price       float64
	FilledSize  float64
	FilledPrice float64
	Fee         float64
	Status      OrderStatus
	ReduceOnly  bool
	CreatedAt   time.Time
}

type Position struct {
	Symbol        string // venue-native instrument id
	Side          Side   // buy = long, sell = short
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	Leverage      float64
	UnrealizedPnL float64
}

type Account struct {
	Equity          float64
	Balance         float64
	AvailableMargin float64
	UnrealizedPnL   float64
}

type Ticker struct {
	Symbol string
	Bid    float64
	Ask    float64
	Last   float64
	Time   time.Time
}

type FundingRate struct {
	Symbol   string
	Rate     float64
	NextTime time.Time
}

type BookLevel struct {
	Price float64
	Size  float64
}

type OrderBook struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
	Time   time.Time
}

// Broker is the full surface the execution core needs from a venue.
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOrders(ctx context.Context, symbol string) ([]Order, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetAccount(ctx context.Context) (Account, error)
	AdjustLeverage(ctx context.Context, symbol string, leverage float64) error
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
	GetFundingRate(ctx context.Context, symbol string) (FundingRate, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)
}
