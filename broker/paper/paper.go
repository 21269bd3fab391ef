// Package paper is a deterministic in-memory venue used by tests and the
// demo command. Market orders fill immediately at the configured mark, limit
// orders rest until FillResting is called, and the account keeps simple
// netted positions with realized PnL folded into the balance.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkarls/tradewarden/broker"
	"github.com/mkarls/tradewarden/pkg/id"
)

type position struct {
	side     broker.Side
	size     float64
	entry    float64
	leverage float64
}

// Venue implements broker.Broker. The Fail* fields inject faults for tests.
type Venue struct {
	mu        sync.Mutex
	balance   float64
	feeRate   float64
	marks     map[string]float64
	leverage  map[string]float64
	positions map[string]*position
	orders    map[string]*broker.Order

	FailAccount  error  // GetAccount returns this when set
	FailLeverage error  // AdjustLeverage returns this when set
	FailPlace    error  // PlaceOrder returns this when set
	RejectReason string // PlaceOrder returns a rejected order when set
	RestLimits   bool   // limit orders always rest as pending
}

func New(balance float64) *Venue {
	return &Venue{
		balance:   balance,
		feeRate:   0.0005,
		marks:     map[string]float64{},
		leverage:  map[string]float64{},
		positions: map[string]*position{},
		orders:    map[string]*broker.Order{},
	}
}

// SetMark sets the mark price for a symbol.
func (v *Venue) SetMark(symbol string, price float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.marks[symbol] = price
}

func (v *Venue) PlaceOrder(_ context.Context, req broker.OrderRequest) (broker.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.FailPlace != nil {
		return broker.Order{}, v.FailPlace
	}

	order := broker.Order{
		ID:         id.New(),
		ClientID:   req.ClientID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Size:       req.Size,
		Price:      req.Price,
		ReduceOnly: req.ReduceOnly,
		CreatedAt:  time.Now().UTC(),
	}

	if v.RejectReason != "" {
		order.Status = broker.StatusRejected
		v.orders[order.ID] = &order
		return order, nil
	}

	mark, ok := v.marks[req.Symbol]
	if !ok {
		return broker.Order{}, fmt.Errorf("no mark price for %s", req.Symbol)
	}

	if req.Type == "limit" && (v.RestLimits || !crosses(req, mark)) {
		order.Status = broker.StatusPending
		v.orders[order.ID] = &order
		return order, nil
	}

	fillPrice := mark
	if req.Type == "limit" {
		fillPrice = req.Price
	}
	v.fillLocked(&order, fillPrice)
	v.orders[order.ID] = &order
	return order, nil
}

func crosses(req broker.OrderRequest, mark float64) bool {
	if req.Side == broker.SideBuy {
		return req.Price >= mark
	}
	return req.Price <= mark
}

// FillResting fills a resting limit order at its limit price; a test and
// demo hook standing in for the market moving through the order.
func (v *Venue) FillResting(orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	order, ok := v.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	if order.Status != broker.StatusPending {
		return fmt.Errorf("order %s is %s, not pending", orderID, order.Status)
	}
	v.fillLocked(order, order.Price)
	return nil
}

// fillLocked settles an order against the venue's positions and balance.
func (v *Venue) fillLocked(order *broker.Order, price float64) {
	fee := order.Size * price * v.feeRate
	v.balance -= fee

	order.Status = broker.StatusFilled
	order.FilledSize = order.Size
	order.FilledPrice = price
	order.Fee = fee

	pos := v.positions[order.Symbol]
	switch {
	case pos == nil:
		v.positions[order.Symbol] = &position{
			side:     order.Side,
			size:     order.Size,
			entry:    price,
			leverage: v.leverage[order.Symbol],
		}
	case pos.side == order.Side:
		total := pos.size + order.Size
		pos.entry = (pos.entry*pos.size + price*order.Size) / total
		pos.size = total
	default:
		// Opposite side reduces; realized PnL lands in the balance.
		reduced := order.Size
		if reduced > pos.size {
			reduced = pos.size
		}
		v.balance += realized(pos, price, reduced)
		pos.size -= reduced
		if pos.size <= 1e-12 {
			delete(v.positions, order.Symbol)
		}
	}
}

func realized(pos *position, price, size float64) float64 {
	if pos.side == broker.SideBuy {
		return (price - pos.entry) * size
	}
	return (pos.entry - price) * size
}

func (v *Venue) CancelOrder(_ context.Context, _ string, orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	order, ok := v.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	if order.Status.Terminal() {
		return fmt.Errorf("order %s is already %s", orderID, order.Status)
	}
	order.Status = broker.StatusCancelled
	return nil
}

func (v *Venue) GetOrders(_ context.Context, symbol string) ([]broker.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []broker.Order
	for _, o := range v.orders {
		if symbol == "" || o.Symbol == symbol {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (v *Venue) GetPositions(context.Context) ([]broker.Position, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []broker.Position
	for symbol, pos := range v.positions {
		mark := v.marks[symbol]
		out = append(out, broker.Position{
			Symbol:        symbol,
			Side:          pos.side,
			Size:          pos.size,
			EntryPrice:    pos.entry,
			MarkPrice:     mark,
			Leverage:      pos.leverage,
			UnrealizedPnL: realized(pos, mark, pos.size),
		})
	}
	return out, nil
}

func (v *Venue) GetAccount(context.Context) (broker.Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.FailAccount != nil {
		return broker.Account{}, v.FailAccount
	}

	var unrealized float64
	for symbol, pos := range v.positions {
		unrealized += realized(pos, v.marks[symbol], pos.size)
	}
	return broker.Account{
		Equity:          v.balance + unrealized,
		Balance:         v.balance,
		AvailableMargin: v.balance,
		UnrealizedPnL:   unrealized,
	}, nil
}

func (v *Venue) AdjustLeverage(_ context.Context, symbol string, leverage float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.FailLeverage != nil {
		return v.FailLeverage
	}
	v.leverage[symbol] = leverage
	if pos, ok := v.positions[symbol]; ok {
		pos.leverage = leverage
	}
	return nil
}

// Leverage reports the venue-side leverage setting for a symbol.
func (v *Venue) Leverage(symbol string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.leverage[symbol]
}

func (v *Venue) GetTicker(_ context.Context, symbol string) (broker.Ticker, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	mark, ok := v.marks[symbol]
	if !ok {
		return broker.Ticker{}, fmt.Errorf("no mark price for %s", symbol)
	}
	spread := mark * 0.0001
	return broker.Ticker{
		Symbol: symbol,
		Bid:    mark - spread,
		Ask:    mark + spread,
		Last:   mark,
		Time:   time.Now().UTC(),
	}, nil
}

func (v *Venue) GetFundingRate(_ context.Context, symbol string) (broker.FundingRate, error) {
	return broker.FundingRate{
		Symbol:   symbol,
		Rate:     0.0001,
		NextTime: time.Now().UTC().Truncate(8 * time.Hour).Add(8 * time.Hour),
	}, nil
}

func (v *Venue) GetOrderBook(_ context.Context, symbol string, depth int) (broker.OrderBook, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	mark, ok := v.marks[symbol]
	if !ok {
		return broker.OrderBook{}, fmt.Errorf("no mark price for %s", symbol)
	}
	if depth <= 0 {
		depth = 5
	}
	book := broker.OrderBook{Symbol: symbol, Time: time.Now().UTC()}
	for i := 1; i <= depth; i++ {
		offset := mark * 0.0001 * float64(i)
		book.Bids = append(book.Bids, broker.BookLevel{Price: mark - offset, Size: float64(i)})
		book.Asks = append(book.Asks, broker.BookLevel{Price: mark + offset, Size: float64(i)})
	}
	return book, nil
}
