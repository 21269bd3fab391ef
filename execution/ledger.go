// Adapters between the executor and the ledger: the Execute callback that a
// Push drives, the wallet-state fetch, and the reconciliation pass that
// settles pending orders.

package execution

import (
	"context"
	"fmt"

	"github.com/mkarls/tradewarden/audit"
	"github.com/mkarls/tradewarden/broker"
	"github.com/mkarls/tradewarden/ledger"
)

// Ledger operation actions understood by the executor.
const (
	ActionPlaceOrder     = "place_order"
	ActionAdjustLeverage = "adjust_leverage"
	ActionCancelOrder    = "cancel_order"
)

// ExecuteOperation adapts the pipeline to ledger.Deps.Execute. Policy and
// venue rejections come back as unsuccessful outcomes; only malformed
// operations return an error.
func (e *Executor) ExecuteOperation(ctx context.Context, op ledger.Operation) (ledger.ExecOutcome, error) {
	switch op.Action {
	case ActionPlaceOrder:
		return e.execPlace(ctx, op)
	case ActionAdjustLeverage:
		return e.execLeverage(ctx, op)
	case ActionCancelOrder:
		return e.execCancel(ctx, op)
	default:
		return ledger.ExecOutcome{}, fmt.Errorf("unknown operation action %q", op.Action)
	}
}

func (e *Executor) execPlace(ctx context.Context, op ledger.Operation) (ledger.ExecOutcome, error) {
	symbol := pstr(op.Params, "symbol")
	if symbol == "" {
		return ledger.ExecOutcome{}, fmt.Errorf("place_order requires a symbol")
	}

	intent := OrderIntent{
		Symbol:     symbol,
		Side:       broker.Side(pstr(op.Params, "side")),
		Type:       pstr(op.Params, "type"),
		Size:       pnum(op.Params, "size"),
		Notional:   pnum(op.Params, "notional"),
		Price:      pnum(op.Params, "price"),
		Leverage:   pnum(op.Params, "leverage"),
		ReduceOnly: pbool(op.Params, "reduce_only"),
	}
	if intent.Type == "" {
		intent.Type = "market"
	}

	res := e.PlaceOrder(ctx, intent)
	if !res.Success {
		return ledger.ExecOutcome{Symbol: symbol, Error: res.Reason}, nil
	}
	return ledger.ExecOutcome{
		Success: true,
		Status:  res.Order.Status,
		OrderID: res.Order.ID,
		Symbol:  symbol,
		Change: fmt.Sprintf("%s %.8g %s", res.Order.Side, res.Order.Size,
			orderPriceLabel(*res.Order)),
	}, nil
}

func orderPriceLabel(o broker.Order) string {
	if o.Status == broker.StatusFilled {
		return fmt.Sprintf("@ %.8g", o.FilledPrice)
	}
	if o.Type == "limit" {
		return fmt.Sprintf("resting @ %.8g", o.Price)
	}
	return "@ market"
}

func (e *Executor) execLeverage(ctx context.Context, op ledger.Operation) (ledger.ExecOutcome, error) {
	symbol := pstr(op.Params, "symbol")
	leverage := pnum(op.Params, "leverage")
	if symbol == "" || leverage <= 0 {
		return ledger.ExecOutcome{}, fmt.Errorf("adjust_leverage requires symbol and a positive leverage")
	}
	if leverage > HardLeverageCap {
		return ledger.ExecOutcome{Symbol: symbol, Error: fmt.Sprintf(
			"requested leverage %.1fx exceeds the hard ceiling of %.0fx", leverage, HardLeverageCap)}, nil
	}

	external, err := e.mapper.ToExternal(symbol)
	if err != nil {
		return ledger.ExecOutcome{Symbol: symbol, Error: err.Error()}, nil
	}
	if err := e.venue.AdjustLeverage(ctx, external, leverage); err != nil {
		return ledger.ExecOutcome{Symbol: symbol, Error: err.Error()}, nil
	}
	return ledger.ExecOutcome{
		Success: true,
		Status:  broker.StatusFilled,
		Symbol:  symbol,
		Change:  fmt.Sprintf("leverage -> %.1fx", leverage),
	}, nil
}

func (e *Executor) execCancel(ctx context.Context, op ledger.Operation) (ledger.ExecOutcome, error) {
	symbol := pstr(op.Params, "symbol")
	orderID := pstr(op.Params, "order_id")
	if orderID == "" {
		return ledger.ExecOutcome{}, fmt.Errorf("cancel_order requires an order_id")
	}

	external := symbol
	if symbol != "" {
		if ext, err := e.mapper.ToExternal(symbol); err == nil {
			external = ext
		}
	}
	if err := e.venue.CancelOrder(ctx, external, orderID); err != nil {
		return ledger.ExecOutcome{Symbol: symbol, Error: err.Error()}, nil
	}
	return ledger.ExecOutcome{
		Success: true,
		Status:  broker.StatusFilled,
		OrderID: orderID,
		Symbol:  symbol,
		Change:  "order cancelled",
	}, nil
}

// Wallet builds the ledger's wallet view from venue state. Positions on
// unmapped instruments are silently skipped.
func (e *Executor) Wallet(ctx context.Context) (ledger.PerpWallet, error) {
	positions, err := e.venue.GetPositions(ctx)
	if err != nil {
		return ledger.PerpWallet{}, err
	}
	account, err := e.venue.GetAccount(ctx)
	if err != nil {
		return ledger.PerpWallet{}, err
	}

	w := ledger.PerpWallet{Equity: account.Equity}
	for _, p := range positions {
		internal, ok := e.mapper.TryToInternal(p.Symbol)
		if !ok {
			continue
		}
		side := "long"
		if p.Side == broker.SideSell {
			side = "short"
		}
		w.Positions = append(w.Positions, ledger.PerpPosition{
			Symbol:        internal,
			Side:          side,
			Size:          p.Size,
			EntryPrice:    p.EntryPrice,
			MarkPrice:     p.MarkPrice,
			Leverage:      p.Leverage,
			UnrealizedPnL: p.UnrealizedPnL,
		})
	}
	return w, nil
}

// SyncOrders polls the venue for every pending order, folds observed status
// transitions into a reconciliation commit, and settles deferred reduce-only
// PnL on terminal fills.
func (e *Executor) SyncOrders(ctx context.Context, led *ledger.Ledger[ledger.PerpWallet]) (ledger.SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := led.PendingOrders()
	if len(pending) == 0 {
		return ledger.SyncResult{}, nil
	}

	// One venue query per distinct symbol.
	orderByID := map[string]broker.Order{}
	seen := map[string]bool{}
	for _, p := range pending {
		external, err := e.mapper.ToExternal(p.Symbol)
		if err != nil {
			continue
		}
		if seen[external] {
			continue
		}
		seen[external] = true
		orders, err := e.venue.GetOrders(ctx, external)
		if err != nil {
			return ledger.SyncResult{}, fmt.Errorf("fetch orders for %s: %w", p.Symbol, err)
		}
		for _, o := range orders {
			orderByID[o.ID] = o
		}
	}

	var updates []ledger.OrderUpdate
	for _, p := range pending {
		order, ok := orderByID[p.OrderID]
		if !ok || order.Status == broker.StatusPending {
			continue
		}
		updates = append(updates, ledger.OrderUpdate{
			OrderID:        p.OrderID,
			Symbol:         p.Symbol,
			PreviousStatus: broker.StatusPending,
			CurrentStatus:  order.Status,
			FilledPrice:    order.FilledPrice,
			FilledQty:      order.FilledSize,
		})

		if order.Status == broker.StatusFilled {
			if pre, held := e.preClose[p.OrderID]; held {
				e.settleReduce(ctx, pre, order.Fee)
				delete(e.preClose, p.OrderID)
			}
		}
	}

	wallet, err := e.Wallet(ctx)
	if err != nil {
		return ledger.SyncResult{}, err
	}

	res, err := led.Sync(updates, wallet)
	if err != nil {
		return res, err
	}
	if res.UpdatedCount > 0 {
		e.sink.Append(audit.EventSync, map[string]any{
			"updated": res.UpdatedCount,
			"hash":    res.Hash,
		})
	}
	return res, nil
}

func pstr(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func pnum(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func pbool(params map[string]any, key string) bool {
	b, _ := params[key].(bool)
	return b
}
