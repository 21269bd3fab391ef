package ledger

// PositionView is the asset-class-neutral view of one open position that the
// PnL simulation works on.
type PositionView struct {
	Symbol        string
	Side          string // "long" or "short"
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
}

// WalletState is the wallet shape a ledger is parameterized over. The two
// concrete shapes below correspond to the derivatives and securities account
// models that used to have parallel ledger implementations.
type WalletState interface {
	OpenPositions() []PositionView
}

// PerpWallet is a crypto derivatives account: leveraged long/short positions.
type PerpWallet struct {
	Equity    float64
	Positions []PerpPosition
}

type PerpPosition struct {
	Symbol        string
	Side          string // "long" or "short"
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	Leverage      float64
	UnrealizedPnL float64
}

func (w PerpWallet) OpenPositions() []PositionView {
	out := make([]PositionView, 0, len(w.Positions))
	for _, p := range w.Positions {
		if p.Size == 0 {
			continue
		}
		out = append(out, PositionView{
			Symbol:        p.Symbol,
			Side:          p.Side,
			Size:          p.Size,
			EntryPrice:    p.EntryPrice,
			MarkPrice:     p.MarkPrice,
			UnrealizedPnL: p.UnrealizedPnL,
		})
	}
	return out
}

// EquityWallet is a securities account: cash plus long-only holdings.
type EquityWallet struct {
	Cash     float64
	Holdings []Holding
}

type Holding struct {
	Symbol    string
	Shares    float64
	AvgCost   float64
	LastPrice float64
}

func (w EquityWallet) OpenPositions() []PositionView {
	out := make([]PositionView, 0, len(w.Holdings))
	for _, h := range w.Holdings {
		if h.Shares == 0 {
			continue
		}
		out = append(out, PositionView{
			Symbol:        h.Symbol,
			Side:          "long",
			Size:          h.Shares,
			EntryPrice:    h.AvgCost,
			MarkPrice:     h.LastPrice,
			UnrealizedPnL: (h.LastPrice - h.AvgCost) * h.Shares,
		})
	}
	return out
}

// totalUnrealized sums unrealized PnL across open positions. The second
// return is false when there are no open positions at all.
func totalUnrealized(w WalletState) (float64, bool) {
	positions := w.OpenPositions()
	if len(positions) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range positions {
		sum += p.UnrealizedPnL
	}
	return sum, true
}
