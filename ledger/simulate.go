package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// PriceChange requests a hypothetical move for one symbol: a relative
// percentage ("+10%", "-5%") or an absolute price ("@100000").
type PriceChange struct {
	Symbol string
	Change string
}

// SimPosition is the per-position outcome of a price simulation.
type SimPosition struct {
	Symbol         string
	Side           string
	Size           float64
	EntryPrice     float64
	CurrentPrice   float64
	SimulatedPrice float64
	CurrentPnL     float64
	SimulatedPnL   float64
}

// SimResult is the outcome of SimulatePriceChange. It is purely informative;
// no ledger or wallet state is touched.
type SimResult struct {
	Success        bool
	Error          string
	Positions      []SimPosition
	TotalPnLChange float64
	WorstCase      string
}

// SimulatePriceChange recomputes unrealized PnL for every open position under
// the requested price moves. Positions without a requested change keep their
// current mark. An unparseable change string fails the whole simulation.
func (l *Ledger[W]) SimulatePriceChange(ctx context.Context, changes []PriceChange) SimResult {
	// Every requested change must parse, whether or not a matching position
	// is open, and before any state is touched.
	requested := make(map[string]string, len(changes))
	for _, c := range changes {
		if _, err := applyChange(1, c.Change); err != nil {
			return SimResult{Error: err.Error()}
		}
		requested[c.Symbol] = c.Change
	}

	wallet, err := l.deps.Wallet(ctx)
	if err != nil {
		return SimResult{Error: fmt.Sprintf("wallet state unavailable: %v", err)}
	}

	positions := wallet.OpenPositions()
	if len(positions) == 0 {
		return SimResult{
			Success:   true,
			WorstCase: "no open positions or holdings, simulated price changes have no PnL effect",
		}
	}

	res := SimResult{Success: true}
	var totalCurrent, totalSimulated float64
	var worst SimPosition
	worstSet := false

	for _, p := range positions {
		simPrice := p.MarkPrice
		if change, ok := requested[p.Symbol]; ok {
			simPrice, err = applyChange(p.MarkPrice, change)
			if err != nil {
				return SimResult{Error: err.Error()}
			}
		}

		dir := 1.0
		if p.Side == "short" {
			dir = -1
		}
		simPnL := (simPrice - p.EntryPrice) * p.Size * dir

		sp := SimPosition{
			Symbol:         p.Symbol,
			Side:           p.Side,
			Size:           p.Size,
			EntryPrice:     p.EntryPrice,
			CurrentPrice:   p.MarkPrice,
			SimulatedPrice: simPrice,
			CurrentPnL:     p.UnrealizedPnL,
			SimulatedPnL:   simPnL,
		}
		res.Positions = append(res.Positions, sp)
		totalCurrent += p.UnrealizedPnL
		totalSimulated += simPnL

		if !worstSet || sp.SimulatedPnL-sp.CurrentPnL < worst.SimulatedPnL-worst.CurrentPnL {
			worst = sp
			worstSet = true
		}
	}

	res.TotalPnLChange = totalSimulated - totalCurrent
	if worstSet {
		res.WorstCase = fmt.Sprintf("%s: PnL %.2f -> %.2f under simulated price %.2f",
			worst.Symbol, worst.CurrentPnL, worst.SimulatedPnL, worst.SimulatedPrice)
	}
	return res
}

// applyChange parses the change grammar against the current mark price.
func applyChange(mark float64, change string) (float64, error) {
	c := strings.TrimSpace(change)
	switch {
	case strings.HasPrefix(c, "@"):
		price, err := strconv.ParseFloat(c[1:], 64)
		if err != nil || price <= 0 {
			return 0, fmt.Errorf("invalid change format %q: expected absolute price like \"@100000\"", change)
		}
		return price, nil

	case strings.HasSuffix(c, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSuffix(c, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid change format %q: expected percentage like \"+10%%\"", change)
		}
		return mark * (1 + pct/100), nil

	default:
		return 0, fmt.Errorf("invalid change format %q: use \"+10%%\", \"-10%%\" or \"@100000\"", change)
	}
}
