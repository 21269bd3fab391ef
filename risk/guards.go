package risk

import (
	"time"
)

// Guard type discriminators, as they appear in configuration.
const (
	GuardMaxPositionSize = "max-position-size"
	GuardMaxLeverage     = "max-leverage"
	GuardCooldown        = "cooldown"
	GuardSymbolWhitelist = "symbol-whitelist"
)

// OrderCheck is the context a guard evaluates one proposed order against.
type OrderCheck struct {
	Symbol    string // internal symbol
	Equity    float64
	Notional  float64 // estimated position value in quote currency
	Leverage  float64
	Now       time.Time
	LastTrade func(symbol string) (time.Time, bool)
}

// Guard is a single pluggable pre-trade validator.
type Guard interface {
	Name() string
	Evaluate(oc OrderCheck) Verdict
}

// Chain runs guards in configured order; the first rejection short-circuits.
type Chain []Guard

func (c Chain) Evaluate(oc OrderCheck) Verdict {
	for _, g := range c {
		if v := g.Evaluate(oc); !v.Allowed {
			return v
		}
	}
	return allow()
}

// MaxPositionSizeGuard rejects orders whose estimated value exceeds a
// percentage of account equity.
type MaxPositionSizeGuard struct {
	MaxPercentOfEquity float64
}

func (g MaxPositionSizeGuard) Name() string { return GuardMaxPositionSize }

func (g MaxPositionSizeGuard) Evaluate(oc OrderCheck) Verdict {
	cap := g.MaxPercentOfEquity / 100 * oc.Equity
	if oc.Notional > cap {
		return deny("position value %.2f exceeds %.1f%% of equity (%.2f)",
			oc.Notional, g.MaxPercentOfEquity, cap)
	}
	return allow()
}

// MaxLeverageGuard rejects orders over the configured leverage. The hard,
// non-configurable ceiling is enforced separately by the execution pipeline.
type MaxLeverageGuard struct {
	MaxLeverage float64
}

func (g MaxLeverageGuard) Name() string { return GuardMaxLeverage }

func (g MaxLeverageGuard) Evaluate(oc OrderCheck) Verdict {
	if oc.Leverage > g.MaxLeverage {
		return deny("requested leverage %.1fx exceeds configured maximum %.1fx",
			oc.Leverage, g.MaxLeverage)
	}
	return allow()
}

// CooldownGuard rejects a symbol traded again within the minimum interval.
type CooldownGuard struct {
	MinInterval time.Duration
}

func (g CooldownGuard) Name() string { return GuardCooldown }

func (g CooldownGuard) Evaluate(oc OrderCheck) Verdict {
	if oc.LastTrade == nil {
		return allow()
	}
	last, ok := oc.LastTrade(oc.Symbol)
	if !ok {
		return allow()
	}
	elapsed := oc.Now.Sub(last)
	if elapsed < g.MinInterval {
		return deny("%s traded %s ago, cooldown of %s remaining",
			oc.Symbol, elapsed.Round(time.Second),
			(g.MinInterval - elapsed).Round(time.Second))
	}
	return allow()
}

// SymbolWhitelistGuard rejects symbols outside the allowed set.
type SymbolWhitelistGuard struct {
	allowed map[string]struct{}
}

func NewSymbolWhitelistGuard(symbols []string) SymbolWhitelistGuard {
	g := SymbolWhitelistGuard{allowed: make(map[string]struct{}, len(symbols))}
	for _, s := range symbols {
		g.allowed[s] = struct{}{}
	}
	return g
}

func (g SymbolWhitelistGuard) Name() string { return GuardSymbolWhitelist }

func (g SymbolWhitelistGuard) Evaluate(oc OrderCheck) Verdict {
	if _, ok := g.allowed[oc.Symbol]; !ok {
		return deny("%s is not whitelisted for trading", oc.Symbol)
	}
	return allow()
}

// passGuard stands in for an unrecognized guard type. It always allows, so
// one unknown entry in the configured chain cannot block all trading.
type passGuard struct {
	typ string
}

func (g passGuard) Name() string { return g.typ }

func (g passGuard) Evaluate(OrderCheck) Verdict { return allow() }
