// Package market maps between canonical instrument identifiers ("BTC/USD")
// and venue-native ids, and carries per-instrument precision metadata.
//
// A Mapper is built once from a venue market-catalog snapshot and is immutable
// until rebuilt on reconnect. For each base asset exactly one venue instrument
// wins, picked by a priority order driven by the configured default market
// type (swap-first for perp venues, spot-first for cash venues).
package market

import (
	"errors"
	"fmt"
)

var ErrUnknownSymbol = errors.New("unknown symbol")

// Mapper translates internal "BASE/USD" symbols to venue instrument ids and
// back. Read-only after construction.
type Mapper struct {
	toExternal map[string]string
	toInternal map[string]string
	precision  map[string]Precision
}

// NewMapper selects one instrument per base asset from the catalog snapshot.
// Inactive instruments are skipped, and only spot/swap/future instruments
// quoted or settled in USD or USDT are considered.
func NewMapper(catalog []CatalogEntry, defaultType MarketType) *Mapper {
	winners := map[string]CatalogEntry{}
	ranks := map[string]int{}

	for _, e := range catalog {
		if !e.Active {
			continue
		}
		if e.Type != TypeSpot && !e.derivative() {
			continue
		}
		if !e.usdDenominated() {
			continue
		}

		r := rank(e, defaultType)
		prev, seen := ranks[e.Base]
		// First occurrence wins a tie so the mapping is stable across rebuilds.
		if !seen || r < prev {
			winners[e.Base] = e
			ranks[e.Base] = r
		}
	}

	m := &Mapper{
		toExternal: make(map[string]string, len(winners)),
		toInternal: make(map[string]string, len(winners)),
		precision:  make(map[string]Precision, len(winners)),
	}
	for base, e := range winners {
		internal := fmt.Sprintf("%s/USD", base)
		m.toExternal[internal] = e.ID
		m.toInternal[e.ID] = internal
		m.precision[internal] = e.Precision
	}
	return m
}

// rank orders candidate instruments for one base asset; lower is better.
func rank(e CatalogEntry, defaultType MarketType) int {
	usdt := e.Quote == "USDT" || e.Settle == "USDT"
	switch {
	case defaultType == TypeSpot:
		switch {
		case e.Type == TypeSpot && usdt:
			return 0
		case e.Type == TypeSpot:
			return 1
		case usdt:
			return 2
		}
	default: // swap-first
		switch {
		case e.derivative() && usdt:
			return 0
		case e.derivative():
			return 1
		case usdt:
			return 2
		}
	}
	return 3
}

// ToExternal resolves an internal symbol to the venue instrument id.
func (m *Mapper) ToExternal(internal string) (string, error) {
	ext, ok := m.toExternal[internal]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSymbol, internal)
	}
	return ext, nil
}

// ToInternal resolves a venue instrument id to the internal symbol.
func (m *Mapper) ToInternal(external string) (string, error) {
	in, ok := m.toInternal[external]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSymbol, external)
	}
	return in, nil
}

// TryToInternal is the non-failing variant used on hot paths, e.g. filtering
// venue-returned positions where an unmapped instrument is skipped, not fatal.
func (m *Mapper) TryToInternal(external string) (string, bool) {
	in, ok := m.toInternal[external]
	return in, ok
}

// Precision returns the venue precision for an internal symbol.
func (m *Mapper) Precision(internal string) (Precision, error) {
	p, ok := m.precision[internal]
	if !ok {
		return Precision{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, internal)
	}
	return p, nil
}

// Symbols lists the mapped internal symbols.
func (m *Mapper) Symbols() []string {
	out := make([]string, 0, len(m.toExternal))
	for s := range m.toExternal {
		out = append(out, s)
	}
	return out
}
