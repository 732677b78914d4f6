// Package symbols builds the cross-venue pair universe: filtering each
// venue's instrument list down to the tradable common set, then
// enumerating every (A-symbol, B-symbol) pairing over a shared
// (base, quote) and indexing it for fast update routing.
package symbols

import (
	"fmt"

	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/marketref"
)

// Side identifies one of the two venues an aggregator run compares.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideA {
		return "a"
	}
	return "b"
}

// basePair is the (base, quote) grouping key.
type basePair struct {
	Base  string
	Quote string
}

// Pair is one cross-venue pair: all instruments on both sides sharing a
// (base, quote). symbols_a and symbols_b can each hold more than one
// instrument (e.g. a venue listing several contracts of the filtered
// market type for the same base/quote), so symbol-to-pair routing is
// many-to-many.
type Pair struct {
	Base     string
	Quote    string
	SymbolsA []string
	SymbolsB []string
}

// PairInstanceName returns the pair-instance name for one (symbolA, symbolB)
// combination drawn from this Pair's Cartesian product.
func PairInstanceName(symbolA, symbolB string) string {
	return symbolA + "-" + symbolB
}

// SymbolMap routes an inbound update for a venue symbol to every pair
// instance it participates in. Built once by Resolve and never mutated
// afterward, so lookups need no locking.
type SymbolMap struct {
	a map[string][]string
	b map[string][]string
}

// PairNames returns the pair-instance names associated with symbol on
// the given side, or nil if the symbol is not part of any tracked pair.
func (m *SymbolMap) PairNames(side Side, symbol string) []string {
	if side == SideA {
		return m.a[symbol]
	}
	return m.b[symbol]
}

// Filter describes the retained-instrument rule for one venue: match on
// market type/subtype, then match on quote currency or an explicit
// BASE-QUOTE allow-list.
type Filter struct {
	Market        marketref.Ref
	QuoteCurrency string   // if non-empty, retain instruments quoting this currency
	Symbols       []string // BASE-QUOTE allow-list, used when QuoteCurrency is empty
}

func (f Filter) matches(m exchange.InstrumentMeta) bool {
	if m.Type != f.Market.Type {
		return false
	}
	if f.Market.HasSubtype() && m.Subtype != f.Market.Subtype {
		return false
	}
	if f.QuoteCurrency != "" {
		return m.Quote == f.QuoteCurrency
	}
	key := m.Base + "-" + m.Quote
	for _, s := range f.Symbols {
		if s == key {
			return true
		}
	}
	return false
}

// Resolve filters both venues' instrument lists per their Filter, groups
// survivors by (base, quote), and enumerates the Cartesian product of
// every shared (base, quote) group into pair instances. It returns the
// resolved Pair list and the SymbolMap used to route streamed updates
// back to pair instances.
func Resolve(instrumentsA, instrumentsB []exchange.InstrumentMeta, filterA, filterB Filter) ([]Pair, *SymbolMap, error) {
	marketsA := groupRetained(instrumentsA, filterA)
	marketsB := groupRetained(instrumentsB, filterB)

	sm := &SymbolMap{a: make(map[string][]string), b: make(map[string][]string)}
	var pairs []Pair

	for key, symbolsA := range marketsA {
		symbolsB, ok := marketsB[key]
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{
			Base:     key.Base,
			Quote:    key.Quote,
			SymbolsA: symbolsA,
			SymbolsB: symbolsB,
		})
		for _, symA := range symbolsA {
			for _, symB := range symbolsB {
				name := PairInstanceName(symA, symB)
				sm.a[symA] = append(sm.a[symA], name)
				sm.b[symB] = append(sm.b[symB], name)
			}
		}
	}

	if len(pairs) == 0 {
		return nil, nil, fmt.Errorf("symbols: no common (base,quote) pairs between venue A and venue B after filtering")
	}

	return pairs, sm, nil
}

func groupRetained(instruments []exchange.InstrumentMeta, filter Filter) map[basePair][]string {
	out := make(map[basePair][]string)
	for _, m := range instruments {
		if !filter.matches(m) {
			continue
		}
		key := basePair{Base: m.Base, Quote: m.Quote}
		out[key] = append(out[key], m.Symbol)
	}
	return out
}
