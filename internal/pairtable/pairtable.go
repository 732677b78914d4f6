// Package pairtable holds the live cross-venue spread state: one
// PairState per pair instance, sharded by an inline FNV-1a hash of the
// pair name so unrelated pairs never serialize on the same lock.
package pairtable

import (
	"math"
	"sort"
	"sync"
)

// Inline FNV-1a: avoids the heap allocation hash/fnv.New32a() would add
// on every shard lookup in the hot update path.
const (
	fnvOffset32 = uint32(2166136261)
	fnvPrime32  = uint32(16777619)
)

func fnvHash(s string) uint32 {
	h := fnvOffset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime32
	}
	return h
}

// PairState is the full per-pair-instance state: ticker-mode fields and
// order-book-mode fields coexist on one struct since a given run only
// ever populates one family, depending on which SpreadEngine variant is
// wired in by the aggregator.
type PairState struct {
	PairName string `json:"pair_name"`

	// Ticker-mode fields.
	PriceA float64 `json:"price_a"`
	PriceB float64 `json:"price_b"`

	// Order-book-mode fields.
	BidPriceA          float64 `json:"bid_price_a"`
	BidVolumeA         float64 `json:"bid_volume_a"`
	AskPriceA          float64 `json:"ask_price_a"`
	AskVolumeA         float64 `json:"ask_volume_a"`
	BidPriceB          float64 `json:"bid_price_b"`
	BidVolumeB         float64 `json:"bid_volume_b"`
	AskPriceB          float64 `json:"ask_price_b"`
	AskVolumeB         float64 `json:"ask_volume_b"`
	BuyASellBSpreadPct float64 `json:"buy_a_sell_b_spread_pct"`
	BuyBSellASpreadPct float64 `json:"buy_b_sell_a_spread_pct"`

	// Shared.
	Spread         float64 `json:"spread"`
	SpreadPct      float64 `json:"spread_pct"`
	ElapsedTimeAMs int64   `json:"elapsed_time_a_ms"`
	ElapsedTimeBMs int64   `json:"elapsed_time_b_ms"`
}

// Side identifies which venue a patch applies to.
type Side int

const (
	SideA Side = iota
	SideB
)

// Patch is a set of scalar field assignments applied to one side of a
// PairState by Upsert. Only non-nil fields are applied, so a ticker
// update and an order-book update can share the same Patch shape
// without one clobbering the other's fields.
type Patch struct {
	Price         *float64
	BidPrice      *float64
	BidVolume     *float64
	AskPrice      *float64
	AskVolume     *float64
	ElapsedTimeMs *int64
}

type shard struct {
	mu    sync.RWMutex
	pairs map[string]*PairState
}

// Table is the sharded concurrent store of PairState, keyed by pair
// name. Reads (Upsert's internal lookups, SnapshotTop) and writes from
// many stream workers never block on pairs outside their own shard.
type Table struct {
	shards    []*shard
	numShards uint32
}

// New creates a Table with numShards shards (default 16 if <= 0).
func New(numShards int) *Table {
	if numShards <= 0 {
		numShards = 16
	}
	t := &Table{shards: make([]*shard, numShards), numShards: uint32(numShards)}
	for i := range t.shards {
		t.shards[i] = &shard{pairs: make(map[string]*PairState)}
	}
	return t
}

func (t *Table) getShard(pairName string) *shard {
	return t.shards[fnvHash(pairName)%t.numShards]
}

// Upsert creates the default PairState for pairName if missing, then
// applies patch's non-nil fields to the given side, and recomputes the
// shared spread fields via recompute. The recompute callback runs while
// holding the shard's write lock, so callers must not call back into
// the Table from within it. It returns a copy of the resulting state,
// so a caller that wants to observe the freshly recomputed SpreadPct
// (e.g. for a metrics histogram) doesn't need a second lookup.
func (t *Table) Upsert(pairName string, side Side, patch Patch, recompute func(*PairState)) PairState {
	sh := t.getShard(pairName)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	ps, ok := sh.pairs[pairName]
	if !ok {
		ps = &PairState{PairName: pairName}
		sh.pairs[pairName] = ps
	}

	applyPatch(ps, side, patch)
	if recompute != nil {
		recompute(ps)
	}
	return *ps
}

func applyPatch(ps *PairState, side Side, patch Patch) {
	if side == SideA {
		if patch.Price != nil {
			ps.PriceA = *patch.Price
		}
		if patch.BidPrice != nil {
			ps.BidPriceA = *patch.BidPrice
		}
		if patch.BidVolume != nil {
			ps.BidVolumeA = *patch.BidVolume
		}
		if patch.AskPrice != nil {
			ps.AskPriceA = *patch.AskPrice
		}
		if patch.AskVolume != nil {
			ps.AskVolumeA = *patch.AskVolume
		}
		if patch.ElapsedTimeMs != nil {
			ps.ElapsedTimeAMs = *patch.ElapsedTimeMs
		}
		return
	}
	if patch.Price != nil {
		ps.PriceB = *patch.Price
	}
	if patch.BidPrice != nil {
		ps.BidPriceB = *patch.BidPrice
	}
	if patch.BidVolume != nil {
		ps.BidVolumeB = *patch.BidVolume
	}
	if patch.AskPrice != nil {
		ps.AskPriceB = *patch.AskPrice
	}
	if patch.AskVolume != nil {
		ps.AskVolumeB = *patch.AskVolume
	}
	if patch.ElapsedTimeMs != nil {
		ps.ElapsedTimeBMs = *patch.ElapsedTimeMs
	}
}

// SnapshotTop returns up to n copies of the tracked PairStates, sorted
// by SpreadPct descending with ties broken by PairName ascending.
// Returned values are independent copies; mutating them has no effect
// on the table.
func (t *Table) SnapshotTop(n int) []PairState {
	all := make([]PairState, 0, n)
	for _, sh := range t.shards {
		sh.mu.RLock()
		for _, ps := range sh.pairs {
			all = append(all, *ps)
		}
		sh.mu.RUnlock()
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].SpreadPct != all[j].SpreadPct {
			return all[i].SpreadPct > all[j].SpreadPct
		}
		return all[i].PairName < all[j].PairName
	})

	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Len returns the number of tracked pair instances.
func (t *Table) Len() int {
	total := 0
	for _, sh := range t.shards {
		sh.mu.RLock()
		total += len(sh.pairs)
		sh.mu.RUnlock()
	}
	return total
}

// RecomputeTicker implements the ticker-mode spread formula: if both
// prices are non-zero, spread = |price_a - price_b|, spread_pct =
// spread / min(price_a, price_b). Otherwise the previous values are
// left untouched.
func RecomputeTicker(ps *PairState) {
	if ps.PriceA == 0 || ps.PriceB == 0 {
		return
	}
	minP := math.Min(ps.PriceA, ps.PriceB)
	if minP == 0 {
		return
	}
	ps.Spread = math.Abs(ps.PriceA - ps.PriceB)
	ps.SpreadPct = ps.Spread / minP
}

// RecomputeOrderBook implements the order-book-mode spread formula: if
// all four top-of-book prices are non-zero, computes both directional
// spreads and tracks the better one as SpreadPct.
func RecomputeOrderBook(ps *PairState) {
	if ps.AskPriceA == 0 || ps.BidPriceA == 0 || ps.AskPriceB == 0 || ps.BidPriceB == 0 {
		return
	}
	buyBSellA := ps.BidPriceA - ps.AskPriceB
	buyBSellAPct := buyBSellA / ps.AskPriceB

	buyASellB := ps.BidPriceB - ps.AskPriceA
	buyASellBPct := buyASellB / ps.AskPriceA

	ps.BuyBSellASpreadPct = buyBSellAPct
	ps.BuyASellBSpreadPct = buyASellBPct
	ps.SpreadPct = math.Max(buyBSellAPct, buyASellBPct)
}
