package trader

import (
	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// DecisionIndex tracks which (strategy, market) pairs have reached a terminal
// decision. Placed trades are rebuilt from the ledger at startup; skips live
// only in memory, so a restarted process may re-evaluate a market it once
// skipped. The arbitrage hedge leg is special: its first-leg trade marks the
// structure open, and the pair counts as decided only once the hedge trade
// itself exists.
type DecisionIndex struct {
	decided map[domain.DecisionKey]bool
	trades  map[domain.DecisionKey]domain.Trade
}

// NewDecisionIndex creates an index seeded from the ledger contents.
func NewDecisionIndex(trades []domain.Trade) *DecisionIndex {
	idx := &DecisionIndex{
		decided: make(map[domain.DecisionKey]bool, len(trades)),
		trades:  make(map[domain.DecisionKey]domain.Trade, len(trades)),
	}
	for _, t := range trades {
		idx.MarkTraded(t)
	}
	return idx
}

// Decided reports whether the pair needs no further evaluation.
func (idx *DecisionIndex) Decided(key domain.DecisionKey) bool {
	return idx.decided[key]
}

// Find returns the trade recorded for the pair, if any.
func (idx *DecisionIndex) Find(key domain.DecisionKey) (domain.Trade, bool) {
	t, ok := idx.trades[key]
	return t, ok
}

// MarkTraded records a placed trade as this pair's terminal decision.
func (idx *DecisionIndex) MarkTraded(t domain.Trade) {
	key := t.Key()
	idx.trades[key] = t
	idx.decided[key] = true
}

// MarkSkipped records a terminal no-trade decision for the pair.
func (idx *DecisionIndex) MarkSkipped(key domain.DecisionKey) {
	idx.decided[key] = true
}

// Refresh replaces the stored trade for an existing pair, e.g. after the
// reconciler fills in settlement fields.
func (idx *DecisionIndex) Refresh(t domain.Trade) {
	key := t.Key()
	if _, ok := idx.trades[key]; ok {
		idx.trades[key] = t
	}
}
