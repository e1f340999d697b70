package state

import (
	"TokenLedger/internal/ledger"

	"github.com/holiman/uint256"
)

// BasketEntry references an amount of an asset held by some contract.
type BasketEntry struct {
	ContractRef ledger.Identity `json:"contract_ref"`
	AssetID     ledger.AssetID  `json:"asset_id"`
	Amount      *uint256.Int    `json:"amount"`
}

// TradeBaskets stages one list of entries per owner. Nothing executes a
// basket; it is replaced or cleared as a whole.
type TradeBaskets struct {
	baskets map[ledger.Identity][]BasketEntry
}

func NewTradeBaskets() *TradeBaskets {
	return &TradeBaskets{baskets: make(map[ledger.Identity][]BasketEntry)}
}

// Set replaces the owner's basket.
func (tb *TradeBaskets) Set(owner ledger.Identity, entries []BasketEntry) {
	tb.baskets[owner] = copyEntries(entries)
}

// Clear drops the owner's basket and reports whether one existed.
func (tb *TradeBaskets) Clear(owner ledger.Identity) bool {
	_, ok := tb.baskets[owner]
	delete(tb.baskets, owner)
	return ok
}

// Get returns a copy of the owner's basket; nil if none is staged.
func (tb *TradeBaskets) Get(owner ledger.Identity) []BasketEntry {
	entries, ok := tb.baskets[owner]
	if !ok {
		return nil
	}
	return copyEntries(entries)
}

// All returns a copy of every staged basket.
func (tb *TradeBaskets) All() map[ledger.Identity][]BasketEntry {
	out := make(map[ledger.Identity][]BasketEntry, len(tb.baskets))
	for owner, entries := range tb.baskets {
		out[owner] = copyEntries(entries)
	}
	return out
}

func (tb *TradeBaskets) Restore(baskets map[ledger.Identity][]BasketEntry) {
	tb.baskets = make(map[ledger.Identity][]BasketEntry, len(baskets))
	for owner, entries := range baskets {
		tb.baskets[owner] = copyEntries(entries)
	}
}

func copyEntries(entries []BasketEntry) []BasketEntry {
	out := make([]BasketEntry, len(entries))
	for i, e := range entries {
		out[i] = BasketEntry{ContractRef: e.ContractRef, AssetID: e.AssetID}
		if e.Amount != nil {
			out[i].Amount = new(uint256.Int).Set(e.Amount)
		}
	}
	return out
}
