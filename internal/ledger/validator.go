package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatch verifies the batch is well-formed and applicable.
func (v *InvariantValidator) ValidateBatch(batch *Batch) error {
	return v.tracker.CheckBatch(batch)
}

// ValidateConservation verifies minted - burned equals the sum of all
// balances for every asset of both books.
func (v *InvariantValidator) ValidateConservation() error {
	holdings := v.tracker.ComputeHoldings()

	for _, key := range v.tracker.SupplyKeys() {
		supply := v.tracker.TotalSupply(key.Book, key.Asset)
		held, ok := holdings[key]
		if !ok {
			if !supply.IsZero() {
				return fmt.Errorf("supply of %s is %s but no holder has a balance", key, supply.Dec())
			}
			continue
		}
		if !held.Eq(supply) {
			return fmt.Errorf("supply of %s is %s but holders sum to %s", key, supply.Dec(), held.Dec())
		}
	}

	for key, held := range holdings {
		if held.IsZero() {
			continue
		}
		if v.tracker.Minted(key.Book, key.Asset).IsZero() {
			return fmt.Errorf("holders of %s sum to %s but nothing was minted", key, held.Dec())
		}
	}

	return nil
}

// ValidateAssets checks conservation for the given assets only. The engine
// calls it with the assets a command touched.
func (v *InvariantValidator) ValidateAssets(keys []SupplyKey) error {
	if len(keys) == 0 {
		return nil
	}
	want := make(map[SupplyKey]*uint256.Int, len(keys))
	for _, k := range keys {
		want[k] = new(uint256.Int)
	}
	for key, bal := range v.tracker.balances {
		sk := SupplyKey{Book: key.Book, Asset: key.Asset}
		if sum, ok := want[sk]; ok {
			sum.Add(sum, bal)
		}
	}
	for _, k := range keys {
		supply := v.tracker.TotalSupply(k.Book, k.Asset)
		if !want[k].Eq(supply) {
			return fmt.Errorf("supply of %s is %s but holders sum to %s", k, supply.Dec(), want[k].Dec())
		}
	}
	return nil
}
