package ledger

import (
	"TokenLedger/internal/fault"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
)

// BalanceTracker maintains in-memory balances for both books together with
// per-asset minted and burned totals.
type BalanceTracker struct {
	balances map[AccountKey]*uint256.Int
	minted   map[SupplyKey]*uint256.Int
	burned   map[SupplyKey]*uint256.Int
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]*uint256.Int),
		minted:   make(map[SupplyKey]*uint256.Int),
		burned:   make(map[SupplyKey]*uint256.Int),
	}
}

// ApplyBatch validates the batch, computes every resulting balance and
// counter, and only then writes them. On error nothing has changed.
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	plan, err := bt.plan(batch)
	if err != nil {
		return err
	}

	for key, v := range plan.balances {
		bt.balances[key] = v
	}
	for key, v := range plan.minted {
		bt.minted[key] = v
	}
	for key, v := range plan.burned {
		bt.burned[key] = v
	}
	return nil
}

// CheckBatch reports the error ApplyBatch would return, without applying.
func (bt *BalanceTracker) CheckBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}
	_, err := bt.plan(batch)
	return err
}

type batchPlan struct {
	balances map[AccountKey]*uint256.Int
	minted   map[SupplyKey]*uint256.Int
	burned   map[SupplyKey]*uint256.Int
}

// plan runs the movements in order against a scratch overlay.
func (bt *BalanceTracker) plan(batch *Batch) (*batchPlan, error) {
	p := &batchPlan{
		balances: make(map[AccountKey]*uint256.Int),
		minted:   make(map[SupplyKey]*uint256.Int),
		burned:   make(map[SupplyKey]*uint256.Int),
	}

	balance := func(key AccountKey) *uint256.Int {
		if v, ok := p.balances[key]; ok {
			return v
		}
		return bt.GetBalance(key)
	}
	counter := func(overlay, base map[SupplyKey]*uint256.Int, key SupplyKey) *uint256.Int {
		if v, ok := overlay[key]; ok {
			return v
		}
		if v, ok := base[key]; ok {
			return new(uint256.Int).Set(v)
		}
		return new(uint256.Int)
	}

	for _, m := range batch.Movements {
		supply := SupplyKey{Book: m.Book, Asset: m.AssetID}

		if m.From != ZeroIdentity {
			key := NewAccountKey(m.Book, m.From, m.AssetID)
			current := balance(key)
			if current.Lt(m.Amount) {
				return nil, fmt.Errorf("%w: %s holds %s, needs %s",
					fault.ErrInsufficientBalance, key.AccountPath(), current.Dec(), m.Amount.Dec())
			}
			p.balances[key] = new(uint256.Int).Sub(current, m.Amount)
		} else {
			total, overflow := new(uint256.Int).AddOverflow(counter(p.minted, bt.minted, supply), m.Amount)
			if overflow {
				return nil, fmt.Errorf("%w: minted total of %s", fault.ErrOverflow, supply)
			}
			p.minted[supply] = total
		}

		if m.To != ZeroIdentity {
			key := NewAccountKey(m.Book, m.To, m.AssetID)
			next, overflow := new(uint256.Int).AddOverflow(balance(key), m.Amount)
			if overflow {
				return nil, fmt.Errorf("%w: balance of %s", fault.ErrOverflow, key.AccountPath())
			}
			p.balances[key] = next
		} else {
			total, overflow := new(uint256.Int).AddOverflow(counter(p.burned, bt.burned, supply), m.Amount)
			if overflow {
				return nil, fmt.Errorf("%w: burned total of %s", fault.ErrOverflow, supply)
			}
			p.burned[supply] = total
		}
	}

	return p, nil
}

// GetBalance returns a copy of the balance for an account; absent is zero.
func (bt *BalanceTracker) GetBalance(key AccountKey) *uint256.Int {
	if v, ok := bt.balances[key]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// Balance is a shorthand for GetBalance(NewAccountKey(...)).
func (bt *BalanceTracker) Balance(book Book, holder Identity, asset AssetID) *uint256.Int {
	return bt.GetBalance(NewAccountKey(book, holder, asset))
}

// HasEntry reports whether an account has ever been touched.
func (bt *BalanceTracker) HasEntry(key AccountKey) bool {
	_, ok := bt.balances[key]
	return ok
}

// Minted returns the cumulative amount minted for an asset.
func (bt *BalanceTracker) Minted(book Book, asset AssetID) *uint256.Int {
	if v, ok := bt.minted[SupplyKey{Book: book, Asset: asset}]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// Burned returns the cumulative amount burned for an asset.
func (bt *BalanceTracker) Burned(book Book, asset AssetID) *uint256.Int {
	if v, ok := bt.burned[SupplyKey{Book: book, Asset: asset}]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// TotalSupply returns minted - burned for an asset.
func (bt *BalanceTracker) TotalSupply(book Book, asset AssetID) *uint256.Int {
	return new(uint256.Int).Sub(bt.Minted(book, asset), bt.Burned(book, asset))
}

// ComputeHoldings sums balances per asset across every holder.
func (bt *BalanceTracker) ComputeHoldings() map[SupplyKey]*uint256.Int {
	totals := make(map[SupplyKey]*uint256.Int)
	for key, v := range bt.balances {
		sk := SupplyKey{Book: key.Book, Asset: key.Asset}
		if _, ok := totals[sk]; !ok {
			totals[sk] = new(uint256.Int)
		}
		totals[sk].Add(totals[sk], v)
	}
	return totals
}

// SupplyKeys returns every asset that has ever been minted, sorted.
func (bt *BalanceTracker) SupplyKeys() []SupplyKey {
	keys := make([]SupplyKey, 0, len(bt.minted))
	for k := range bt.minted {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Book != keys[j].Book {
			return keys[i].Book < keys[j].Book
		}
		return keys[i].Asset < keys[j].Asset
	})
	return keys
}

// Accounts returns every balance entry key sorted by AccountPath.
func (bt *BalanceTracker) Accounts() []AccountKey {
	keys := make([]AccountKey, 0, len(bt.balances))
	for k := range bt.balances {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].AccountPath() < keys[j].AccountPath()
	})
	return keys
}

// Snapshot returns a copy of all balances and counters.
func (bt *BalanceTracker) Snapshot() (balances map[AccountKey]*uint256.Int, minted, burned map[SupplyKey]*uint256.Int) {
	balances = make(map[AccountKey]*uint256.Int, len(bt.balances))
	for k, v := range bt.balances {
		balances[k] = new(uint256.Int).Set(v)
	}
	minted = make(map[SupplyKey]*uint256.Int, len(bt.minted))
	for k, v := range bt.minted {
		minted[k] = new(uint256.Int).Set(v)
	}
	burned = make(map[SupplyKey]*uint256.Int, len(bt.burned))
	for k, v := range bt.burned {
		burned[k] = new(uint256.Int).Set(v)
	}
	return balances, minted, burned
}

// Restore replaces all state with the given maps (used on snapshot load).
func (bt *BalanceTracker) Restore(balances map[AccountKey]*uint256.Int, minted, burned map[SupplyKey]*uint256.Int) {
	bt.balances = make(map[AccountKey]*uint256.Int, len(balances))
	for k, v := range balances {
		bt.balances[k] = new(uint256.Int).Set(v)
	}
	bt.minted = make(map[SupplyKey]*uint256.Int, len(minted))
	for k, v := range minted {
		bt.minted[k] = new(uint256.Int).Set(v)
	}
	bt.burned = make(map[SupplyKey]*uint256.Int, len(burned))
	for k, v := range burned {
		bt.burned[k] = new(uint256.Int).Set(v)
	}
}
