package state

import "TokenLedger/internal/ledger"

// Whitelist is the set of identities allowed to buy in the presale.
// Add and Remove are idempotent and report whether membership changed.
type Whitelist struct {
	members map[ledger.Identity]struct{}
}

func NewWhitelist() *Whitelist {
	return &Whitelist{members: make(map[ledger.Identity]struct{})}
}

func (w *Whitelist) Contains(id ledger.Identity) bool {
	_, ok := w.members[id]
	return ok
}

func (w *Whitelist) Add(id ledger.Identity) bool {
	if w.Contains(id) {
		return false
	}
	w.members[id] = struct{}{}
	return true
}

func (w *Whitelist) Remove(id ledger.Identity) bool {
	if !w.Contains(id) {
		return false
	}
	delete(w.members, id)
	return true
}

func (w *Whitelist) Members() []ledger.Identity {
	return sortedIdentities(w.members)
}

func (w *Whitelist) Restore(members []ledger.Identity) {
	w.members = make(map[ledger.Identity]struct{}, len(members))
	for _, id := range members {
		w.members[id] = struct{}{}
	}
}
