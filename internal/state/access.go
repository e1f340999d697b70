package state

import (
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	"bytes"
	"fmt"
	"sort"
)

// AccessControl is the admin set. Check* methods never mutate; the caller
// runs them for the whole command before calling Add or Remove.
type AccessControl struct {
	admins map[ledger.Identity]struct{}
}

// NewAccessControl installs deployer as the first admin.
func NewAccessControl(deployer ledger.Identity) *AccessControl {
	ac := &AccessControl{admins: make(map[ledger.Identity]struct{})}
	ac.admins[deployer] = struct{}{}
	return ac
}

func (ac *AccessControl) IsAdmin(id ledger.Identity) bool {
	_, ok := ac.admins[id]
	return ok
}

// RequireAdmin fails with ErrUnauthorized unless caller is an admin.
func (ac *AccessControl) RequireAdmin(caller ledger.Identity) error {
	if !ac.IsAdmin(caller) {
		return fmt.Errorf("%w: caller %s", fault.ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (ac *AccessControl) CheckAdd(caller, id ledger.Identity) error {
	if err := ac.RequireAdmin(caller); err != nil {
		return err
	}
	if ac.IsAdmin(id) {
		return fmt.Errorf("%w: %s", fault.ErrAlreadyAdmin, id.Hex())
	}
	return nil
}

func (ac *AccessControl) CheckRemove(caller, id ledger.Identity) error {
	if err := ac.RequireAdmin(caller); err != nil {
		return err
	}
	if !ac.IsAdmin(id) {
		return fmt.Errorf("%w: %s", fault.ErrNotAdmin, id.Hex())
	}
	return nil
}

func (ac *AccessControl) Add(id ledger.Identity) {
	ac.admins[id] = struct{}{}
}

func (ac *AccessControl) Remove(id ledger.Identity) {
	delete(ac.admins, id)
}

// Admins returns the members sorted by address.
func (ac *AccessControl) Admins() []ledger.Identity {
	return sortedIdentities(ac.admins)
}

// Restore replaces the whole set.
func (ac *AccessControl) Restore(admins []ledger.Identity) {
	ac.admins = make(map[ledger.Identity]struct{}, len(admins))
	for _, id := range admins {
		ac.admins[id] = struct{}{}
	}
}

func sortedIdentities(set map[ledger.Identity]struct{}) []ledger.Identity {
	out := make([]ledger.Identity, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
