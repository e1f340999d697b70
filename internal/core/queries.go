package core

import (
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/state"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Queries read live engine state under the read lock. They never fail on
// unknown holders or assets; absent balances are zero.

func (e *Engine) IsAdmin(id ledger.Identity) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.access.IsAdmin(id)
}

// Admins returns the admin set sorted by address.
func (e *Engine) Admins() []ledger.Identity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.access.Admins()
}

func (e *Engine) IsWhitelisted(id ledger.Identity) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.whitelist.Contains(id)
}

// BalanceOf returns the holder's balance of an asset in a book.
func (e *Engine) BalanceOf(book ledger.Book, holder ledger.Identity, asset ledger.AssetID) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances.Balance(book, holder, asset)
}

// TotalSupply returns minted minus burned for an asset.
func (e *Engine) TotalSupply(book ledger.Book, asset ledger.AssetID) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances.TotalSupply(book, asset)
}

func (e *Engine) PresaleTokenPrice() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prices.PresalePrice()
}

func (e *Engine) MainTokenPrice() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prices.MainPrice()
}

// AssetPrice returns the marketplace price and whether one was ever set.
func (e *Engine) AssetPrice(asset ledger.AssetID) (*uint256.Int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prices.AssetPrice(asset)
}

func (e *Engine) Launched() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.presale.Launched()
}

// PresaleRemaining is cap minus every PRESALE unit ever minted, floored at 0.
func (e *Engine) PresaleRemaining() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.presale.Remaining(e.balances.Minted(ledger.BookToken, ledger.PresaleID))
}

func (e *Engine) PresaleCap() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.presale.Cap()
}

// Treasury returns the native payment retained so far.
func (e *Engine) Treasury() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.presale.Treasury()
}

func (e *Engine) TradeBasket(owner ledger.Identity) []state.BasketEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baskets.Get(owner)
}

// Metadata returns the name, symbol and URI template of a book.
func (e *Engine) Metadata(book ledger.Book) state.Metadata {
	if book == ledger.BookSeasonal {
		return e.marketMeta
	}
	return e.tokenMeta
}

// URI expands the {id} placeholder of the book's URI template with the
// id as 64 lowercase hex digits, as ERC-1155 clients expect.
func (e *Engine) URI(book ledger.Book, asset ledger.AssetID) string {
	return strings.ReplaceAll(e.Metadata(book).URI, "{id}", fmt.Sprintf("%064x", uint64(asset)))
}

// Address returns the identity of the token or the marketplace.
func (e *Engine) Address(book ledger.Book) ledger.Identity {
	if book == ledger.BookSeasonal {
		return e.marketAddr
	}
	return e.tokenAddr
}
