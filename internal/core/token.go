package core

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/event"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	amath "TokenLedger/internal/math"
	"TokenLedger/internal/state"
	"fmt"

	"github.com/holiman/uint256"
)

// --- access control ---

func (e *Engine) handleAddAdmin(cmd *command.AddAdmin, b *ledger.Batch) (*plan, error) {
	if err := e.access.CheckAdd(cmd.Caller(), cmd.Account); err != nil {
		return nil, err
	}
	p := &plan{batch: b}
	p.effect(func() { e.access.Add(cmd.Account) })
	p.emit(&event.AdminAdded{Account: cmd.Account, By: cmd.Caller()})
	return p, nil
}

func (e *Engine) handleRemoveAdmin(cmd *command.RemoveAdmin, b *ledger.Batch) (*plan, error) {
	if err := e.access.CheckRemove(cmd.Caller(), cmd.Account); err != nil {
		return nil, err
	}
	p := &plan{batch: b}
	p.effect(func() { e.access.Remove(cmd.Account) })
	p.emit(&event.AdminRemoved{Account: cmd.Account, By: cmd.Caller()})
	return p, nil
}

// --- whitelist ---

func (e *Engine) handleWhitelistAdd(cmd *command.WhitelistAdd, b *ledger.Batch) (*plan, error) {
	if err := e.access.RequireAdmin(cmd.Caller()); err != nil {
		return nil, err
	}
	p := &plan{batch: b}
	if !e.whitelist.Contains(cmd.Account) {
		p.effect(func() { e.whitelist.Add(cmd.Account) })
		p.emit(&event.WhitelistAdded{Account: cmd.Account, By: cmd.Caller()})
	}
	return p, nil
}

func (e *Engine) handleWhitelistRemove(cmd *command.WhitelistRemove, b *ledger.Batch) (*plan, error) {
	if err := e.access.RequireAdmin(cmd.Caller()); err != nil {
		return nil, err
	}
	p := &plan{batch: b}
	if e.whitelist.Contains(cmd.Account) {
		p.effect(func() { e.whitelist.Remove(cmd.Account) })
		p.emit(&event.WhitelistRemoved{Account: cmd.Account, By: cmd.Caller()})
	}
	return p, nil
}

func (e *Engine) handleWhitelistBulkAdd(cmd *command.WhitelistBulkAdd, b *ledger.Batch) (*plan, error) {
	if err := e.access.RequireAdmin(cmd.Caller()); err != nil {
		return nil, err
	}
	p := &plan{batch: b}
	seen := make(map[ledger.Identity]struct{}, len(cmd.Accounts))
	for _, id := range cmd.Accounts {
		if _, dup := seen[id]; dup || e.whitelist.Contains(id) {
			continue
		}
		seen[id] = struct{}{}
		id := id
		p.effect(func() { e.whitelist.Add(id) })
		p.emit(&event.WhitelistAdded{Account: id, By: cmd.Caller()})
	}
	return p, nil
}

// --- mint and burn (both books) ---

func (e *Engine) handleMint(cmd *command.Mint, b *ledger.Batch) (*plan, error) {
	if err := e.access.RequireAdmin(cmd.Caller()); err != nil {
		return nil, err
	}
	if err := checkBook(cmd.Book); err != nil {
		return nil, err
	}
	if cmd.To == ledger.ZeroIdentity {
		return nil, fmt.Errorf("%w: mint to the zero address", fault.ErrInvalidAddress)
	}
	b.Mint(cmd.Book, cmd.Caller(), cmd.To, cmd.AssetID, cmd.Amount)
	return &plan{batch: b}, nil
}

func (e *Engine) handleBurn(cmd *command.Burn, b *ledger.Batch) (*plan, error) {
	if cmd.Caller() != cmd.Holder && !e.access.IsAdmin(cmd.Caller()) {
		return nil, fault.ErrNotOwnerOrAdmin
	}
	if err := checkBook(cmd.Book); err != nil {
		return nil, err
	}
	if cmd.Holder == ledger.ZeroIdentity {
		return nil, fmt.Errorf("%w: burn from the zero address", fault.ErrInvalidAddress)
	}
	b.Burn(cmd.Book, cmd.Caller(), cmd.Holder, cmd.AssetID, cmd.Amount)
	return &plan{batch: b}, nil
}

func checkBook(book ledger.Book) error {
	if book != ledger.BookToken && book != ledger.BookSeasonal {
		return fmt.Errorf("%w: %d", fault.ErrUnknownBook, book)
	}
	return nil
}

// --- presale and launch ---

func (e *Engine) handleBuyPresale(cmd *command.BuyPresale, b *ledger.Batch) (*plan, error) {
	buyer := cmd.Caller()
	if !e.whitelist.Contains(buyer) {
		return nil, fault.ErrNotWhitelisted
	}

	amount, paid := orZero(cmd.Amount), orZero(cmd.Paid)
	cost, overflow := amath.Cost(amount, e.prices.PresalePrice())
	if overflow || !cost.Eq(paid) {
		return nil, fmt.Errorf("%w: sent %s, expected %s", fault.ErrIncorrectPayment, paid.Dec(), costString(cost, overflow))
	}

	remaining := e.presale.Remaining(e.balances.Minted(ledger.BookToken, ledger.PresaleID))
	if remaining.Lt(amount) {
		return nil, fmt.Errorf("%w: %s remaining", fault.ErrInsufficientSupply, remaining.Dec())
	}

	treasury, ok := amath.CheckedAdd(e.presale.Treasury(), cost)
	if !ok {
		return nil, fmt.Errorf("%w: treasury", fault.ErrOverflow)
	}

	b.Mint(ledger.BookToken, buyer, buyer, ledger.PresaleID, amount)
	p := &plan{batch: b, refund: new(uint256.Int)}
	p.effect(func() { e.presale.SetTreasury(treasury) })
	p.emit(&event.PaymentSettled{Payer: buyer, Paid: paid, Cost: cost, Refund: new(uint256.Int)})
	return p, nil
}

func (e *Engine) handleLaunch(cmd *command.Launch, b *ledger.Batch) (*plan, error) {
	if err := e.access.RequireAdmin(cmd.Caller()); err != nil {
		return nil, err
	}
	p := &plan{batch: b}
	if !e.presale.Launched() {
		p.effect(func() { e.presale.Launch() })
		p.emit(&event.TokenLaunched{By: cmd.Caller()})
	}
	return p, nil
}

func (e *Engine) handleClaim(cmd *command.Claim, b *ledger.Batch) (*plan, error) {
	if !e.presale.Launched() {
		return nil, fault.ErrNotLaunchedYet
	}
	holder := cmd.Caller()
	balance := e.balances.Balance(ledger.BookToken, holder, ledger.PresaleID)
	if balance.IsZero() {
		return nil, fault.ErrNoBalanceToConvert
	}

	b.Burn(ledger.BookToken, holder, holder, ledger.PresaleID, balance).
		Mint(ledger.BookToken, holder, holder, ledger.MainID, balance)
	return &plan{batch: b}, nil
}

func (e *Engine) handleBuyMain(cmd *command.BuyMain, b *ledger.Batch) (*plan, error) {
	if !e.presale.Launched() {
		return nil, fault.ErrNotLaunchedYet
	}

	buyer := cmd.Caller()
	amount, paid := orZero(cmd.Amount), orZero(cmd.Paid)
	cost, overflow := amath.Cost(amount, e.prices.MainPrice())
	if overflow || paid.Lt(cost) {
		return nil, fmt.Errorf("%w: sent %s, need %s", fault.ErrInsufficientPayment, paid.Dec(), costString(cost, overflow))
	}

	treasury, ok := amath.CheckedAdd(e.presale.Treasury(), cost)
	if !ok {
		return nil, fmt.Errorf("%w: treasury", fault.ErrOverflow)
	}
	refund := new(uint256.Int).Sub(paid, cost)

	b.Mint(ledger.BookToken, buyer, buyer, ledger.MainID, amount)
	p := &plan{batch: b, refund: refund}
	p.effect(func() { e.presale.SetTreasury(treasury) })
	p.emit(&event.PaymentSettled{Payer: buyer, Paid: paid, Cost: cost, Refund: new(uint256.Int).Set(refund)})
	return p, nil
}

// --- pricing ---

func (e *Engine) handleSetPresalePrice(cmd *command.SetPresalePrice, b *ledger.Batch) (*plan, error) {
	if err := e.access.RequireAdmin(cmd.Caller()); err != nil {
		return nil, err
	}
	price := orZero(cmd.Price)
	p := &plan{batch: b}
	p.effect(func() { e.prices.SetPresalePrice(price) })
	p.emit(&event.PriceUpdated{Kind: state.PricePresale, Price: price, By: cmd.Caller()})
	return p, nil
}

func (e *Engine) handleSetMainPrice(cmd *command.SetMainPrice, b *ledger.Batch) (*plan, error) {
	if err := e.access.RequireAdmin(cmd.Caller()); err != nil {
		return nil, err
	}
	price := orZero(cmd.Price)
	p := &plan{batch: b}
	p.effect(func() { e.prices.SetMainPrice(price) })
	p.emit(&event.PriceUpdated{Kind: state.PriceMain, Price: price, By: cmd.Caller()})
	return p, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func costString(cost *uint256.Int, overflow bool) string {
	if overflow {
		return "more than 2^256-1"
	}
	return cost.Dec()
}
