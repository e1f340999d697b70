package core

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/event"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	amath "TokenLedger/internal/math"
	"TokenLedger/internal/state"
	"fmt"
)

// Marketplace handlers. Seasonal mint and burn share handleMint/handleBurn
// with the token book; admin checks go through the token's registry.

func (e *Engine) handleSetAssetPrice(cmd *command.SetAssetPrice, b *ledger.Batch) (*plan, error) {
	if err := e.access.RequireAdmin(cmd.Caller()); err != nil {
		return nil, err
	}
	price := orZero(cmd.Price)
	p := &plan{batch: b}
	p.effect(func() { e.prices.SetAssetPrice(cmd.AssetID, price) })
	p.emit(&event.PriceUpdated{Kind: state.PriceAsset, AssetID: cmd.AssetID, Price: price, By: cmd.Caller()})
	return p, nil
}

// handleBuyAsset moves stock from the marketplace to the buyer and burns
// the cost in MAIN from the buyer, in one batch across both books.
func (e *Engine) handleBuyAsset(cmd *command.BuyAsset, b *ledger.Batch) (*plan, error) {
	buyer := cmd.Caller()
	if buyer == e.marketAddr {
		return nil, fmt.Errorf("%w: marketplace cannot buy from itself", fault.ErrInvalidAddress)
	}

	price, ok := e.prices.AssetPrice(cmd.AssetID)
	if !ok {
		return nil, fmt.Errorf("%w: asset %d", fault.ErrPriceNotSet, cmd.AssetID)
	}

	amount := orZero(cmd.Amount)
	totalCost, overflow := amath.Cost(amount, price)

	stock := e.balances.Balance(ledger.BookSeasonal, e.marketAddr, cmd.AssetID)
	if stock.Lt(amount) {
		return nil, fmt.Errorf("%w: %s in stock", fault.ErrInsufficientSupply, stock.Dec())
	}

	funds := e.balances.Balance(ledger.BookToken, buyer, ledger.MainID)
	if overflow || funds.Lt(totalCost) {
		return nil, fmt.Errorf("%w: holds %s MZCAL, needs %s", fault.ErrInsufficientPayment, funds.Dec(), costString(totalCost, overflow))
	}

	b.Transfer(ledger.BookSeasonal, buyer, e.marketAddr, buyer, cmd.AssetID, amount).
		Burn(ledger.BookToken, e.marketAddr, buyer, ledger.MainID, totalCost)

	p := &plan{batch: b}
	p.emit(&event.AssetPurchase{
		Buyer:     buyer,
		AssetID:   cmd.AssetID,
		Amount:    amount,
		TotalCost: totalCost,
	})
	if e.metrics != nil {
		p.effect(func() {
			e.metrics.AssetPurchases.WithLabelValues(fmt.Sprint(uint64(cmd.AssetID))).Inc()
		})
	}
	return p, nil
}

func (e *Engine) handleCreateTradeBasket(cmd *command.CreateTradeBasket, b *ledger.Batch) (*plan, error) {
	entries := make([]state.BasketEntry, 0, len(cmd.Entries))
	for i, entry := range cmd.Entries {
		if entry.Amount == nil {
			return nil, fmt.Errorf("%w: entry %d", fault.ErrBasketEntryAmount, i)
		}
		entries = append(entries, state.BasketEntry{
			ContractRef: entry.ContractRef,
			AssetID:     entry.AssetID,
			Amount:      amath.Clone(entry.Amount),
		})
	}

	owner := cmd.Caller()
	p := &plan{batch: b}
	p.effect(func() { e.baskets.Set(owner, entries) })
	p.emit(&event.TradeBasketCreated{Owner: owner, Entries: entries})
	return p, nil
}

func (e *Engine) handleClearTradeBasket(cmd *command.ClearTradeBasket, b *ledger.Batch) (*plan, error) {
	owner := cmd.Caller()
	p := &plan{batch: b}
	p.effect(func() { e.baskets.Clear(owner) })
	p.emit(&event.TradeBasketCleared{Owner: owner})
	return p, nil
}
