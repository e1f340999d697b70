package event

import (
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/state"

	"github.com/holiman/uint256"
)

type AdminAdded struct {
	Account ledger.Identity `json:"account"`
	By      ledger.Identity `json:"by"`
}

func (e *AdminAdded) EventType() EventType { return EventTypeAdminAdded }

type AdminRemoved struct {
	Account ledger.Identity `json:"account"`
	By      ledger.Identity `json:"by"`
}

func (e *AdminRemoved) EventType() EventType { return EventTypeAdminRemoved }

type WhitelistAdded struct {
	Account ledger.Identity `json:"account"`
	By      ledger.Identity `json:"by"`
}

func (e *WhitelistAdded) EventType() EventType { return EventTypeWhitelistAdded }

type WhitelistRemoved struct {
	Account ledger.Identity `json:"account"`
	By      ledger.Identity `json:"by"`
}

func (e *WhitelistRemoved) EventType() EventType { return EventTypeWhitelistRemoved }

// PriceUpdated covers the presale, main and per-asset marketplace prices.
// AssetID is only meaningful for PriceAsset.
type PriceUpdated struct {
	Kind    state.PriceKind `json:"kind"`
	AssetID ledger.AssetID  `json:"asset_id,omitempty"`
	Price   *uint256.Int    `json:"price"`
	By      ledger.Identity `json:"by"`
}

func (e *PriceUpdated) EventType() EventType { return EventTypePriceUpdated }

type TokenLaunched struct {
	By ledger.Identity `json:"by"`
}

func (e *TokenLaunched) EventType() EventType { return EventTypeTokenLaunched }

type TradeBasketCreated struct {
	Owner   ledger.Identity     `json:"owner"`
	Entries []state.BasketEntry `json:"entries"`
}

func (e *TradeBasketCreated) EventType() EventType { return EventTypeTradeBasketCreated }

type TradeBasketCleared struct {
	Owner ledger.Identity `json:"owner"`
}

func (e *TradeBasketCleared) EventType() EventType { return EventTypeTradeBasketCleared }
