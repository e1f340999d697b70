package event

import (
	"TokenLedger/internal/ledger"

	"github.com/holiman/uint256"
)

// TransferSingle is emitted for every balance movement. Mints have a zero
// From and burns a zero To, matching the ERC-1155 convention.
type TransferSingle struct {
	Book     ledger.Book     `json:"book"`
	Operator ledger.Identity `json:"operator"`
	From     ledger.Identity `json:"from"`
	To       ledger.Identity `json:"to"`
	AssetID  ledger.AssetID  `json:"id"`
	Amount   *uint256.Int    `json:"value"`
}

func (e *TransferSingle) EventType() EventType { return EventTypeTransferSingle }

// FromMovement builds the notification for an applied movement.
func FromMovement(m ledger.Movement) *TransferSingle {
	return &TransferSingle{
		Book:     m.Book,
		Operator: m.Operator,
		From:     m.From,
		To:       m.To,
		AssetID:  m.AssetID,
		Amount:   new(uint256.Int).Set(m.Amount),
	}
}

// AssetPurchase is emitted by a marketplace purchase after its transfers.
type AssetPurchase struct {
	Buyer     ledger.Identity `json:"buyer"`
	AssetID   ledger.AssetID  `json:"asset_id"`
	Amount    *uint256.Int    `json:"amount"`
	TotalCost *uint256.Int    `json:"total_cost"`
}

func (e *AssetPurchase) EventType() EventType { return EventTypeAssetPurchase }

// PaymentSettled reports how an attached native payment was split between
// the treasury and a refund to the payer.
type PaymentSettled struct {
	Payer  ledger.Identity `json:"payer"`
	Paid   *uint256.Int    `json:"paid"`
	Cost   *uint256.Int    `json:"cost"`
	Refund *uint256.Int    `json:"refund"`
}

func (e *PaymentSettled) EventType() EventType { return EventTypePaymentSettled }
