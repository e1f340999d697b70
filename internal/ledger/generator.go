package ledger

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// NewBatch starts an empty batch for the command identified by eventRef.
func NewBatch(eventRef string, sequence int64) *Batch {
	return &Batch{
		BatchID:  uuid.New(),
		EventRef: eventRef,
		Sequence: sequence,
	}
}

// Mint appends a mint movement. Zero amounts are skipped.
func (b *Batch) Mint(book Book, operator, to Identity, asset AssetID, amount *uint256.Int) *Batch {
	return b.add(book, operator, ZeroIdentity, to, asset, amount, MovementMint)
}

// Burn appends a burn movement. Zero amounts are skipped.
func (b *Batch) Burn(book Book, operator, from Identity, asset AssetID, amount *uint256.Int) *Batch {
	return b.add(book, operator, from, ZeroIdentity, asset, amount, MovementBurn)
}

// Transfer appends a holder-to-holder movement. Zero amounts are skipped.
func (b *Batch) Transfer(book Book, operator, from, to Identity, asset AssetID, amount *uint256.Int) *Batch {
	return b.add(book, operator, from, to, asset, amount, MovementTransfer)
}

func (b *Batch) add(book Book, operator, from, to Identity, asset AssetID, amount *uint256.Int, typ MovementType) *Batch {
	if amount == nil || amount.IsZero() {
		return b
	}
	b.Movements = append(b.Movements, Movement{
		MovementID: uuid.New(),
		BatchID:    b.BatchID,
		EventRef:   b.EventRef,
		Sequence:   b.Sequence,
		Book:       book,
		Operator:   operator,
		From:       from,
		To:         to,
		AssetID:    asset,
		Amount:     new(uint256.Int).Set(amount),
		Type:       typ,
	})
	return b
}
