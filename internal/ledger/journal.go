package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// MovementType represents the shape of a balance movement
type MovementType int32

const (
	MovementMint MovementType = iota
	MovementBurn
	MovementTransfer
)

func (t MovementType) String() string {
	switch t {
	case MovementMint:
		return "mint"
	case MovementBurn:
		return "burn"
	case MovementTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("movement(%d)", int32(t))
	}
}

// Movement is a single balance change. Mints come from ZeroIdentity and
// burns go to ZeroIdentity; transfers have both ends set.
type Movement struct {
	MovementID uuid.UUID
	BatchID    uuid.UUID
	EventRef   string // request id of the originating command
	Sequence   int64
	Book       Book
	Operator   Identity
	From       Identity
	To         Identity
	AssetID    AssetID
	Amount     *uint256.Int // always > 0
	Type       MovementType
}

// Batch groups every movement produced by one command. It is applied as a
// unit or not at all.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Movements []Movement
}

// Validate ensures the batch is well-formed. It does not look at balances;
// BalanceTracker.ApplyBatch does that.
func (b *Batch) Validate() error {
	for _, m := range b.Movements {
		if m.Amount == nil || m.Amount.IsZero() {
			return fmt.Errorf("movement %s has zero amount", m.MovementID)
		}

		if m.BatchID != b.BatchID {
			return fmt.Errorf("movement %s has mismatched batch_id", m.MovementID)
		}

		if m.Book != BookToken && m.Book != BookSeasonal {
			return fmt.Errorf("movement %s has unknown book %d", m.MovementID, m.Book)
		}

		switch m.Type {
		case MovementMint:
			if m.From != ZeroIdentity || m.To == ZeroIdentity {
				return fmt.Errorf("mint %s must go from zero to a holder", m.MovementID)
			}
		case MovementBurn:
			if m.To != ZeroIdentity || m.From == ZeroIdentity {
				return fmt.Errorf("burn %s must go from a holder to zero", m.MovementID)
			}
		case MovementTransfer:
			if m.From == ZeroIdentity || m.To == ZeroIdentity {
				return fmt.Errorf("transfer %s needs both ends", m.MovementID)
			}
			if m.From == m.To {
				return fmt.Errorf("transfer %s has same source and destination", m.MovementID)
			}
		default:
			return fmt.Errorf("movement %s has unknown type %d", m.MovementID, m.Type)
		}
	}

	return nil
}

// IsEmpty reports whether the batch changes no balance.
func (b *Batch) IsEmpty() bool {
	return len(b.Movements) == 0
}
