package event

import (
	"TokenLedger/internal/ledger"
	"time"
)

// EventType discriminator for domain event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeTransferSingle
	EventTypeAssetPurchase
	EventTypeAdminAdded
	EventTypeAdminRemoved
	EventTypeWhitelistAdded
	EventTypeWhitelistRemoved
	EventTypePriceUpdated
	EventTypeTokenLaunched
	EventTypePaymentSettled
	EventTypeTradeBasketCreated
	EventTypeTradeBasketCleared
)

// EventEnvelope wraps every applied command in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Request id of the command; the idempotency key
	RequestID string

	// Command discriminator (wire name)
	CommandType string

	// Authenticated caller of the command
	Caller ledger.Identity

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// JSON-encoded command, kept for replay
	Payload []byte

	// Domain events emitted by the command, in order
	Events []Event

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all domain event payloads must implement
type Event interface {
	EventType() EventType
}

func (et EventType) String() string {
	switch et {
	case EventTypeTransferSingle:
		return "TransferSingle"
	case EventTypeAssetPurchase:
		return "AssetPurchase"
	case EventTypeAdminAdded:
		return "AdminAdded"
	case EventTypeAdminRemoved:
		return "AdminRemoved"
	case EventTypeWhitelistAdded:
		return "WhitelistAdded"
	case EventTypeWhitelistRemoved:
		return "WhitelistRemoved"
	case EventTypePriceUpdated:
		return "PriceUpdated"
	case EventTypeTokenLaunched:
		return "TokenLaunched"
	case EventTypePaymentSettled:
		return "PaymentSettled"
	case EventTypeTradeBasketCreated:
		return "TradeBasketCreated"
	case EventTypeTradeBasketCleared:
		return "TradeBasketCleared"
	default:
		return "Unknown"
	}
}
