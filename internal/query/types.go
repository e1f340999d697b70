package query

import "encoding/json"

// HoldingResponse is one projected balance row.
type HoldingResponse struct {
	Book         string `json:"book"`
	Holder       string `json:"holder"`
	AssetID      string `json:"asset_id"`
	Balance      string `json:"balance"`
	LastSequence int64  `json:"last_sequence"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// PurchaseResponse is one marketplace purchase.
type PurchaseResponse struct {
	Sequence     int64  `json:"sequence"`
	RequestID    string `json:"request_id"`
	Buyer        string `json:"buyer"`
	AssetID      string `json:"asset_id"`
	Amount       string `json:"amount"`
	TotalCost    string `json:"total_cost"`
	Timestamp    string `json:"timestamp"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// MovementHistoryEntry is a logged movement touching a holder.
type MovementHistoryEntry struct {
	MovementID string `json:"movement_id"`
	RequestID  string `json:"request_id"`
	Sequence   int64  `json:"sequence"`
	Book       string `json:"book"`
	Operator   string `json:"operator"`
	From       string `json:"from"`
	To         string `json:"to"`
	AssetID    string `json:"asset_id"`
	Amount     string `json:"amount"`
	Type       string `json:"type"`
}

// EnvelopeResponse is a logged envelope with its events.
type EnvelopeResponse struct {
	Sequence    int64           `json:"sequence"`
	RequestID   string          `json:"request_id"`
	CommandType string          `json:"command_type"`
	Caller      string          `json:"caller"`
	Payload     json.RawMessage `json:"payload"`
	Events      json.RawMessage `json:"events"`
	StateHash   string          `json:"state_hash"`
	PrevHash    string          `json:"prev_hash"`
	Timestamp   string          `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset is an asset whose projected holdings differ from its
// logged minted minus burned.
type UnbalancedAsset struct {
	Book     string `json:"book"`
	AssetID  string `json:"asset_id"`
	Holdings string `json:"holdings"`
	Supply   string `json:"supply"`
}
