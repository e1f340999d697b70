package state

// Metadata describes a book to outside readers. The URI is an opaque
// template handed over at construction; the ledger never interprets it.
type Metadata struct {
	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	URI    string `json:"uri"`
}

// Marketplace collection identity.
const (
	SeasonalName   = "Seasonal NFTs"
	SeasonalSymbol = "SFT"
)
