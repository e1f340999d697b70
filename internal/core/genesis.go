package core

import (
	"TokenLedger/internal/state"
	"crypto/sha256"
	"encoding/json"

	"github.com/holiman/uint256"
)

// Genesis is the resolved construction config of a ledger. Unset amounts
// are replaced by their defaults, so two configs that build the same
// ledger compare equal. Replaying a log under a different Genesis gives a
// different ledger even though no command differs.
type Genesis struct {
	Deployer      string `json:"deployer"`
	TokenAddress  string `json:"token_address"`
	MarketAddress string `json:"market_address"`
	TokenURI      string `json:"token_uri"`
	MarketURI     string `json:"market_uri"`
	PresaleCap    string `json:"presale_cap"`
	PresalePrice  string `json:"presale_price"`
	MainPrice     string `json:"main_price"`
}

// Genesis returns the state-defining part of c. DedupCapacity is tuning
// and left out.
func (c Config) Genesis() Genesis {
	return Genesis{
		Deployer:      c.Deployer.Hex(),
		TokenAddress:  c.TokenAddress.Hex(),
		MarketAddress: c.MarketAddress.Hex(),
		TokenURI:      c.TokenURI,
		MarketURI:     c.MarketURI,
		PresaleCap:    orDefault(c.PresaleCap, state.DefaultPresaleCap),
		PresalePrice:  orDefault(c.PresalePrice, state.DefaultPresalePrice),
		MainPrice:     orDefault(c.MainPrice, state.DefaultMainPrice),
	}
}

func orDefault(v, def *uint256.Int) string {
	if v == nil {
		return def.Dec()
	}
	return v.Dec()
}

// Fingerprint is SHA-256 over the JSON encoding of g.
func (g Genesis) Fingerprint() [32]byte {
	data, err := json.Marshal(g)
	if err != nil {
		// only strings; cannot fail
		panic(err)
	}
	return sha256.Sum256(data)
}

// Diff lists the JSON names of the fields that differ between g and other.
func (g Genesis) Diff(other Genesis) []string {
	fields := []struct {
		name string
		a, b string
	}{
		{"deployer", g.Deployer, other.Deployer},
		{"token_address", g.TokenAddress, other.TokenAddress},
		{"market_address", g.MarketAddress, other.MarketAddress},
		{"token_uri", g.TokenURI, other.TokenURI},
		{"market_uri", g.MarketURI, other.MarketURI},
		{"presale_cap", g.PresaleCap, other.PresaleCap},
		{"presale_price", g.PresalePrice, other.PresalePrice},
		{"main_price", g.MainPrice, other.MainPrice},
	}
	var diff []string
	for _, f := range fields {
		if f.a != f.b {
			diff = append(diff, f.name)
		}
	}
	return diff
}
