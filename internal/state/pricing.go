package state

import (
	"TokenLedger/internal/ledger"
	"sort"

	"github.com/holiman/uint256"
)

var (
	// Defaults follow the launch price sheet: 0.001 ETH per presale unit,
	// 0.002 ETH per MZCAL, in wei.
	DefaultPresalePrice = uint256.NewInt(1_000_000_000_000_000)
	DefaultMainPrice    = uint256.NewInt(2_000_000_000_000_000)
)

// PriceKind names which price a PriceUpdated event refers to.
type PriceKind string

const (
	PricePresale PriceKind = "presale"
	PriceMain    PriceKind = "main"
	PriceAsset   PriceKind = "asset"
)

// PriceBook holds the token unit prices and per-asset marketplace prices.
// The two unit prices are always set; an asset price may be unset, which is
// not the same as zero.
type PriceBook struct {
	presale *uint256.Int
	main    *uint256.Int
	assets  map[ledger.AssetID]*uint256.Int
}

// NewPriceBook creates a book with the given unit prices; nil means default.
func NewPriceBook(presale, main *uint256.Int) *PriceBook {
	if presale == nil {
		presale = DefaultPresalePrice
	}
	if main == nil {
		main = DefaultMainPrice
	}
	return &PriceBook{
		presale: new(uint256.Int).Set(presale),
		main:    new(uint256.Int).Set(main),
		assets:  make(map[ledger.AssetID]*uint256.Int),
	}
}

func (pb *PriceBook) PresalePrice() *uint256.Int { return new(uint256.Int).Set(pb.presale) }
func (pb *PriceBook) MainPrice() *uint256.Int    { return new(uint256.Int).Set(pb.main) }

func (pb *PriceBook) SetPresalePrice(p *uint256.Int) { pb.presale = new(uint256.Int).Set(p) }
func (pb *PriceBook) SetMainPrice(p *uint256.Int)    { pb.main = new(uint256.Int).Set(p) }

// AssetPrice returns the marketplace price and whether one has been set.
func (pb *PriceBook) AssetPrice(id ledger.AssetID) (*uint256.Int, bool) {
	p, ok := pb.assets[id]
	if !ok {
		return nil, false
	}
	return new(uint256.Int).Set(p), true
}

func (pb *PriceBook) SetAssetPrice(id ledger.AssetID, p *uint256.Int) {
	pb.assets[id] = new(uint256.Int).Set(p)
}

// PricedAssets returns every asset with a price, sorted.
func (pb *PriceBook) PricedAssets() []ledger.AssetID {
	ids := make([]ledger.AssetID, 0, len(pb.assets))
	for id := range pb.assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Restore replaces all prices.
func (pb *PriceBook) Restore(presale, main *uint256.Int, assets map[ledger.AssetID]*uint256.Int) {
	pb.presale = new(uint256.Int).Set(presale)
	pb.main = new(uint256.Int).Set(main)
	pb.assets = make(map[ledger.AssetID]*uint256.Int, len(assets))
	for id, p := range assets {
		pb.assets[id] = new(uint256.Int).Set(p)
	}
}
