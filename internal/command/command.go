// Package command defines the operations a caller can submit to the ledger
// engine. A command carries the already-authenticated caller and a request
// id used for idempotent replay.
package command

import (
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/state"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// Type identifies a command
type Type int32

const (
	TypeUnknown Type = iota
	TypeAddAdmin
	TypeRemoveAdmin
	TypeWhitelistAdd
	TypeWhitelistRemove
	TypeWhitelistBulkAdd
	TypeMint
	TypeBurn
	TypeBuyPresale
	TypeLaunch
	TypeClaim
	TypeBuyMain
	TypeSetPresalePrice
	TypeSetMainPrice
	TypeMarketMint
	TypeMarketBurn
	TypeMarketSetPrice
	TypeBuyAsset
	TypeCreateTradeBasket
	TypeClearTradeBasket
)

var typeNames = map[Type]string{
	TypeAddAdmin:          "add_admin",
	TypeRemoveAdmin:       "remove_admin",
	TypeWhitelistAdd:      "whitelist_add",
	TypeWhitelistRemove:   "whitelist_remove",
	TypeWhitelistBulkAdd:  "whitelist_bulk_add",
	TypeMint:              "mint",
	TypeBurn:              "burn",
	TypeBuyPresale:        "buy_presale",
	TypeLaunch:            "launch",
	TypeClaim:             "claim",
	TypeBuyMain:           "buy_mzcal",
	TypeSetPresalePrice:   "set_presale_price",
	TypeSetMainPrice:      "set_main_price",
	TypeMarketMint:        "market_mint",
	TypeMarketBurn:        "market_burn",
	TypeMarketSetPrice:    "market_set_price",
	TypeBuyAsset:          "buy_asset",
	TypeCreateTradeBasket: "create_trade_basket",
	TypeClearTradeBasket:  "clear_trade_basket",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseType maps a wire name to its Type.
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}
	return TypeUnknown, false
}

// Types returns every known command type in declaration order.
func Types() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := TypeAddAdmin; t <= TypeClearTradeBasket; t++ {
		out = append(out, t)
	}
	return out
}

// Command is the interface all commands implement
type Command interface {
	RequestID() string
	CommandType() Type
	Caller() ledger.Identity
	Timestamp() time.Time
}

// Header carries the fields common to every command.
type Header struct {
	ID   string
	From ledger.Identity
	At   time.Time // set by the ingress, never by the engine
}

func (h Header) RequestID() string       { return h.ID }
func (h Header) Caller() ledger.Identity { return h.From }
func (h Header) Timestamp() time.Time    { return h.At }

// --- access control ---

type AddAdmin struct {
	Header
	Account ledger.Identity
}

func (c *AddAdmin) CommandType() Type { return TypeAddAdmin }

type RemoveAdmin struct {
	Header
	Account ledger.Identity
}

func (c *RemoveAdmin) CommandType() Type { return TypeRemoveAdmin }

// --- whitelist ---

type WhitelistAdd struct {
	Header
	Account ledger.Identity
}

func (c *WhitelistAdd) CommandType() Type { return TypeWhitelistAdd }

type WhitelistRemove struct {
	Header
	Account ledger.Identity
}

func (c *WhitelistRemove) CommandType() Type { return TypeWhitelistRemove }

type WhitelistBulkAdd struct {
	Header
	Accounts []ledger.Identity
}

func (c *WhitelistBulkAdd) CommandType() Type { return TypeWhitelistBulkAdd }

// --- balances ---

// Mint credits Amount of AssetID to To in the given book.
type Mint struct {
	Header
	Book    ledger.Book
	To      ledger.Identity
	AssetID ledger.AssetID
	Amount  *uint256.Int
}

func (c *Mint) CommandType() Type {
	if c.Book == ledger.BookSeasonal {
		return TypeMarketMint
	}
	return TypeMint
}

// Burn debits Amount of AssetID from Holder in the given book.
type Burn struct {
	Header
	Book    ledger.Book
	Holder  ledger.Identity
	AssetID ledger.AssetID
	Amount  *uint256.Int
}

func (c *Burn) CommandType() Type {
	if c.Book == ledger.BookSeasonal {
		return TypeMarketBurn
	}
	return TypeBurn
}

// --- presale and launch ---

type BuyPresale struct {
	Header
	Amount *uint256.Int
	Paid   *uint256.Int
}

func (c *BuyPresale) CommandType() Type { return TypeBuyPresale }

type Launch struct {
	Header
}

func (c *Launch) CommandType() Type { return TypeLaunch }

type Claim struct {
	Header
}

func (c *Claim) CommandType() Type { return TypeClaim }

type BuyMain struct {
	Header
	Amount *uint256.Int
	Paid   *uint256.Int
}

func (c *BuyMain) CommandType() Type { return TypeBuyMain }

// --- pricing ---

type SetPresalePrice struct {
	Header
	Price *uint256.Int
}

func (c *SetPresalePrice) CommandType() Type { return TypeSetPresalePrice }

type SetMainPrice struct {
	Header
	Price *uint256.Int
}

func (c *SetMainPrice) CommandType() Type { return TypeSetMainPrice }

// --- marketplace ---

type SetAssetPrice struct {
	Header
	AssetID ledger.AssetID
	Price   *uint256.Int
}

func (c *SetAssetPrice) CommandType() Type { return TypeMarketSetPrice }

type BuyAsset struct {
	Header
	AssetID ledger.AssetID
	Amount  *uint256.Int
}

func (c *BuyAsset) CommandType() Type { return TypeBuyAsset }

type CreateTradeBasket struct {
	Header
	Entries []state.BasketEntry
}

func (c *CreateTradeBasket) CommandType() Type { return TypeCreateTradeBasket }

type ClearTradeBasket struct {
	Header
}

func (c *ClearTradeBasket) CommandType() Type { return TypeClearTradeBasket }

// Describe renders a command for logs.
func Describe(c Command) string {
	return fmt.Sprintf("%s(request=%s caller=%s)", c.CommandType(), c.RequestID(), c.Caller().Hex())
}
