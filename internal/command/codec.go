package command

import (
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	amath "TokenLedger/internal/math"
	"TokenLedger/internal/state"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Wire is the JSON form of every command. Field names use snake_case to
// match upstream producers; amounts are base-10 strings so that 256-bit
// values survive any JSON implementation.
type Wire struct {
	Type        string      `json:"type,omitempty"`
	RequestID   string      `json:"request_id"`
	Caller      string      `json:"caller"`
	TimestampUs int64       `json:"timestamp_us,omitempty"`
	Account     string      `json:"account,omitempty"`
	Accounts    []string    `json:"accounts,omitempty"`
	Book        string      `json:"book,omitempty"`
	To          string      `json:"to,omitempty"`
	Holder      string      `json:"holder,omitempty"`
	AssetID     uint64      `json:"asset_id,omitempty"`
	Amount      string      `json:"amount,omitempty"`
	Paid        string      `json:"paid,omitempty"`
	Price       string      `json:"price,omitempty"`
	Entries     []WireEntry `json:"entries,omitempty"`
}

type WireEntry struct {
	ContractRef string `json:"contract_ref"`
	AssetID     uint64 `json:"asset_id"`
	Amount      string `json:"amount"`
}

// Encode renders a command as JSON, including its type.
func Encode(c Command) ([]byte, error) {
	w := Wire{
		Type:      c.CommandType().String(),
		RequestID: c.RequestID(),
		Caller:    c.Caller().Hex(),
	}
	if !c.Timestamp().IsZero() {
		w.TimestampUs = c.Timestamp().UnixMicro()
	}

	switch cmd := c.(type) {
	case *AddAdmin:
		w.Account = cmd.Account.Hex()
	case *RemoveAdmin:
		w.Account = cmd.Account.Hex()
	case *WhitelistAdd:
		w.Account = cmd.Account.Hex()
	case *WhitelistRemove:
		w.Account = cmd.Account.Hex()
	case *WhitelistBulkAdd:
		for _, a := range cmd.Accounts {
			w.Accounts = append(w.Accounts, a.Hex())
		}
	case *Mint:
		w.Book = cmd.Book.String()
		w.To = cmd.To.Hex()
		w.AssetID = uint64(cmd.AssetID)
		w.Amount = dec(cmd.Amount)
	case *Burn:
		w.Book = cmd.Book.String()
		w.Holder = cmd.Holder.Hex()
		w.AssetID = uint64(cmd.AssetID)
		w.Amount = dec(cmd.Amount)
	case *BuyPresale:
		w.Amount = dec(cmd.Amount)
		w.Paid = dec(cmd.Paid)
	case *BuyMain:
		w.Amount = dec(cmd.Amount)
		w.Paid = dec(cmd.Paid)
	case *SetPresalePrice:
		w.Price = dec(cmd.Price)
	case *SetMainPrice:
		w.Price = dec(cmd.Price)
	case *SetAssetPrice:
		w.AssetID = uint64(cmd.AssetID)
		w.Price = dec(cmd.Price)
	case *BuyAsset:
		w.AssetID = uint64(cmd.AssetID)
		w.Amount = dec(cmd.Amount)
	case *CreateTradeBasket:
		for _, e := range cmd.Entries {
			w.Entries = append(w.Entries, WireEntry{
				ContractRef: e.ContractRef.Hex(),
				AssetID:     uint64(e.AssetID),
				Amount:      dec(e.Amount),
			})
		}
	case *Launch, *Claim, *ClearTradeBasket:
	default:
		return nil, fmt.Errorf("%w: %T", fault.ErrUnknownCommand, c)
	}

	return json.Marshal(w)
}

// Decode parses a JSON command. typeName overrides the "type" field when
// non-empty (NATS carries the type in the subject).
func Decode(typeName string, data []byte) (Command, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrPayloadParseFail, err)
	}
	if typeName != "" {
		w.Type = typeName
	}
	return w.Command()
}

// Command converts the wire form into a typed command.
func (w *Wire) Command() (Command, error) {
	t, ok := ParseType(w.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", fault.ErrUnknownCommand, w.Type)
	}
	if w.RequestID == "" {
		return nil, fault.ErrMissingRequestID
	}
	caller, err := ParseIdentity("caller", w.Caller)
	if err != nil {
		return nil, err
	}
	h := Header{ID: w.RequestID, From: caller}
	if w.TimestampUs != 0 {
		h.At = time.UnixMicro(w.TimestampUs).UTC()
	}

	switch t {
	case TypeAddAdmin, TypeRemoveAdmin, TypeWhitelistAdd, TypeWhitelistRemove:
		account, err := ParseIdentity("account", w.Account)
		if err != nil {
			return nil, err
		}
		switch t {
		case TypeAddAdmin:
			return &AddAdmin{Header: h, Account: account}, nil
		case TypeRemoveAdmin:
			return &RemoveAdmin{Header: h, Account: account}, nil
		case TypeWhitelistAdd:
			return &WhitelistAdd{Header: h, Account: account}, nil
		default:
			return &WhitelistRemove{Header: h, Account: account}, nil
		}

	case TypeWhitelistBulkAdd:
		accounts := make([]ledger.Identity, 0, len(w.Accounts))
		for i, a := range w.Accounts {
			id, err := ParseIdentity(fmt.Sprintf("accounts[%d]", i), a)
			if err != nil {
				return nil, err
			}
			accounts = append(accounts, id)
		}
		return &WhitelistBulkAdd{Header: h, Accounts: accounts}, nil

	case TypeMint, TypeMarketMint:
		to, err := ParseIdentity("to", w.To)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount("amount", w.Amount)
		if err != nil {
			return nil, err
		}
		book, err := bookFor(t, w.Book)
		if err != nil {
			return nil, err
		}
		return &Mint{Header: h, Book: book, To: to, AssetID: ledger.AssetID(w.AssetID), Amount: amount}, nil

	case TypeBurn, TypeMarketBurn:
		holder, err := ParseIdentity("holder", w.Holder)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount("amount", w.Amount)
		if err != nil {
			return nil, err
		}
		book, err := bookFor(t, w.Book)
		if err != nil {
			return nil, err
		}
		return &Burn{Header: h, Book: book, Holder: holder, AssetID: ledger.AssetID(w.AssetID), Amount: amount}, nil

	case TypeBuyPresale, TypeBuyMain:
		amount, err := parseAmount("amount", w.Amount)
		if err != nil {
			return nil, err
		}
		paid, err := parseAmount("paid", w.Paid)
		if err != nil {
			return nil, err
		}
		if t == TypeBuyPresale {
			return &BuyPresale{Header: h, Amount: amount, Paid: paid}, nil
		}
		return &BuyMain{Header: h, Amount: amount, Paid: paid}, nil

	case TypeLaunch:
		return &Launch{Header: h}, nil
	case TypeClaim:
		return &Claim{Header: h}, nil
	case TypeClearTradeBasket:
		return &ClearTradeBasket{Header: h}, nil

	case TypeSetPresalePrice, TypeSetMainPrice, TypeMarketSetPrice:
		price, err := parseAmount("price", w.Price)
		if err != nil {
			return nil, err
		}
		switch t {
		case TypeSetPresalePrice:
			return &SetPresalePrice{Header: h, Price: price}, nil
		case TypeSetMainPrice:
			return &SetMainPrice{Header: h, Price: price}, nil
		default:
			return &SetAssetPrice{Header: h, AssetID: ledger.AssetID(w.AssetID), Price: price}, nil
		}

	case TypeBuyAsset:
		amount, err := parseAmount("amount", w.Amount)
		if err != nil {
			return nil, err
		}
		return &BuyAsset{Header: h, AssetID: ledger.AssetID(w.AssetID), Amount: amount}, nil

	case TypeCreateTradeBasket:
		entries := make([]state.BasketEntry, 0, len(w.Entries))
		for i, e := range w.Entries {
			ref, err := ParseIdentity(fmt.Sprintf("entries[%d].contract_ref", i), e.ContractRef)
			if err != nil {
				return nil, err
			}
			if e.Amount == "" {
				return nil, fmt.Errorf("%w: entries[%d]", fault.ErrBasketEntryAmount, i)
			}
			amount, err := parseAmount(fmt.Sprintf("entries[%d].amount", i), e.Amount)
			if err != nil {
				return nil, err
			}
			entries = append(entries, state.BasketEntry{ContractRef: ref, AssetID: ledger.AssetID(e.AssetID), Amount: amount})
		}
		return &CreateTradeBasket{Header: h, Entries: entries}, nil
	}

	return nil, fmt.Errorf("%w: %q", fault.ErrUnknownCommand, w.Type)
}

// ParseIdentity validates a 0x-prefixed hex address.
func ParseIdentity(field, s string) (ledger.Identity, error) {
	if !common.IsHexAddress(s) {
		return ledger.Identity{}, fmt.Errorf("%w: %s=%q", fault.ErrInvalidAddress, field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(field, s string) (*uint256.Int, error) {
	v, err := amath.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", fault.ErrInvalidAmount, field, err)
	}
	return v, nil
}

// bookFor picks the book from the command type; the market_* types always
// target the seasonal book. An empty name means the token book.
func bookFor(t Type, name string) (ledger.Book, error) {
	if t == TypeMarketMint || t == TypeMarketBurn {
		return ledger.BookSeasonal, nil
	}
	if name == "" {
		return ledger.BookToken, nil
	}
	b, ok := ledger.ParseBook(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", fault.ErrUnknownBook, name)
	}
	return b, nil
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
