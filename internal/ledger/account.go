package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is an externally supplied account reference.
type Identity = common.Address

// ZeroIdentity marks the mint source and burn sink of a movement.
var ZeroIdentity Identity

// AssetID identifies an asset within a book.
type AssetID uint64

// Reserved ids of the token book.
const (
	MainID    AssetID = 1
	PresaleID AssetID = 2
)

// Book selects one of the two independent balance tables.
type Book uint8

const (
	BookToken Book = iota + 1
	BookSeasonal
)

var bookNames = map[Book]string{
	BookToken:    "token",
	BookSeasonal: "seasonal",
}

func (b Book) String() string {
	if name, ok := bookNames[b]; ok {
		return name
	}
	return fmt.Sprintf("book(%d)", uint8(b))
}

// ParseBook maps a book name back to its value.
func ParseBook(s string) (Book, bool) {
	for b, name := range bookNames {
		if strings.EqualFold(name, s) {
			return b, true
		}
	}
	return 0, false
}

// AssetName returns a display name for an asset. Only the token book has
// named assets; everything else is rendered by number.
func AssetName(book Book, id AssetID) string {
	if book == BookToken {
		switch id {
		case MainID:
			return "MZCAL"
		case PresaleID:
			return "PRESALE"
		}
	}
	return fmt.Sprintf("%d", uint64(id))
}

// AccountKey uniquely identifies one balance entry.
type AccountKey struct {
	Book   Book
	Holder Identity
	Asset  AssetID
}

func NewAccountKey(book Book, holder Identity, asset AssetID) AccountKey {
	return AccountKey{Book: book, Holder: holder, Asset: asset}
}

// AccountPath returns the canonical string form used in digests and
// projections: "{book}:{holder hex}:{asset}".
func (k AccountKey) AccountPath() string {
	return fmt.Sprintf("%s:%s:%d", k.Book, strings.ToLower(k.Holder.Hex()), uint64(k.Asset))
}

// SupplyKey identifies an asset across all holders of a book.
type SupplyKey struct {
	Book  Book
	Asset AssetID
}

func (k SupplyKey) String() string {
	return fmt.Sprintf("%s:%s", k.Book, AssetName(k.Book, k.Asset))
}

func (b Book) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Book) UnmarshalText(text []byte) error {
	parsed, ok := ParseBook(string(text))
	if !ok {
		return fmt.Errorf("unknown book %q", text)
	}
	*b = parsed
	return nil
}
