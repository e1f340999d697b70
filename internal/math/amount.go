package math

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// WeiPerEther is 10^18, the base-unit scale of native payments.
var WeiPerEther = uint256.NewInt(1_000_000_000_000_000_000)

// Zero returns a fresh zero amount.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Clone returns a copy of v, treating nil as zero.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return Zero()
	}
	return new(uint256.Int).Set(v)
}

// Cost computes amount * unitPrice. The second result is true when the
// product does not fit in 256 bits.
func Cost(amount, unitPrice *uint256.Int) (*uint256.Int, bool) {
	return new(uint256.Int).MulOverflow(amount, unitPrice)
}

// CheckedAdd returns a + b, or false when the sum overflows.
func CheckedAdd(a, b *uint256.Int) (*uint256.Int, bool) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	return sum, !overflow
}

// SaturatingSub returns a - b, floored at zero.
func SaturatingSub(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return Zero()
	}
	return new(uint256.Int).Sub(a, b)
}

// ParseAmount parses a base-10 integer string. Empty input is zero.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero(), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

// ParseEther converts a decimal ether string such as "0.001" into wei.
// At most 18 fractional digits are accepted.
func ParseEther(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 18 {
		return nil, fmt.Errorf("parse ether %q: more than 18 decimals", s)
	}
	if whole == "" {
		whole = "0"
	}
	w, err := uint256.FromDecimal(whole)
	if err != nil {
		return nil, fmt.Errorf("parse ether %q: %w", s, err)
	}
	wei, overflow := new(uint256.Int).MulOverflow(w, WeiPerEther)
	if overflow {
		return nil, fmt.Errorf("parse ether %q: overflow", s)
	}
	if frac != "" {
		f, err := uint256.FromDecimal(frac + strings.Repeat("0", 18-len(frac)))
		if err != nil {
			return nil, fmt.Errorf("parse ether %q: %w", s, err)
		}
		if _, overflow := wei.AddOverflow(wei, f); overflow {
			return nil, fmt.Errorf("parse ether %q: overflow", s)
		}
	}
	return wei, nil
}
