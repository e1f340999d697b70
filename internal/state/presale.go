package state

import (
	amath "TokenLedger/internal/math"

	"github.com/holiman/uint256"
)

// DefaultPresaleCap is the number of presale units available when no cap
// is configured.
var DefaultPresaleCap = uint256.NewInt(1_000_000)

// Presale tracks the presale cap, the one-way launch flag and the native
// payment the token has retained.
type Presale struct {
	cap      *uint256.Int
	launched bool
	treasury *uint256.Int
}

func NewPresale(cap *uint256.Int) *Presale {
	if cap == nil {
		cap = DefaultPresaleCap
	}
	return &Presale{
		cap:      new(uint256.Int).Set(cap),
		treasury: new(uint256.Int),
	}
}

func (p *Presale) Cap() *uint256.Int { return new(uint256.Int).Set(p.cap) }

// Remaining is the cap minus every presale unit minted so far.
func (p *Presale) Remaining(minted *uint256.Int) *uint256.Int {
	return amath.SaturatingSub(p.cap, minted)
}

func (p *Presale) Launched() bool { return p.launched }

// Launch sets the flag and reports whether it changed.
func (p *Presale) Launch() bool {
	if p.launched {
		return false
	}
	p.launched = true
	return true
}

func (p *Presale) Treasury() *uint256.Int { return new(uint256.Int).Set(p.treasury) }

func (p *Presale) SetTreasury(v *uint256.Int) { p.treasury = new(uint256.Int).Set(v) }

func (p *Presale) Restore(cap *uint256.Int, launched bool, treasury *uint256.Int) {
	p.cap = new(uint256.Int).Set(cap)
	p.launched = launched
	p.treasury = new(uint256.Int).Set(treasury)
}
