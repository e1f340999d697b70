package core_test

import (
	"TokenLedger/internal/state"
	"TokenLedger/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenesis_ResolvesDefaults(t *testing.T) {
	implicit := testutil.EngineConfig()
	explicit := testutil.EngineConfig()
	explicit.PresaleCap = state.DefaultPresaleCap
	explicit.PresalePrice = state.DefaultPresalePrice
	explicit.MainPrice = state.DefaultMainPrice
	explicit.DedupCapacity = 7

	assert.Equal(t, implicit.Genesis(), explicit.Genesis())
	assert.Equal(t, implicit.Genesis().Fingerprint(), explicit.Genesis().Fingerprint())
	assert.Empty(t, implicit.Genesis().Diff(explicit.Genesis()))
}

func TestGenesis_Diff(t *testing.T) {
	base := testutil.EngineConfig()
	changed := testutil.EngineConfig()
	changed.Deployer = testutil.Alice
	changed.PresalePrice = u(1)

	g1, g2 := base.Genesis(), changed.Genesis()
	assert.Equal(t, []string{"deployer", "presale_price"}, g1.Diff(g2))
	assert.NotEqual(t, g1.Fingerprint(), g2.Fingerprint())
}
