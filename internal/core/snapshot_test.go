package core_test

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/state"
	"TokenLedger/internal/testutil"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runScenario touches every kind of engine state.
func runScenario(t *testing.T, e *core.Engine) {
	t.Helper()
	mustProcess(t, e, &command.AddAdmin{Header: h(deployer), Account: bob})
	mustProcess(t, e, &command.WhitelistAdd{Header: h(deployer), Account: alice})
	mustProcess(t, e, &command.BuyPresale{Header: h(alice), Amount: u(3), Paid: testutil.Dec("3000000000000000")})
	mustProcess(t, e, &command.Launch{Header: h(bob)})
	mustProcess(t, e, &command.Claim{Header: h(alice)})
	mustProcess(t, e, &command.Mint{Header: h(bob), Book: ledger.BookSeasonal, To: market, AssetID: season, Amount: u(4)})
	mustProcess(t, e, &command.SetAssetPrice{Header: h(bob), AssetID: season, Price: u(1)})
	mustProcess(t, e, &command.BuyAsset{Header: h(alice), AssetID: season, Amount: u(2)})
	mustProcess(t, e, &command.CreateTradeBasket{Header: h(alice), Entries: []state.BasketEntry{
		{ContractRef: market, AssetID: season, Amount: u(1)},
	}})
}

func TestSnapshot_RoundTrip(t *testing.T) {
	src, _, _ := testutil.NewTestEngine()
	runScenario(t, src)

	data, err := json.Marshal(src.CreateSnapshotState())
	require.NoError(t, err)

	var snap core.SnapshotState
	require.NoError(t, json.Unmarshal(data, &snap))

	dst := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	require.NoError(t, dst.RestoreFromSnapshot(&snap))

	assert.Equal(t, src.GetSequence(), dst.GetSequence())
	assert.Equal(t, src.GetStateHash(), dst.GetStateHash())
	assert.Equal(t, src.Admins(), dst.Admins())
	assert.True(t, dst.IsWhitelisted(alice))
	assert.True(t, dst.Launched())
	assert.Equal(t, src.Treasury().Dec(), dst.Treasury().Dec())
	assert.Equal(t, src.PresaleRemaining().Dec(), dst.PresaleRemaining().Dec())
	assert.Equal(t, "1", dst.BalanceOf(ledger.BookToken, alice, ledger.MainID).Dec())
	assert.Equal(t, "2", dst.BalanceOf(ledger.BookSeasonal, alice, season).Dec())
	assert.Equal(t, "2", dst.BalanceOf(ledger.BookSeasonal, market, season).Dec())
	assert.Equal(t, src.TradeBasket(alice), dst.TradeBasket(alice))
	price, ok := dst.AssetPrice(season)
	require.True(t, ok)
	assert.Equal(t, "1", price.Dec())

	// both engines continue the chain identically
	next := &command.Burn{Header: h(alice), Book: ledger.BookSeasonal, Holder: alice, AssetID: season, Amount: u(1)}
	r1 := mustProcess(t, src, next)
	r2 := mustProcess(t, dst, next)
	assert.Equal(t, r1.StateHash, r2.StateHash)
}

func TestSnapshot_RestoreRejectsBrokenConservation(t *testing.T) {
	src, _, _ := testutil.NewTestEngine()
	mustProcess(t, src, &command.Mint{Header: h(deployer), Book: ledger.BookToken, To: alice, AssetID: ledger.MainID, Amount: u(5)})

	snap := src.CreateSnapshotState()
	require.Len(t, snap.Balances, 1)
	snap.Balances[0].Amount = u(6)

	dst := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	assert.Error(t, dst.RestoreFromSnapshot(snap))
	assert.True(t, dst.BalanceOf(ledger.BookToken, alice, ledger.MainID).IsZero())
}

func TestSnapshot_WarmsIdempotency(t *testing.T) {
	src, _, _ := testutil.NewTestEngine()
	hdr := h(deployer)
	mustProcess(t, src, &command.Launch{Header: hdr})

	dst := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	require.NoError(t, dst.RestoreFromSnapshot(src.CreateSnapshotState()))

	r, err := dst.Process(&command.Launch{Header: hdr})
	require.NoError(t, err)
	assert.True(t, r.Duplicate)
}

func TestReplay_ReproducesChain(t *testing.T) {
	src, persistCh, _ := testutil.NewTestEngine()
	runScenario(t, src)
	outputs := testutil.Drain(persistCh)
	require.NotEmpty(t, outputs)

	dst := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	for _, out := range outputs {
		env := out.Envelope
		cmd, err := command.Decode(env.CommandType, env.Payload)
		require.NoError(t, err)
		require.NoError(t, dst.Replay(cmd, env.Sequence, env.StateHash))
	}

	assert.Equal(t, src.GetStateHash(), dst.GetStateHash())
	assert.Equal(t, src.GetSequence(), dst.GetSequence())
}

func TestReplay_DetectsTamperedLog(t *testing.T) {
	src, persistCh, _ := testutil.NewTestEngine()
	mustProcess(t, src, &command.Mint{Header: h(deployer), Book: ledger.BookToken, To: alice, AssetID: ledger.MainID, Amount: u(5)})
	env := testutil.Drain(persistCh)[0].Envelope

	tampered := &command.Mint{Header: h(deployer), Book: ledger.BookToken, To: alice, AssetID: ledger.MainID, Amount: u(6)}
	dst := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	assert.Error(t, dst.Replay(tampered, env.Sequence, env.StateHash))
}

func TestReplay_OutOfOrder(t *testing.T) {
	dst := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	assert.Error(t, dst.Replay(&command.Launch{Header: h(deployer)}, 5, [32]byte{}))
}
