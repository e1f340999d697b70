package state_test

import (
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/state"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	admin1   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	user1    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestAccessControl_DeployerIsAdmin(t *testing.T) {
	ac := state.NewAccessControl(deployer)
	assert.True(t, ac.IsAdmin(deployer))
	assert.False(t, ac.IsAdmin(user1))
}

func TestAccessControl_CheckAdd(t *testing.T) {
	ac := state.NewAccessControl(deployer)

	require.NoError(t, ac.CheckAdd(deployer, admin1))
	ac.Add(admin1)

	assert.ErrorIs(t, ac.CheckAdd(deployer, admin1), fault.ErrAlreadyAdmin)
	assert.ErrorIs(t, ac.CheckAdd(user1, user1), fault.ErrUnauthorized)
}

func TestAccessControl_CheckRemove(t *testing.T) {
	ac := state.NewAccessControl(deployer)

	assert.ErrorIs(t, ac.CheckRemove(deployer, admin1), fault.ErrNotAdmin)
	assert.ErrorIs(t, ac.CheckRemove(user1, deployer), fault.ErrUnauthorized)

	ac.Add(admin1)
	require.NoError(t, ac.CheckRemove(deployer, admin1))
	ac.Remove(admin1)
	assert.False(t, ac.IsAdmin(admin1))
}

func TestAccessControl_CheckDoesNotMutate(t *testing.T) {
	ac := state.NewAccessControl(deployer)
	require.NoError(t, ac.CheckAdd(deployer, admin1))
	assert.False(t, ac.IsAdmin(admin1))
}

func TestAccessControl_AdminsSorted(t *testing.T) {
	ac := state.NewAccessControl(deployer)
	ac.Add(admin1)
	assert.Equal(t, []ledger.Identity{admin1, deployer}, ac.Admins())
}

func TestWhitelist_Idempotent(t *testing.T) {
	w := state.NewWhitelist()
	assert.True(t, w.Add(user1))
	assert.False(t, w.Add(user1))
	assert.True(t, w.Contains(user1))
	assert.Len(t, w.Members(), 1)

	assert.True(t, w.Remove(user1))
	assert.False(t, w.Remove(user1))
	assert.False(t, w.Contains(user1))
}

func TestPriceBook_UnsetIsNotZero(t *testing.T) {
	pb := state.NewPriceBook(nil, nil)

	_, ok := pb.AssetPrice(7)
	assert.False(t, ok)

	pb.SetAssetPrice(7, uint256.NewInt(0))
	p, ok := pb.AssetPrice(7)
	require.True(t, ok)
	assert.True(t, p.IsZero())
}

func TestPriceBook_Defaults(t *testing.T) {
	pb := state.NewPriceBook(nil, nil)
	assert.Equal(t, "1000000000000000", pb.PresalePrice().Dec())
	assert.Equal(t, "2000000000000000", pb.MainPrice().Dec())
}

func TestPriceBook_ReturnsCopies(t *testing.T) {
	pb := state.NewPriceBook(uint256.NewInt(5), uint256.NewInt(6))
	p := pb.PresalePrice()
	p.SetUint64(100)
	assert.Equal(t, uint64(5), pb.PresalePrice().Uint64())
}

func TestPresale_LaunchIsOneWay(t *testing.T) {
	p := state.NewPresale(uint256.NewInt(10))
	assert.False(t, p.Launched())
	assert.True(t, p.Launch())
	assert.False(t, p.Launch())
	assert.True(t, p.Launched())
}

func TestPresale_RemainingSaturates(t *testing.T) {
	p := state.NewPresale(uint256.NewInt(10))
	assert.Equal(t, uint64(4), p.Remaining(uint256.NewInt(6)).Uint64())
	assert.True(t, p.Remaining(uint256.NewInt(12)).IsZero())
}

func TestTradeBaskets_ReplaceAndClear(t *testing.T) {
	tb := state.NewTradeBaskets()
	ref := common.HexToAddress("0x00000000000000000000000000000000000000e1")

	tb.Set(user1, []state.BasketEntry{{ContractRef: ref, AssetID: 1, Amount: uint256.NewInt(5)}})
	tb.Set(user1, []state.BasketEntry{{ContractRef: ref, AssetID: 2, Amount: uint256.NewInt(3)}})

	got := tb.Get(user1)
	require.Len(t, got, 1)
	assert.Equal(t, ledger.AssetID(2), got[0].AssetID)

	assert.True(t, tb.Clear(user1))
	assert.Nil(t, tb.Get(user1))
	assert.False(t, tb.Clear(user1))
}
