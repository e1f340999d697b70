package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

const deployerHex = "0x00000000000000000000000000000000000000d0"

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{"TOKEN_DEPLOYER": deployerHex}))
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(deployerHex), cfg.Deployer)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.Equal(t, 1024, cfg.PersistChanSize)
	assert.Nil(t, cfg.PresaleCap, "unset amounts fall back to engine defaults")
	assert.Empty(t, cfg.InitialAdmins)

	ec := cfg.EngineConfig()
	assert.Equal(t, cfg.MarketAddress, ec.MarketAddress)
	assert.Equal(t, cfg.DedupCapacity, ec.DedupCapacity)
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{
		"TOKEN_DEPLOYER":          deployerHex,
		"TOKEN_GRPC_PORT":         "7000",
		"TOKEN_PRESALE_CAP":       "1000000000000000000000000",
		"TOKEN_MAIN_PRICE":        "2000000000000000",
		"TOKEN_INITIAL_ADMINS":    "0x00000000000000000000000000000000000000a1, 0x00000000000000000000000000000000000000b0",
		"TOKEN_INITIAL_WHITELIST": "0x00000000000000000000000000000000000000c0",
		"TOKEN_SNAPSHOT_EVERY":    "500",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.GRPCAddr)
	assert.Equal(t, "1000000000000000000000000", cfg.PresaleCap.Dec())
	assert.Equal(t, "2000000000000000", cfg.MainPrice.Dec())
	assert.Len(t, cfg.InitialAdmins, 2)
	assert.Len(t, cfg.InitialWhitelist, 1)
	assert.Equal(t, int64(500), cfg.SnapshotEvery)
}

func TestLoadConfig_PricesInEther(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{
		"TOKEN_DEPLOYER":      deployerHex,
		"TOKEN_PRESALE_PRICE": "0.001ether",
		"TOKEN_MAIN_PRICE":    "0.002 ETHER",
	}))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000", cfg.PresalePrice.Dec())
	assert.Equal(t, "2000000000000000", cfg.MainPrice.Dec())

	_, err = loadConfig(envMap(map[string]string{
		"TOKEN_DEPLOYER":      deployerHex,
		"TOKEN_PRESALE_PRICE": "0.0000000000000000001ether",
		"TOKEN_MAIN_PRICE":    "ether",
	}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "TOKEN_PRESALE_PRICE")
	assert.ErrorContains(t, err, "TOKEN_MAIN_PRICE")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(envMap(nil))
	assert.ErrorContains(t, err, "TOKEN_DEPLOYER is required")

	_, err = loadConfig(envMap(map[string]string{
		"TOKEN_DEPLOYER":          "0xnothex",
		"TOKEN_PRESALE_PRICE":     "-1",
		"TOKEN_INITIAL_ADMINS":    "bob",
		"TOKEN_PERSIST_CHAN_SIZE": "zero",
	}))
	require.Error(t, err)
	for _, want := range []string{"TOKEN_DEPLOYER", "TOKEN_PRESALE_PRICE", "TOKEN_INITIAL_ADMINS", "TOKEN_PERSIST_CHAN_SIZE"} {
		assert.ErrorContains(t, err, want)
	}

	_, err = loadConfig(envMap(map[string]string{
		"TOKEN_DEPLOYER":       deployerHex,
		"TOKEN_ADDRESS":        "0x0000000000000000000000000000000000000042",
		"TOKEN_MARKET_ADDRESS": "0x0000000000000000000000000000000000000042",
	}))
	assert.ErrorContains(t, err, "must differ")
}
