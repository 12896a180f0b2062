package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scobru/baluni-sub001/internal/types"
)

const assetsJSON = `[
	{"symbol":"USDC","address":"0xaaa0000000000000000000000000000000000001","decimals":6},
	{"symbol":"WETH","address":"0xaaa0000000000000000000000000000000000002","decimals":18,
	 "vault":"0xbbb0000000000000000000000000000000000002"}
]`

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REBALANCER_ACCOUNT", "0x1111111111111111111111111111111111111111")
	t.Setenv("REFERENCE_SYMBOL", "USDC")
	t.Setenv("RPC_ENDPOINT", "http://localhost:8545")
	t.Setenv("PRICE_API_URL", "http://localhost:9000")
	t.Setenv("RELAYER_URL", "http://localhost:9100")
	t.Setenv("PORTFOLIO_ASSETS", assetsJSON)
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "@every 10m", cfg.Schedule)
	assert.False(t, cfg.RunOnce)
	assert.Equal(t, "8080", cfg.WebPort)
	assert.Equal(t, 180*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 4, cfg.ValuationConcurrency)

	require.Len(t, cfg.Assets, 2)
	assert.Equal(t, "WETH", cfg.Assets[1].Symbol)
	assert.Equal(t, 18, cfg.Assets[1].Decimals)
	assert.Equal(t, "0xbbb0000000000000000000000000000000000002", cfg.Assets[1].Vault)
	assert.True(t, cfg.Assets[1].HasVault())
}

func TestLoadHonoursOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CYCLE_SCHEDULE", "@every 1h")
	t.Setenv("RUN_ONCE", "true")
	t.Setenv("WEB_PORT", "9999")
	t.Setenv("CONFIRM_TIMEOUT_SECONDS", "30")
	t.Setenv("VALUATION_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "@every 1h", cfg.Schedule)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, "9999", cfg.WebPort)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 8, cfg.ValuationConcurrency)
}

func TestLoadRequiresEveryMandatoryVariable(t *testing.T) {
	for _, missing := range []string{
		"REBALANCER_ACCOUNT", "REFERENCE_SYMBOL", "RPC_ENDPOINT",
		"PRICE_API_URL", "RELAYER_URL", "PORTFOLIO_ASSETS",
	} {
		t.Run(missing, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(missing, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), missing)
		})
	}
}

func TestLoadRejectsMalformedAssetList(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORTFOLIO_ASSETS", "not json")

	_, err := Load()
	require.ErrorIs(t, err, types.ErrConfiguration)
}

func TestLoadRejectsBadInteger(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIRM_TIMEOUT_SECONDS", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Account:         "0x1111111111111111111111111111111111111111",
			ReferenceSymbol: "USDC",
			Assets: []types.Asset{
				{Symbol: "USDC", Address: "0xa1", Decimals: 6},
				{Symbol: "WETH", Address: "0xa2", Decimals: 18},
			},
			ConfirmTimeout:       time.Minute,
			ValuationConcurrency: 2,
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty asset list", func(c *Config) { c.Assets = nil }},
		{"missing symbol", func(c *Config) { c.Assets[1].Symbol = "" }},
		{"missing address", func(c *Config) { c.Assets[1].Address = "" }},
		{"decimals too large", func(c *Config) { c.Assets[1].Decimals = 19 }},
		{"negative decimals", func(c *Config) { c.Assets[1].Decimals = -1 }},
		{"duplicate symbol", func(c *Config) { c.Assets[1].Symbol = "USDC" }},
		{"reference not listed", func(c *Config) { c.ReferenceSymbol = "DAI" }},
		{"zero confirm timeout", func(c *Config) { c.ConfirmTimeout = 0 }},
		{"zero concurrency", func(c *Config) { c.ValuationConcurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), types.ErrConfiguration)
		})
	}
}

func TestReferenceAssetAndAssetMap(t *testing.T) {
	cfg := Config{
		ReferenceSymbol: "USDC",
		Assets: []types.Asset{
			{Symbol: "USDC", Address: "0xa1", Decimals: 6},
			{Symbol: "WETH", Address: "0xa2", Decimals: 18},
		},
	}

	ref, err := cfg.ReferenceAsset()
	require.NoError(t, err)
	assert.Equal(t, "USDC", ref.Symbol)

	m := cfg.AssetMap()
	require.Len(t, m, 2)
	assert.Equal(t, 18, m["WETH"].Decimals)

	cfg.ReferenceSymbol = "DAI"
	_, err = cfg.ReferenceAsset()
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
