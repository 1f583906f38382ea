package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usdc     = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	wusd     = "0x00000000000000000000000000000000000000a1"
	wexpoly  = "0x00000000000000000000000000000000000000a2"
	master   = "0x00000000000000000000000000000000000000a3"
	arb      = "0x00000000000000000000000000000000000000a4"
	mintPair = "0x00000000000000000000000000000000000000b1"
	wexPair  = "0x00000000000000000000000000000000000000b2"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvRPCURL, EnvPrivateKey, EnvGasBase, EnvGasLimit, EnvLineToken, EnvClaim} {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Contracts = ContractsConfig{
		InputToken:        usdc,
		IntermediateToken: wusd,
		RewardToken:       wexpoly,
		RewardHolder:      master,
		ArbContract:       arb,
	}
	cfg.Routes = RoutesConfig{
		Mint:   []HopConfig{{Pair: mintPair, TokenIn: usdc, TokenOut: wusd}},
		Reward: []HopConfig{{Pair: wexPair, TokenIn: wexpoly, TokenOut: usdc}},
	}
	return cfg
}

func TestDefaultConfigNeedsContracts(t *testing.T) {
	err := DefaultConfig().ValidateConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input_token must be a hex address")
	assert.Contains(t, err.Error(), "mint route must have at least one hop")
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.ValidateConfig())

	threshold, err := cfg.Strategy.ThresholdUnits()
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), threshold.Int64())

	minProfit, err := cfg.Strategy.MinProfitUnits()
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), minProfit.Int64())

	num, den, err := cfg.Strategy.BonusRatio()
	require.NoError(t, err)
	assert.Equal(t, "895", num.String())
	assert.Equal(t, "1000000000000000", den.String())

	bump, err := cfg.Gas.PriceBumpWei()
	require.NoError(t, err)
	assert.Equal(t, int64(2), bump.Int64())
}

func TestValidateConfigCollectsErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		substr string
	}{
		{"fee out of range", func(c *Config) { c.Strategy.FeeBps = 10001 }, "fee_bps"},
		{"bad threshold", func(c *Config) { c.Strategy.ConvergenceThreshold = "abc" }, "convergence_threshold"},
		{"too precise min profit", func(c *Config) { c.Strategy.MinProfit = "0.0000001" }, "min_profit"},
		{"zero bonus denominator", func(c *Config) { c.Strategy.BonusDenominator = "0" }, "bonus_denominator"},
		{"bad gas price", func(c *Config) { c.Gas.ClaimGasPrice = "-1" }, "claim_gas_price"},
		{"zero gas limit", func(c *Config) { c.Gas.GasLimit = 0 }, "gas_limit"},
		{"mint route wrong start", func(c *Config) { c.Routes.Mint[0].TokenIn = wexpoly }, "start at the input token"},
		{"broken hop chain", func(c *Config) {
			c.Routes.Mint = append(c.Routes.Mint, HopConfig{Pair: mintPair, TokenIn: usdc, TokenOut: wusd})
		}, "does not match previous token_out"},
		{"pair missing without factory", func(c *Config) { c.Routes.Reward[0].Pair = "" }, "factory/init_code_hash"},
		{"empty reward route", func(c *Config) { c.Routes.Reward = nil }, "reward route may only be empty"},
		{"breaker threshold", func(c *Config) { c.CircuitBreaker.ErrorThreshold = 0 }, "circuit breaker error"},
		{"rate limit", func(c *Config) { c.RPCRateLimit.RequestsPerSecond = 0 }, "RPC rate limit error"},
		{"prometheus endpoint", func(c *Config) {
			c.PrometheusEnabled = true
			c.PrometheusEndpoint = ""
		}, "prometheus_endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestDerivedPairsNeedFactory(t *testing.T) {
	cfg := validConfig()
	cfg.Routes.Reward[0].Pair = ""
	cfg.Contracts.Factory = "0x5757371414417b8C6CAad45bAeF941aBc7d3Ab32"
	cfg.Contracts.InitCodeHash = "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"
	assert.NoError(t, cfg.ValidateConfig())

	cfg.Contracts.InitCodeHash = "0x1234"
	assert.Error(t, cfg.ValidateConfig())
}

func TestLoadConfigJSON(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveConfig(validConfig(), path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, usdc, cfg.Contracts.InputToken)
	assert.Equal(t, uint64(9980), cfg.Strategy.FeeBps)
	assert.Equal(t, 2*time.Minute, cfg.Execution.ConfirmTimeout)
	assert.Empty(t, cfg.PrivateKey)
}

func TestLoadConfigYAML(t *testing.T) {
	clearEnv(t)

	yamlConfig := `
network:
  rpc_endpoint: wss://polygon.example/ws
  chain_id: 137
  reconnect_backoff: 3s
contracts:
  input_token: "` + usdc + `"
  intermediate_token: "` + wusd + `"
  reward_token: "` + wexpoly + `"
  reward_holder: "` + master + `"
  arb_contract: "` + arb + `"
routes:
  mint:
    - pair: "` + mintPair + `"
      token_in: "` + usdc + `"
      token_out: "` + wusd + `"
  reward:
    - pair: "` + wexPair + `"
      token_in: "` + wexpoly + `"
      token_out: "` + usdc + `"
strategy:
  min_profit: "1.5"
execution:
  confirm_timeout: 90s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://polygon.example/ws", cfg.Network.RPCEndpoint)
	assert.Equal(t, 3*time.Second, cfg.Network.ReconnectBackoff)
	assert.Equal(t, 90*time.Second, cfg.Execution.ConfirmTimeout)
	assert.Equal(t, "1.5", cfg.Strategy.MinProfit)
	// untouched sections keep their defaults
	assert.Equal(t, uint64(9980), cfg.Strategy.FeeBps)
	assert.Equal(t, 256, cfg.Network.SeenHeadsCacheSize)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRPCURL, "wss://override.example")
	t.Setenv(EnvPrivateKey, "0xabcdef")
	t.Setenv(EnvGasBase, "30000000000")
	t.Setenv(EnvGasLimit, "900000")
	t.Setenv(EnvLineToken, "line-token")
	t.Setenv(EnvClaim, "true")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveConfig(validConfig(), path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://override.example", cfg.Network.RPCEndpoint)
	assert.Equal(t, "abcdef", cfg.PrivateKey)
	assert.Equal(t, "30000000000", cfg.Gas.ClaimGasPrice)
	assert.Equal(t, uint64(900000), cfg.Gas.GasLimit)
	assert.Equal(t, "line-token", cfg.Notify.LineToken)
	assert.True(t, cfg.ClaimOnly)
}

func TestLoadConfigBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvGasLimit, "lots")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveConfig(validConfig(), path))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("WUSD_ARB_TEST_VALUE=hello\n"), 0o600))
	t.Setenv("WUSD_ARB_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("WUSD_ARB_TEST_VALUE"))

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "hello", GetEnvWithDefault("WUSD_ARB_TEST_VALUE", "default"))
	assert.Equal(t, "default", GetEnvWithDefault("WUSD_ARB_TEST_UNSET", "default"))

	_, err := GetRequiredEnv("WUSD_ARB_TEST_UNSET")
	assert.Error(t, err)

	assert.Error(t, LoadEnv(filepath.Join(dir, "missing.env")))
}
