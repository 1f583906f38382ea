package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ErbaZZ/wusd-arb/utils"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Network   NetworkConfig   `json:"network" yaml:"network"`
	Contracts ContractsConfig `json:"contracts" yaml:"contracts"`
	Routes    RoutesConfig    `json:"routes" yaml:"routes"`
	Strategy  StrategyConfig  `json:"strategy" yaml:"strategy"`
	Gas       GasConfig       `json:"gas" yaml:"gas"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`

	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	RPCRateLimit   RateLimitConfig      `json:"rpc_rate_limit" yaml:"rpc_rate_limit"`

	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	Journal JournalConfig `json:"journal" yaml:"journal"`

	// Feature flags
	PrometheusEnabled  bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint" yaml:"prometheus_endpoint"`
	ClaimOnly          bool   `json:"claim_only" yaml:"claim_only"`

	// Secrets only come from the environment
	PrivateKey string `json:"-" yaml:"-"`
}

type NetworkConfig struct {
	RPCEndpoint         string        `json:"rpc_endpoint" yaml:"rpc_endpoint"`
	ChainID             int64         `json:"chain_id" yaml:"chain_id"`
	ReconnectBackoff    time.Duration `json:"reconnect_backoff" yaml:"reconnect_backoff"`
	SeenHeadsCacheSize  int           `json:"seen_heads_cache_size" yaml:"seen_heads_cache_size"`
	SnapshotCallTimeout time.Duration `json:"snapshot_call_timeout" yaml:"snapshot_call_timeout"`
}

// ContractsConfig holds hex addresses of every contract the bot touches
type ContractsConfig struct {
	InputToken        string `json:"input_token" yaml:"input_token"`
	IntermediateToken string `json:"intermediate_token" yaml:"intermediate_token"`
	RewardToken       string `json:"reward_token" yaml:"reward_token"`
	RewardHolder      string `json:"reward_holder" yaml:"reward_holder"`
	ArbContract       string `json:"arb_contract" yaml:"arb_contract"`

	// Used to derive pair addresses of hops that leave Pair empty
	Factory      string `json:"factory" yaml:"factory"`
	InitCodeHash string `json:"init_code_hash" yaml:"init_code_hash"`
}

type HopConfig struct {
	Pair     string `json:"pair" yaml:"pair"`
	TokenIn  string `json:"token_in" yaml:"token_in"`
	TokenOut string `json:"token_out" yaml:"token_out"`
}

type RoutesConfig struct {
	// Mint swaps the input asset into the intermediate asset
	Mint []HopConfig `json:"mint" yaml:"mint"`
	// Reward sells the reward asset back into the input asset
	Reward []HopConfig `json:"reward" yaml:"reward"`
}

type StrategyConfig struct {
	FeeBps           uint64 `json:"fee_bps" yaml:"fee_bps"`
	BonusNumerator   string `json:"bonus_numerator" yaml:"bonus_numerator"`
	BonusDenominator string `json:"bonus_denominator" yaml:"bonus_denominator"`
	SlippageBps      uint64 `json:"slippage_bps" yaml:"slippage_bps"`

	// Human-readable amounts in the input asset
	ConvergenceThreshold string `json:"convergence_threshold" yaml:"convergence_threshold"`
	MinProfit            string `json:"min_profit" yaml:"min_profit"`

	AssetSymbol    string `json:"asset_symbol" yaml:"asset_symbol"`
	AssetDecimals  int32  `json:"asset_decimals" yaml:"asset_decimals"`
	QuoteCacheSize int    `json:"quote_cache_size" yaml:"quote_cache_size"`
}

type GasConfig struct {
	GasLimit uint64 `json:"gas_limit" yaml:"gas_limit"`
	// ClaimGasPrice is the fixed price in wei used by the one-shot claim
	ClaimGasPrice string `json:"claim_gas_price" yaml:"claim_gas_price"`
	// PriceBump in wei is added to the suggested gas price
	PriceBump string `json:"price_bump" yaml:"price_bump"`
}

type ExecutionConfig struct {
	Preflight      bool          `json:"preflight" yaml:"preflight"`
	ConfirmTimeout time.Duration `json:"confirm_timeout" yaml:"confirm_timeout"`
}

type CircuitBreakerConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	ErrorThreshold int           `json:"error_threshold" yaml:"error_threshold"`
	ResetInterval  time.Duration `json:"reset_interval" yaml:"reset_interval"`
	CooldownPeriod time.Duration `json:"cooldown_period" yaml:"cooldown_period"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout" yaml:"wait_timeout"`
}

type NotifyConfig struct {
	LineToken    string        `json:"-" yaml:"-"`
	LineEndpoint string        `json:"line_endpoint" yaml:"line_endpoint"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

type JournalConfig struct {
	// Path of the sqlite database; empty disables the journal
	Path string `json:"path" yaml:"path"`
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if c.Network.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}
	if c.Network.ChainID <= 0 {
		errors = append(errors, "chain_id must be positive")
	}
	if c.Network.SeenHeadsCacheSize <= 0 {
		errors = append(errors, "seen_heads_cache_size must be positive")
	}

	if err := c.Contracts.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("contracts error: %v", err))
	}
	if err := c.Routes.Validate(&c.Contracts); err != nil {
		errors = append(errors, fmt.Sprintf("routes error: %v", err))
	}
	if err := c.Strategy.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("strategy error: %v", err))
	}
	if err := c.Gas.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("gas error: %v", err))
	}
	if c.Execution.ConfirmTimeout <= 0 {
		errors = append(errors, "confirm_timeout must be positive")
	}

	if err := c.CircuitBreaker.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("circuit breaker error: %v", err))
	}
	if err := c.RPCRateLimit.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("RPC rate limit error: %v", err))
	}

	if c.PrometheusEnabled && c.PrometheusEndpoint == "" {
		errors = append(errors, "prometheus_endpoint must be specified when prometheus is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (c *ContractsConfig) Validate() error {
	required := []struct{ name, value string }{
		{"input_token", c.InputToken},
		{"intermediate_token", c.IntermediateToken},
		{"reward_token", c.RewardToken},
		{"reward_holder", c.RewardHolder},
		{"arb_contract", c.ArbContract},
	}
	for _, r := range required {
		if !common.IsHexAddress(r.value) {
			return fmt.Errorf("%s must be a hex address", r.name)
		}
	}

	if c.Factory != "" && !common.IsHexAddress(c.Factory) {
		return fmt.Errorf("factory must be a hex address")
	}
	if c.InitCodeHash != "" && len(common.FromHex(c.InitCodeHash)) != common.HashLength {
		return fmt.Errorf("init_code_hash must be 32 bytes")
	}

	return nil
}

// CanDerivePairs reports whether factory and init code hash are both set
func (c *ContractsConfig) CanDerivePairs() bool {
	return c.Factory != "" && c.InitCodeHash != ""
}

func (r *RoutesConfig) Validate(contracts *ContractsConfig) error {
	if len(r.Mint) == 0 {
		return fmt.Errorf("mint route must have at least one hop")
	}
	if err := validateHops("mint", r.Mint, contracts); err != nil {
		return err
	}
	if err := validateHops("reward", r.Reward, contracts); err != nil {
		return err
	}

	if !strings.EqualFold(r.Mint[0].TokenIn, contracts.InputToken) {
		return fmt.Errorf("mint route must start at the input token")
	}
	if !strings.EqualFold(r.Mint[len(r.Mint)-1].TokenOut, contracts.IntermediateToken) {
		return fmt.Errorf("mint route must end at the intermediate token")
	}
	if len(r.Reward) > 0 {
		if !strings.EqualFold(r.Reward[0].TokenIn, contracts.RewardToken) {
			return fmt.Errorf("reward route must start at the reward token")
		}
		if !strings.EqualFold(r.Reward[len(r.Reward)-1].TokenOut, contracts.InputToken) {
			return fmt.Errorf("reward route must end at the input token")
		}
	} else if !strings.EqualFold(contracts.RewardToken, contracts.InputToken) {
		return fmt.Errorf("reward route may only be empty when the reward token is the input token")
	}

	return nil
}

func validateHops(route string, hops []HopConfig, contracts *ContractsConfig) error {
	for i, hop := range hops {
		if !common.IsHexAddress(hop.TokenIn) || !common.IsHexAddress(hop.TokenOut) {
			return fmt.Errorf("%s hop %d: token_in and token_out must be hex addresses", route, i)
		}
		if hop.Pair == "" {
			if !contracts.CanDerivePairs() {
				return fmt.Errorf("%s hop %d: pair is empty and factory/init_code_hash are not set", route, i)
			}
		} else if !common.IsHexAddress(hop.Pair) {
			return fmt.Errorf("%s hop %d: pair must be a hex address", route, i)
		}
		if i > 0 && !strings.EqualFold(hops[i-1].TokenOut, hop.TokenIn) {
			return fmt.Errorf("%s hop %d: token_in does not match previous token_out", route, i)
		}
	}
	return nil
}

func (s *StrategyConfig) Validate() error {
	if s.FeeBps == 0 || s.FeeBps > 10000 {
		return fmt.Errorf("fee_bps must be in (0, 10000]")
	}
	if s.SlippageBps == 0 || s.SlippageBps > 10000 {
		return fmt.Errorf("slippage_bps must be in (0, 10000]")
	}
	if s.AssetDecimals < 0 || s.AssetDecimals > 36 {
		return fmt.Errorf("asset_decimals must be in [0, 36]")
	}
	if s.QuoteCacheSize <= 0 {
		return fmt.Errorf("quote_cache_size must be positive")
	}
	if _, _, err := s.BonusRatio(); err != nil {
		return err
	}
	if _, err := s.ThresholdUnits(); err != nil {
		return err
	}
	if _, err := s.MinProfitUnits(); err != nil {
		return err
	}
	return nil
}

// BonusRatio returns the fixed-rate redemption numerator and denominator
func (s *StrategyConfig) BonusRatio() (*big.Int, *big.Int, error) {
	num, ok := new(big.Int).SetString(s.BonusNumerator, 10)
	if !ok || num.Sign() < 0 {
		return nil, nil, fmt.Errorf("bonus_numerator must be a non-negative integer")
	}
	den, ok := new(big.Int).SetString(s.BonusDenominator, 10)
	if !ok || den.Sign() <= 0 {
		return nil, nil, fmt.Errorf("bonus_denominator must be a positive integer")
	}
	return num, den, nil
}

// ThresholdUnits returns the convergence threshold in input base units
func (s *StrategyConfig) ThresholdUnits() (*big.Int, error) {
	v, err := utils.ParseUnits(s.ConvergenceThreshold, s.AssetDecimals)
	if err != nil {
		return nil, fmt.Errorf("convergence_threshold: %w", err)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("convergence_threshold must be non-negative")
	}
	return v, nil
}

// MinProfitUnits returns the minimum profit in input base units
func (s *StrategyConfig) MinProfitUnits() (*big.Int, error) {
	v, err := utils.ParseUnits(s.MinProfit, s.AssetDecimals)
	if err != nil {
		return nil, fmt.Errorf("min_profit: %w", err)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("min_profit must be non-negative")
	}
	return v, nil
}

func (g *GasConfig) Validate() error {
	if g.GasLimit == 0 {
		return fmt.Errorf("gas_limit must be positive")
	}
	if _, err := g.ClaimGasPriceWei(); err != nil {
		return err
	}
	if _, err := g.PriceBumpWei(); err != nil {
		return err
	}
	return nil
}

func (g *GasConfig) ClaimGasPriceWei() (*big.Int, error) {
	return parseWei("claim_gas_price", g.ClaimGasPrice)
}

func (g *GasConfig) PriceBumpWei() (*big.Int, error) {
	return parseWei("price_bump", g.PriceBump)
}

func parseWei(name, value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer amount of wei", name)
	}
	return v, nil
}

func (c *CircuitBreakerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ErrorThreshold <= 0 {
		return fmt.Errorf("error threshold must be positive")
	}
	if c.ResetInterval <= 0 {
		return fmt.Errorf("reset interval must be positive")
	}
	if c.CooldownPeriod <= 0 {
		return fmt.Errorf("cooldown period must be positive")
	}

	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}

	return nil
}

// LoadConfig reads cfgFile over the defaults, applies environment overrides
// and validates the result. Files ending in .yaml or .yml are read as YAML,
// anything else as JSON.
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".wusd-arb.json")
	}

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(cfgFile)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

func SaveConfig(cfg *Config, cfgFile string) error {
	file, err := os.Create(cfgFile)
	if err != nil {
		return err
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(cfgFile)); ext == ".yaml" || ext == ".yml" {
		encoder := yaml.NewEncoder(file)
		if err := encoder.Encode(cfg); err != nil {
			return err
		}
		return encoder.Close()
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	return encoder.Encode(cfg)
}

// DefaultConfig returns the settings of the Polygon USDC/WUSD deployment.
// Contract addresses and routes have no defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			RPCEndpoint:         "ws://localhost:8546",
			ChainID:             137,
			ReconnectBackoff:    5 * time.Second,
			SeenHeadsCacheSize:  256,
			SnapshotCallTimeout: 10 * time.Second,
		},
		Strategy: StrategyConfig{
			FeeBps:               9980,
			BonusNumerator:       "895",
			BonusDenominator:     "1000000000000000",
			SlippageBps:          9900,
			ConvergenceThreshold: "0.5",
			MinProfit:            "0.5",
			AssetSymbol:          "USDC",
			AssetDecimals:        6,
			QuoteCacheSize:       128,
		},
		Gas: GasConfig{
			GasLimit:  700000,
			PriceBump: "2",
		},
		Execution: ExecutionConfig{
			Preflight:      true,
			ConfirmTimeout: 2 * time.Minute,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        true,
			ErrorThreshold: 5,
			ResetInterval:  time.Minute,
			CooldownPeriod: 30 * time.Second,
		},
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         20,
			WaitTimeout:       5 * time.Second,
		},
		Notify: NotifyConfig{
			LineEndpoint: "https://notify-api.line.me/api/notify",
			Timeout:      10 * time.Second,
		},
		PrometheusEndpoint: ":9100",
	}
}
