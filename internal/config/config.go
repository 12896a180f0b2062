package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scobru/baluni-sub001/internal/types"
)

// Config holds the full application configuration, loaded once at startup and
// passed explicitly to every component. No field is mutated after Load.
type Config struct {
	// Account is the address whose portfolio is rebalanced.
	Account string

	// ReferenceSymbol names the stablecoin used as valuation unit and
	// settlement currency. Must appear in Assets.
	ReferenceSymbol string

	// Assets is the portfolio universe, including the reference asset.
	Assets []types.Asset

	// RPCEndpoint is the JSON-RPC node for balance and vault reads.
	RPCEndpoint string
	// PriceAPIURL is the base URL of the price/history API.
	PriceAPIURL string
	// RelayerURL is the base URL of the transaction relayer.
	RelayerURL string

	// Schedule is the cron expression driving cycles, e.g. "@every 10m".
	Schedule string
	// RunOnce runs a single cycle and exits instead of scheduling.
	RunOnce bool

	// ConfirmTimeout bounds confirmation polling per transaction.
	ConfirmTimeout time.Duration
	// ValuationConcurrency bounds parallel per-asset reads during valuation.
	ValuationConcurrency int

	WebPort string
}

// Load reads configuration from environment variables. Every variable without
// a stated default is required; missing or malformed values fail startup.
func Load() (Config, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	var cfg Config
	var err error

	if cfg.Account, err = getEnv("REBALANCER_ACCOUNT"); err != nil {
		return Config{}, err
	}
	if cfg.ReferenceSymbol, err = getEnv("REFERENCE_SYMBOL"); err != nil {
		return Config{}, err
	}
	if cfg.RPCEndpoint, err = getEnv("RPC_ENDPOINT"); err != nil {
		return Config{}, err
	}
	if cfg.PriceAPIURL, err = getEnv("PRICE_API_URL"); err != nil {
		return Config{}, err
	}
	if cfg.RelayerURL, err = getEnv("RELAYER_URL"); err != nil {
		return Config{}, err
	}

	assetsJSON, err := getEnv("PORTFOLIO_ASSETS")
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal([]byte(assetsJSON), &cfg.Assets); err != nil {
		return Config{}, errors.Join(types.ErrConfiguration,
			fmt.Errorf("PORTFOLIO_ASSETS is not a valid asset list: %w", err))
	}

	cfg.Schedule = getEnvOr("CYCLE_SCHEDULE", "@every 10m")
	cfg.RunOnce = getEnvOr("RUN_ONCE", "false") == "true"
	cfg.WebPort = getEnvOr("WEB_PORT", "8080")

	confirmSeconds, err := getEnvAsIntOr("CONFIRM_TIMEOUT_SECONDS", 180)
	if err != nil {
		return Config{}, err
	}
	cfg.ConfirmTimeout = time.Duration(confirmSeconds) * time.Second

	if cfg.ValuationConcurrency, err = getEnvAsIntOr("VALUATION_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	log.Debug().
		Str("account", cfg.Account).
		Str("reference", cfg.ReferenceSymbol).
		Int("assets", len(cfg.Assets)).
		Str("schedule", cfg.Schedule).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// Validate checks the structural invariants of the configuration.
func (c Config) Validate() error {
	if len(c.Assets) == 0 {
		return errors.Join(types.ErrConfiguration, errors.New("asset list is empty"))
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for i, a := range c.Assets {
		if a.Symbol == "" || a.Address == "" {
			return errors.Join(types.ErrConfiguration,
				fmt.Errorf("asset %d is missing symbol or address", i))
		}
		if a.Decimals < 0 || a.Decimals > types.ReferenceDecimals {
			return errors.Join(types.ErrConfiguration,
				fmt.Errorf("asset %s has invalid decimals: %d", a.Symbol, a.Decimals))
		}
		if _, dup := seen[a.Symbol]; dup {
			return errors.Join(types.ErrConfiguration,
				fmt.Errorf("%w: %s", types.ErrDuplicateAsset, a.Symbol))
		}
		seen[a.Symbol] = struct{}{}
	}
	if _, ok := seen[c.ReferenceSymbol]; !ok {
		return errors.Join(types.ErrConfiguration,
			fmt.Errorf("reference asset %s is not in the asset list", c.ReferenceSymbol))
	}
	if c.ConfirmTimeout <= 0 {
		return errors.Join(types.ErrConfiguration, errors.New("confirm timeout must be positive"))
	}
	if c.ValuationConcurrency < 1 {
		return errors.Join(types.ErrConfiguration, errors.New("valuation concurrency must be at least 1"))
	}
	return nil
}

// ReferenceAsset returns the configured reference asset.
func (c Config) ReferenceAsset() (types.Asset, error) {
	for _, a := range c.Assets {
		if a.Symbol == c.ReferenceSymbol {
			return a, nil
		}
	}
	return types.Asset{}, errors.Join(types.ErrConfiguration,
		fmt.Errorf("reference asset %s not found", c.ReferenceSymbol))
}

// AssetMap returns the assets keyed by symbol.
func (c Config) AssetMap() map[string]types.Asset {
	m := make(map[string]types.Asset, len(c.Assets))
	for _, a := range c.Assets {
		m[a.Symbol] = a
	}
	return m
}

func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsIntOr(key string, fallback int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
