// Package config loads the bot's immutable runtime configuration from the
// environment (and an optional .env file).
package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// AmountPrecision is the number of decimal places random amounts are drawn with.
const AmountPrecision = 6

// AmountRange is an inclusive range of human-denominated amounts.
type AmountRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Units returns the range in 10^-AmountPrecision units, rounding Min up and Max down
// so every drawn value lies inside the configured bounds.
func (r AmountRange) Units() (lo, hi int64) {
	lo = r.Min.Shift(AmountPrecision).Ceil().IntPart()
	hi = r.Max.Shift(AmountPrecision).Floor().IntPart()
	return lo, hi
}

// DelayRange is an inclusive range of pacing delays.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// LiquidityPair is one configured add-liquidity target.
type LiquidityPair struct {
	TokenA string
	TokenB string
	Amount decimal.Decimal
}

// Contracts holds the fixed contract addresses the catalog calls.
type Contracts struct {
	Quoter          common.Address
	Router          common.Address
	PositionManager common.Address
}

// RedisConfig configures the optional result sink.
type RedisConfig struct {
	Enabled   bool
	Address   string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	UseTLS    bool
	TTL       time.Duration
}

// Config is the immutable configuration passed to the orchestrator and catalog.
type Config struct {
	RPCURL        string
	ChainID       *big.Int
	ExplorerTxURL string
	RPCJWTSecret  string

	AccountsFile string
	ProxiesFile  string
	JournalDir   string

	NativeSymbol string
	WrappedAsset string
	Assets       []domain.Asset
	SwapTargets  []string
	Contracts    Contracts
	PoolFee      uint32
	SlippageBps  int64

	SwapAmount     AmountRange
	WrapAmount     AmountRange
	LiquidityPairs []LiquidityPair
	StepDelay      time.Duration
	RepeatDelay    time.Duration
	SwapDelay      DelayRange
	LiquidityDelay DelayRange
	TxDeadline     time.Duration
	ConfirmTimeout time.Duration
	DefaultRepeats int

	LogLevel    string
	LogFormat   string
	MetricsAddr string
	Redis       RedisConfig
}

// Default returns the configuration for the UOMI Finney testnet.
func Default() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return Config{
		RPCURL:        "https://finney.uomi.ai/",
		ChainID:       big.NewInt(4386),
		ExplorerTxURL: "https://explorer.uomi.ai/tx/",

		AccountsFile: "accounts.txt",
		ProxiesFile:  "proxies.txt",
		JournalDir:   filepath.Join(homeDir, ".uomibot", "journal"),

		NativeSymbol: "UOMI",
		WrappedAsset: "WUOMI",
		Assets: []domain.Asset{
			{Symbol: "UOMI", Native: true},
			{Symbol: "WUOMI", Address: common.HexToAddress("0x5FCa78E132dF589c1c799F906dC867124a2567b2")},
			{Symbol: "USDC", Address: common.HexToAddress("0xAA9C4829415BCe70c434b7349b628017C59EC2b1")},
			{Symbol: "SYN", Address: common.HexToAddress("0x2922B2Ca5EB6b02fc5E1EBE57Fc1972eBB99F7e0")},
			{Symbol: "SIM", Address: common.HexToAddress("0x04B03e3859A25040E373cC9E8806d79596D70686")},
		},
		SwapTargets: []string{"USDC", "SYN", "SIM"},
		Contracts: Contracts{
			Quoter:          common.HexToAddress("0xCcB2B2F8395e4462d28703469F84c95293845332"),
			Router:          common.HexToAddress("0x197EEAd5Fe3DB82c4Cd55C5752Bc87AEdE11f230"),
			PositionManager: common.HexToAddress("0x906515Dc7c32ab887C8B8Dce6463ac3a7816Af38"),
		},
		PoolFee:     3000,
		SlippageBps: 50,

		SwapAmount: AmountRange{Min: decimal.RequireFromString("0.001"), Max: decimal.RequireFromString("0.003")},
		WrapAmount: AmountRange{Min: decimal.RequireFromString("0.001"), Max: decimal.RequireFromString("0.004")},
		LiquidityPairs: []LiquidityPair{
			{TokenA: "WUOMI", TokenB: "SIM", Amount: decimal.RequireFromString("0.001")},
			{TokenA: "WUOMI", TokenB: "SYN", Amount: decimal.RequireFromString("0.001")},
			{TokenA: "USDC", TokenB: "WUOMI", Amount: decimal.RequireFromString("0.001")},
			{TokenA: "USDC", TokenB: "SYN", Amount: decimal.RequireFromString("0.001")},
		},
		StepDelay:      time.Second,
		RepeatDelay:    time.Second,
		SwapDelay:      DelayRange{Min: 5 * time.Second, Max: 10 * time.Second},
		LiquidityDelay: DelayRange{Min: time.Second, Max: time.Second},
		TxDeadline:     10 * time.Minute,
		ConfirmTimeout: 5 * time.Minute,
		DefaultRepeats: 1,

		LogLevel:  "info",
		LogFormat: "text",
		Redis: RedisConfig{
			Address:   "localhost:6379",
			KeyPrefix: "uomibot:",
			TTL:       24 * time.Hour,
		},
	}
}

// Load reads .env (if present) and the process environment on top of Default.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	var err error

	cfg.RPCURL = getEnv("RPC_URL", cfg.RPCURL)
	cfg.ExplorerTxURL = getEnv("EXPLORER_TX_URL", cfg.ExplorerTxURL)
	cfg.RPCJWTSecret = os.Getenv("RPC_JWT_SECRET")
	cfg.AccountsFile = getEnv("ACCOUNTS_FILE", cfg.AccountsFile)
	cfg.ProxiesFile = getEnv("PROXIES_FILE", cfg.ProxiesFile)
	cfg.JournalDir = getEnv("JOURNAL_DIR", cfg.JournalDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return Config{}, fmt.Errorf("invalid CHAIN_ID: %s", v)
		}
		cfg.ChainID = id
	}

	if cfg.SlippageBps, err = getInt64("SLIPPAGE_BPS", cfg.SlippageBps); err != nil {
		return Config{}, err
	}

	if cfg.SwapAmount.Min, err = getDecimal("SWAP_AMOUNT_MIN", cfg.SwapAmount.Min); err != nil {
		return Config{}, err
	}
	if cfg.SwapAmount.Max, err = getDecimal("SWAP_AMOUNT_MAX", cfg.SwapAmount.Max); err != nil {
		return Config{}, err
	}
	if cfg.WrapAmount.Min, err = getDecimal("WRAP_AMOUNT_MIN", cfg.WrapAmount.Min); err != nil {
		return Config{}, err
	}
	if cfg.WrapAmount.Max, err = getDecimal("WRAP_AMOUNT_MAX", cfg.WrapAmount.Max); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("LIQUIDITY_AMOUNT"); v != "" {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LIQUIDITY_AMOUNT: %w", err)
		}
		for i := range cfg.LiquidityPairs {
			cfg.LiquidityPairs[i].Amount = amount
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"STEP_DELAY", &cfg.StepDelay},
		{"REPEAT_DELAY", &cfg.RepeatDelay},
		{"SWAP_DELAY_MIN", &cfg.SwapDelay.Min},
		{"SWAP_DELAY_MAX", &cfg.SwapDelay.Max},
		{"LIQUIDITY_DELAY_MIN", &cfg.LiquidityDelay.Min},
		{"LIQUIDITY_DELAY_MAX", &cfg.LiquidityDelay.Max},
		{"CONFIRMATION_TIMEOUT", &cfg.ConfirmTimeout},
		{"RESULT_TTL", &cfg.Redis.TTL},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, *d.dst); err != nil {
			return Config{}, err
		}
	}

	cfg.Redis.Enabled = getBool("REDIS_ENABLED", false)
	cfg.Redis.Address = getEnv("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Username = os.Getenv("REDIS_USERNAME")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix)
	cfg.Redis.UseTLS = getBool("REDIS_USE_TLS", false)
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints of a configuration.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return fmt.Errorf("chain ID must be positive")
	}
	for name, r := range map[string]AmountRange{"swap": c.SwapAmount, "wrap": c.WrapAmount} {
		if r.Min.Sign() <= 0 {
			return fmt.Errorf("%s amount minimum must be positive", name)
		}
		if lo, hi := r.Units(); lo > hi {
			return fmt.Errorf("%s amount range [%s, %s] is empty at %d decimals", name, r.Min, r.Max, AmountPrecision)
		}
	}
	for name, r := range map[string]DelayRange{"swap": c.SwapDelay, "liquidity": c.LiquidityDelay} {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("%s delay range [%s, %s] is invalid", name, r.Min, r.Max)
		}
	}
	if c.SlippageBps < 0 || c.SlippageBps >= 10000 {
		return fmt.Errorf("slippage must be in [0, 10000) bps, got %d", c.SlippageBps)
	}
	if c.StepDelay < 0 || c.RepeatDelay < 0 {
		return fmt.Errorf("pacing delays must not be negative")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirmation timeout must be positive")
	}
	for _, p := range c.LiquidityPairs {
		if _, ok := c.Asset(p.TokenA); !ok {
			return fmt.Errorf("liquidity pair references unknown asset %s", p.TokenA)
		}
		if _, ok := c.Asset(p.TokenB); !ok {
			return fmt.Errorf("liquidity pair references unknown asset %s", p.TokenB)
		}
	}
	for _, s := range append([]string{c.NativeSymbol, c.WrappedAsset}, c.SwapTargets...) {
		if _, ok := c.Asset(s); !ok {
			return fmt.Errorf("unknown asset %s", s)
		}
	}
	return nil
}

// Asset looks up a configured asset by symbol.
func (c Config) Asset(symbol string) (domain.Asset, bool) {
	for _, a := range c.Assets {
		if strings.EqualFold(a.Symbol, symbol) {
			return a, true
		}
	}
	return domain.Asset{}, false
}

// MustAsset is Asset for symbols already checked by Validate.
func (c Config) MustAsset(symbol string) domain.Asset {
	a, ok := c.Asset(symbol)
	if !ok {
		panic("config: unknown asset " + symbol)
	}
	return a
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// getDuration accepts Go durations ("1500ms") or plain seconds ("5").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
