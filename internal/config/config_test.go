package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.ChainID.Int64() != 4386 {
		t.Errorf("ChainID = %v, want 4386", cfg.ChainID)
	}
	if len(cfg.LiquidityPairs) != 4 {
		t.Errorf("len(LiquidityPairs) = %d, want 4", len(cfg.LiquidityPairs))
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "http://127.0.0.1:8545")
	t.Setenv("CHAIN_ID", "31337")
	t.Setenv("SWAP_AMOUNT_MIN", "0.01")
	t.Setenv("SWAP_AMOUNT_MAX", "0.02")
	t.Setenv("STEP_DELAY", "250ms")
	t.Setenv("SWAP_DELAY_MIN", "2")
	t.Setenv("SWAP_DELAY_MAX", "3")
	t.Setenv("LIQUIDITY_AMOUNT", "0.5")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RPCURL != "http://127.0.0.1:8545" {
		t.Errorf("RPCURL = %v, want http://127.0.0.1:8545", cfg.RPCURL)
	}
	if cfg.ChainID.Int64() != 31337 {
		t.Errorf("ChainID = %v, want 31337", cfg.ChainID)
	}
	if !cfg.SwapAmount.Min.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("SwapAmount.Min = %v, want 0.01", cfg.SwapAmount.Min)
	}
	if cfg.StepDelay != 250*time.Millisecond {
		t.Errorf("StepDelay = %v, want 250ms", cfg.StepDelay)
	}
	if cfg.SwapDelay.Min != 2*time.Second || cfg.SwapDelay.Max != 3*time.Second {
		t.Errorf("SwapDelay = %v, want [2s, 3s]", cfg.SwapDelay)
	}
	for _, p := range cfg.LiquidityPairs {
		if !p.Amount.Equal(decimal.RequireFromString("0.5")) {
			t.Errorf("%s/%s amount = %v, want 0.5", p.TokenA, p.TokenB, p.Amount)
		}
	}
	if !cfg.Redis.Enabled || cfg.Redis.DB != 4 {
		t.Errorf("Redis = %+v, want enabled db 4", cfg.Redis)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"chain id", "CHAIN_ID", "uomi"},
		{"amount", "SWAP_AMOUNT_MIN", "lots"},
		{"duration", "STEP_DELAY", "soon"},
		{"slippage", "SLIPPAGE_BPS", "10000"},
		{"redis db", "REDIS_DB", "zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s succeeded, want error", tt.key, tt.val)
			}
		})
	}
}

func TestValidate_EmptyAmountRange(t *testing.T) {
	cfg := Default()
	// Both bounds round into the same gap between two 6-decimal values.
	cfg.SwapAmount = AmountRange{
		Min: decimal.RequireFromString("0.0010001"),
		Max: decimal.RequireFromString("0.0010009"),
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() succeeded, want empty range error")
	}

	cfg.SwapAmount = AmountRange{
		Min: decimal.RequireFromString("0.003"),
		Max: decimal.RequireFromString("0.001"),
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() succeeded, want inverted range error")
	}
}

func TestAmountRange_Units(t *testing.T) {
	r := AmountRange{
		Min: decimal.RequireFromString("0.0010004"),
		Max: decimal.RequireFromString("0.0030009"),
	}
	lo, hi := r.Units()
	if lo != 1001 {
		t.Errorf("lo = %d, want 1001", lo)
	}
	if hi != 3000 {
		t.Errorf("hi = %d, want 3000", hi)
	}
}

func TestAsset_Lookup(t *testing.T) {
	cfg := Default()
	a, ok := cfg.Asset("wuomi")
	if !ok {
		t.Fatal("Asset(wuomi) not found")
	}
	if a.Symbol != "WUOMI" || a.Native {
		t.Errorf("Asset(wuomi) = %+v", a)
	}
	if _, ok := cfg.Asset("DOGE"); ok {
		t.Error("Asset(DOGE) found, want missing")
	}
	if !cfg.MustAsset("UOMI").Native {
		t.Error("UOMI should be native")
	}
}
