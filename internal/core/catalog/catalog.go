// Package catalog maps operation specs to the on-chain calls that perform them.
package catalog

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uomi-testnet/uomi-bot/internal/config"
	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

var gwei = big.NewInt(1_000_000_000)

// Gas limits and fee policies per call type.
var (
	SwapGas = domain.GasPolicy{
		MarginNum: 12,
		MarginDen: 10,
		Priority:  big.NewInt(28_540_000_000),
	}
	WrapGas = domain.GasPolicy{
		FixedLimit:       42242,
		Priority:         new(big.Int).Mul(big.NewInt(2), gwei),
		UseLatestBaseFee: true,
	}
	UnwrapGas = domain.GasPolicy{
		FixedLimit:       50000,
		Priority:         new(big.Int).Mul(big.NewInt(2), gwei),
		UseLatestBaseFee: true,
	}
	ApproveGas = domain.GasPolicy{
		FixedLimit:   200000,
		Priority:     new(big.Int).Mul(big.NewInt(2), gwei),
		FixedBaseFee: new(big.Int).Mul(big.NewInt(50), gwei),
	}
	MintGas = domain.GasPolicy{
		FixedLimit:   500000,
		Priority:     new(big.Int).Mul(big.NewInt(2), gwei),
		FixedBaseFee: new(big.Int).Mul(big.NewInt(50), gwei),
	}
)

// Catalog builds the calls for each operation kind. It holds no per-run state.
type Catalog struct {
	cfg   config.Config
	chain domain.ChainClient
	now   func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithClock overrides the clock used for transaction deadlines.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

// New creates a Catalog reading balances and quotes from chain.
func New(cfg config.Config, chain domain.ChainClient, opts ...Option) *Catalog {
	c := &Catalog{
		cfg:   cfg,
		chain: chain,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithChain returns a copy of the catalog bound to a different chain client.
func (c *Catalog) WithChain(chain domain.ChainClient) *Catalog {
	cp := *c
	cp.chain = chain
	return &cp
}

// Chain returns the client the catalog is bound to.
func (c *Catalog) Chain() domain.ChainClient {
	return c.chain
}

// Plan checks preconditions for spec and returns the calls to submit, in order.
// A failed balance check returns a *domain.PreconditionError. A swap whose quote
// fails returns an error and no calls.
func (c *Catalog) Plan(ctx context.Context, spec domain.OperationSpec) ([]domain.Call, error) {
	switch spec.Kind {
	case domain.KindSwap:
		return c.planSwap(ctx, spec)
	case domain.KindWrap:
		return c.planWrap(ctx, spec)
	case domain.KindUnwrap:
		return c.planUnwrap(ctx, spec)
	case domain.KindAddLiquidity:
		return c.planAddLiquidity(ctx, spec)
	default:
		return nil, fmt.Errorf("unsupported operation kind: %v", spec.Kind)
	}
}

func (c *Catalog) planSwap(ctx context.Context, spec domain.OperationSpec) ([]domain.Call, error) {
	native := c.cfg.MustAsset(c.cfg.NativeSymbol)
	if _, err := c.requireBalance(ctx, spec.Account, native, spec.AmountA); err != nil {
		return nil, err
	}

	path := EncodePath(spec.TokenA.Address, c.cfg.PoolFee, spec.TokenB.Address)
	quoted, err := c.chain.Quote(ctx, path, spec.AmountA)
	if err != nil {
		return nil, fmt.Errorf("failed to get amount out min: %w", err)
	}
	minOut := ApplySlippage(quoted, c.cfg.SlippageBps)

	data, err := EncodeSwap(spec.AmountA, minOut, path, c.deadline())
	if err != nil {
		return nil, err
	}

	return []domain.Call{{
		Label: "swap " + spec.Label(),
		To:    c.cfg.Contracts.Router,
		Value: spec.AmountA,
		Data:  data,
		Gas:   SwapGas,
	}}, nil
}

func (c *Catalog) planWrap(ctx context.Context, spec domain.OperationSpec) ([]domain.Call, error) {
	native := c.cfg.MustAsset(c.cfg.NativeSymbol)
	if _, err := c.requireBalance(ctx, spec.Account, native, spec.AmountA); err != nil {
		return nil, err
	}

	data, err := EncodeDeposit()
	if err != nil {
		return nil, fmt.Errorf("failed to pack deposit call: %w", err)
	}

	return []domain.Call{{
		Label: "wrap",
		To:    c.cfg.MustAsset(c.cfg.WrappedAsset).Address,
		Value: spec.AmountA,
		Data:  data,
		Gas:   WrapGas,
	}}, nil
}

func (c *Catalog) planUnwrap(ctx context.Context, spec domain.OperationSpec) ([]domain.Call, error) {
	wrapped := c.cfg.MustAsset(c.cfg.WrappedAsset)
	if _, err := c.requireBalance(ctx, spec.Account, wrapped, spec.AmountA); err != nil {
		return nil, err
	}

	data, err := EncodeWithdraw(spec.AmountA)
	if err != nil {
		return nil, fmt.Errorf("failed to pack withdraw call: %w", err)
	}

	return []domain.Call{{
		Label: "unwrap",
		To:    wrapped.Address,
		Value: new(big.Int),
		Data:  data,
		Gas:   UnwrapGas,
	}}, nil
}

func (c *Catalog) planAddLiquidity(ctx context.Context, spec domain.OperationSpec) ([]domain.Call, error) {
	if spec.TokenA.Native || spec.TokenB.Native {
		return nil, &domain.PreconditionError{Reason: "liquidity pairs must be ERC-20 tokens"}
	}

	balA, err := c.chain.Balance(ctx, spec.Account.Address, spec.TokenA)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s balance: %w", spec.TokenA.Symbol, err)
	}
	balB, err := c.chain.Balance(ctx, spec.Account.Address, spec.TokenB)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s balance: %w", spec.TokenB.Symbol, err)
	}

	amountA := ToBaseUnits(spec.Amount, balA.Decimals)
	amountB := ToBaseUnits(spec.Amount, balB.Decimals)
	if balA.Amount.Cmp(amountA) < 0 {
		return nil, domain.InsufficientBalance(spec.TokenA.Symbol, FormatUnits(balA.Amount, balA.Decimals), spec.Amount.String())
	}
	if balB.Amount.Cmp(amountB) < 0 {
		return nil, domain.InsufficientBalance(spec.TokenB.Symbol, FormatUnits(balB.Amount, balB.Decimals), spec.Amount.String())
	}

	approveA, err := EncodeApprove(c.cfg.Contracts.PositionManager, amountA)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve call: %w", err)
	}
	approveB, err := EncodeApprove(c.cfg.Contracts.PositionManager, amountB)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve call: %w", err)
	}

	mint, err := c.mintCall(spec.Account.Address, spec.TokenA.Address, amountA, spec.TokenB.Address, amountB)
	if err != nil {
		return nil, err
	}
	mint.Label = "mint " + spec.Label()

	return []domain.Call{
		{Label: "approve " + spec.TokenA.Symbol, To: spec.TokenA.Address, Value: new(big.Int), Data: approveA, Gas: ApproveGas},
		{Label: "approve " + spec.TokenB.Symbol, To: spec.TokenB.Address, Value: new(big.Int), Data: approveB, Gas: ApproveGas},
		mint,
	}, nil
}

// mintCall builds the position-manager mint with the pair in canonical order.
func (c *Catalog) mintCall(recipient, tokenA common.Address, amountA *big.Int, tokenB common.Address, amountB *big.Int) (domain.Call, error) {
	token0, amount0, token1, amount1 := CanonicalPair(tokenA, amountA, tokenB, amountB)

	data, err := EncodeMint(MintParams{
		Token0:         token0,
		Token1:         token1,
		Fee:            big.NewInt(int64(c.cfg.PoolFee)),
		TickLower:      big.NewInt(minTick),
		TickUpper:      big.NewInt(maxTick),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     new(big.Int),
		Amount1Min:     new(big.Int),
		Recipient:      recipient,
		Deadline:       c.deadline(),
	})
	if err != nil {
		return domain.Call{}, fmt.Errorf("failed to pack mint call: %w", err)
	}

	return domain.Call{
		To:    c.cfg.Contracts.PositionManager,
		Value: new(big.Int),
		Data:  data,
		Gas:   MintGas,
	}, nil
}

// requireBalance fails with a precondition error when owner holds less than need.
func (c *Catalog) requireBalance(ctx context.Context, account domain.Account, asset domain.Asset, need *big.Int) (domain.Balance, error) {
	bal, err := c.chain.Balance(ctx, account.Address, asset)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("failed to check %s balance: %w", asset.Symbol, err)
	}
	if bal.Amount.Cmp(need) < 0 {
		return bal, domain.InsufficientBalance(asset.Symbol, FormatUnits(bal.Amount, bal.Decimals), FormatUnits(need, bal.Decimals))
	}
	return bal, nil
}

func (c *Catalog) deadline() *big.Int {
	return big.NewInt(c.now().Add(c.cfg.TxDeadline).Unix())
}

// ResolveGas turns a call's gas policy into concrete limits and fees.
func ResolveGas(ctx context.Context, chain domain.ChainClient, from common.Address, call domain.Call) (domain.GasParams, error) {
	p := call.Gas

	limit := p.FixedLimit
	if limit == 0 {
		estimated, err := chain.EstimateGas(ctx, from, call)
		if err != nil {
			return domain.GasParams{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
		num, den := p.MarginNum, p.MarginDen
		if num == 0 || den == 0 {
			num, den = 1, 1
		}
		limit = estimated * num / den
	}

	priority := new(big.Int)
	if p.Priority != nil {
		priority.Set(p.Priority)
	}

	base := new(big.Int)
	switch {
	case p.FixedBaseFee != nil:
		base.Set(p.FixedBaseFee)
	case p.UseLatestBaseFee:
		latest, err := chain.BaseFee(ctx)
		if err != nil {
			return domain.GasParams{}, fmt.Errorf("failed to get base fee: %w", err)
		}
		base.Set(latest)
	}

	return domain.GasParams{
		GasLimit:             limit,
		MaxFeePerGas:         new(big.Int).Add(base, priority),
		MaxPriorityFeePerGas: priority,
	}, nil
}
