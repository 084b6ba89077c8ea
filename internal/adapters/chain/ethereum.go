package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

var (
	tokenABI  = mustParseABI(`[{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`)
	quoterABI = mustParseABI(`[{"inputs":[{"name":"path","type":"bytes"},{"name":"amountIn","type":"uint256"}],"name":"quoteExactInput","outputs":[{"name":"amountOut","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}]`)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return parsed
}

// Backend is the subset of *ethclient.Client the EVM client needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EVMClient implements domain.ChainClient over a JSON-RPC backend.
type EVMClient struct {
	backend        Backend
	chainID        *big.Int
	quoter         common.Address
	confirmTimeout time.Duration
	pollInterval   time.Duration

	mu       sync.Mutex
	decimals map[common.Address]uint8
}

// EVMOption configures an EVMClient.
type EVMOption func(*EVMClient)

// WithPollInterval sets how often receipts are polled while waiting.
func WithPollInterval(d time.Duration) EVMOption {
	return func(c *EVMClient) {
		c.pollInterval = d
	}
}

// WithConfirmTimeout bounds WaitForConfirmation.
func WithConfirmTimeout(d time.Duration) EVMOption {
	return func(c *EVMClient) {
		c.confirmTimeout = d
	}
}

// NewEVMClient creates a client signing for chainID and quoting through quoter.
func NewEVMClient(backend Backend, chainID *big.Int, quoter common.Address, opts ...EVMOption) *EVMClient {
	c := &EVMClient{
		backend:        backend,
		chainID:        new(big.Int).Set(chainID),
		quoter:         quoter,
		confirmTimeout: 5 * time.Minute,
		pollInterval:   2 * time.Second,
		decimals:       make(map[common.Address]uint8),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainID implements domain.ChainClient by asking the node.
func (c *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, &domain.NetworkError{Op: "chain id", Err: err}
	}
	return id, nil
}

// Balance implements domain.ChainClient.
func (c *EVMClient) Balance(ctx context.Context, owner common.Address, asset domain.Asset) (domain.Balance, error) {
	if asset.Native {
		bal, err := c.backend.BalanceAt(ctx, owner, nil)
		if err != nil {
			return domain.Balance{}, &domain.NetworkError{Op: "balance", Err: err}
		}
		return domain.Balance{Amount: bal, Decimals: 18}, nil
	}

	out, err := c.call(ctx, asset.Address, tokenABI, "balanceOf", owner)
	if err != nil {
		return domain.Balance{}, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return domain.Balance{}, fmt.Errorf("unexpected balanceOf result %T", out[0])
	}

	decimals, err := c.tokenDecimals(ctx, asset.Address)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.Balance{Amount: bal, Decimals: decimals}, nil
}

func (c *EVMClient) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.Lock()
	d, ok := c.decimals[token]
	c.mu.Unlock()
	if ok {
		return d, nil
	}

	out, err := c.call(ctx, token, tokenABI, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok = out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals result %T", out[0])
	}

	c.mu.Lock()
	c.decimals[token] = d
	c.mu.Unlock()
	return d, nil
}

// Quote implements domain.ChainClient using the quoter's quoteExactInput.
func (c *EVMClient) Quote(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error) {
	out, err := c.call(ctx, c.quoter, quoterABI, "quoteExactInput", path, amountIn)
	if err != nil {
		return nil, err
	}
	amountOut, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected quote result %T", out[0])
	}
	return amountOut, nil
}

func (c *EVMClient) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, &domain.NetworkError{Op: method, Err: err}
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return out, nil
}

// EstimateGas implements domain.ChainClient.
func (c *EVMClient) EstimateGas(ctx context.Context, from common.Address, call domain.Call) (uint64, error) {
	to := call.To
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: call.Value,
		Data:  call.Data,
	})
	if err != nil {
		return 0, &domain.NetworkError{Op: "estimate gas", Err: err}
	}
	return gas, nil
}

// BaseFee implements domain.ChainClient from the latest header.
func (c *EVMClient) BaseFee(ctx context.Context) (*big.Int, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, &domain.NetworkError{Op: "latest header", Err: err}
	}
	if header.BaseFee == nil {
		return nil, errors.New("latest block has no base fee")
	}
	return header.BaseFee, nil
}

// Submit implements domain.ChainClient with an EIP-1559 transaction.
func (c *EVMClient) Submit(ctx context.Context, account domain.Account, call domain.Call, gas domain.GasParams) (common.Hash, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, account.Address)
	if err != nil {
		return common.Hash{}, &domain.NetworkError{Op: "nonce", Err: err}
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	to := call.To

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: gas.MaxPriorityFeePerGas,
		GasFeeCap: gas.MaxFeePerGas,
		Gas:       gas.GasLimit,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), account.Key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, &domain.NetworkError{Op: "send transaction", Err: err}
	}
	return signed.Hash(), nil
}

// WaitForConfirmation implements domain.ChainClient by polling for the receipt.
func (c *EVMClient) WaitForConfirmation(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, &domain.TimeoutError{TxHash: hash, After: c.confirmTimeout}
			}
			return nil, waitCtx.Err()
		case <-ticker.C:
			receipt, err := c.Receipt(waitCtx, hash)
			if err == nil {
				return receipt, nil
			}
			// Keep polling while pending or on transient errors.
		}
	}
}

// Receipt implements domain.ChainClient.
func (c *EVMClient) Receipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	r, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, domain.ErrReceiptNotFound
	}
	if err != nil {
		return nil, &domain.NetworkError{Op: "receipt", Err: err}
	}

	receipt := &domain.Receipt{
		TxHash:  r.TxHash,
		Status:  r.Status,
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = r.BlockNumber.Uint64()
	}
	return receipt, nil
}
