// Package sim provides an in-memory chain used for dry runs and tests.
//
// Wrap, unwrap and swap calls move balances the way the real contracts would
// (gas is free); every other call is recorded and mined without side effects.
package sim

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// Submission is a recorded Submit call.
type Submission struct {
	Account common.Address
	Call    domain.Call
	Gas     domain.GasParams
	Hash    common.Hash
}

// Chain is a scripted, in-memory domain.ChainClient.
type Chain struct {
	mu sync.Mutex

	chainID  *big.Int
	baseFee  *big.Int
	wrapped  common.Address
	router   common.Address
	balances map[common.Address]map[string]*big.Int
	decimals map[common.Address]uint8

	quoteErr   error
	balanceErr error
	submitErr  error
	revertOn   []string
	pendingOn  []string
	quoteCalls int

	submissions []Submission
	receipts    map[common.Hash]*domain.Receipt
	nonce       uint64
}

// New creates an empty simulated chain.
func New(chainID *big.Int) *Chain {
	return &Chain{
		chainID:  new(big.Int).Set(chainID),
		baseFee:  big.NewInt(1_000_000_000),
		balances: make(map[common.Address]map[string]*big.Int),
		decimals: make(map[common.Address]uint8),
		receipts: make(map[common.Hash]*domain.Receipt),
	}
}

// WithContracts tells the chain which addresses behave as the wrapped native
// token and the swap router.
func (c *Chain) WithContracts(wrapped, router common.Address) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wrapped = wrapped
	c.router = router
	return c
}

// SetBalance sets owner's balance of asset.
func (c *Chain) SetBalance(owner common.Address, asset domain.Asset, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(owner, assetKey(asset), new(big.Int).Set(amount))
}

// SetDecimals overrides a token's decimals (default 18).
func (c *Chain) SetDecimals(token common.Address, decimals uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decimals[token] = decimals
}

// FailQuotes makes every Quote call return err.
func (c *Chain) FailQuotes(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quoteErr = err
}

// FailBalances makes every Balance call return err.
func (c *Chain) FailBalances(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balanceErr = err
}

// FailSubmits makes every Submit call return err.
func (c *Chain) FailSubmits(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitErr = err
}

// RevertCalls mines calls whose label starts with prefix as reverted.
func (c *Chain) RevertCalls(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revertOn = append(c.revertOn, prefix)
}

// LeavePending never mines calls whose label starts with prefix.
func (c *Chain) LeavePending(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingOn = append(c.pendingOn, prefix)
}

// Mine produces a receipt for a pending hash.
func (c *Chain) Mine(hash common.Hash, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[hash] = c.receiptLocked(hash, success)
}

// Submissions returns a copy of every accepted Submit call in order.
func (c *Chain) Submissions() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Submission, len(c.submissions))
	copy(out, c.submissions)
	return out
}

// QuoteCalls returns how many times Quote was invoked.
func (c *Chain) QuoteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quoteCalls
}

// ChainID implements domain.ChainClient.
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// Balance implements domain.ChainClient.
func (c *Chain) Balance(ctx context.Context, owner common.Address, asset domain.Asset) (domain.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.balanceErr != nil {
		return domain.Balance{}, &domain.NetworkError{Op: "balance", Err: c.balanceErr}
	}

	decimals := uint8(18)
	if d, ok := c.decimals[asset.Address]; ok && !asset.Native {
		decimals = d
	}
	return domain.Balance{
		Amount:   new(big.Int).Set(c.getLocked(owner, assetKey(asset))),
		Decimals: decimals,
	}, nil
}

// Quote implements domain.ChainClient. The simulated pool pays out 2:1.
func (c *Chain) Quote(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quoteCalls++
	if c.quoteErr != nil {
		return nil, &domain.NetworkError{Op: "quote", Err: c.quoteErr}
	}
	return new(big.Int).Mul(amountIn, big.NewInt(2)), nil
}

// EstimateGas implements domain.ChainClient.
func (c *Chain) EstimateGas(ctx context.Context, from common.Address, call domain.Call) (uint64, error) {
	return 150000, nil
}

// BaseFee implements domain.ChainClient.
func (c *Chain) BaseFee(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.baseFee), nil
}

// Submit implements domain.ChainClient.
func (c *Chain) Submit(ctx context.Context, account domain.Account, call domain.Call, gas domain.GasParams) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return common.Hash{}, &domain.NetworkError{Op: "send transaction", Err: c.submitErr}
	}

	c.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], c.nonce)
	hash := crypto.Keccak256Hash(account.Address.Bytes(), buf[:])

	c.submissions = append(c.submissions, Submission{
		Account: account.Address,
		Call:    call,
		Gas:     gas,
		Hash:    hash,
	})

	if hasPrefix(call.Label, c.pendingOn) {
		return hash, nil
	}
	if hasPrefix(call.Label, c.revertOn) {
		c.receipts[hash] = c.receiptLocked(hash, false)
		return hash, nil
	}

	c.applyLocked(account.Address, call)
	c.receipts[hash] = c.receiptLocked(hash, true)
	return hash, nil
}

// WaitForConfirmation implements domain.ChainClient. Pending transactions time out immediately.
func (c *Chain) WaitForConfirmation(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.receipts[hash]
	if !ok {
		return nil, &domain.TimeoutError{TxHash: hash, After: time.Duration(0)}
	}
	cp := *r
	return &cp, nil
}

// Receipt implements domain.ChainClient.
func (c *Chain) Receipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.receipts[hash]
	if !ok {
		return nil, domain.ErrReceiptNotFound
	}
	cp := *r
	return &cp, nil
}

func (c *Chain) receiptLocked(hash common.Hash, success bool) *domain.Receipt {
	status := uint64(0)
	if success {
		status = 1
	}
	return &domain.Receipt{
		TxHash:      hash,
		Status:      status,
		BlockNumber: c.nonce,
		GasUsed:     21000,
	}
}

// applyLocked moves balances for the calls the simulation understands.
func (c *Chain) applyLocked(from common.Address, call domain.Call) {
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	switch {
	case call.To == c.wrapped && value.Sign() > 0:
		c.addLocked(from, nativeKey, new(big.Int).Neg(value))
		c.addLocked(from, call.To.Hex(), value)
	case call.To == c.wrapped && len(call.Data) >= 36 && bytes.Equal(call.Data[:4], withdrawSelector):
		amount := new(big.Int).SetBytes(call.Data[4:36])
		c.addLocked(from, call.To.Hex(), new(big.Int).Neg(amount))
		c.addLocked(from, nativeKey, amount)
	case call.To == c.router && value.Sign() > 0:
		c.addLocked(from, nativeKey, new(big.Int).Neg(value))
	}
}

const nativeKey = "native"

var withdrawSelector = crypto.Keccak256([]byte("withdraw(uint256)"))[:4]

func assetKey(a domain.Asset) string {
	if a.Native {
		return nativeKey
	}
	return a.Address.Hex()
}

func (c *Chain) getLocked(owner common.Address, key string) *big.Int {
	if b, ok := c.balances[owner][key]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Chain) setLocked(owner common.Address, key string, amount *big.Int) {
	if c.balances[owner] == nil {
		c.balances[owner] = make(map[string]*big.Int)
	}
	c.balances[owner][key] = amount
}

func (c *Chain) addLocked(owner common.Address, key string, delta *big.Int) {
	c.setLocked(owner, key, new(big.Int).Add(c.getLocked(owner, key), delta))
}

func hasPrefix(label string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(label, p) {
			return true
		}
	}
	return false
}
