package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

const devKey = domain.Credential("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")

var (
	testChainID = big.NewInt(4386)
	testQuoter  = common.HexToAddress("0xCcB2B2F8395e4462d28703469F84c95293845332")
	testToken   = common.HexToAddress("0xAA9C4829415BCe70c434b7349b628017C59EC2b1")
)

type fakeBackend struct {
	mu sync.Mutex

	native    *big.Int
	calls     []ethereum.CallMsg
	callErr   error
	sent      []*types.Transaction
	nonce     uint64
	baseFee   *big.Int
	receipts  map[common.Hash]*types.Receipt
	pollCount int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		native:   big.NewInt(42),
		baseFee:  big.NewInt(7),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(testChainID), nil
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.native, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.callErr != nil {
		return nil, f.callErr
	}

	method, err := methodFor(msg)
	if err != nil {
		return nil, err
	}
	switch method {
	case "balanceOf":
		return tokenABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(1_500_000))
	case "decimals":
		return tokenABI.Methods["decimals"].Outputs.Pack(uint8(6))
	case "quoteExactInput":
		return quoterABI.Methods["quoteExactInput"].Outputs.Pack(big.NewInt(999))
	}
	return nil, errors.New("unexpected call")
}

func methodFor(msg ethereum.CallMsg) (string, error) {
	if m, err := tokenABI.MethodById(msg.Data[:4]); err == nil {
		return m.Name, nil
	}
	m, err := quoterABI.MethodById(msg.Data[:4])
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCount++
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) mine(hash common.Hash, status uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = &types.Receipt{TxHash: hash, Status: status, BlockNumber: big.NewInt(12), GasUsed: 21000}
}

func TestEVMClient_Balance(t *testing.T) {
	backend := newFakeBackend()
	client := NewEVMClient(backend, testChainID, testQuoter)
	owner := common.HexToAddress("0x1")

	native, err := client.Balance(context.Background(), owner, domain.Asset{Symbol: "UOMI", Native: true})
	require.NoError(t, err)
	assert.Equal(t, int64(42), native.Amount.Int64())
	assert.Equal(t, uint8(18), native.Decimals)

	token, err := client.Balance(context.Background(), owner, domain.Asset{Symbol: "USDC", Address: testToken})
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), token.Amount.Int64())
	assert.Equal(t, uint8(6), token.Decimals)

	// Decimals are cached after the first lookup.
	_, err = client.Balance(context.Background(), owner, domain.Asset{Symbol: "USDC", Address: testToken})
	require.NoError(t, err)
	assert.Len(t, backend.calls, 3)
}

func TestEVMClient_QuoteCallsQuoter(t *testing.T) {
	backend := newFakeBackend()
	client := NewEVMClient(backend, testChainID, testQuoter)

	out, err := client.Quote(context.Background(), []byte{1, 2, 3}, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, int64(999), out.Int64())
	require.Len(t, backend.calls, 1)
	assert.Equal(t, testQuoter, *backend.calls[0].To)
}

func TestEVMClient_CallErrorIsNetworkError(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = errors.New("execution reverted")
	client := NewEVMClient(backend, testChainID, testQuoter)

	_, err := client.Quote(context.Background(), []byte{1}, big.NewInt(10))

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "quoteExactInput", netErr.Op)
}

func TestEVMClient_BaseFee(t *testing.T) {
	client := NewEVMClient(newFakeBackend(), testChainID, testQuoter)

	fee, err := client.BaseFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), fee.Int64())
}

func TestEVMClient_SubmitSignsDynamicFeeTx(t *testing.T) {
	backend := newFakeBackend()
	backend.nonce = 5
	client := NewEVMClient(backend, testChainID, testQuoter)

	acct, err := devKey.Account(0)
	require.NoError(t, err)

	call := domain.Call{Label: "wrap", To: testToken, Value: big.NewInt(100), Data: []byte{0xd0, 0xe3, 0x0d, 0xb0}}
	gas := domain.GasParams{GasLimit: 42242, MaxFeePerGas: big.NewInt(3_000_000_000), MaxPriorityFeePerGas: big.NewInt(2_000_000_000)}

	hash, err := client.Submit(context.Background(), acct, call, gas)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, uint64(42242), tx.Gas())
	assert.Zero(t, gas.MaxFeePerGas.Cmp(tx.GasFeeCap()))
	assert.Zero(t, gas.MaxPriorityFeePerGas.Cmp(tx.GasTipCap()))
	assert.Zero(t, testChainID.Cmp(tx.ChainId()))

	sender, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
	require.NoError(t, err)
	assert.Equal(t, acct.Address, sender)
}

func TestEVMClient_WaitForConfirmation(t *testing.T) {
	backend := newFakeBackend()
	client := NewEVMClient(backend, testChainID, testQuoter, WithPollInterval(5*time.Millisecond))
	hash := common.HexToHash("0xabc")

	go func() {
		time.Sleep(20 * time.Millisecond)
		backend.mine(hash, types.ReceiptStatusSuccessful)
	}()

	receipt, err := client.WaitForConfirmation(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, uint64(12), receipt.BlockNumber)
}

func TestEVMClient_WaitForConfirmationTimesOut(t *testing.T) {
	client := NewEVMClient(newFakeBackend(), testChainID, testQuoter,
		WithPollInterval(5*time.Millisecond),
		WithConfirmTimeout(30*time.Millisecond),
	)
	hash := common.HexToHash("0xdef")

	_, err := client.WaitForConfirmation(context.Background(), hash)

	var timeout *domain.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, hash, timeout.TxHash)
}

func TestEVMClient_ReceiptNotFound(t *testing.T) {
	client := NewEVMClient(newFakeBackend(), testChainID, testQuoter)

	_, err := client.Receipt(context.Background(), common.HexToHash("0x1"))

	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)
}
