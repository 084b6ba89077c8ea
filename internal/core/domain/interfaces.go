package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainClient defines the operations required to interact with the network.
type ChainClient interface {
	// ChainID returns the connected network's chain ID.
	ChainID(ctx context.Context) (*big.Int, error)

	// Balance returns owner's balance of asset together with its decimals.
	Balance(ctx context.Context, owner common.Address, asset Asset) (Balance, error)

	// Quote simulates an exact-input swap along an encoded path.
	Quote(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error)

	// EstimateGas estimates the gas used by call when sent from from.
	EstimateGas(ctx context.Context, from common.Address, call Call) (uint64, error)

	// BaseFee returns the latest block's base fee.
	BaseFee(ctx context.Context) (*big.Int, error)

	// Submit signs call with the account key and broadcasts it.
	Submit(ctx context.Context, account Account, call Call, gas GasParams) (common.Hash, error)

	// WaitForConfirmation blocks until hash is mined or the confirmation timeout elapses.
	WaitForConfirmation(ctx context.Context, hash common.Hash) (*Receipt, error)

	// Receipt looks up a receipt without waiting. Returns ErrReceiptNotFound while pending.
	Receipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// AccountSource loads signing credentials and optional proxies.
type AccountSource interface {
	LoadAccounts() ([]Credential, error)
	LoadProxies() ([]ProxyRef, error)
}

// Dialer opens a chain client routed through a proxy.
type Dialer interface {
	DialProxy(ctx context.Context, proxy ProxyRef) (ChainClient, error)
}

// BalanceReporter renders the balances of a set of accounts.
type BalanceReporter interface {
	ReportBalances(ctx context.Context, accounts []Account) error
}

// EventSink receives structured progress events.
type EventSink interface {
	Emit(e Event)
}

// ResultSink persists action results and run summaries.
type ResultSink interface {
	Record(ctx context.Context, runID string, r ActionResult) error
	Finish(ctx context.Context, summary *RunSummary) error
}

// Recorder collects run metrics.
type Recorder interface {
	ObserveAction(kind OperationKind, outcome Outcome, reason string)
	ObserveConfirmation(kind OperationKind, d time.Duration)
	ObserveRun(mode RunMode)
}

// Sleeper blocks the caller for a pacing delay. Implementations must not be cancelable.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(d time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) { f(d) }
