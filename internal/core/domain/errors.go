package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for common failure conditions.
var (
	// ErrNoAccounts is returned when the account source yields no valid credentials.
	ErrNoAccounts = errors.New("no valid accounts loaded")

	// ErrInvalidCredential indicates a key that cannot be turned into an account.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrInsufficientBalance indicates an account cannot fund the requested action.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrReceiptNotFound is returned while a transaction is still pending.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrUnknownRunMode indicates a mode name or value outside the closed set.
	ErrUnknownRunMode = errors.New("unknown run mode")
)

// PreconditionError means an action was not attempted. It is reported as Skipped.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precondition failed: %s: %v", e.Reason, e.Err)
	}
	return "precondition failed: " + e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// InsufficientBalance builds the precondition error for a balance check.
func InsufficientBalance(symbol, have, need string) *PreconditionError {
	return &PreconditionError{
		Reason: fmt.Sprintf("insufficient %s balance: have %s, need %s", symbol, have, need),
		Err:    ErrInsufficientBalance,
	}
}

// NetworkError wraps a failed RPC interaction.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Temporary reports whether a retry could succeed. Nothing retries today.
func (e *NetworkError) Temporary() bool {
	return true
}

// RevertError means a transaction was mined but reported failure.
type RevertError struct {
	TxHash common.Hash
	Label  string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("transaction reverted: %s (%s)", e.Label, e.TxHash.Hex())
}

// TimeoutError means no receipt arrived within the confirmation window.
type TimeoutError struct {
	TxHash common.Hash
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed after %s", e.TxHash.Hex(), e.After)
}

// UserInputError is a rejected prompt answer. Callers re-prompt.
type UserInputError struct {
	Input  string
	Reason string
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

// IsPrecondition reports whether err should be reported as Skipped.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// Classify maps an action error to its outcome and terminal state.
func Classify(err error) (Outcome, State) {
	if err == nil {
		return OutcomeSuccess, StateConfirmed
	}
	if IsPrecondition(err) {
		return OutcomeSkipped, StatePreconditionSkipped
	}
	var re *RevertError
	if errors.As(err, &re) {
		return OutcomeFailed, StateRevertedOnChain
	}
	return OutcomeFailed, StateSubmissionFailed
}
