package journal

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// TrackedChain journals every submitted transaction until its receipt is seen.
type TrackedChain struct {
	domain.ChainClient
	journal *Journal
	chainID string
	logger  logrus.FieldLogger
}

// Track wraps client so submissions are recorded in j.
func Track(client domain.ChainClient, j *Journal, chainID string, logger logrus.FieldLogger) *TrackedChain {
	return &TrackedChain{
		ChainClient: client,
		journal:     j,
		chainID:     chainID,
		logger:      logger,
	}
}

// Submit forwards to the wrapped client and journals the hash. A journal write
// failure is logged; the transaction is already in flight.
func (t *TrackedChain) Submit(ctx context.Context, account domain.Account, call domain.Call, gas domain.GasParams) (common.Hash, error) {
	hash, err := t.ChainClient.Submit(ctx, account, call, gas)
	if err != nil {
		return hash, err
	}

	entry := &Entry{
		TxHash:  hash.Hex(),
		Account: account.Address.Hex(),
		Label:   call.Label,
		State:   StateSubmitted,
		ChainID: t.chainID,
	}
	if err := t.journal.Save(entry); err != nil {
		t.logger.WithError(err).WithField("tx", hash.Hex()).Warn("Failed to journal transaction")
	}
	return hash, nil
}

// WaitForConfirmation forwards to the wrapped client and clears the journal entry
// once any receipt is seen. Unconfirmed transactions stay journaled.
func (t *TrackedChain) WaitForConfirmation(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	receipt, err := t.ChainClient.WaitForConfirmation(ctx, hash)
	if err != nil {
		if entry, loadErr := t.journal.Load(hash.Hex()); loadErr == nil && entry != nil {
			entry.State = StateUnconfirmed
			if err := t.journal.Save(entry); err != nil {
				t.logger.WithError(err).WithField("tx", hash.Hex()).Warn("Failed to mark transaction unconfirmed")
			}
		}
		return nil, err
	}

	if err := t.journal.Delete(hash.Hex()); err != nil {
		t.logger.WithError(err).WithField("tx", hash.Hex()).Warn("Failed to clear journal entry")
	}
	return receipt, nil
}

// RecoveryReport summarizes a Recover pass.
type RecoveryReport struct {
	Confirmed int
	Reverted  int
	Pending   int
	Expired   int
}

// Recover looks up the receipt of every journaled transaction. Mined ones are
// logged and removed; pending ones older than maxAge are dropped.
func Recover(ctx context.Context, client domain.ChainClient, j *Journal, maxAge time.Duration, logger logrus.FieldLogger) (RecoveryReport, error) {
	var report RecoveryReport

	entries, err := j.List()
	if err != nil {
		return report, err
	}

	for _, entry := range entries {
		fields := logrus.Fields{"tx": entry.TxHash, "account": entry.Account, "label": entry.Label}

		receipt, err := client.Receipt(ctx, common.HexToHash(entry.TxHash))
		switch {
		case errors.Is(err, domain.ErrReceiptNotFound):
			report.Pending++
			logger.WithFields(fields).Warn("⏳ Journaled transaction still pending")
			continue
		case err != nil:
			report.Pending++
			logger.WithFields(fields).WithError(err).Warn("Failed to check journaled transaction")
			continue
		}

		if receipt.Succeeded() {
			report.Confirmed++
			logger.WithFields(fields).Info("✅ Journaled transaction confirmed")
		} else {
			report.Reverted++
			logger.WithFields(fields).Warn("❌ Journaled transaction reverted")
		}
		if err := j.Delete(entry.TxHash); err != nil {
			return report, err
		}
	}

	if maxAge > 0 {
		expired, err := j.CleanupOld(maxAge)
		if err != nil {
			return report, err
		}
		report.Expired = expired
		report.Pending -= expired
	}

	return report, nil
}
