package journal

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/uomi-testnet/uomi-bot/internal/adapters/chain/sim"
	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

const devKey = domain.Credential("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeRaw(t *testing.T, j *Journal, entry *Entry) {
	t.Helper()
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(j.path(entry.TxHash), data, 0600); err != nil {
		t.Fatal(err)
	}
}

func submit(t *testing.T, c domain.ChainClient, label string) common.Hash {
	t.Helper()
	acct, err := devKey.Account(0)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := c.Submit(context.Background(), acct, domain.Call{Label: label, Value: new(big.Int)}, domain.GasParams{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return hash
}

func TestTrackedChain_ClearsOnReceipt(t *testing.T) {
	j := NewWithDir(t.TempDir())
	chain := sim.New(big.NewInt(4386))
	tracked := Track(chain, j, "4386", quietLogger())

	hash := submit(t, tracked, "approve USDC")
	if !j.Exists(hash.Hex()) {
		t.Fatal("submitted transaction should be journaled")
	}

	if _, err := tracked.WaitForConfirmation(context.Background(), hash); err != nil {
		t.Fatalf("WaitForConfirmation() error = %v", err)
	}
	if j.Exists(hash.Hex()) {
		t.Error("confirmed transaction should leave the journal")
	}
}

func TestTrackedChain_KeepsUnconfirmed(t *testing.T) {
	j := NewWithDir(t.TempDir())
	chain := sim.New(big.NewInt(4386))
	chain.LeavePending("mint")
	tracked := Track(chain, j, "4386", quietLogger())

	hash := submit(t, tracked, "mint USDC/SYN")

	if _, err := tracked.WaitForConfirmation(context.Background(), hash); err == nil {
		t.Fatal("WaitForConfirmation() should time out for a pending transaction")
	}

	entry, err := j.Load(hash.Hex())
	if err != nil || entry == nil {
		t.Fatalf("Load() = %v, %v", entry, err)
	}
	if entry.State != StateUnconfirmed {
		t.Errorf("State = %v, want %v", entry.State, StateUnconfirmed)
	}
	if entry.Label != "mint USDC/SYN" {
		t.Errorf("Label = %v, want mint USDC/SYN", entry.Label)
	}
}

func TestTrackedChain_LogsUnconfirmedSaveFailure(t *testing.T) {
	j := NewWithDir(t.TempDir())
	chain := sim.New(big.NewInt(4386))
	chain.LeavePending("mint")
	logger, hook := test.NewNullLogger()
	tracked := Track(chain, j, "4386", logger)

	hash := submit(t, tracked, "mint WUOMI/SIM")
	// A directory where the temp file goes makes the next Save fail.
	if err := os.Mkdir(j.path(hash.Hex())+".tmp", 0700); err != nil {
		t.Fatal(err)
	}

	if _, err := tracked.WaitForConfirmation(context.Background(), hash); err == nil {
		t.Fatal("WaitForConfirmation() should time out for a pending transaction")
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry for the failed journal write")
	}
	if entry.Level != logrus.WarnLevel {
		t.Errorf("Level = %v, want %v", entry.Level, logrus.WarnLevel)
	}
	if entry.Message != "Failed to mark transaction unconfirmed" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Data["tx"] != hash.Hex() {
		t.Errorf("tx = %v, want %v", entry.Data["tx"], hash.Hex())
	}
}

func TestRecover(t *testing.T) {
	j := NewWithDir(t.TempDir())
	chain := sim.New(big.NewInt(4386))
	chain.LeavePending("")
	tracked := Track(chain, j, "4386", quietLogger())

	confirmed := submit(t, tracked, "wrap")
	reverted := submit(t, tracked, "unwrap")
	pending := submit(t, tracked, "swap WUOMI->USDC")
	stale := submit(t, tracked, "swap WUOMI->SIM")

	chain.Mine(confirmed, true)
	chain.Mine(reverted, false)

	entry, err := j.Load(stale.Hex())
	if err != nil || entry == nil {
		t.Fatalf("Load() = %v, %v", entry, err)
	}
	entry.UpdatedAt = time.Now().Add(-72 * time.Hour)
	writeRaw(t, j, entry)

	report, err := Recover(context.Background(), chain, j, 24*time.Hour, quietLogger())
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}

	want := RecoveryReport{Confirmed: 1, Reverted: 1, Pending: 1, Expired: 1}
	if report != want {
		t.Errorf("Recover() = %+v, want %+v", report, want)
	}
	if !j.Exists(pending.Hex()) {
		t.Error("pending transaction should stay journaled")
	}
	for _, h := range []common.Hash{confirmed, reverted, stale} {
		if j.Exists(h.Hex()) {
			t.Errorf("%s should be removed", h.Hex())
		}
	}
}
