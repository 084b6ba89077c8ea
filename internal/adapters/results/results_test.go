package results

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uomi-testnet/uomi-bot/internal/config"
	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

func sampleResult() domain.ActionResult {
	start := time.Unix(1_700_000_000, 0).UTC()
	return domain.ActionResult{
		Seq:        3,
		Account:    common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		Kind:       domain.KindAddLiquidity,
		Label:      "USDC/SYN",
		Outcome:    domain.OutcomeFailed,
		State:      domain.StateRevertedOnChain,
		TxHashes:   []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")},
		Reason:     "transaction reverted",
		Err:        errors.New("transaction reverted"),
		StartedAt:  start,
		FinishedAt: start.Add(12 * time.Second),
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord("run-1", sampleResult())

	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, 3, rec.Seq)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", rec.Account)
	assert.Equal(t, "add_liquidity", rec.Kind)
	assert.Equal(t, "failed", rec.Outcome)
	assert.Equal(t, "reverted_on_chain", rec.State)
	assert.Len(t, rec.TxHashes, 2)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, "run-1", sampleResult()))
	require.NoError(t, sink.Record(ctx, "run-2", sampleResult()))
	require.NoError(t, sink.Finish(ctx, &domain.RunSummary{
		RunID:  "run-1",
		Mode:   domain.ModeLiquidity,
		Steps:  []domain.RunStep{domain.StepLiquidity},
		Failed: 1,
	}))

	assert.Len(t, sink.Records("run-1"), 1)
	assert.Empty(t, sink.Records("missing"))

	sum, ok := sink.Summary("run-1")
	require.True(t, ok)
	assert.Equal(t, "liquidity", sum.Mode)
	assert.Equal(t, []string{"liquidity"}, sum.Steps)
	assert.Equal(t, 1, sum.Failed)

	_, ok = sink.Summary("run-2")
	assert.False(t, ok)
}

func TestConnectRedisUnreachable(t *testing.T) {
	_, err := ConnectRedis(context.Background(), config.RedisConfig{Address: "127.0.0.1:1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisSinkKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	sink := NewRedisSink(client, "uomibot:", time.Hour)

	assert.Equal(t, "uomibot:run:abc:results", sink.resultsKey("abc"))
	assert.Equal(t, "uomibot:run:abc:summary", sink.summaryKey("abc"))
	assert.Equal(t, "uomibot:runs", sink.runsKey())
}

func newTestRedisSink(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisSink) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisSink(client, "uomibot:", ttl)
	t.Cleanup(func() { _ = sink.Close() })
	return mr, sink
}

func TestRedisSinkRoundTrip(t *testing.T) {
	mr, sink := newTestRedisSink(t, time.Hour)
	ctx := context.Background()

	first := sampleResult()
	second := sampleResult()
	second.Seq = 4
	second.Outcome = domain.OutcomeSuccess
	second.State = domain.StateConfirmed
	second.Reason = ""

	require.NoError(t, sink.Record(ctx, "run-1", first))
	require.NoError(t, sink.Record(ctx, "run-1", second))

	list, err := mr.List("uomibot:run:run-1:results")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, time.Hour, mr.TTL("uomibot:run:run-1:results"))

	got, err := sink.Results(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []Record{NewRecord("run-1", first), NewRecord("run-1", second)}, got)

	empty, err := sink.Results(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)

	start := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, sink.Finish(ctx, &domain.RunSummary{
		RunID:      "run-1",
		Mode:       domain.ModeAll,
		Steps:      []domain.RunStep{domain.StepBalances, domain.StepSwaps},
		Confirmed:  1,
		Failed:     1,
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
	}))

	summaryKey := "uomibot:run:run-1:summary"
	assert.Equal(t, "all", mr.HGet(summaryKey, "mode"))
	assert.Equal(t, `["balances","swaps"]`, mr.HGet(summaryKey, "steps"))
	assert.Equal(t, "1", mr.HGet(summaryKey, "confirmed"))
	assert.Equal(t, "0", mr.HGet(summaryKey, "skipped"))
	assert.Equal(t, "1", mr.HGet(summaryKey, "failed"))
	assert.Equal(t, start.Format(time.RFC3339), mr.HGet(summaryKey, "started_at"))
	assert.Equal(t, time.Hour, mr.TTL(summaryKey))

	members, err := mr.ZMembers("uomibot:runs")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, members)
	score, err := mr.ZScore("uomibot:runs", "run-1")
	require.NoError(t, err)
	assert.Equal(t, float64(start.Unix()), score)
	assert.Equal(t, time.Hour, mr.TTL("uomibot:runs"))
}

func TestRedisSinkTrimsExpiredRuns(t *testing.T) {
	mr, sink := newTestRedisSink(t, time.Hour)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0).UTC()

	for i, id := range []string{"old", "recent", "new"} {
		offset := []time.Duration{0, 90 * time.Minute, 2 * time.Hour}[i]
		require.NoError(t, sink.Finish(ctx, &domain.RunSummary{
			RunID:     id,
			Mode:      domain.ModeWrap,
			StartedAt: start.Add(offset),
		}))
	}

	members, err := mr.ZMembers("uomibot:runs")
	require.NoError(t, err)
	assert.Equal(t, []string{"recent", "new"}, members)
}

func TestRedisSinkWithoutTTLKeepsEverything(t *testing.T) {
	mr, sink := newTestRedisSink(t, 0)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0).UTC()

	require.NoError(t, sink.Record(ctx, "a", sampleResult()))
	require.NoError(t, sink.Finish(ctx, &domain.RunSummary{RunID: "a", Mode: domain.ModeSwap, StartedAt: start}))
	require.NoError(t, sink.Finish(ctx, &domain.RunSummary{RunID: "b", Mode: domain.ModeSwap, StartedAt: start.Add(48 * time.Hour)}))

	members, err := mr.ZMembers("uomibot:runs")
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Zero(t, mr.TTL("uomibot:run:a:results"))
	assert.Zero(t, mr.TTL("uomibot:runs"))
}
