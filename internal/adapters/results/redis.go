package results

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uomi-testnet/uomi-bot/internal/config"
	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// RedisSink appends results to a per-run list and stores summaries in a hash.
//
// Keys, with the configured prefix:
//
//	run:<id>:results  list of JSON records
//	run:<id>:summary  hash of summary fields
//	runs              sorted set of run IDs scored by start time
//
// With a TTL, every key expires and runs older than the TTL are trimmed from
// the index when a newer run finishes.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// ConnectRedis opens a client and verifies it with PING.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*RedisSink, error) {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	return NewRedisSink(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client *redis.Client, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

// Close closes the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

func (s *RedisSink) resultsKey(runID string) string {
	return s.prefix + "run:" + runID + ":results"
}

func (s *RedisSink) summaryKey(runID string) string {
	return s.prefix + "run:" + runID + ":summary"
}

func (s *RedisSink) runsKey() string {
	return s.prefix + "runs"
}

// Record implements domain.ResultSink.
func (s *RedisSink) Record(ctx context.Context, runID string, r domain.ActionResult) error {
	data, err := json.Marshal(NewRecord(runID, r))
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	key := s.resultsKey(runID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Finish implements domain.ResultSink.
func (s *RedisSink) Finish(ctx context.Context, summary *domain.RunSummary) error {
	sum := NewSummary(summary)
	steps, err := json.Marshal(sum.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	key := s.summaryKey(sum.RunID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"mode", sum.Mode,
			"steps", string(steps),
			"confirmed", sum.Confirmed,
			"skipped", sum.Skipped,
			"failed", sum.Failed,
			"started_at", sum.StartedAt.Format(time.RFC3339),
			"finished_at", sum.FinishedAt.Format(time.RFC3339),
		)
		pipe.ZAdd(ctx, s.runsKey(), redis.Z{Score: float64(sum.StartedAt.Unix()), Member: sum.RunID})
		if s.ttl > 0 {
			cutoff := sum.StartedAt.Add(-s.ttl).Unix()
			pipe.ZRemRangeByScore(ctx, s.runsKey(), "-inf", "("+strconv.FormatInt(cutoff, 10))
			pipe.Expire(ctx, key, s.ttl)
			pipe.Expire(ctx, s.runsKey(), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store run summary: %w", err)
	}
	return nil
}

// Results reads back the stored records of runID.
func (s *RedisSink) Results(ctx context.Context, runID string) ([]Record, error) {
	raw, err := s.client.LRange(ctx, s.resultsKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var r Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("failed to parse result: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}
