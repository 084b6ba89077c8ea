package results

import (
	"context"
	"sync"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// MemorySink keeps results in process memory.
type MemorySink struct {
	mu        sync.Mutex
	records   map[string][]Record
	summaries map[string]Summary
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		records:   make(map[string][]Record),
		summaries: make(map[string]Summary),
	}
}

// Record implements domain.ResultSink.
func (m *MemorySink) Record(ctx context.Context, runID string, r domain.ActionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[runID] = append(m.records[runID], NewRecord(runID, r))
	return nil
}

// Finish implements domain.ResultSink.
func (m *MemorySink) Finish(ctx context.Context, s *domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.RunID] = NewSummary(s)
	return nil
}

// Records returns a copy of the records stored for runID.
func (m *MemorySink) Records(runID string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records[runID]))
	copy(out, m.records[runID])
	return out
}

// Summary returns the stored summary for runID.
func (m *MemorySink) Summary(runID string) (Summary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[runID]
	return s, ok
}
