// Package results stores action results and run summaries outside the process.
package results

import (
	"time"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// Record is the serialized form of a domain.ActionResult.
type Record struct {
	RunID      string    `json:"run_id"`
	Seq        int       `json:"seq"`
	Account    string    `json:"account"`
	Kind       string    `json:"kind"`
	Label      string    `json:"label"`
	Outcome    string    `json:"outcome"`
	State      string    `json:"state"`
	TxHashes   []string  `json:"tx_hashes,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRecord converts r for storage.
func NewRecord(runID string, r domain.ActionResult) Record {
	hashes := make([]string, 0, len(r.TxHashes))
	for _, h := range r.TxHashes {
		hashes = append(hashes, h.Hex())
	}
	return Record{
		RunID:      runID,
		Seq:        r.Seq,
		Account:    r.Account.Hex(),
		Kind:       r.Kind.String(),
		Label:      r.Label,
		Outcome:    r.Outcome.String(),
		State:      r.State.String(),
		TxHashes:   hashes,
		Reason:     r.Reason,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// Summary is the serialized form of a domain.RunSummary without its results.
type Summary struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Steps      []string  `json:"steps"`
	Confirmed  int       `json:"confirmed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewSummary converts s for storage.
func NewSummary(s *domain.RunSummary) Summary {
	steps := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		steps = append(steps, string(step))
	}
	return Summary{
		RunID:      s.RunID,
		Mode:       s.Mode.String(),
		Steps:      steps,
		Confirmed:  s.Confirmed,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}
