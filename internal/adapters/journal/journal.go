// Package journal keeps a crash-safe record of submitted but unconfirmed
// transactions so they can be reconciled on the next start.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry states.
const (
	StateSubmitted   = "SUBMITTED"
	StateUnconfirmed = "UNCONFIRMED"
)

// Entry is one pending transaction.
type Entry struct {
	TxHash    string    `json:"tx_hash"`
	Account   string    `json:"account"`
	Label     string    `json:"label"`
	State     string    `json:"state"`
	ChainID   string    `json:"chain_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Journal stores one JSON file per pending transaction.
type Journal struct {
	dir string
}

// NewWithDir creates a journal in dir.
func NewWithDir(dir string) *Journal {
	return &Journal{dir: dir}
}

func (j *Journal) path(txHash string) string {
	return filepath.Join(j.dir, strings.ToLower(txHash)+".json")
}

func (j *Journal) ensureDir() error {
	return os.MkdirAll(j.dir, 0700)
}

// Load returns the entry for txHash, or nil if none exists.
func (j *Journal) Load(txHash string) (*Entry, error) {
	data, err := os.ReadFile(j.path(txHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse journal file: %w", err)
	}
	return &entry, nil
}

// Save writes entry atomically.
func (j *Journal) Save(entry *Entry) error {
	if err := j.ensureDir(); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	entry.UpdatedAt = time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = entry.UpdatedAt
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	path := j.path(entry.TxHash)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write journal temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename journal temp file: %w", err)
	}
	return nil
}

// Delete removes the entry for txHash. Deleting a missing entry is not an error.
func (j *Journal) Delete(txHash string) error {
	if err := os.Remove(j.path(txHash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journal file: %w", err)
	}
	return nil
}

// Exists reports whether an entry for txHash exists.
func (j *Journal) Exists(txHash string) bool {
	_, err := os.Stat(j.path(txHash))
	return err == nil
}

// List returns every readable entry; corrupt files are skipped.
func (j *Journal) List() ([]*Entry, error) {
	if err := j.ensureDir(); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	files, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var entries []*Entry
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		entry, err := j.Load(strings.TrimSuffix(f.Name(), ".json"))
		if err != nil || entry == nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CleanupOld removes entries not updated within maxAge and returns how many were removed.
func (j *Journal) CleanupOld(maxAge time.Duration) (int, error) {
	entries, err := j.List()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	deleted := 0
	for _, entry := range entries {
		if now.Sub(entry.UpdatedAt) > maxAge {
			if err := j.Delete(entry.TxHash); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}
