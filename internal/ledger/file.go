package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ledgerFile is the on-disk shape: an append-biased log of every deal ever
// notified plus a last-updated stamp. Unknown fields are ignored on read.
type ledgerFile struct {
	Deals       []Entry   `json:"deals"`
	LastUpdated time.Time `json:"last_updated"`
}

// FileStore persists the ledger as a single JSON document, rewritten in full
// on every append. Write volume is tens of deals a day at most, so the
// unbounded log and full rewrite are deliberate.
type FileStore struct {
	path string
}

// NewFileStore opens a file-backed store at path. The file is created on the
// first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads all recorded entries. A file that does not exist yet is an
// empty ledger, not an error.
func (s *FileStore) Load(_ context.Context) ([]Entry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	var doc ledgerFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse ledger file %s: %w", s.path, err)
	}
	return doc.Deals, nil
}

// Append rewrites the file with the existing entries plus the new ones.
func (s *FileStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	existing, err := s.Load(ctx)
	if err != nil {
		// A corrupt file is replaced rather than wedging persistence.
		existing = nil
	}

	doc := ledgerFile{
		Deals:       append(existing, entries...),
		LastUpdated: time.Now().UTC(),
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
