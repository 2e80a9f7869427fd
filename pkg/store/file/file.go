// Package file implements the pending store on a single local JSON file.
//
// Records are kept as a JSON object keyed by transaction ID, so the format
// is self-describing and no merchant or tag content can corrupt field
// boundaries. Every mutation rewrites the file through a temp-file, fsync
// and rename sequence: once Append returns, the record survives an
// immediate process kill.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sidhantk/txnrelay/pkg/api"
)

// Store is a file-backed pending store. Safe for concurrent use; all
// mutation is serialized on one mutex since the backing file is a single
// key.
type Store struct {
	path   string
	mu     sync.Mutex
	txns   map[int64]api.Transaction
	logger *slog.Logger
}

// New opens (or creates) the store at path. Existing records are loaded so
// pending transactions survive process restarts.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, api.StorageError("creating store directory", err)
	}

	s := &Store{
		path:   path,
		txns:   make(map[int64]api.Transaction),
		logger: logger,
	}

	if err := s.load(); err != nil {
		return nil, api.StorageError("loading pending transactions", err)
	}

	logger.Info("file store opened", "path", path, "pending", len(s.txns))
	return s, nil
}

// load reads the backing file if it exists.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var records map[string]api.Transaction
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decoding %s: %w", s.path, err)
	}

	for key, txn := range records {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("record key %q: %w", key, err)
		}
		s.txns[id] = txn
	}
	return nil
}

// persist writes the full record set durably. Callers hold s.mu.
func (s *Store) persist() error {
	records := make(map[string]api.Transaction, len(s.txns))
	for id, txn := range s.txns {
		records[strconv.FormatInt(id, 10)] = txn
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".pending-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}

	// The rename itself must reach disk before the mutation counts as
	// durable, which takes an fsync on the parent directory.
	dir, err := os.Open(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("opening store directory: %w", err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return fmt.Errorf("syncing store directory: %w", err)
	}
	return nil
}

// Append adds one record and flushes it to disk before returning. A record
// with an already-present ID is left untouched and reported as not inserted.
func (s *Store) Append(_ context.Context, txn api.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txns[txn.ID]; exists {
		return false, nil
	}

	s.txns[txn.ID] = txn
	if err := s.persist(); err != nil {
		delete(s.txns, txn.ID)
		return false, api.StorageError("appending transaction", err)
	}

	s.logger.Debug("appended transaction", "id", txn.ID, "pending", len(s.txns))
	return true, nil
}

// Pending returns every stored record. Order is unspecified.
func (s *Store) Pending(_ context.Context) ([]api.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// Clear removes every record.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.txns) == 0 {
		return nil
	}

	previous := s.txns
	cleared := len(previous)
	s.txns = make(map[int64]api.Transaction)
	if err := s.persist(); err != nil {
		s.txns = previous
		return api.StorageError("clearing pending transactions", err)
	}

	s.logger.Info("cleared pending transactions", "count", cleared)
	return nil
}

// Drain returns and removes every record under one lock, so no append can
// interleave between the read and the clear.
func (s *Store) Drain(_ context.Context) ([]api.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := s.snapshot()
	if len(drained) == 0 {
		return drained, nil
	}

	previous := s.txns
	s.txns = make(map[int64]api.Transaction)
	if err := s.persist(); err != nil {
		s.txns = previous
		return nil, api.StorageError("draining pending transactions", err)
	}

	s.logger.Info("drained pending transactions", "count", len(drained))
	return drained, nil
}

// Close is a no-op for the file backend; every mutation is already flushed.
func (s *Store) Close() {}

// snapshot copies the current record set. Callers hold s.mu.
func (s *Store) snapshot() []api.Transaction {
	out := make([]api.Transaction, 0, len(s.txns))
	for _, txn := range s.txns {
		out = append(out, txn)
	}
	return out
}

var _ api.PendingStore = (*Store)(nil)
