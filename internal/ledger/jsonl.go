package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLStore persists records as one JSON line per record, synced to disk on
// every append so a caller that observes a successful append is guaranteed
// the record survives a crash.
type JSONLStore struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// OpenJSONL opens (or creates) a JSONL store file for appending.
func OpenJSONL(path string) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("ledger: open file: %w", err)
	}
	return &JSONLStore{path: path, file: file}, nil
}

// Append writes the record as a JSON line and syncs.
func (s *JSONLStore) Append(rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// Load reads all records in file order. An existing but empty file yields
// ErrStoreEmpty; an undecodable line yields *CorruptError.
func (s *JSONLStore) Load() ([]AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStoreEmpty
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	var records []AuditRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			// Seq is the record position, so blank lines do not shift it.
			return nil, &CorruptError{Seq: len(records) + 1, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrStoreEmpty
	}
	return records, nil
}

// Close flushes and closes the underlying file.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
