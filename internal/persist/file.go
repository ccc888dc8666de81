package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the record in a JSON file, written atomically via a
// temporary file and rename.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the record, stamping the current format version.
func (s *FileStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Version = CurrentVersion
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal timer record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create timer record directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write timer record: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename timer record: %w", err)
	}
	return nil
}

// Load reads the record. A missing file yields nil. A corrupt or
// incompatible file is moved aside to a .backup file and also yields nil, so
// a damaged record can never resurrect a run.
func (s *FileStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read timer record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.discard("timer record corrupted", "error", err)
		return nil, nil
	}
	if rec.Version != CurrentVersion {
		s.discard("incompatible timer record version",
			"file_version", rec.Version,
			"current_version", CurrentVersion)
		return nil, nil
	}
	if rec.Owner == "" {
		s.discard("timer record has no owner")
		return nil, nil
	}
	return &rec, nil
}

// discard moves the unreadable record aside. Must be called with s.mu held.
func (s *FileStore) discard(msg string, args ...any) {
	args = append(args, "path", s.path)
	if err := os.Rename(s.path, s.path+".backup"); err != nil {
		s.logger.Warn(msg+", failed to back up", append(args, "backup_error", err)...)
		return
	}
	s.logger.Warn(msg+", backed up", args...)
}

// Clear removes the record file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear timer record: %w", err)
	}
	return nil
}
