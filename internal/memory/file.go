package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the scrapbook as a single JSON file. The whole
// collection is loaded at startup and rewritten on every upsert.
type FileStore struct {
	collection
	path    string
	writeMu sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read scrapbook file: %w", err)
		}
		return s, nil
	}
	if err := s.restore(data); err != nil {
		return nil, fmt.Errorf("failed to parse scrapbook file: %w", err)
	}
	return s, nil
}

func (s *FileStore) Upsert(ctx context.Context, m Memory) error {
	if err := s.upsert(m); err != nil {
		return err
	}
	return s.flush()
}

func (s *FileStore) Get(ctx context.Context, id string) (Memory, error) {
	return s.get(id)
}

func (s *FileStore) List(ctx context.Context) ([]Memory, error) {
	return s.list(), nil
}

func (s *FileStore) flush() error {
	data, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("failed to marshal scrapbook: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create scrapbook directory: %w", err)
	}

	// Write-then-rename so a crash mid-write never corrupts the file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write scrapbook file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace scrapbook file: %w", err)
	}
	return nil
}
