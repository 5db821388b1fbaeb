// Package configstore persists session batches as JSON or YAML files.
package configstore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// FileStore keeps one batch in a file. The codec follows the file extension.
type FileStore struct {
	Path  string
	codec Codec
}

// NewFileStore creates a store for path
func NewFileStore(path string) *FileStore {
	return &FileStore{
		Path:  path,
		codec: CodecFor(path),
	}
}

// Save writes batch, replacing the file atomically
func (s *FileStore) Save(batch models.Batch) error {
	data, err := s.codec.Marshal(batch)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}

	log.Printf("💾 Saved %d sessions to %s", len(batch), s.Path)
	return nil
}

// Load reads the whole batch or nothing
func (s *FileStore) Load() (models.Batch, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	batch, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}

	log.Printf("📂 Loaded %d sessions from %s", len(batch), s.Path)
	return batch, nil
}
