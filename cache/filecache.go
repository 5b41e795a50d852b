package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore implements the Store interface using filesystem storage.
// Each key maps to one JSON document named after HashKey(key).
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a new file-based store in the specified subdirectory
// of ~/.evelib_cache. If subdir is empty, the base directory is used.
func NewFileStore(subdir string) (*FileStore, error) {
	usr, err := user.Current()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Join(usr.HomeDir, ".evelib_cache")
	if subdir != "" {
		baseDir = filepath.Join(baseDir, subdir)
	}
	return NewFileStoreAt(baseDir)
}

// NewFileStoreAt creates a file-based store rooted at dir, creating it if needed.
func NewFileStoreAt(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory entries are written to.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// Get implements Reader interface
func (fs *FileStore) Get(_ context.Context, key string) (*Entry, error) {
	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// partial or corrupt write; caching is best-effort
		return nil, ErrNotFound
	}
	if entry.Key != key {
		// hash collision or a file copied from elsewhere
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Has implements Reader interface
func (fs *FileStore) Has(ctx context.Context, key string) bool {
	_, err := fs.Get(ctx, key)
	return err == nil
}

// Put implements Writer interface
func (fs *FileStore) Put(_ context.Context, key string, entry *Entry) error {
	stored := entry.clone()
	stored.Key = key

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	// Write to a uniquely named temporary file first, then rename (atomic operation)
	path := fs.path(key)
	tmpPath := path + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// path generates the full filesystem path for a cache key
func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.dir, HashKey(key)+".json")
}
