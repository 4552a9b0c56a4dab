package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/patrickmn/go-cache"
)

// Backend is a string key/value store.
type Backend interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryBackend keeps values for the lifetime of the process.
type MemoryBackend struct {
	cache *cache.Cache
}

// NewMemoryBackend returns an empty in-process backend. Entries never expire.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryBackend) Get(key string) (string, bool) {
	if x, found := m.cache.Get(key); found {
		return x.(string), true
	}
	return "", false
}

func (m *MemoryBackend) Set(key, value string) error {
	m.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.cache.Delete(key)
	return nil
}

// FileBackend keeps values in a JSON object on disk. Writes replace the file
// atomically and are readable only by the owner.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend stored at path. The file is created on
// first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the file backing the store.
func (f *FileBackend) Path() string { return f.path }

func (f *FileBackend) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

func (f *FileBackend) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	m[key] = value
	return f.save(m)
}

func (f *FileBackend) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	if len(m) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("tokenstore: remove %s: %w", f.path, err)
		}
		return nil
	}
	return f.save(m)
}

func (f *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read %s: %w", f.path, err)
	}
	m := map[string]string{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		// A corrupt file holds no usable session.
		return map[string]string{}, nil
	}
	return m, nil
}

func (f *FileBackend) save(m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: marshal: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("tokenstore: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".nexa-store-*")
	if err != nil {
		return fmt.Errorf("tokenstore: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("tokenstore: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	return nil
}

// ShellScopedPath names the ephemeral store shared by every command started
// from the same shell. It disappears with the temp dir, or on logout.
func ShellScopedPath() string {
	name := "nexa-session-" + strconv.Itoa(os.Getuid()) + "-" + strconv.Itoa(os.Getppid()) + ".json"
	return filepath.Join(os.TempDir(), name)
}
