package pricecache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Backend persists cache entries between runs.
type Backend interface {
	Load(key Key) (Entry, bool, error)
	Store(entry Entry) error
}

// MemoryBackend keeps entries for the lifetime of the process. Used in
// tests and for runs where persistence is disabled.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryBackend builds an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: map[string]Entry{}}
}

func (b *MemoryBackend) Load(key Key) (Entry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[key.String()]
	return entry, ok, nil
}

func (b *MemoryBackend) Store(entry Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[entry.Key.String()] = entry
	return nil
}

// FileBackend stores one JSON file per key under a directory. Writes go
// through a temp file and an atomic rename so a crashed run never leaves
// a torn entry behind.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the cache directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating price cache dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) Load(key Key) (Entry, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is treated as a miss so the next fetch heals it.
		return Entry{}, false, fmt.Errorf("parsing cache entry %s: %w", b.path(key), err)
	}
	return entry, true, nil
}

func (b *FileBackend) Store(entry Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	final := b.path(entry.Key)
	tmp, err := os.CreateTemp(b.dir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return nil
}

// path maps a key to a filename, flattening separators that are not
// filesystem safe.
func (b *FileBackend) path(key Key) string {
	name := strings.NewReplacer("|", "_", "/", "-", " ", "-").Replace(key.String())
	return filepath.Join(b.dir, name+".json")
}
