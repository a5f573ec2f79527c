package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"aiguidepro/internal/ports"
)

// FileKV stores each slot as one file under a state directory. It is the
// default durable medium; failures degrade to empty reads and dropped
// writes, surfaced only through debug logging.
type FileKV struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

var _ ports.KV = (*FileKV)(nil)

// NewFileKV prepares the state directory. If the directory cannot be
// created the store still constructs and behaves as empty.
func NewFileKV(dir string, logger *slog.Logger) *FileKV {
	if err := os.MkdirAll(dir, 0o755); err != nil && logger != nil {
		logger.Warn("state dir unavailable, operating best-effort", "dir", dir, "error", err)
	}
	return &FileKV{dir: dir, logger: logger}
}

// Get reads the slot file; any failure reads as absent.
func (f *FileKV) Get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Set overwrites the slot file; failures are dropped.
func (f *FileKV) Set(key string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.WriteFile(f.path(key), value, 0o644); err != nil && f.logger != nil {
		f.logger.Debug("dropped write", "key", key, "error", err)
	}
}

func (f *FileKV) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, key)
	return filepath.Join(f.dir, safe+".json")
}

// MemoryKV is the in-memory degradation target used when no durable medium
// is available, and the default store in tests.
type MemoryKV struct {
	mu    sync.Mutex
	slots map[string][]byte
}

var _ ports.KV = (*MemoryKV)(nil)

// NewMemoryKV builds an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{slots: map[string][]byte{}}
}

// Get returns the slot value if present.
func (m *MemoryKV) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.slots[key]
	return raw, ok
}

// Set overwrites the slot value.
func (m *MemoryKV) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots[key] = append([]byte(nil), value...)
}
