package store

import (
	"encoding/json"
	"time"

	"aiguidepro/internal/ports"
)

// Load reads and decodes the collection stored under key. Any access or
// decode failure reads as an empty collection.
func Load[T any](kv ports.KV, key string) []T {
	raw, ok := kv.Get(key)
	if !ok {
		return nil
	}

	var values []T
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

// Save serializes values and overwrites the slot under key. Serialization
// or medium failures are dropped.
func Save[T any](kv ports.KV, key string, values []T) {
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	kv.Set(key, raw)
}

// MergeByID folds the existing collection and then incoming in order, so
// later entries win on id collision, writes the merged collection back and
// returns it. First-insertion order is preserved.
func MergeByID[T any, K comparable](kv ports.KV, key string, incoming []T, idOf func(T) K) []T {
	existing := Load[T](kv, key)

	index := make(map[K]int, len(existing)+len(incoming))
	merged := make([]T, 0, len(existing)+len(incoming))
	for _, v := range append(existing, incoming...) {
		id := idOf(v)
		if pos, ok := index[id]; ok {
			merged[pos] = v
			continue
		}
		index[id] = len(merged)
		merged = append(merged, v)
	}

	Save(kv, key, merged)
	return merged
}

// GetTime reads a scalar timestamp slot; absent or unparseable reads as zero.
func GetTime(kv ports.KV, key string) time.Time {
	raw, ok := kv.Get(key)
	if !ok {
		return time.Time{}
	}

	ts, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}
	}
	return ts
}

// SetTime overwrites a scalar timestamp slot.
func SetTime(kv ports.KV, key string, ts time.Time) {
	kv.Set(key, []byte(ts.Format(time.RFC3339Nano)))
}
