package store

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/filelock"
	"github.com/mehmetkoksal-w/hookbound/internal/hookerr"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

func fullKey(key, namespace string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

// StoreValue persists value under key (optionally namespace-prefixed),
// overwriting any prior entry. storedAt is always refreshed; accessCount
// is reset to 0, matching a fresh write.
func (s *Store) StoreValue(key string, value any, namespace string) error {
	fk := fullKey(key, namespace)
	return filelock.WithLock(s.memoryPath(), func() error {
		doc, err := s.readMemory()
		if err != nil {
			return err
		}
		doc.Entries[fk] = storeschema.Entry{
			Key:         fk,
			Value:       value,
			StoredAt:    time.Now().UTC(),
			AccessCount: 0,
		}
		return s.writeMemory(doc)
	})
}

// Retrieve returns the value stored under key, or ok=false if absent.
// Retrieve mutates access_count, so — unlike List — it takes the store
// lock for a read-modify-write rather than a bare read.
func (s *Store) Retrieve(key string, namespace string) (any, bool, error) {
	fk := fullKey(key, namespace)
	var value any
	found := false
	err := filelock.WithLock(s.memoryPath(), func() error {
		doc, err := s.readMemory()
		if err != nil {
			return err
		}
		entry, ok := doc.Entries[fk]
		if !ok {
			return nil
		}
		found = true
		value = entry.Value
		entry.AccessCount++
		doc.Entries[fk] = entry
		return s.writeMemory(doc)
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// ListEntry is the public shape returned by List.
type ListEntry struct {
	Key         string    `json:"key"`
	Value       any       `json:"value"`
	StoredAt    time.Time `json:"storedAt"`
	AccessCount int       `json:"accessCount"`
}

// List returns every entry whose key starts with prefix, sorted by key.
// List never takes the store lock: it's a bare read over a possibly-stale
// snapshot, per spec §4.1.
func (s *Store) List(prefix string) ([]ListEntry, error) {
	doc, err := s.readMemory()
	if err != nil {
		return nil, err
	}
	var out []ListEntry
	for k, e := range doc.Entries {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		out = append(out, ListEntry{Key: k, Value: e.Value, StoredAt: e.StoredAt, AccessCount: e.AccessCount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Decode re-types a value returned by Retrieve or List into out. A value
// round-trips through JSON on every store write, so after a reload it
// arrives as a generic map[string]any rather than its original struct
// type; Decode recovers that type for typed callers like session and
// trajectory.
func Decode(value any, out any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "marshal decoded value", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "unmarshal decoded value", err)
	}
	return nil
}

func (s *Store) writeMemory(doc memoryDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "marshal memory", err)
	}
	if err := filelock.WriteAtomic(s.memoryPath(), data, 0o644); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "write memory", err)
	}
	return nil
}
