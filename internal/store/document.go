// Package store implements the shared, multi-writer-safe JSON file store
// and claim coordinator described in spec §3 and §4.1. Two documents back
// it: memory.json (KV entries) and claims.json (claims + stealable +
// contests). Writers take an exclusive file lock only across the
// read-modify-write and commit via write-temp-then-rename; readers never
// lock and may observe a stale but internally consistent snapshot.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mehmetkoksal-w/hookbound/internal/hookerr"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

// Store is a handle to the on-disk KV and claim documents rooted at a
// single directory, per spec §6.2's file layout.
type Store struct {
	root string
}

// DefaultRoot returns ~/.hookbound, the default store root. The orchestrator
// consumes files under the same layout, so this path is part of the wire
// contract, not an implementation detail.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hookbound"
	}
	return filepath.Join(home, ".hookbound")
}

// Open returns a Store rooted at root. No I/O happens until a method is
// called; both documents are created lazily on first write.
func Open(root string) *Store {
	if root == "" {
		root = DefaultRoot()
	}
	return &Store{root: root}
}

func (s *Store) memoryPath() string { return filepath.Join(s.root, "memory", "store.json") }
func (s *Store) claimsPath() string { return filepath.Join(s.root, "claims", "claims.json") }

type memoryDoc struct {
	Entries map[string]storeschema.Entry `json:"entries"`
}

type claimsDoc struct {
	Claims    map[string]storeschema.Claim `json:"claims"`
	Stealable map[string]storeschema.Claim `json:"stealable"`
	Contests  map[string]any               `json:"contests"`
}

func emptyMemoryDoc() memoryDoc {
	return memoryDoc{Entries: map[string]storeschema.Entry{}}
}

func emptyClaimsDoc() claimsDoc {
	return claimsDoc{
		Claims:    map[string]storeschema.Claim{},
		Stealable: map[string]storeschema.Claim{},
		Contests:  map[string]any{},
	}
}

func readJSONOrEmpty[T any](path string, empty T) (T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return empty, hookerr.Wrap(hookerr.ErrIO, "read "+path, err)
	}
	if len(data) == 0 {
		return empty, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return empty, hookerr.Wrap(hookerr.ErrIO, "parse "+path, err)
	}
	return v, nil
}

func (s *Store) readMemory() (memoryDoc, error) {
	doc, err := readJSONOrEmpty(s.memoryPath(), emptyMemoryDoc())
	if err != nil {
		return doc, err
	}
	if doc.Entries == nil {
		doc.Entries = map[string]storeschema.Entry{}
	}
	return doc, nil
}

func (s *Store) readClaims() (claimsDoc, error) {
	doc, err := readJSONOrEmpty(s.claimsPath(), emptyClaimsDoc())
	if err != nil {
		return doc, err
	}
	if doc.Claims == nil {
		doc.Claims = map[string]storeschema.Claim{}
	}
	if doc.Stealable == nil {
		doc.Stealable = map[string]storeschema.Claim{}
	}
	if doc.Contests == nil {
		doc.Contests = map[string]any{}
	}
	return doc, nil
}
