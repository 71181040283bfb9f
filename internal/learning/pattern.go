// Package learning stores and searches mined patterns (lessons), per
// spec §3.1 and §4.6. Pattern extraction itself lives in the detect
// subpackage; lesson formatting lives in inject. This file holds the
// store-backed persistence and search both depend on.
package learning

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/store"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
	"github.com/mehmetkoksal-w/hookbound/internal/validate"
)

// Store binds pattern persistence and search to one backing store.
type Store struct {
	store *store.Store
}

// New returns a Store.
func New(s *store.Store) *Store {
	return &Store{store: s}
}

// Fingerprint derives a stable pattern key from its type, project, and
// text, so re-detecting the same issue updates rather than duplicates.
func Fingerprint(patternType, project, text string) string {
	h := sha256.Sum256([]byte(patternType + "|" + project + "|" + text))
	return fmt.Sprintf("%x", h[:8])
}

// Put persists one pattern, tagged with project and type, under
// pattern:{fingerprint}, per spec §4.6.
func (s *Store) Put(patternType, project, text string, confidence float64, metadata map[string]any) (storeschema.Pattern, error) {
	fp := Fingerprint(patternType, project, text)
	now := time.Now().UTC()
	p := storeschema.Pattern{
		Fingerprint: fp,
		Text:        text,
		Type:        patternType,
		Confidence:  clampConfidence(confidence),
		Project:     project,
		Metadata:    metadata,
		CreatedAt:   now,
		LastUsed:    now,
		UseCount:    0,
	}
	if err := validate.Value(p, storeschema.SchemaPattern); err != nil {
		return storeschema.Pattern{}, err
	}
	if err := s.store.StoreValue("pattern:"+fp, p, ""); err != nil {
		return storeschema.Pattern{}, err
	}
	return p, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Search returns patterns for project with confidence >= minConfidence,
// ranked by token overlap with query and then by confidence descending.
// This is the store-level linear scan spec §4.6 names as the fallback
// when no orchestrator is attached; it is also the only search path this
// package implements, since the orchestrator call itself lives in the
// inject package's use of the gateway.
func (s *Store) Search(project, query string, minConfidence float64) ([]storeschema.Pattern, error) {
	entries, err := s.store.List("pattern:")
	if err != nil {
		return nil, err
	}
	queryTokens := tokenize(query)
	type scored struct {
		pattern storeschema.Pattern
		overlap int
	}
	var candidates []scored
	for _, e := range entries {
		var p storeschema.Pattern
		if store.Decode(e.Value, &p) != nil {
			continue
		}
		if p.Project != "" && project != "" && p.Project != project {
			continue
		}
		if p.Confidence < minConfidence {
			continue
		}
		candidates = append(candidates, scored{pattern: p, overlap: tokenOverlap(queryTokens, tokenize(p.Text))})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].overlap != candidates[j].overlap {
			return candidates[i].overlap > candidates[j].overlap
		}
		return candidates[i].pattern.Confidence > candidates[j].pattern.Confidence
	})
	out := make([]storeschema.Pattern, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.pattern)
	}
	return out, nil
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,!?:;\"'()")] = struct{}{}
	}
	return set
}

func tokenOverlap(a, b map[string]struct{}) int {
	count := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			count++
		}
	}
	return count
}

// MarkUsed increments a pattern's use count and refreshes last_used,
// called when a lesson derived from it is actually injected.
func (s *Store) MarkUsed(fingerprint string) error {
	raw, found, err := s.store.Retrieve("pattern:"+fingerprint, "")
	if err != nil || !found {
		return err
	}
	var p storeschema.Pattern
	if err := store.Decode(raw, &p); err != nil {
		return err
	}
	p.UseCount++
	p.LastUsed = time.Now().UTC()
	return s.store.StoreValue("pattern:"+fingerprint, p, "")
}
