package learning

import (
	"testing"

	"github.com/mehmetkoksal-w/hookbound/internal/store"
)

func TestPutThenSearchRanksByOverlapThenConfidence(t *testing.T) {
	s := New(store.Open(t.TempDir()))

	if _, err := s.Put("high_rework", "proj", "file edited too many times, slow down on edits", 0.9, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put("high_error", "proj", "tool error rate elevated this session", 0.6, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put("high_rework", "other-proj", "file edited too many times elsewhere", 0.95, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	results, err := s.Search("proj", "too many edits", 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (only proj's patterns)", len(results))
	}
	if results[0].Type != "high_rework" {
		t.Fatalf("results[0].Type = %q, want high_rework to rank first on token overlap", results[0].Type)
	}
}

func TestSearchFiltersBelowMinConfidence(t *testing.T) {
	s := New(store.Open(t.TempDir()))
	if _, err := s.Put("high_error", "proj", "weak signal", 0.2, nil); err != nil {
		t.Fatal(err)
	}
	results, err := s.Search("proj", "weak signal", 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("Search(minConfidence=0.5) = %+v, want none (0.2 < 0.5)", results)
	}
}

func TestPutClampsConfidenceToUnitRange(t *testing.T) {
	s := New(store.Open(t.TempDir()))
	p, err := s.Put("high_error", "proj", "text", 5.0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Confidence != 1.0 {
		t.Fatalf("Confidence = %v, want clamped to 1.0", p.Confidence)
	}
}

func TestPutIsIdempotentOnFingerprint(t *testing.T) {
	s := New(store.Open(t.TempDir()))
	first, err := s.Put("high_error", "proj", "same text", 0.6, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Put("high_error", "proj", "same text", 0.8, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Fatalf("re-detecting the same pattern should reuse its fingerprint: %q != %q", first.Fingerprint, second.Fingerprint)
	}
}

func TestMarkUsedIncrementsUseCount(t *testing.T) {
	s := New(store.Open(t.TempDir()))
	p, err := s.Put("high_error", "proj", "text", 0.6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.MarkUsed(p.Fingerprint); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}

	results, err := s.Search("proj", "text", 0.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].UseCount != 1 {
		t.Fatalf("results = %+v, want UseCount=1 after MarkUsed", results)
	}
}

func TestMarkUsedOnMissingFingerprintIsNotAnError(t *testing.T) {
	s := New(store.Open(t.TempDir()))
	if err := s.MarkUsed("does-not-exist"); err != nil {
		t.Fatalf("MarkUsed(missing): %v", err)
	}
}
