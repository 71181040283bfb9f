package store

import (
	"encoding/json"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/filelock"
	"github.com/mehmetkoksal-w/hookbound/internal/hookerr"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
	"github.com/mehmetkoksal-w/hookbound/internal/validate"
)

// ClaimResult is the outcome of a Claim attempt, per spec §4.1's
// "never raises" contract: conflicts are data, not errors.
type ClaimResult struct {
	Success  bool
	Existing *storeschema.Claim
}

// Claim attempts to take ownership of issueID for claimant. A second
// attempt by a different claimant fails with the existing claim attached;
// a second attempt by the same claimant is idempotent and does not refresh
// claimedAt, per spec §3.2 and the resolved Open Question in SPEC_FULL.md §9.
func (s *Store) Claim(issueID, claimant string, context map[string]any) (ClaimResult, error) {
	var result ClaimResult
	err := filelock.WithLock(s.claimsPath(), func() error {
		doc, err := s.readClaims()
		if err != nil {
			return err
		}
		if existing, ok := doc.Claims[issueID]; ok && existing.Status == "active" {
			if existing.Claimant == claimant {
				result = ClaimResult{Success: true}
				return nil
			}
			existingCopy := existing
			result = ClaimResult{Success: false, Existing: &existingCopy}
			return nil
		}
		claim := storeschema.Claim{
			IssueID:   issueID,
			Claimant:  claimant,
			Status:    "active",
			ClaimedAt: time.Now().UTC(),
			Context:   context,
		}
		if err := validate.Value(claim, storeschema.SchemaClaim); err != nil {
			return err
		}
		doc.Claims[issueID] = claim
		delete(doc.Stealable, issueID)
		result = ClaimResult{Success: true}
		return s.writeClaims(doc)
	})
	return result, err
}

// ReleaseResult is the outcome of a Release attempt.
type ReleaseResult struct {
	Success  bool
	Reason   string // "not_found" | "not_authorized"
	Previous *storeschema.Claim
}

// Release removes the active claim on issueID if claimant owns it. A
// release by a non-owner fails with not_authorized; a release of a claim
// that doesn't exist fails with not_found.
func (s *Store) Release(issueID, claimant string) (ReleaseResult, error) {
	var result ReleaseResult
	err := filelock.WithLock(s.claimsPath(), func() error {
		doc, err := s.readClaims()
		if err != nil {
			return err
		}
		existing, ok := doc.Claims[issueID]
		if !ok {
			result = ReleaseResult{Success: false, Reason: "not_found"}
			return nil
		}
		if existing.Claimant != claimant {
			result = ReleaseResult{Success: false, Reason: "not_authorized"}
			return nil
		}
		delete(doc.Claims, issueID)
		previous := existing
		result = ReleaseResult{Success: true, Previous: &previous}
		return s.writeClaims(doc)
	})
	return result, err
}

// MarkStealable moves an active claim on issueID into the stealable set,
// tagging it with reason, regardless of caller identity — this is a
// system-driven transition (the stuck detector), not a claimant action.
func (s *Store) MarkStealable(issueID, reason string) error {
	return filelock.WithLock(s.claimsPath(), func() error {
		doc, err := s.readClaims()
		if err != nil {
			return err
		}
		claim, ok := doc.Claims[issueID]
		if !ok {
			return nil
		}
		now := time.Now().UTC()
		claim.Status = "stealable"
		claim.StealReason = reason
		claim.MarkedStealableAt = &now
		doc.Stealable[issueID] = claim
		delete(doc.Claims, issueID)
		return s.writeClaims(doc)
	})
}

// StealResult is the outcome of a Steal attempt.
type StealResult struct {
	Success  bool
	Previous *storeschema.Claim
}

// Steal takes ownership of a stealable claim for newClaimant, returning
// the claim it replaced.
func (s *Store) Steal(issueID, newClaimant string) (StealResult, error) {
	var result StealResult
	err := filelock.WithLock(s.claimsPath(), func() error {
		doc, err := s.readClaims()
		if err != nil {
			return err
		}
		previous, ok := doc.Stealable[issueID]
		if !ok {
			result = StealResult{Success: false}
			return nil
		}
		previousCopy := previous
		claim := storeschema.Claim{
			IssueID:   issueID,
			Claimant:  newClaimant,
			Status:    "active",
			ClaimedAt: time.Now().UTC(),
		}
		if err := validate.Value(claim, storeschema.SchemaClaim); err != nil {
			return err
		}
		doc.Claims[issueID] = claim
		delete(doc.Stealable, issueID)
		result = StealResult{Success: true, Previous: &previousCopy}
		return s.writeClaims(doc)
	})
	return result, err
}

// ClaimConflict is a read-only report that another claimant holds or
// recently touched a resource, returned by higher-level conflict checks
// without itself mutating the claims document. Severity is "critical"
// for an active claim by someone else, "warning" for recent unclaimed
// activity by someone else.
type ClaimConflict struct {
	Path      string
	Claimant  string
	ClaimedAt time.Time
	Severity  string
}

// ClaimFilter narrows ListClaims' result set. A zero-value filter matches
// everything.
type ClaimFilter struct {
	Status   string // "active" | "stealable" | "" for both
	Claimant string // exact match, or a "agent:{session}:*" prefix match when it ends in "*"
}

// ListClaims returns claims matching filter, from both the active and
// stealable sets.
func (s *Store) ListClaims(filter ClaimFilter) ([]storeschema.Claim, error) {
	doc, err := s.readClaims()
	if err != nil {
		return nil, err
	}
	var out []storeschema.Claim
	collect := func(set map[string]storeschema.Claim, status string) {
		if filter.Status != "" && filter.Status != status {
			return
		}
		for _, c := range set {
			if !matchesClaimant(c.Claimant, filter.Claimant) {
				continue
			}
			out = append(out, c)
		}
	}
	collect(doc.Claims, "active")
	collect(doc.Stealable, "stealable")
	return out, nil
}

func matchesClaimant(claimant, pattern string) bool {
	if pattern == "" {
		return true
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(claimant) >= len(prefix) && claimant[:len(prefix)] == prefix
	}
	return claimant == pattern
}

// StealAllForClaimantPrefix moves every active claim whose claimant matches
// prefix+"*" into the stealable set with the given reason. Used by the
// stuck detector at session stop, per spec §3.2 and §4.7.
func (s *Store) StealAllForClaimantPrefix(prefix, reason string) ([]string, error) {
	var moved []string
	err := filelock.WithLock(s.claimsPath(), func() error {
		doc, err := s.readClaims()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for id, claim := range doc.Claims {
			if !matchesClaimant(claim.Claimant, prefix+"*") {
				continue
			}
			claim.Status = "stealable"
			claim.StealReason = reason
			claim.MarkedStealableAt = &now
			doc.Stealable[id] = claim
			delete(doc.Claims, id)
			moved = append(moved, id)
		}
		if len(moved) == 0 {
			return nil
		}
		return s.writeClaims(doc)
	})
	return moved, err
}

// ReleaseAllForClaimant releases every active claim owned by claimant,
// ignoring not_found/not_authorized — used by task-release at subagent
// stop, per spec §4.7.
func (s *Store) ReleaseAllForClaimant(claimant string) ([]string, error) {
	var released []string
	err := filelock.WithLock(s.claimsPath(), func() error {
		doc, err := s.readClaims()
		if err != nil {
			return err
		}
		for id, claim := range doc.Claims {
			if claim.Claimant != claimant {
				continue
			}
			delete(doc.Claims, id)
			released = append(released, id)
		}
		if len(released) == 0 {
			return nil
		}
		return s.writeClaims(doc)
	})
	return released, err
}

func (s *Store) writeClaims(doc claimsDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "marshal claims", err)
	}
	if err := filelock.WriteAtomic(s.claimsPath(), data, 0o644); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "write claims", err)
	}
	return nil
}
