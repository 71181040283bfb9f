package store

import "testing"

func TestStoreValueAndRetrieve(t *testing.T) {
	s := Open(t.TempDir())
	if err := s.StoreValue("greeting", map[string]any{"text": "hi"}, ""); err != nil {
		t.Fatalf("StoreValue: %v", err)
	}
	value, found, err := s.Retrieve("greeting", "")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !found {
		t.Fatal("Retrieve: expected found=true")
	}
	var decoded struct {
		Text string `json:"text"`
	}
	if err := Decode(value, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Text != "hi" {
		t.Fatalf("decoded.Text = %q, want hi", decoded.Text)
	}
}

func TestRetrieveMissingKey(t *testing.T) {
	s := Open(t.TempDir())
	_, found, err := s.Retrieve("nope", "")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if found {
		t.Fatal("Retrieve: expected found=false for a missing key")
	}
}

func TestStoreValueNamespacePrefixesKey(t *testing.T) {
	s := Open(t.TempDir())
	if err := s.StoreValue("1", "a", "session"); err != nil {
		t.Fatalf("StoreValue: %v", err)
	}
	entries, err := s.List("session:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "session:1" {
		t.Fatalf("List(session:) = %+v, want one entry keyed session:1", entries)
	}
}

func TestListFiltersByPrefixAndSorts(t *testing.T) {
	s := Open(t.TempDir())
	for _, k := range []string{"b", "a", "c"} {
		if err := s.StoreValue(k, k, "x"); err != nil {
			t.Fatalf("StoreValue(%s): %v", k, err)
		}
	}
	if err := s.StoreValue("other", "z", "y"); err != nil {
		t.Fatal(err)
	}
	entries, err := s.List("x:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	for i, want := range []string{"x:a", "x:b", "x:c"} {
		if entries[i].Key != want {
			t.Fatalf("entries[%d].Key = %q, want %q", i, entries[i].Key, want)
		}
	}
}

func TestClaimSameClaimantIsIdempotent(t *testing.T) {
	s := Open(t.TempDir())
	first, err := s.Claim("issue-1", "agent-a", nil)
	if err != nil || !first.Success {
		t.Fatalf("first Claim: %v, %+v", err, first)
	}
	claims, err := s.ListClaims(ClaimFilter{Status: "active"})
	if err != nil {
		t.Fatal(err)
	}
	firstClaimedAt := claims[0].ClaimedAt

	second, err := s.Claim("issue-1", "agent-a", nil)
	if err != nil || !second.Success {
		t.Fatalf("second Claim (same claimant): %v, %+v", err, second)
	}
	claims, err = s.ListClaims(ClaimFilter{Status: "active"})
	if err != nil {
		t.Fatal(err)
	}
	if !claims[0].ClaimedAt.Equal(firstClaimedAt) {
		t.Fatalf("ClaimedAt changed on idempotent reclaim: %v != %v", claims[0].ClaimedAt, firstClaimedAt)
	}
}

func TestClaimByDifferentClaimantConflicts(t *testing.T) {
	s := Open(t.TempDir())
	if _, err := s.Claim("issue-1", "agent-a", nil); err != nil {
		t.Fatal(err)
	}
	result, err := s.Claim("issue-1", "agent-b", nil)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if result.Success {
		t.Fatal("expected conflicting claim to fail")
	}
	if result.Existing == nil || result.Existing.Claimant != "agent-a" {
		t.Fatalf("Existing = %+v, want agent-a's claim attached", result.Existing)
	}
}

func TestReleaseByNonOwnerIsNotAuthorized(t *testing.T) {
	s := Open(t.TempDir())
	if _, err := s.Claim("issue-1", "agent-a", nil); err != nil {
		t.Fatal(err)
	}
	result, err := s.Release("issue-1", "agent-b")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if result.Success || result.Reason != "not_authorized" {
		t.Fatalf("Release by non-owner = %+v, want not_authorized failure", result)
	}
}

func TestReleaseMissingClaimIsNotFound(t *testing.T) {
	s := Open(t.TempDir())
	result, err := s.Release("nope", "agent-a")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if result.Success || result.Reason != "not_found" {
		t.Fatalf("Release of missing claim = %+v, want not_found", result)
	}
}

func TestMarkStealableThenSteal(t *testing.T) {
	s := Open(t.TempDir())
	if _, err := s.Claim("issue-1", "agent-a", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkStealable("issue-1", "idle"); err != nil {
		t.Fatalf("MarkStealable: %v", err)
	}
	active, err := s.ListClaims(ClaimFilter{Status: "active"})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("active claims after MarkStealable = %+v, want none", active)
	}

	stealResult, err := s.Steal("issue-1", "agent-b")
	if err != nil {
		t.Fatalf("Steal: %v", err)
	}
	if !stealResult.Success || stealResult.Previous == nil || stealResult.Previous.Claimant != "agent-a" {
		t.Fatalf("Steal = %+v, want success with agent-a as previous owner", stealResult)
	}

	active, err = s.ListClaims(ClaimFilter{Status: "active"})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Claimant != "agent-b" {
		t.Fatalf("active claims after Steal = %+v, want agent-b to own issue-1", active)
	}
}

func TestStealNonStealableFails(t *testing.T) {
	s := Open(t.TempDir())
	result, err := s.Steal("nope", "agent-b")
	if err != nil {
		t.Fatalf("Steal: %v", err)
	}
	if result.Success {
		t.Fatal("expected Steal on a nonexistent stealable claim to fail")
	}
}

func TestStealAllForClaimantPrefix(t *testing.T) {
	s := Open(t.TempDir())
	if _, err := s.Claim("issue-1", "agent:session-1:worker", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Claim("issue-2", "agent:session-1:worker", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Claim("issue-3", "agent:session-2:worker", nil); err != nil {
		t.Fatal(err)
	}

	moved, err := s.StealAllForClaimantPrefix("agent:session-1:", "stuck")
	if err != nil {
		t.Fatalf("StealAllForClaimantPrefix: %v", err)
	}
	if len(moved) != 2 {
		t.Fatalf("moved = %v, want 2 claims for session-1", moved)
	}

	active, err := s.ListClaims(ClaimFilter{Status: "active"})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].IssueID != "issue-3" {
		t.Fatalf("active claims after steal-all = %+v, want only issue-3 left", active)
	}
}

func TestReleaseAllForClaimant(t *testing.T) {
	s := Open(t.TempDir())
	if _, err := s.Claim("issue-1", "agent-a", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Claim("issue-2", "agent-a", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Claim("issue-3", "agent-b", nil); err != nil {
		t.Fatal(err)
	}

	released, err := s.ReleaseAllForClaimant("agent-a")
	if err != nil {
		t.Fatalf("ReleaseAllForClaimant: %v", err)
	}
	if len(released) != 2 {
		t.Fatalf("released = %v, want 2", released)
	}

	active, err := s.ListClaims(ClaimFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Claimant != "agent-b" {
		t.Fatalf("claims after ReleaseAllForClaimant = %+v, want only agent-b's left", active)
	}
}
