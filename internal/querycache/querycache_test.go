package querycache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/claim/dashboard"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

func openTest(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpenInMemoryDefault(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\"): %v", err)
	}
	defer c.Close()
	counts, err := c.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts.Active != 0 || counts.Stealable != 0 {
		t.Fatalf("CountByStatus on fresh cache = %+v, want zeroes", counts)
	}
}

func TestRefreshClaimsRoundTripsActiveAndStealable(t *testing.T) {
	c := openTest(t)
	progress := 40
	board := dashboard.Board{
		Active: []storeschema.Claim{
			{IssueID: "a.go", Claimant: "agent-1", Status: "active", ClaimedAt: time.Now().UTC(), Progress: &progress},
		},
		Stealable: []storeschema.Claim{
			{IssueID: "b.go", Claimant: "agent-2", Status: "stealable", ClaimedAt: time.Now().UTC(), StealReason: "stuck"},
		},
	}
	if err := c.RefreshClaims(board); err != nil {
		t.Fatalf("RefreshClaims: %v", err)
	}

	counts, err := c.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts.Active != 1 || counts.Stealable != 1 {
		t.Fatalf("CountByStatus = %+v, want 1 active, 1 stealable", counts)
	}
}

func TestRefreshClaimsFullyReplacesPriorContents(t *testing.T) {
	c := openTest(t)
	first := dashboard.Board{
		Active: []storeschema.Claim{
			{IssueID: "a.go", Claimant: "agent-1", Status: "active", ClaimedAt: time.Now().UTC()},
			{IssueID: "b.go", Claimant: "agent-2", Status: "active", ClaimedAt: time.Now().UTC()},
		},
	}
	if err := c.RefreshClaims(first); err != nil {
		t.Fatalf("RefreshClaims(first): %v", err)
	}

	second := dashboard.Board{
		Active: []storeschema.Claim{
			{IssueID: "c.go", Claimant: "agent-3", Status: "active", ClaimedAt: time.Now().UTC()},
		},
	}
	if err := c.RefreshClaims(second); err != nil {
		t.Fatalf("RefreshClaims(second): %v", err)
	}

	counts, err := c.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts.Active != 1 {
		t.Fatalf("CountByStatus.Active = %d, want 1 (prior contents should be fully replaced)", counts.Active)
	}
}

func TestOldestActiveOrdersByClaimedAtAscending(t *testing.T) {
	c := openTest(t)
	now := time.Now().UTC()
	board := dashboard.Board{
		Active: []storeschema.Claim{
			{IssueID: "newer.go", Claimant: "agent-1", Status: "active", ClaimedAt: now},
			{IssueID: "older.go", Claimant: "agent-2", Status: "active", ClaimedAt: now.Add(-time.Hour)},
		},
	}
	if err := c.RefreshClaims(board); err != nil {
		t.Fatalf("RefreshClaims: %v", err)
	}

	oldest, err := c.OldestActive(10)
	if err != nil {
		t.Fatalf("OldestActive: %v", err)
	}
	if len(oldest) != 2 {
		t.Fatalf("len(oldest) = %d, want 2", len(oldest))
	}
	if oldest[0].IssueID != "older.go" {
		t.Fatalf("oldest[0].IssueID = %q, want older.go first", oldest[0].IssueID)
	}
}

func TestOldestActiveNegativeLimitReturnsAll(t *testing.T) {
	c := openTest(t)
	now := time.Now().UTC()
	board := dashboard.Board{
		Active: []storeschema.Claim{
			{IssueID: "a.go", Claimant: "agent-1", Status: "active", ClaimedAt: now},
			{IssueID: "b.go", Claimant: "agent-2", Status: "active", ClaimedAt: now.Add(-time.Minute)},
		},
	}
	if err := c.RefreshClaims(board); err != nil {
		t.Fatalf("RefreshClaims: %v", err)
	}

	all, err := c.OldestActive(-1)
	if err != nil {
		t.Fatalf("OldestActive(-1): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2 (negative limit is unbounded)", len(all))
	}
}

func TestStealableClaimsOrdersOldestFirst(t *testing.T) {
	c := openTest(t)
	now := time.Now().UTC()
	board := dashboard.Board{
		Stealable: []storeschema.Claim{
			{IssueID: "newer.go", Claimant: "agent-1", Status: "stealable", ClaimedAt: now},
			{IssueID: "older.go", Claimant: "agent-2", Status: "stealable", ClaimedAt: now.Add(-time.Hour)},
		},
	}
	if err := c.RefreshClaims(board); err != nil {
		t.Fatalf("RefreshClaims: %v", err)
	}

	stealable, err := c.StealableClaims()
	if err != nil {
		t.Fatalf("StealableClaims: %v", err)
	}
	if len(stealable) != 2 || stealable[0].IssueID != "older.go" {
		t.Fatalf("StealableClaims = %+v, want older.go first", stealable)
	}
}

func TestOldestActiveRespectsLimit(t *testing.T) {
	c := openTest(t)
	now := time.Now().UTC()
	board := dashboard.Board{
		Active: []storeschema.Claim{
			{IssueID: "a.go", Claimant: "agent-1", Status: "active", ClaimedAt: now},
			{IssueID: "b.go", Claimant: "agent-2", Status: "active", ClaimedAt: now.Add(-time.Minute)},
			{IssueID: "c.go", Claimant: "agent-3", Status: "active", ClaimedAt: now.Add(-2 * time.Minute)},
		},
	}
	if err := c.RefreshClaims(board); err != nil {
		t.Fatalf("RefreshClaims: %v", err)
	}

	oldest, err := c.OldestActive(1)
	if err != nil {
		t.Fatalf("OldestActive: %v", err)
	}
	if len(oldest) != 1 {
		t.Fatalf("len(oldest) = %d, want 1", len(oldest))
	}
	if oldest[0].IssueID != "c.go" {
		t.Fatalf("oldest[0].IssueID = %q, want c.go (oldest)", oldest[0].IssueID)
	}
}

func TestRefreshTrajectoryIndexScopedByProject(t *testing.T) {
	c := openTest(t)
	now := time.Now().UTC()
	summaries := []storeschema.TrajectorySummary{
		{ID: "t1", Task: "fix bug", Success: true, Steps: 4, Ts: now},
		{ID: "t2", Task: "add feature", Success: false, Steps: 2, Ts: now},
	}
	if err := c.RefreshTrajectoryIndex("proj-a", summaries); err != nil {
		t.Fatalf("RefreshTrajectoryIndex: %v", err)
	}
	if err := c.RefreshTrajectoryIndex("proj-b", []storeschema.TrajectorySummary{
		{ID: "t3", Task: "other", Success: true, Steps: 1, Ts: now},
	}); err != nil {
		t.Fatalf("RefreshTrajectoryIndex(proj-b): %v", err)
	}

	rate, n, err := c.TrajectorySuccessRate("proj-a")
	if err != nil {
		t.Fatalf("TrajectorySuccessRate: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2 (scoped to proj-a)", n)
	}
	if rate != 0.5 {
		t.Fatalf("rate = %v, want 0.5 (1 of 2 succeeded)", rate)
	}
}

func TestRefreshTrajectoryIndexReplacesOnlyOwnProject(t *testing.T) {
	c := openTest(t)
	now := time.Now().UTC()
	if err := c.RefreshTrajectoryIndex("proj-a", []storeschema.TrajectorySummary{
		{ID: "t1", Success: true, Steps: 1, Ts: now},
	}); err != nil {
		t.Fatalf("RefreshTrajectoryIndex(proj-a): %v", err)
	}
	if err := c.RefreshTrajectoryIndex("proj-b", []storeschema.TrajectorySummary{
		{ID: "t2", Success: true, Steps: 1, Ts: now},
	}); err != nil {
		t.Fatalf("RefreshTrajectoryIndex(proj-b): %v", err)
	}
	// refresh proj-a with an empty set; proj-b must be untouched.
	if err := c.RefreshTrajectoryIndex("proj-a", nil); err != nil {
		t.Fatalf("RefreshTrajectoryIndex(proj-a, empty): %v", err)
	}

	_, nA, err := c.TrajectorySuccessRate("proj-a")
	if err != nil {
		t.Fatalf("TrajectorySuccessRate(proj-a): %v", err)
	}
	if nA != 0 {
		t.Fatalf("proj-a count = %d, want 0 after clearing", nA)
	}
	_, nB, err := c.TrajectorySuccessRate("proj-b")
	if err != nil {
		t.Fatalf("TrajectorySuccessRate(proj-b): %v", err)
	}
	if nB != 1 {
		t.Fatalf("proj-b count = %d, want 1 (untouched by proj-a's refresh)", nB)
	}
}

func TestTrajectorySuccessRateWithNoDataIsZero(t *testing.T) {
	c := openTest(t)
	rate, n, err := c.TrajectorySuccessRate("unknown-proj")
	if err != nil {
		t.Fatalf("TrajectorySuccessRate: %v", err)
	}
	if n != 0 || rate != 0 {
		t.Fatalf("TrajectorySuccessRate(no data) = (%v, %v), want (0, 0)", rate, n)
	}
}
