// Package dashboard renders the claims board from spec §4.7: an
// ACTIVE/STEALABLE grouped text view, or raw JSON, of the shared claims
// document.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/store"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

const defaultWidth = 60

// Board is the structured view of the claims document.
type Board struct {
	Active    []storeschema.Claim `json:"active"`
	Stealable []storeschema.Claim `json:"stealable"`
}

// Load reads the current claims board from s.
func Load(s *store.Store) (Board, error) {
	active, err := s.ListClaims(store.ClaimFilter{Status: "active"})
	if err != nil {
		return Board{}, err
	}
	stealable, err := s.ListClaims(store.ClaimFilter{Status: "stealable"})
	if err != nil {
		return Board{}, err
	}
	sort.Slice(active, func(i, j int) bool { return active[i].IssueID < active[j].IssueID })
	sort.Slice(stealable, func(i, j int) bool { return stealable[i].IssueID < stealable[j].IssueID })
	return Board{Active: active, Stealable: stealable}, nil
}

// Render formats Board as the boxed ACTIVE/STEALABLE text dashboard, per
// the teacher's box-drawing table style.
func Render(b Board, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	titleBar := strings.Repeat("═", width)
	var lines []string
	lines = append(lines, titleBar, center("CLAIMS DASHBOARD", width), titleBar, "")

	lines = append(lines, section("ACTIVE", b.Active, width)...)
	lines = append(lines, section("STEALABLE", b.Stealable, width)...)

	lines = append(lines, fmt.Sprintf("Summary: %d active, %d stealable", len(b.Active), len(b.Stealable)))
	lines = append(lines, titleBar)
	return strings.Join(lines, "\n")
}

func section(label string, claims []storeschema.Claim, width int) []string {
	lines := []string{fmt.Sprintf("%s (%d):", label, len(claims))}
	if len(claims) == 0 {
		lines = append(lines, "  (none)")
		lines = append(lines, "")
		return lines
	}
	for _, c := range claims {
		lines = append(lines, claimBox(c, width)...)
	}
	lines = append(lines, "")
	return lines
}

func claimBox(c storeschema.Claim, width int) []string {
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bottom := "└" + strings.Repeat("─", width-2) + "┘"
	line := func(content string) string {
		if len(content) > width-4 {
			content = content[:width-4]
		}
		return "│ " + padRight(content, width-4) + " │"
	}
	lines := []string{top, line(c.IssueID), line("Claimed by: " + c.Claimant)}
	lines = append(lines, line("Since: "+timeAgo(c.ClaimedAt)))
	if c.Progress != nil {
		lines = append(lines, line(fmt.Sprintf("Progress: %d%%", *c.Progress)))
	}
	if c.StealReason != "" {
		lines = append(lines, line("Reason: "+c.StealReason))
	}
	lines = append(lines, bottom)
	return lines
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%d seconds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}
