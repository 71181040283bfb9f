// Package claim implements the file- and task-claim hooks, and the
// stuck-detector transition, from spec §4.7. All three operate on one
// shared claims document via internal/store; this package only adds the
// hook-level shaping (path normalization, claimant identity, scratch
// bookkeeping) around store.Store's primitives.
package claim

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/config"
	"github.com/mehmetkoksal-w/hookbound/internal/hooklog"
	"github.com/mehmetkoksal-w/hookbound/internal/store"
)

// Coordinator binds claim operations to one store and session.
type Coordinator struct {
	store     *store.Store
	sessionID string
}

// New returns a Coordinator.
func New(s *store.Store, sessionID string) *Coordinator {
	return &Coordinator{store: s, sessionID: sessionID}
}

// activeFileClaim is one entry in a session's scratch file of files it
// currently holds an editor claim on, keyed by absolute path.
type activeFileClaim struct {
	ClaimedAt time.Time `json:"claimedAt"`
}

func (c *Coordinator) scratchPath() string {
	return filepath.Join(hooklog.Dir(), "active_file_claims_"+c.sessionID+".json")
}

func (c *Coordinator) loadScratch() map[string]activeFileClaim {
	out := map[string]activeFileClaim{}
	data, err := os.ReadFile(c.scratchPath())
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

func (c *Coordinator) saveScratch(m map[string]activeFileClaim) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(c.scratchPath()), 0o755)
	_ = os.WriteFile(c.scratchPath(), data, 0o644)
}

func (c *Coordinator) rememberClaim(absPath string) {
	m := c.loadScratch()
	m[absPath] = activeFileClaim{ClaimedAt: time.Now().UTC()}
	c.saveScratch(m)
}

func (c *Coordinator) forgetClaim(absPath string) {
	m := c.loadScratch()
	if _, ok := m[absPath]; !ok {
		return
	}
	delete(m, absPath)
	c.saveScratch(m)
}

// mostRecentClaim returns the most recently claimed path in the session's
// scratch state, for callers (like a post-hook release) that weren't
// given a file_path directly.
func (c *Coordinator) mostRecentClaim() string {
	m := c.loadScratch()
	var best string
	var bestAt time.Time
	for path, entry := range m {
		if entry.ClaimedAt.After(bestAt) {
			bestAt = entry.ClaimedAt
			best = path
		}
	}
	return best
}

// fileTouch is one entry in the shared (cross-session) activity log of
// files recently written by any agent, used only to surface soft
// conflict warnings — never to block a claim.
type fileTouch struct {
	Session   string    `json:"session"`
	TouchedAt time.Time `json:"touchedAt"`
}

const softConflictWindow = 10 * time.Minute

func activityLogPath() string {
	return filepath.Join(hooklog.Dir(), "file_activity.json")
}

func loadActivity() map[string]fileTouch {
	out := map[string]fileTouch{}
	data, err := os.ReadFile(activityLogPath())
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

func (c *Coordinator) touch(absPath string) {
	m := loadActivity()
	m[absPath] = fileTouch{Session: c.sessionID, TouchedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(activityLogPath()), 0o755)
	_ = os.WriteFile(activityLogPath(), data, 0o644)
}

func fileIssueID(absPath string) string { return "file:" + absPath }
func taskIssueID(taskID string) string  { return "task:" + taskID }

func (c *Coordinator) editorClaimant() string { return "agent:" + c.sessionID + ":editor" }
func (c *Coordinator) taskClaimant() string   { return "agent:" + c.sessionID + ":task" }

// FileClaimOutcome is the shaped result of a file-claim attempt.
type FileClaimOutcome struct {
	Blocked      bool
	BlockReason  string
	AbsPath      string
	SoftConflict *store.ClaimConflict
}

// FileClaim attempts to claim filePath for editing, per spec §4.7's file
// claim algorithm. filePath is resolved to an absolute path; a path
// matching one of excludeGlobs is never claimed and always succeeds
// (build artifacts, vendor dirs, etc. are exempt from coordination). A
// successful claim is remembered in a per-session scratch file so a
// later release missing file_path can still find it. A claim that
// succeeds but was recently touched by another, now-unclaimed session
// carries a non-blocking SoftConflict.
func (c *Coordinator) FileClaim(filePath string, excludeGlobs []string) (FileClaimOutcome, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return FileClaimOutcome{}, nil
	}
	if config.IsExcluded(absPath, excludeGlobs) {
		return FileClaimOutcome{AbsPath: absPath}, nil
	}

	conflict, err := c.CheckConflict(absPath)
	if err != nil {
		conflict = nil
	}

	issueID := fileIssueID(absPath)
	result, err := c.store.Claim(issueID, c.editorClaimant(), nil)
	if err != nil {
		return FileClaimOutcome{}, err
	}
	if !result.Success {
		reason := "File claimed by " + result.Existing.Claimant
		return FileClaimOutcome{Blocked: true, BlockReason: reason, AbsPath: absPath}, nil
	}
	c.rememberClaim(absPath)
	c.touch(absPath)
	return FileClaimOutcome{AbsPath: absPath, SoftConflict: conflict}, nil
}

// FileRelease releases the editor's claim on filePath, ignoring
// not_found/not_authorized: the post-hook may run after the claim was
// already released or stolen, which is not itself an error. An empty
// filePath falls back to the most recently claimed path in this
// session's scratch state.
func (c *Coordinator) FileRelease(filePath string) error {
	if filePath == "" {
		filePath = c.mostRecentClaim()
	}
	if filePath == "" {
		return nil
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil
	}
	_, err = c.store.Release(fileIssueID(absPath), c.editorClaimant())
	c.forgetClaim(absPath)
	return err
}

// TaskClaimResult is the shaped result of registering a task claim.
type TaskClaimResult struct {
	TaskID  string
	IssueID string
}

// TaskClaim registers an informational claim for a spawned subtask, per
// spec §4.7. Task claims never block: a conflict (which cannot normally
// happen, since task ids are freshly generated) is swallowed the same
// way the original hook always returns {}.
func (c *Coordinator) TaskClaim(description string) (TaskClaimResult, error) {
	taskID := generateTaskID(description)
	issueID := taskIssueID(taskID)
	context := map[string]any{"description": truncate(description, 200)}
	if _, err := c.store.Claim(issueID, c.taskClaimant(), context); err != nil {
		return TaskClaimResult{}, err
	}
	return TaskClaimResult{TaskID: taskID, IssueID: issueID}, nil
}

// TaskRelease releases every task claim held by this session's task
// claimant, called at subagent stop.
func (c *Coordinator) TaskRelease() ([]string, error) {
	return c.store.ReleaseAllForClaimant(c.taskClaimant())
}

func generateTaskID(description string) string {
	h := sha256.Sum256([]byte(description))
	return fmt.Sprintf("task-%x-%d", h[:4], time.Now().UTC().UnixNano()%1000000)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CheckConflict reports whether filePath is actively claimed by, or was
// recently touched by, a session other than this one, without creating
// or mutating any claim. An active claim by someone else is a
// "critical" conflict; unclaimed activity by someone else within the
// last 10 minutes is a "warning" — a soft conflict that never blocks,
// mirroring the teacher's CheckConflict distinction between a claimed
// file and one merely touched recently.
func (c *Coordinator) CheckConflict(filePath string) (*store.ClaimConflict, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, nil
	}
	claims, err := c.store.ListClaims(store.ClaimFilter{Status: "active"})
	if err != nil {
		return nil, err
	}
	target := fileIssueID(absPath)
	for _, cl := range claims {
		if cl.IssueID != target {
			continue
		}
		if cl.Claimant == c.editorClaimant() {
			return nil, nil
		}
		return &store.ClaimConflict{Path: absPath, Claimant: cl.Claimant, ClaimedAt: cl.ClaimedAt, Severity: "critical"}, nil
	}

	touch, ok := loadActivity()[absPath]
	if !ok || touch.Session == c.sessionID {
		return nil, nil
	}
	if time.Since(touch.TouchedAt) < softConflictWindow {
		return &store.ClaimConflict{Path: absPath, Claimant: touch.Session, ClaimedAt: touch.TouchedAt, Severity: "warning"}, nil
	}
	return nil, nil
}

// StuckDetector moves every active claim held by sessionID's editor and
// task claimants into the stealable set, per spec §3.2 and §4.7's stuck
// detector: run this at Stop so a crashed or abandoned session's claims
// become available to others.
func (c *Coordinator) StuckDetector() ([]string, error) {
	return c.store.StealAllForClaimantPrefix("agent:"+c.sessionID+":", "blocked-timeout")
}
