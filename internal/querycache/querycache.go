// Package querycache mirrors the JSON-file claims store into an indexed
// sqlite database for the claims dashboard, whose --watch mode reloads
// claims.json on every tick, refreshes the mirror from it, and renders
// from the mirror's ordered queries. The mirror is read-side only: internal/store's JSON
// files remain the single source of truth, and Refresh fully replaces
// the cache's contents on each call rather than incrementally patching
// it, so a stale or corrupt cache can never diverge from the store for
// more than one refresh cycle.
//
// Grounded on the teacher's internal/memory/schema.go migration-table
// pattern and internal/memory/agents.go's heartbeat/conflict queries,
// generalized here from "active agents" to "active claims".
package querycache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mehmetkoksal-w/hookbound/internal/claim/dashboard"
	"github.com/mehmetkoksal-w/hookbound/internal/hookerr"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

// Cache is an indexed mirror of the claims document and trajectory
// index, opened over an in-memory or on-disk sqlite database.
type Cache struct {
	db *sql.DB
}

// Open opens a query cache. An empty path uses a shared-cache in-memory
// database (the default), which every cache opened with an empty path in
// this process shares; a non-empty path persists it to disk, for
// the dashboard's --persist-cache flag.
func Open(path string) (*Cache, error) {
	dsn := "file::memory:?cache=shared"
	if path != "" {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, hookerr.Wrap(hookerr.ErrIO, "open query cache", err)
	}
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS claims (
			issue_id TEXT PRIMARY KEY,
			claimant TEXT NOT NULL,
			status TEXT NOT NULL,
			claimed_at TEXT NOT NULL,
			progress INTEGER,
			steal_reason TEXT DEFAULT '',
			marked_stealable_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
		CREATE INDEX IF NOT EXISTS idx_claims_claimed_at ON claims(claimed_at);`,
		`CREATE TABLE IF NOT EXISTS trajectory_index (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			task TEXT DEFAULT '',
			success INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			ts TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trajectory_index_project ON trajectory_index(project);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return hookerr.Wrap(hookerr.ErrIO, "apply query cache schema", err)
		}
	}
	var version int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "read query cache schema version", err)
	}
	if version < 0 {
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (0, ?)`, now); err != nil {
			return hookerr.Wrap(hookerr.ErrIO, "record query cache schema version", err)
		}
	}
	return nil
}

// RefreshClaims replaces the claims mirror with board's contents.
func (c *Cache) RefreshClaims(board dashboard.Board) error {
	tx, err := c.db.Begin()
	if err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "begin claims refresh", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM claims`); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "clear claims mirror", err)
	}
	insert := func(claims []storeschema.Claim) error {
		for _, cl := range claims {
			var progress any
			if cl.Progress != nil {
				progress = *cl.Progress
			}
			var markedAt any
			if cl.MarkedStealableAt != nil {
				markedAt = cl.MarkedStealableAt.UTC().Format(time.RFC3339)
			}
			_, err := tx.Exec(`
				INSERT INTO claims (issue_id, claimant, status, claimed_at, progress, steal_reason, marked_stealable_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				cl.IssueID, cl.Claimant, cl.Status, cl.ClaimedAt.UTC().Format(time.RFC3339),
				progress, cl.StealReason, markedAt)
			if err != nil {
				return fmt.Errorf("insert claim %s: %w", cl.IssueID, err)
			}
		}
		return nil
	}
	if err := insert(board.Active); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "mirror active claims", err)
	}
	if err := insert(board.Stealable); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "mirror stealable claims", err)
	}
	if err := tx.Commit(); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "commit claims refresh", err)
	}
	return nil
}

// RefreshTrajectoryIndex replaces the trajectory index mirror for one
// project with summaries.
func (c *Cache) RefreshTrajectoryIndex(project string, summaries []storeschema.TrajectorySummary) error {
	tx, err := c.db.Begin()
	if err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "begin trajectory index refresh", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trajectory_index WHERE project = ?`, project); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "clear trajectory index mirror", err)
	}
	for _, s := range summaries {
		success := 0
		if s.Success {
			success = 1
		}
		_, err := tx.Exec(`
			INSERT INTO trajectory_index (id, project, task, success, steps, ts)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, project, s.Task, success, s.Steps, s.Ts.UTC().Format(time.RFC3339))
		if err != nil {
			return hookerr.Wrap(hookerr.ErrIO, fmt.Sprintf("mirror trajectory summary %s", s.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "commit trajectory index refresh", err)
	}
	return nil
}

// StatusCounts is a group-by-status tally over the claims mirror.
type StatusCounts struct {
	Active    int
	Stealable int
}

// CountByStatus returns the claims mirror's active/stealable counts via
// a single grouped SQL query, replacing a hand-rolled Go slice count.
func (c *Cache) CountByStatus() (StatusCounts, error) {
	rows, err := c.db.Query(`SELECT status, COUNT(*) FROM claims GROUP BY status`)
	if err != nil {
		return StatusCounts{}, hookerr.Wrap(hookerr.ErrIO, "count claims by status", err)
	}
	defer rows.Close()

	var out StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, hookerr.Wrap(hookerr.ErrIO, "scan claim status count", err)
		}
		switch status {
		case "active":
			out.Active = n
		case "stealable":
			out.Stealable = n
		}
	}
	return out, nil
}

// OldestActive returns the active claims ordered oldest-first, the
// shape the dashboard needs to flag long-held files. A negative limit
// returns every active claim (sqlite treats LIMIT -1 as unbounded).
func (c *Cache) OldestActive(limit int) ([]storeschema.Claim, error) {
	return c.claimsByStatus("active", limit)
}

// StealableClaims returns the stealable claims ordered oldest-first, the
// order a claimant scanning for rework should see them in.
func (c *Cache) StealableClaims() ([]storeschema.Claim, error) {
	return c.claimsByStatus("stealable", -1)
}

func (c *Cache) claimsByStatus(status string, limit int) ([]storeschema.Claim, error) {
	rows, err := c.db.Query(`
		SELECT issue_id, claimant, claimed_at, progress, steal_reason
		FROM claims WHERE status = ?
		ORDER BY claimed_at ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, hookerr.Wrap(hookerr.ErrIO, "query "+status+" claims", err)
	}
	defer rows.Close()

	var out []storeschema.Claim
	for rows.Next() {
		var cl storeschema.Claim
		var claimedAt string
		var progress sql.NullInt64
		if err := rows.Scan(&cl.IssueID, &cl.Claimant, &claimedAt, &progress, &cl.StealReason); err != nil {
			return nil, hookerr.Wrap(hookerr.ErrIO, "scan "+status+" claim", err)
		}
		cl.ClaimedAt = parseTimeOrZero(claimedAt)
		cl.Status = status
		if progress.Valid {
			p := int(progress.Int64)
			cl.Progress = &p
		}
		out = append(out, cl)
	}
	return out, nil
}

// TrajectorySuccessRate computes a project's overall success rate from
// the mirrored trajectory index, for the dashboard summary line.
func (c *Cache) TrajectorySuccessRate(project string) (float64, int, error) {
	row := c.db.QueryRow(`
		SELECT COALESCE(AVG(success), 0), COUNT(*)
		FROM trajectory_index WHERE project = ?`, project)
	var rate float64
	var n int
	if err := row.Scan(&rate, &n); err != nil {
		return 0, 0, hookerr.Wrap(hookerr.ErrIO, "compute trajectory success rate", err)
	}
	return rate, n, nil
}

func parseTimeOrZero(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
