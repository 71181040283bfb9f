// Package session implements checkpoint and restore-check from spec §4.4:
// the Stop-time session save and the UserPromptSubmit-time interrupted-
// session detector, each keyed on session:{project}:{session_id} and the
// session:{project}:last alias.
package session

import (
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/store"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
	"github.com/mehmetkoksal-w/hookbound/internal/trajectory"
	"github.com/mehmetkoksal-w/hookbound/internal/validate"
)

// Manager binds session operations to one store, project, and grace
// window.
type Manager struct {
	store       *store.Store
	project     string
	graceWindow time.Duration
}

// New returns a Manager.
func New(s *store.Store, project string, graceWindow time.Duration) *Manager {
	return &Manager{store: s, project: project, graceWindow: graceWindow}
}

func (m *Manager) lastKey() string { return "session:" + m.project + ":last" }
func (m *Manager) key(sessionID string) string {
	return "session:" + m.project + ":" + sessionID
}

// Checkpoint writes the session's final state to both the per-session key
// and the :last alias with completed=true, and flushes any unclosed
// trajectory as failed. Always returns nil on success, per spec §4.4's
// "always outputs {}" contract — callers never need a payload back.
func (m *Manager) Checkpoint(sessionID, cwd, task string, state map[string]any, trackers *trajectory.Tracker) error {
	now := time.Now().UTC()
	sess := storeschema.Session{
		SessionID:    sessionID,
		Project:      m.project,
		StartedAt:    now,
		EndedAt:      &now,
		Completed:    true,
		LastActivity: now,
		CWD:          cwd,
		Task:         task,
		State:        state,
	}
	if existing, found, err := m.store.Retrieve(m.key(sessionID), ""); err == nil && found {
		var prior storeschema.Session
		if store.Decode(existing, &prior) == nil {
			sess.StartedAt = prior.StartedAt
		}
	}
	if err := validate.Value(sess, storeschema.SchemaSession); err != nil {
		return err
	}
	if err := m.store.StoreValue(m.key(sessionID), sess, ""); err != nil {
		return err
	}
	if err := m.store.StoreValue(m.lastKey(), sess, ""); err != nil {
		return err
	}
	if trackers != nil {
		if _, err := trackers.EndAsFailed(sessionID); err != nil {
			return err
		}
	}
	return nil
}

// RestoreCheck implements spec §4.4's algorithm: emit a recovery message
// exactly once for a session that never checkpointed and is older than
// the grace window, then reset the alias so a second prompt doesn't
// re-inject.
func (m *Manager) RestoreCheck() (additionalContext string, err error) {
	raw, found, err := m.store.Retrieve(m.lastKey(), "")
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	var last storeschema.Session
	if err := store.Decode(raw, &last); err != nil {
		return "", err
	}
	if last.Completed {
		return "", nil
	}
	if time.Since(last.StartedAt) < m.graceWindow {
		return "", nil
	}

	task := last.Task
	if task == "" {
		task = "unknown"
	}
	msg := "[Interrupted session detected: " + task + "] (recovery suggestion)"

	resetLast := last
	resetLast.Completed = true
	if err := m.store.StoreValue(m.lastKey(), resetLast, ""); err != nil {
		return "", err
	}
	return msg, nil
}
