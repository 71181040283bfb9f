// Package trajectory implements the three-event trajectory tracker from
// spec §4.5: start, step, and end share one active-trajectory scratch
// file per session, and end finalizes into the shared store.
package trajectory

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mehmetkoksal-w/hookbound/internal/hookerr"
	"github.com/mehmetkoksal-w/hookbound/internal/hooklog"
	"github.com/mehmetkoksal-w/hookbound/internal/store"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
	"github.com/mehmetkoksal-w/hookbound/internal/validate"
)

const taskDescriptionMaxLen = 200

// Tracker binds the trajectory operations to one store and project.
type Tracker struct {
	store   *store.Store
	project string
	indexCap int
}

// New returns a Tracker. indexCap caps the per-project trajectory index
// (FIFO eviction), per spec §4.5; pass 0 to use the spec default of 100.
func New(s *store.Store, project string, indexCap int) *Tracker {
	if indexCap <= 0 {
		indexCap = 100
	}
	return &Tracker{store: s, project: project, indexCap: indexCap}
}

func scratchPath(sessionID string) string {
	return filepath.Join(hooklog.Dir(), "trajectory_active_"+sessionID+".json")
}

func loadActive(sessionID string) (*storeschema.Trajectory, error) {
	data, err := os.ReadFile(scratchPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, hookerr.Wrap(hookerr.ErrIO, "read active trajectory scratch", err)
	}
	var t storeschema.Trajectory
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, hookerr.Wrap(hookerr.ErrIO, "parse active trajectory scratch", err)
	}
	return &t, nil
}

func saveActive(sessionID string, t storeschema.Trajectory) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "marshal active trajectory scratch", err)
	}
	if err := os.MkdirAll(filepath.Dir(scratchPath(sessionID)), 0o755); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "create scratch dir", err)
	}
	if err := os.WriteFile(scratchPath(sessionID), data, 0o644); err != nil {
		return hookerr.Wrap(hookerr.ErrIO, "write active trajectory scratch", err)
	}
	return nil
}

func clearActive(sessionID string) {
	_ = os.Remove(scratchPath(sessionID))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Start begins a new trajectory for sessionID unless one is already
// active, per spec §4.5. task is truncated to 200 characters.
func (t *Tracker) Start(sessionID, task string) (storeschema.Trajectory, error) {
	existing, err := loadActive(sessionID)
	if err != nil {
		return storeschema.Trajectory{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	traj := storeschema.Trajectory{
		ID:        "traj-" + uuid.New().String()[:8],
		Project:   t.project,
		SessionID: sessionID,
		Task:      truncate(task, taskDescriptionMaxLen),
		Status:    "in_progress",
		Steps:     []storeschema.Step{},
		StartedAt: time.Now().UTC(),
	}
	if err := saveActive(sessionID, traj); err != nil {
		return storeschema.Trajectory{}, err
	}
	if err := t.store.StoreValue("trajectory:"+t.project+":active", traj, ""); err != nil {
		return storeschema.Trajectory{}, err
	}
	return traj, nil
}

// Step appends one recorded action to the active trajectory. A missing
// active trajectory is not an error — the hook emits {} either way.
func (t *Tracker) Step(sessionID, action string, success bool, quality float64) error {
	traj, err := loadActive(sessionID)
	if err != nil {
		return err
	}
	if traj == nil {
		return nil
	}
	traj.Steps = append(traj.Steps, storeschema.Step{
		Action:    action,
		Success:   success,
		Quality:   quality,
		Timestamp: time.Now().UTC(),
	})
	return saveActive(sessionID, *traj)
}

// End finalizes the active trajectory: computes success_rate, persists it
// under trajectory:{project}:{id}, prepends a summary to the capped
// per-project index, and clears the scratch file.
func (t *Tracker) End(sessionID string) (*storeschema.Trajectory, error) {
	traj, err := loadActive(sessionID)
	if err != nil {
		return nil, err
	}
	if traj == nil {
		return nil, nil
	}
	return t.finalize(sessionID, traj, "completed")
}

// EndAsFailed finalizes the active trajectory with status=failed, used
// by session checkpoint to flush an unclosed trajectory per spec §4.4.
func (t *Tracker) EndAsFailed(sessionID string) (*storeschema.Trajectory, error) {
	traj, err := loadActive(sessionID)
	if err != nil {
		return nil, err
	}
	if traj == nil {
		return nil, nil
	}
	return t.finalize(sessionID, traj, "failed")
}

func (t *Tracker) finalize(sessionID string, traj *storeschema.Trajectory, status string) (*storeschema.Trajectory, error) {
	successCount := 0
	for _, s := range traj.Steps {
		if s.Success {
			successCount++
		}
	}
	traj.SuccessRate = float64(successCount) / math.Max(1, float64(len(traj.Steps)))
	traj.Status = status
	now := time.Now().UTC()
	traj.EndedAt = &now

	if err := validate.Value(*traj, storeschema.SchemaTrajectory); err != nil {
		return nil, err
	}
	if err := t.store.StoreValue("trajectory:"+t.project+":"+traj.ID, *traj, ""); err != nil {
		return nil, err
	}
	if err := t.prependIndex(*traj); err != nil {
		return nil, err
	}
	clearActive(sessionID)
	_ = t.store.StoreValue("trajectory:"+t.project+":active", nil, "")
	return traj, nil
}

func (t *Tracker) prependIndex(traj storeschema.Trajectory) error {
	key := "trajectory:" + t.project + ":index"
	raw, found, err := t.store.Retrieve(key, "")
	if err != nil {
		return err
	}
	var index []storeschema.TrajectorySummary
	if found {
		if err := store.Decode(raw, &index); err != nil {
			return err
		}
	}
	summary := storeschema.TrajectorySummary{
		ID:      traj.ID,
		Task:    truncate(traj.Task, 100),
		Success: traj.SuccessRate >= 0.5,
		Steps:   len(traj.Steps),
		Ts:      time.Now().UTC(),
	}
	index = append([]storeschema.TrajectorySummary{summary}, index...)
	if len(index) > t.indexCap {
		index = index[:t.indexCap]
	}
	return t.store.StoreValue(key, index, "")
}
