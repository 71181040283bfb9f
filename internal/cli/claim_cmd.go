package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/claim/dashboard"
	"github.com/mehmetkoksal-w/hookbound/internal/hookio"
	"github.com/mehmetkoksal-w/hookbound/internal/querycache"
	"github.com/mehmetkoksal-w/hookbound/internal/store"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

func cmdClaim(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hookbound claim file-claim|file-release|task-claim|task-release|stuck-detector|dashboard")
	}
	switch args[0] {
	case "file-claim":
		return cmdFileClaim(args[1:])
	case "file-release":
		return cmdFileRelease(args[1:])
	case "task-claim":
		return cmdTaskClaim(args[1:])
	case "task-release":
		return cmdTaskRelease(args[1:])
	case "stuck-detector":
		return cmdStuckDetector(args[1:])
	case "dashboard":
		return cmdDashboard(args[1:])
	default:
		return fmt.Errorf("unknown claim subcommand: %s", args[0])
	}
}

type toolInputPath struct {
	FilePath string `json:"file_path"`
}

// cmdFileClaim implements spec.md §4.7's file-claim hook.
func cmdFileClaim(args []string) error {
	fs := flag.NewFlagSet("claim file-claim", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := readStdin()
	ev := hookio.ReadEvent(bytes.NewReader(raw))
	var toolInput toolInputPath
	if len(ev.ToolInput) > 0 {
		_ = json.Unmarshal(ev.ToolInput, &toolInput)
	}
	if toolInput.FilePath == "" {
		return emitEmpty()
	}

	e := newEnv()
	outcome, err := e.claimCoordinator().FileClaim(toolInput.FilePath, e.cfg.ClaimExcludeGlobs)
	recordHook("file-claim", err == nil)
	if err != nil {
		logf("file-claim", "claim failed for %s: %v", toolInput.FilePath, err)
		return emitEmpty()
	}
	if outcome.Blocked {
		logf("file-claim", "blocked %s: %s", outcome.AbsPath, outcome.BlockReason)
		return emitResult(hookio.Result{Decision: "block", Reason: outcome.BlockReason})
	}
	if outcome.SoftConflict != nil {
		return emitResult(hookio.Result{HookSpecificOutput: map[string]any{
			"softConflict": map[string]any{
				"path":      outcome.SoftConflict.Path,
				"claimant":  outcome.SoftConflict.Claimant,
				"touchedAt": outcome.SoftConflict.ClaimedAt.Format(time.RFC3339),
			},
		}})
	}
	return emitEmpty()
}

// cmdFileRelease implements spec.md §4.7's file-release hook.
func cmdFileRelease(args []string) error {
	fs := flag.NewFlagSet("claim file-release", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := readStdin()
	ev := hookio.ReadEvent(bytes.NewReader(raw))
	var toolInput toolInputPath
	if len(ev.ToolInput) > 0 {
		_ = json.Unmarshal(ev.ToolInput, &toolInput)
	}

	e := newEnv()
	err := e.claimCoordinator().FileRelease(toolInput.FilePath)
	if err != nil {
		logf("file-release", "release failed for %s: %v", toolInput.FilePath, err)
	} else if e.gateway != nil {
		_ = e.gateway.Detach([]string{"hooks", "notify"}, map[string]string{"message": "file released: " + toolInput.FilePath})
	}
	recordHook("file-release", err == nil)
	return emitEmpty()
}

type taskDescriptionInput struct {
	Description string `json:"description"`
}

// cmdTaskClaim implements spec.md §4.7's task-claim hook: never blocks.
func cmdTaskClaim(args []string) error {
	fs := flag.NewFlagSet("claim task-claim", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := readStdin()
	ev := hookio.ReadEvent(bytes.NewReader(raw))
	var toolInput taskDescriptionInput
	if len(ev.ToolInput) > 0 {
		_ = json.Unmarshal(ev.ToolInput, &toolInput)
	}
	description := toolInput.Description
	if description == "" {
		description = ev.Prompt
	}

	e := newEnv()
	_, err := e.claimCoordinator().TaskClaim(description)
	if err != nil {
		logf("task-claim", "task claim failed: %v", err)
	}
	recordHook("task-claim", err == nil)
	return emitEmpty()
}

// cmdTaskRelease implements spec.md §4.7's task-release hook, invoked at
// subagent stop: releases every task claim this session holds.
func cmdTaskRelease(args []string) error {
	fs := flag.NewFlagSet("claim task-release", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e := newEnv()
	_, err := e.claimCoordinator().TaskRelease()
	if err != nil {
		logf("task-release", "task release failed: %v", err)
	}
	recordHook("task-release", err == nil)
	return emitEmpty()
}

// cmdStuckDetector implements spec.md §4.7's stuck-detector hook,
// invoked at session stop.
func cmdStuckDetector(args []string) error {
	fs := flag.NewFlagSet("claim stuck-detector", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e := newEnv()
	moved, err := e.claimCoordinator().StuckDetector()
	if err != nil {
		logf("stuck-detector", "stuck detector failed for %s: %v", e.sessionID, err)
	} else if len(moved) > 0 {
		logf("stuck-detector", "moved %d claims to stealable for %s", len(moved), e.sessionID)
	}
	recordHook("stuck-detector", err == nil)
	return emitEmpty()
}

// cmdDashboard implements spec.md §4.7's dashboard: a read-only render,
// optionally JSON, optionally polling. Each tick reloads claims.json,
// refreshes the query cache mirror from it, and renders from the mirror.
func cmdDashboard(args []string) error {
	fs := flag.NewFlagSet("claim dashboard", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "emit machine-readable JSON")
	watch := fs.Bool("watch", false, "poll and redraw at --interval")
	interval := fs.Duration("interval", 3*time.Second, "poll interval for --watch")
	cachePath := fs.String("persist-cache", "", "path to persist the query cache (default: in-memory)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e := newEnv()
	cache, err := querycache.Open(*cachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	render := func() error {
		board, err := dashboard.Load(e.store)
		if err != nil {
			return err
		}
		if err := cache.RefreshClaims(board); err != nil {
			return err
		}
		if err := cache.RefreshTrajectoryIndex(e.project, loadTrajectorySummaries(e.store, e.project)); err != nil {
			return err
		}

		active, err := cache.OldestActive(-1)
		if err != nil {
			return err
		}
		stealable, err := cache.StealableClaims()
		if err != nil {
			return err
		}
		cached := dashboard.Board{Active: active, Stealable: stealable}
		rate, runs, err := cache.TrajectorySuccessRate(e.project)
		if err != nil {
			return err
		}

		if *asJSON {
			data, err := json.MarshalIndent(dashboardJSON{
				Board:                 cached,
				TrajectorySuccessRate: rate,
				TrajectoryRuns:        runs,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Println(dashboard.Render(cached, 0))
		if runs > 0 {
			fmt.Printf("Trajectory success rate: %.0f%% across %d runs\n", rate*100, runs)
		}
		return nil
	}

	if err := render(); err != nil {
		return err
	}
	if !*watch {
		return nil
	}
	for {
		time.Sleep(*interval)
		fmt.Println()
		if err := render(); err != nil {
			return err
		}
	}
}

// dashboardJSON is the --json payload: the cache-backed board plus the
// trajectory success rate the cache mirror also tracks.
type dashboardJSON struct {
	dashboard.Board
	TrajectorySuccessRate float64 `json:"trajectorySuccessRate"`
	TrajectoryRuns        int     `json:"trajectoryRuns"`
}

// loadTrajectorySummaries reads the project's trajectory index from the
// store, the source RefreshTrajectoryIndex mirrors into the cache. A
// missing or corrupt index yields an empty slice rather than an error:
// the dashboard still renders without trajectory stats.
func loadTrajectorySummaries(s *store.Store, project string) []storeschema.TrajectorySummary {
	raw, found, err := s.Retrieve("trajectory:"+project+":index", "")
	if err != nil || !found {
		return nil
	}
	var index []storeschema.TrajectorySummary
	if store.Decode(raw, &index) != nil {
		return nil
	}
	return index
}
