package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/mehmetkoksal-w/hookbound/internal/hookio"
	"github.com/mehmetkoksal-w/hookbound/internal/metrics"
)

func cmdSession(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hookbound session checkpoint|restore-check")
	}
	switch args[0] {
	case "checkpoint":
		return cmdSessionCheckpoint(args[1:])
	case "restore-check":
		return cmdSessionRestoreCheck(args[1:])
	default:
		return fmt.Errorf("unknown session subcommand: %s", args[0])
	}
}

// cmdSessionCheckpoint implements spec.md §4.4's checkpoint hook: always
// emits {} regardless of internal outcome, per the hook's "host ignores
// payload" contract.
func cmdSessionCheckpoint(args []string) error {
	fs := flag.NewFlagSet("session checkpoint", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := readStdin()
	ev := hookio.ReadEvent(bytes.NewReader(raw))
	e := newEnv()

	state := map[string]any{}
	if len(ev.ToolInput) > 0 {
		_ = json.Unmarshal(ev.ToolInput, &state)
	}
	task := ""
	if t, ok := state["task"].(string); ok {
		task = t
	}

	mgr := e.sessionManager()
	tracker := e.trajectoryTracker()
	err := mgr.Checkpoint(e.sessionID, ev.CWD, task, state, tracker)
	if err != nil {
		logf("session-checkpoint", "checkpoint failed for %s: %v", e.sessionID, err)
	}
	recordHook("session-checkpoint", err == nil)
	if err == nil {
		emitMetric(metrics.TableSessions,
			[]metrics.KV{{Key: "project", Value: e.project}},
			[]metrics.KV{{Key: "completed", Value: true}, {Key: "hasTask", Value: task != ""}})
	}
	return emitEmpty()
}

// cmdSessionRestoreCheck implements spec.md §4.4's restore-check hook.
func cmdSessionRestoreCheck(args []string) error {
	fs := flag.NewFlagSet("session restore-check", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e := newEnv()
	mgr := e.sessionManager()
	additionalContext, err := mgr.RestoreCheck()
	recordHook("session-restore-check", err == nil)
	if err != nil {
		logf("session-restore-check", "restore-check failed for project %s: %v", e.project, err)
		return emitEmpty()
	}
	if additionalContext == "" {
		return emitEmpty()
	}
	return emitResult(hookio.Result{AdditionalContext: additionalContext})
}
