package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/mehmetkoksal-w/hookbound/internal/hookio"
	"github.com/mehmetkoksal-w/hookbound/internal/metrics"
	"github.com/mehmetkoksal-w/hookbound/internal/trajectory"
)

// trajectoryInput carries the fields spec.md §4.5's three events need
// beyond hookio.Event's generic shape: an explicit action/task name and
// optional success/quality overrides.
type trajectoryInput struct {
	Task    string   `json:"task"`
	Action  string   `json:"action"`
	Success *bool    `json:"success"`
	Quality *float64 `json:"quality"`
}

type toolResponse struct {
	IsError bool `json:"is_error"`
}

// cmdTrajectory implements spec.md §4.5's single executable, three
// events differentiated by --event, exactly mirroring the original's
// on_start/on_step/on_end split.
func cmdTrajectory(args []string) error {
	fs := flag.NewFlagSet("trajectory", flag.ContinueOnError)
	event := fs.String("event", "", "start|step|end")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := readStdin()
	ev := hookio.ReadEvent(bytes.NewReader(raw))
	var in trajectoryInput
	_ = json.Unmarshal(raw, &in)

	e := newEnv()
	tracker := e.trajectoryTracker()

	switch *event {
	case "start":
		return onStart(tracker, e.project, e.sessionID, in, ev)
	case "step":
		return onStep(tracker, e.project, e.sessionID, in, ev)
	case "end":
		return onEnd(tracker, e.project, e.sessionID)
	default:
		return fmt.Errorf("trajectory: --event must be start, step, or end")
	}
}

func onStart(tracker *trajectory.Tracker, project, sessionID string, in trajectoryInput, ev hookio.Event) error {
	task := in.Task
	if task == "" {
		task = ev.Prompt
	}
	_, err := tracker.Start(sessionID, task)
	if err != nil {
		logf("trajectory", "start failed for %s: %v", sessionID, err)
	}
	recordHook("trajectory-start", err == nil)
	if err == nil {
		emitMetric(metrics.TableEvents,
			[]metrics.KV{{Key: "event", Value: "start"}, {Key: "project", Value: project}},
			[]metrics.KV{{Key: "sessionId", Value: sessionID}})
	}
	return emitEmpty()
}

func onStep(tracker *trajectory.Tracker, project, sessionID string, in trajectoryInput, ev hookio.Event) error {
	action := in.Action
	if action == "" {
		action = ev.ToolName
	}
	success := true
	if in.Success != nil {
		success = *in.Success
	} else if len(ev.ToolResponse) > 0 {
		var resp toolResponse
		if json.Unmarshal(ev.ToolResponse, &resp) == nil {
			success = !resp.IsError
		}
	}
	quality := 1.0
	if in.Quality != nil {
		quality = *in.Quality
	}
	err := tracker.Step(sessionID, action, success, quality)
	if err != nil {
		logf("trajectory", "step failed for %s: %v", sessionID, err)
	}
	recordHook("trajectory-step", err == nil)
	if err == nil && action != "" {
		emitMetric(metrics.TableToolUsage,
			[]metrics.KV{{Key: "action", Value: action}, {Key: "project", Value: project}},
			[]metrics.KV{{Key: "success", Value: success}, {Key: "quality", Value: quality}})
	}
	return emitEmpty()
}

func onEnd(tracker *trajectory.Tracker, project, sessionID string) error {
	traj, err := tracker.End(sessionID)
	if err != nil {
		logf("trajectory", "end failed for %s: %v", sessionID, err)
	}
	recordHook("trajectory-end", err == nil)
	if err == nil && traj != nil {
		emitMetric(metrics.TableEvents,
			[]metrics.KV{{Key: "event", Value: "end"}, {Key: "project", Value: project}},
			[]metrics.KV{{Key: "steps", Value: len(traj.Steps)}, {Key: "successRate", Value: traj.SuccessRate}})
	}
	return emitEmpty()
}
