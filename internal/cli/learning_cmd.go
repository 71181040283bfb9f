package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mehmetkoksal-w/hookbound/internal/hookio"
	"github.com/mehmetkoksal-w/hookbound/internal/hooklog"
	"github.com/mehmetkoksal-w/hookbound/internal/learning/detect"
	"github.com/mehmetkoksal-w/hookbound/internal/learning/inject"
	"github.com/mehmetkoksal-w/hookbound/internal/store"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

func cmdLearning(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hookbound learning meta-learning|lesson-injector")
	}
	switch args[0] {
	case "meta-learning":
		return cmdMetaLearning(args[1:])
	case "lesson-injector":
		return cmdLessonInjector(args[1:])
	default:
		return fmt.Errorf("unknown learning subcommand: %s", args[0])
	}
}

// metaLearningInput carries the session-analysis fields spec.md §4.6
// names as host-suppliable-or-scratch-lookup: fileEditCounts and
// errorRate may ride directly on the event, or fall back to the scratch
// files written by the session over its lifetime.
type metaLearningInput struct {
	FileEditCounts map[string]int `json:"fileEditCounts"`
	ErrorRate      *float64       `json:"errorRate"`
	Task           string         `json:"task"`
}

type sessionAnalysisScratch struct {
	ErrorRate float64 `json:"errorRate"`
}

// cmdMetaLearning implements spec.md §4.6's pattern-extraction hook: it
// runs the three detectors and persists whatever fires, always emitting
// {} regardless of outcome.
func cmdMetaLearning(args []string) error {
	fs := flag.NewFlagSet("learning meta-learning", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := readStdin()
	var in metaLearningInput
	_ = json.Unmarshal(raw, &in)

	e := newEnv()
	d := e.cfg.Detectors

	editCounts := in.FileEditCounts
	if editCounts == nil {
		editCounts = loadFileEditCounts()
	}
	errorRate := 0.0
	if in.ErrorRate != nil {
		errorRate = *in.ErrorRate
	} else if scratch := loadSessionAnalysis(); scratch != nil {
		errorRate = scratch.ErrorRate
	}
	quality := qualityTrend(e.store, e.project)

	var findings []*detect.Finding
	findings = append(findings, detect.HighRework(editCounts, d.HighReworkEdits))
	findings = append(findings, detect.HighError(errorRate, d.HighErrorRate))
	findings = append(findings, detect.QualityDrop(quality, d.QualityDropDelta))

	patterns := e.learningStore()
	ok := true
	for _, f := range findings {
		if f == nil {
			continue
		}
		if _, err := patterns.Put(f.Type, e.project, f.Text, f.Confidence, f.Metadata); err != nil {
			logf("meta-learning", "store pattern %s failed: %v", f.Type, err)
			ok = false
		}
	}
	recordHook("meta-learning", ok)
	return emitEmpty()
}

func loadFileEditCounts() map[string]int {
	path := filepath.Join(hooklog.Dir(), "file_edit_counts.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var counts map[string]int
	_ = json.Unmarshal(data, &counts)
	return counts
}

func loadSessionAnalysis() *sessionAnalysisScratch {
	path := filepath.Join(hooklog.Dir(), "session_analysis.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var s sessionAnalysisScratch
	if json.Unmarshal(data, &s) != nil {
		return nil
	}
	return &s
}

// qualityTrend derives the per-step quality sequence the quality_drop
// detector needs from the project's trajectory index, since nothing in
// the store keeps a raw numeric success_rate series: success maps to
// 1.0, failure to 0.5, over the last 10 finalized trajectories.
func qualityTrend(s *store.Store, project string) []float64 {
	raw, found, err := s.Retrieve("trajectory:"+project+":index", "")
	if err != nil || !found {
		return nil
	}
	var index []storeschema.TrajectorySummary
	if store.Decode(raw, &index) != nil {
		return nil
	}
	if len(index) > 10 {
		index = index[:10]
	}
	scores := make([]float64, 0, len(index))
	for i := len(index) - 1; i >= 0; i-- {
		if index[i].Success {
			scores = append(scores, 1.0)
		} else {
			scores = append(scores, 0.5)
		}
	}
	return scores
}

// cmdLessonInjector implements spec.md §4.6's lesson-injection hook,
// bounded by the configured search timeout.
func cmdLessonInjector(args []string) error {
	fs := flag.NewFlagSet("learning lesson-injector", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := readStdin()
	ev := hookio.ReadEvent(bytes.NewReader(raw))
	e := newEnv()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.LessonSearchTimeout())
	defer cancel()

	in := inject.New(e.gateway, e.learningStore(), e.cfg.MaxLessons, e.cfg.MinLessonConfidence)
	additionalContext := in.Inject(ctx, e.project, ev.Prompt)
	recordHook("lesson-injector", true)
	if additionalContext == "" {
		return emitEmpty()
	}
	return emitResult(hookio.Result{AdditionalContext: additionalContext})
}
