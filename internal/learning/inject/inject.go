// Package inject formats mined patterns into the lesson text injected at
// user-prompt submit, per spec §4.6's lesson-injection algorithm.
package inject

import (
	"context"
	"sort"
	"strings"

	"github.com/mehmetkoksal-w/hookbound/internal/gateway"
	"github.com/mehmetkoksal-w/hookbound/internal/learning"
	"github.com/mehmetkoksal-w/hookbound/internal/storeschema"
)

// Injector binds lesson search to an optional gateway (preferred) and a
// required store-level fallback.
type Injector struct {
	gateway         *gateway.Gateway
	patterns        *learning.Store
	maxLessons      int
	minConfidence   float64
}

// New returns an Injector. gw may be nil, in which case Search always
// uses the store-level fallback.
func New(gw *gateway.Gateway, patterns *learning.Store, maxLessons int, minConfidence float64) *Injector {
	if maxLessons <= 0 {
		maxLessons = 3
	}
	if minConfidence <= 0 {
		minConfidence = storeschema.ConfidenceMedium
	}
	return &Injector{gateway: gw, patterns: patterns, maxLessons: maxLessons, minConfidence: minConfidence}
}

// Inject runs the full algorithm from spec §4.6 and returns the
// additionalContext string, or "" when nothing qualifies.
func (in *Injector) Inject(ctx context.Context, project, prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		return ""
	}
	patterns := in.search(ctx, project, prompt)
	if len(patterns) == 0 {
		return ""
	}

	var lessons []string
	for _, p := range patterns {
		if len(lessons) >= in.maxLessons {
			break
		}
		line := formatLesson(p)
		if line == "" {
			continue
		}
		lessons = append(lessons, line)
		_ = in.patterns.MarkUsed(p.Fingerprint)
	}
	if len(lessons) == 0 {
		return ""
	}
	return "[Lessons from past sessions]\n" + strings.Join(lessons, "\n")
}

// search tries the orchestrator gateway first (bounded by the caller's
// context timeout), falling back to the store-level linear scan on a
// miss or error, per spec §4.6 step 1.
func (in *Injector) search(ctx context.Context, project, prompt string) []storeschema.Pattern {
	if in.gateway != nil {
		result, err := in.gateway.Call(ctx, []string{"intelligence", "pattern-search", "--project", project, "--query", prompt, "--min-confidence", "0.5"}, nil)
		if err == nil && result.Success && result.Parsed != nil {
			if decoded, ok := decodePatterns(result.Parsed); ok {
				return rankedWithin(decoded, in.minConfidence)
			}
		}
	}
	patterns, err := in.patterns.Search(project, prompt, in.minConfidence)
	if err != nil {
		return nil
	}
	return patterns
}

func rankedWithin(patterns []storeschema.Pattern, minConfidence float64) []storeschema.Pattern {
	var out []storeschema.Pattern
	for _, p := range patterns {
		if p.Confidence >= minConfidence {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func decodePatterns(parsed map[string]any) ([]storeschema.Pattern, bool) {
	raw, ok := parsed["patterns"]
	if !ok {
		return nil, false
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	var out []storeschema.Pattern
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p := storeschema.Pattern{}
		if text, ok := m["text"].(string); ok {
			p.Text = text
		}
		if fp, ok := m["fingerprint"].(string); ok {
			p.Fingerprint = fp
		}
		if conf, ok := m["confidence"].(float64); ok {
			p.Confidence = conf
		}
		out = append(out, p)
	}
	return out, true
}

// formatLesson applies the confidence-band prefix rules from spec §4.6
// step 3. LOW patterns never reach here because the search floor already
// filtered them.
func formatLesson(p storeschema.Pattern) string {
	if p.Text == "" {
		return ""
	}
	switch storeschema.Band(p.Confidence) {
	case "high":
		return "- " + p.Text
	case "medium":
		return "- Consider: " + p.Text
	default:
		return ""
	}
}
