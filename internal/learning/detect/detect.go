// Package detect implements the three pattern-extraction detectors named
// in spec §4.6: high_rework, high_error, and quality_drop. Each produces
// at most one Finding; thresholds come from config so they can be tuned
// per project without touching code.
package detect

import (
	"math"
	"strconv"
)

// Finding is one detector's output, ready to be persisted as a pattern.
type Finding struct {
	Type       string
	Text       string
	Confidence float64
	Metadata   map[string]any
}

// HighRework fires when any file's edit count exceeds k, per spec §4.6's
// table: confidence = min(1.0, 0.5 + 0.1*(edits-k)).
func HighRework(fileEditCounts map[string]int, k int) *Finding {
	var worstFile string
	worstEdits := 0
	for file, edits := range fileEditCounts {
		if edits > k && edits > worstEdits {
			worstFile = file
			worstEdits = edits
		}
	}
	if worstFile == "" {
		return nil
	}
	confidence := math.Min(1.0, 0.5+0.1*float64(worstEdits-k))
	return &Finding{
		Type:       "high_rework",
		Text:       "file edited " + strconv.Itoa(worstEdits) + " times — consider smaller, more deliberate edits",
		Confidence: confidence,
		Metadata: map[string]any{
			"file":      worstFile,
			"editCount": worstEdits,
			"threshold": k,
		},
	}
}

// HighError fires when errorRate exceeds r, per spec §4.6's table:
// confidence = min(1.0, 0.4 + (errorRate-r)*2).
func HighError(errorRate, r float64) *Finding {
	if errorRate <= r {
		return nil
	}
	confidence := math.Min(1.0, 0.4+(errorRate-r)*2)
	return &Finding{
		Type:       "high_error",
		Text:       "tool error rate elevated this session — verify inputs before retrying",
		Confidence: confidence,
		Metadata: map[string]any{
			"errorRate": errorRate,
			"threshold": r,
		},
	}
}

// QualityDrop fires when the per-step quality trend falls by more than d
// across the session, per spec §4.6's table: confidence = 0.6 + min(0.4, drop).
// It requires a monotonic-enough decline: the linear-fit slope must be
// negative, not just the endpoints differing.
func QualityDrop(qualityScores []float64, d float64) *Finding {
	n := len(qualityScores)
	if n < 3 {
		return nil
	}
	slope := linearSlope(qualityScores)
	drop := qualityScores[0] - qualityScores[n-1]
	if drop <= d || slope >= 0 {
		return nil
	}
	confidence := 0.6 + math.Min(0.4, drop)
	return &Finding{
		Type:       "quality_drop",
		Text:       "quality trended downward across the session — consider a checkpoint or a fresh approach",
		Confidence: confidence,
		Metadata: map[string]any{
			"startQuality": qualityScores[0],
			"endQuality":   qualityScores[n-1],
			"totalDrop":    drop,
			"slope":        slope,
			"threshold":    d,
		},
	}
}

func linearSlope(y []float64) float64 {
	n := float64(len(y))
	xMean := (n - 1) / 2
	var ySum float64
	for _, v := range y {
		ySum += v
	}
	yMean := ySum / n

	var numerator, denominator float64
	for i, v := range y {
		dx := float64(i) - xMean
		numerator += dx * (v - yMean)
		denominator += dx * dx
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
