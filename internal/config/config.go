// Package config loads the optional .hookbound/config.jsonc project file
// and supplies compile-time defaults for every threshold spec.md's
// detector table and grace window name. Config only overrides thresholds
// and exclude globs; it never changes a wire-contract shape.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mehmetkoksal-w/hookbound/internal/jsonc"
)

// Detectors holds the pattern-extraction thresholds from spec §4.6.
type Detectors struct {
	HighReworkEdits      int     `json:"highReworkEdits,omitempty"`
	HighErrorRate        float64 `json:"highErrorRate,omitempty"`
	QualityDropDelta     float64 `json:"qualityDropDelta,omitempty"`
}

// Config is the shape of .hookbound/config.jsonc. Every field is optional;
// zero values fall back to Defaults().
type Config struct {
	GraceWindowSeconds int       `json:"graceWindowSeconds,omitempty"`
	ClaimExcludeGlobs  []string  `json:"claimExcludeGlobs,omitempty"`
	Detectors          Detectors `json:"detectors,omitempty"`
	MaxLessons         int       `json:"maxLessons,omitempty"`
	MinLessonConfidence float64  `json:"minLessonConfidence,omitempty"`
	LessonSearchTimeoutMS int    `json:"lessonSearchTimeoutMs,omitempty"`
	TrajectoryIndexCap int       `json:"trajectoryIndexCap,omitempty"`
}

// Defaults returns the compile-time thresholds named in spec §3.2 and §4.6.
func Defaults() Config {
	return Config{
		GraceWindowSeconds:    300,
		ClaimExcludeGlobs:     defaultExcludeGlobs(),
		Detectors: Detectors{
			HighReworkEdits:  3,
			HighErrorRate:    0.25,
			QualityDropDelta: 0.15,
		},
		MaxLessons:            3,
		MinLessonConfidence:   0.5,
		LessonSearchTimeoutMS: 2000,
		TrajectoryIndexCap:    100,
	}
}

func defaultExcludeGlobs() []string {
	return []string{
		".git/**",
		".hookbound/**",
		"node_modules/**",
		"vendor/**",
		"dist/**",
		"build/**",
		"coverage/**",
		"target/**",
		".next/**",
		".turbo/**",
		".nx/**",
		".gradle/**",
		".idea/**",
		".vscode/**",
		"**/*.min.*",
		"**/*.lock",
		"**/*.generated.*",
	}
}

// GraceWindow returns the grace window as a time.Duration.
func (c Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowSeconds) * time.Second
}

// LessonSearchTimeout returns the lesson-search deadline as a time.Duration.
func (c Config) LessonSearchTimeout() time.Duration {
	return time.Duration(c.LessonSearchTimeoutMS) * time.Millisecond
}

// Load reads .hookbound/config.jsonc under root, if present, and merges it
// over Defaults(). A missing file is not an error.
func Load(root string) Config {
	def := Defaults()
	path := filepath.Join(root, ".hookbound", "config.jsonc")
	var override Config
	if err := jsonc.DecodeFile(path, &override); err != nil {
		return def
	}
	return merge(def, override)
}

func merge(def, override Config) Config {
	out := def
	if override.GraceWindowSeconds > 0 {
		out.GraceWindowSeconds = override.GraceWindowSeconds
	}
	if len(override.ClaimExcludeGlobs) > 0 {
		out.ClaimExcludeGlobs = mergeGlobs(def.ClaimExcludeGlobs, override.ClaimExcludeGlobs)
	}
	if override.Detectors.HighReworkEdits > 0 {
		out.Detectors.HighReworkEdits = override.Detectors.HighReworkEdits
	}
	if override.Detectors.HighErrorRate > 0 {
		out.Detectors.HighErrorRate = override.Detectors.HighErrorRate
	}
	if override.Detectors.QualityDropDelta > 0 {
		out.Detectors.QualityDropDelta = override.Detectors.QualityDropDelta
	}
	if override.MaxLessons > 0 {
		out.MaxLessons = override.MaxLessons
	}
	if override.MinLessonConfidence > 0 {
		out.MinLessonConfidence = override.MinLessonConfidence
	}
	if override.LessonSearchTimeoutMS > 0 {
		out.LessonSearchTimeoutMS = override.LessonSearchTimeoutMS
	}
	if override.TrajectoryIndexCap > 0 {
		out.TrajectoryIndexCap = override.TrajectoryIndexCap
	}
	return out
}

func mergeGlobs(defaults, user []string) []string {
	seen := make(map[string]struct{})
	var merged []string
	appendIfMissing := func(globs []string) {
		for _, g := range globs {
			norm := normalizeGlob(g)
			if norm == "" {
				continue
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			merged = append(merged, norm)
		}
	}
	appendIfMissing(defaults)
	appendIfMissing(user)
	return merged
}

func normalizeGlob(g string) string {
	trimmed := strings.TrimSpace(g)
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	for strings.Contains(trimmed, "//") {
		trimmed = strings.ReplaceAll(trimmed, "//", "/")
	}
	return filepath.ToSlash(trimmed)
}

// IsExcluded reports whether path matches any of globs, using the same
// doublestar matching the teacher uses for its guardrail globs.
func IsExcluded(path string, globs []string) bool {
	normalized := filepath.ToSlash(path)
	for _, g := range globs {
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, normalized); err == nil && ok {
			return true
		}
		if !strings.HasPrefix(g, "**/") && !strings.HasPrefix(g, "/") {
			if ok, err := doublestar.Match("**/"+g, normalized); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// ProjectRoot walks up from cwd looking for a .git directory, falling back
// to cwd itself. Mirrors how the teacher locates the palace root.
func ProjectRoot(cwd string) string {
	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}
