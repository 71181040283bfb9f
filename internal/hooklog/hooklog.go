// Package hooklog provides the append-only, per-hook log file used across
// the system. Hooks never write diagnostics to stdout: stdout carries
// exactly one JSON result. Anything worth recording goes to
// <dir>/<hook>.log instead, one timestamped line per call, matching the
// original Python hooks' one-log-file-per-hook convention.
package hooklog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dir returns the log/scratch directory for the current user, honoring
// METRICS_DIR for compatibility with the original deployment's override.
func Dir() string {
	if d := os.Getenv("METRICS_DIR"); d != "" {
		return d
	}
	return filepath.Join(os.TempDir(), "hookbound")
}

// Logger appends lines to a single named log file under Dir(). A Logger is
// safe to construct repeatedly; failures to open or write are swallowed,
// per the system's fail-open policy — a missing log is never a reason to
// fail a hook.
type Logger struct {
	name string
}

// New returns a Logger writing to <Dir()>/<name>.log.
func New(name string) *Logger {
	return &Logger{name: name}
}

// Printf appends a formatted, timestamped line. Errors are swallowed.
func (l *Logger) Printf(format string, args ...any) {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, l.name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	ts := time.Now().UTC().Format(time.RFC3339)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(f, "%s - %s\n", ts, msg)
}
