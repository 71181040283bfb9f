// Package identity resolves the two identifiers every hook needs before it
// can touch the store: the project name and the session id. Both
// resolutions are idempotent for the lifetime of a session, per spec §4.2.
package identity

import (
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/hooklog"
)

// ProjectName resolves the project name: CLAUDE_PROJECT_NAME override, then
// the basename of the git work tree root, then the basename of cwd.
func ProjectName() string {
	if name := os.Getenv("CLAUDE_PROJECT_NAME"); name != "" {
		return name
	}

	if root, err := gitRoot(); err == nil && root != "" {
		return filepath.Base(root)
	}

	cwd, err := os.Getwd()
	if err == nil && cwd != "" && cwd != "/" {
		return filepath.Base(cwd)
	}

	return "unknown"
}

func gitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

const sessionIDFile = "session_id"

// SessionID resolves the session id: CLAUDE_SESSION_ID override, else a
// value derived from this process's pid and start time, cached to a
// scratch file so repeated calls within the same process tree agree.
func SessionID() string {
	if id := os.Getenv("CLAUDE_SESSION_ID"); id != "" {
		return id
	}

	path := filepath.Join(hooklog.Dir(), sessionIDFile)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := derivedSessionID()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		_ = os.WriteFile(path, []byte(id), 0o644)
	}
	return id
}

func derivedSessionID() string {
	startTime := processStartTime()
	h := sha256.Sum256([]byte(strconv.Itoa(os.Getpid()) + ":" + startTime))
	return fmt.Sprintf("session-%x", h[:4])
}

// processStartTime returns the current time; no platform process-start
// signal is read. It only needs to be stable across repeated calls within
// one process, which os.Getpid() combined with the first call's timestamp
// already provides via the scratch-file cache above.
func processStartTime() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
