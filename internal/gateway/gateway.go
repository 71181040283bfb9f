// Package gateway wraps invocation of the optional external orchestrator
// CLI (spec §4.3): persistence, search, and swarm lifecycle calls all
// funnel through here so every caller gets the same timeout, failure
// classification, and detached-mode handling.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/hookerr"
)

var errNotConfigured = errors.New("gateway command not set")

// DefaultTimeout and MaxTimeout bound every blocking gateway call, per
// spec §4.3 and the hook ABI's wall-clock budget.
const (
	DefaultTimeout = 10 * time.Second
	MaxTimeout     = 30 * time.Second
)

// Result is the outcome of a blocking orchestrator invocation.
type Result struct {
	Success bool
	Stdout  string
	Stderr  string
	Parsed  map[string]any // non-nil when Stdout decoded as a JSON object
}

// Gateway invokes an external command, the orchestrator binary named by
// Command, with each call's argv and optional stdin.
type Gateway struct {
	Command string
	Timeout time.Duration
}

// New returns a Gateway for command, using DefaultTimeout.
func New(command string) *Gateway {
	return &Gateway{Command: command, Timeout: DefaultTimeout}
}

func (g *Gateway) timeout() time.Duration {
	if g.Timeout <= 0 {
		return DefaultTimeout
	}
	if g.Timeout > MaxTimeout {
		return MaxTimeout
	}
	return g.Timeout
}

// Call runs Command with args, feeding stdin (if non-nil) as JSON, and
// blocks for at most the configured timeout. The orchestrator is always
// optional: an ErrExternal-kind error here means "proceed without it",
// never a reason to fail the caller's hook.
func (g *Gateway) Call(ctx context.Context, args []string, stdin any) (Result, error) {
	if g.Command == "" {
		return Result{}, hookerr.Wrap(hookerr.ErrExternal, "no orchestrator configured", errNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, g.Command, args...)
	if stdin != nil {
		data, err := json.Marshal(stdin)
		if err != nil {
			return Result{}, hookerr.Wrap(hookerr.ErrInvalidInput, "marshal gateway stdin", err)
		}
		cmd.Stdin = bytes.NewReader(data)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, hookerr.Wrap(hookerr.ErrTimeout, "orchestrator call timed out", err)
		}
		return result, hookerr.Wrap(hookerr.ErrExternal, "orchestrator call failed", err)
	}
	result.Success = true
	var parsed map[string]any
	if json.Unmarshal(stdout.Bytes(), &parsed) == nil {
		result.Parsed = parsed
	}
	return result, nil
}

// Detach runs Command with args as a fire-and-forget background process:
// used by the file-release notification, which must not block the calling
// hook on the orchestrator's own lifetime.
func (g *Gateway) Detach(args []string, stdin any) error {
	if g.Command == "" {
		return hookerr.Wrap(hookerr.ErrExternal, "no orchestrator configured", errNotConfigured)
	}
	cmd := exec.Command(g.Command, args...)
	if stdin != nil {
		data, err := json.Marshal(stdin)
		if err != nil {
			return hookerr.Wrap(hookerr.ErrInvalidInput, "marshal gateway stdin", err)
		}
		cmd.Stdin = bytes.NewReader(data)
	}
	if err := cmd.Start(); err != nil {
		return hookerr.Wrap(hookerr.ErrExternal, "start detached orchestrator call", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
