// Command hookbound is the single binary behind every hook and skill
// command in the system: the host always invokes "hookbound <module>
// <subcommand>", piping the hook event on stdin and reading a JSON
// result off stdout.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/cli"
	"github.com/mehmetkoksal-w/hookbound/internal/hookio"
	"github.com/mehmetkoksal-w/hookbound/internal/hooklog"
)

const defaultDeadline = 5 * time.Second

func main() {
	args, deadline := parseDeadline(os.Args[1:])
	if err := runBounded(args, deadline); err != nil {
		fmt.Fprintf(os.Stderr, "hookbound: %v\n", err)
		os.Exit(1)
	}
}

// parseDeadline strips a leading -timeout=<duration> flag (the host's
// declared timeout, minus its own safety margin) and returns the
// remaining args plus the wall-clock budget this process enforces on
// itself. Every hook subcommand must return well inside this budget, so
// runBounded's own race uses it as a last-resort backstop rather than
// the primary enforcement mechanism.
func parseDeadline(args []string) ([]string, time.Duration) {
	if len(args) == 0 || !strings.HasPrefix(args[0], "-timeout=") {
		return args, defaultDeadline
	}
	raw := strings.TrimPrefix(args[0], "-timeout=")
	if d, err := time.ParseDuration(raw); err == nil {
		return args[1:], d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return args[1:], time.Duration(ms) * time.Millisecond
	}
	return args[1:], defaultDeadline
}

// runBounded races cli.Run against deadline, recovering from a panic in
// either case. A timeout or a panic never surfaces as a nonzero exit or
// a malformed result to the host: the hooks' fail-open contract extends
// to the process boundary itself, so both degrade to an empty JSON
// result on stdout and a logged line, same as an ordinary internal
// error inside cli.Run.
func runBounded(args []string, deadline time.Duration) error {
	if len(args) == 0 {
		return cli.Run(args)
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				hooklog.New("panic").Printf("recovered: %v", r)
				_ = hookio.WriteResult(os.Stdout, hookio.Result{})
				done <- nil
			}
		}()
		done <- cli.Run(args)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(deadline):
		hooklog.New("timeout").Printf("%s exceeded %s deadline", strings.Join(args, " "), deadline)
		_ = hookio.WriteResult(os.Stdout, hookio.Result{})
		return nil
	}
}
