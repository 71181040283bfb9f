// Package cli implements hookbound's subcommand router: one hook per
// spec.md's module table, plus the swarm skill command, all dispatched
// from a single binary the way the teacher's internal/cli.Run switches
// on args[0]. Every hook subcommand owns its own fail-open contract —
// internal errors are logged and degrade to an empty result rather than
// propagating — so Run itself only ever returns an error for a genuine
// usage mistake (an unknown command, a malformed flag).
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mehmetkoksal-w/hookbound/internal/claim"
	"github.com/mehmetkoksal-w/hookbound/internal/config"
	"github.com/mehmetkoksal-w/hookbound/internal/gateway"
	"github.com/mehmetkoksal-w/hookbound/internal/hookio"
	"github.com/mehmetkoksal-w/hookbound/internal/hooklog"
	"github.com/mehmetkoksal-w/hookbound/internal/identity"
	"github.com/mehmetkoksal-w/hookbound/internal/learning"
	"github.com/mehmetkoksal-w/hookbound/internal/metrics"
	"github.com/mehmetkoksal-w/hookbound/internal/session"
	"github.com/mehmetkoksal-w/hookbound/internal/store"
	"github.com/mehmetkoksal-w/hookbound/internal/swarm"
	"github.com/mehmetkoksal-w/hookbound/internal/trajectory"
)

// Run dispatches args[0] to the matching hook or skill subcommand.
func Run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "session":
		return cmdSession(args[1:])
	case "trajectory":
		return cmdTrajectory(args[1:])
	case "learning":
		return cmdLearning(args[1:])
	case "claim":
		return cmdClaim(args[1:])
	case "swarm":
		return cmdSwarm(args[1:])
	case "explain":
		return cmdExplain(args[1:])
	case "version", "--version", "-v":
		fmt.Println("hookbound dev")
		return nil
	case "help", "-h", "--help":
		return usage()
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func usage() error {
	fmt.Println(`hookbound commands: session | trajectory | learning | claim | swarm | explain

Examples:
  hookbound session checkpoint
  hookbound session restore-check
  hookbound trajectory --event=start
  hookbound learning meta-learning
  hookbound learning lesson-injector
  hookbound claim file-claim
  hookbound claim dashboard --json
  hookbound swarm init --topology=mesh
  hookbound explain claim`)
	return nil
}

// boolFlag is a tri-state boolean flag.Value: set tells a caller whether
// the user passed the flag at all, distinguishing "false" from "absent".
type boolFlag struct {
	value bool
	set   bool
}

func (b *boolFlag) Set(s string) error {
	if s == "" {
		b.value = true
		b.set = true
		return nil
	}
	switch strings.ToLower(s) {
	case "true", "1":
		b.value = true
	case "false", "0":
		b.value = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	b.set = true
	return nil
}

func (b *boolFlag) String() string {
	if b.value {
		return "true"
	}
	return "false"
}

func (b *boolFlag) IsBoolFlag() bool { return true }

// env bundles the shared runtime handles every hook subcommand needs:
// identity, the backing store, project config, and the optional
// orchestrator gateway. Built fresh per invocation — hooks are
// short-lived processes, so there is nothing to cache across calls.
type env struct {
	project   string
	sessionID string
	store     *store.Store
	cfg       config.Config
	gateway   *gateway.Gateway
}

func newEnv() *env {
	cwd, _ := os.Getwd()
	root := config.ProjectRoot(cwd)
	return &env{
		project:   identity.ProjectName(),
		sessionID: identity.SessionID(),
		store:     store.Open(""),
		cfg:       config.Load(root),
		gateway:   newGateway(),
	}
}

// newGateway returns a Gateway wrapping the orchestrator binary named by
// HOOKBOUND_ORCHESTRATOR, or nil when unset — every caller already
// treats a nil gateway as "orchestrator absent, use the file store".
func newGateway() *gateway.Gateway {
	cmd := os.Getenv("HOOKBOUND_ORCHESTRATOR")
	if cmd == "" {
		return nil
	}
	return gateway.New(cmd)
}

func (e *env) sessionManager() *session.Manager {
	return session.New(e.store, e.project, e.cfg.GraceWindow())
}

func (e *env) trajectoryTracker() *trajectory.Tracker {
	return trajectory.New(e.store, e.project, e.cfg.TrajectoryIndexCap)
}

func (e *env) claimCoordinator() *claim.Coordinator {
	return claim.New(e.store, e.sessionID)
}

func (e *env) learningStore() *learning.Store {
	return learning.New(e.store)
}

func (e *env) swarmManager() *swarm.Manager {
	return swarm.New(e.gateway)
}

// metricsWriter returns a Writer targeting HOOKBOUND_METRICS_HOST/PORT,
// or nil when unset. Every caller sends on a detached goroutine, so a
// nil writer (metrics disabled) and an unreachable one are both silent
// no-ops from a hook's point of view.
func metricsWriter() *metrics.Writer {
	host := os.Getenv("HOOKBOUND_METRICS_HOST")
	if host == "" {
		return nil
	}
	port := 9009
	if p := os.Getenv("HOOKBOUND_METRICS_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return metrics.New(host, port)
}

func sendMetric(w *metrics.Writer, line string) {
	if w == nil || line == "" {
		return
	}
	go w.Send(line)
}

// emitMetric sends one best-effort line-protocol record for table, on a
// detached goroutine. A nil writer (metrics disabled) or an unreachable
// TSDB never affects the caller's hook result.
func emitMetric(table string, tags, fields []metrics.KV) {
	w := metricsWriter()
	if w == nil {
		return
	}
	line := metrics.Encode(metrics.Line{Table: table, Tags: tags, Fields: fields})
	sendMetric(w, line)
}

// recordHook emits one hookbound_hooks line for hook's outcome.
func recordHook(hook string, success bool) {
	emitMetric(metrics.TableHooks,
		[]metrics.KV{{Key: "hook", Value: hook}},
		[]metrics.KV{{Key: "success", Value: success}})
}

// readStdin reads the whole hook input body, bounded the way every
// hook's ABI requires: a malformed or oversized body never panics the
// caller, it just yields fewer bytes to decode.
func readStdin() []byte {
	data, _ := io.ReadAll(io.LimitReader(os.Stdin, 4<<20))
	return data
}

func logf(hook, format string, args ...any) {
	hooklog.New(hook).Printf(format, args...)
}

func emitEmpty() error {
	return hookio.WriteResult(os.Stdout, hookio.Result{})
}

func emitResult(result hookio.Result) error {
	return hookio.WriteResult(os.Stdout, result)
}
