// Package swarm wraps the optional orchestrator's hive-mind lifecycle
// calls — init, spawn, submit, status, consensus, broadcast, shutdown —
// per spec §4.8. Every call degrades to {success:false, reason:...} when
// no orchestrator is attached; none of them are ever fatal to a caller.
package swarm

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/mehmetkoksal-w/hookbound/internal/gateway"
)

// Manager binds swarm lifecycle calls to one gateway.
type Manager struct {
	gateway *gateway.Gateway
}

// New returns a Manager. gw may be nil; every call then returns
// {success:false, reason:"not_supported"}.
func New(gw *gateway.Gateway) *Manager {
	return &Manager{gateway: gw}
}

// Result is the common shape returned by every swarm lifecycle call.
type Result struct {
	Success bool
	Output  string
	Reason  string
	Extra   map[string]string
}

var (
	hiveIDPattern     = regexp.MustCompile(`(?i)(?:hive[_\s]?id|Hive ID)[:\s]+([a-zA-Z0-9_-]+)`)
	workerIDPattern   = regexp.MustCompile(`(?i)(?:worker[_\s]?id|Worker)[:\s]+([a-zA-Z0-9_-]+)`)
	taskIDPattern     = regexp.MustCompile(`(?i)(?:task[_\s]?id|Task ID)[:\s]+([a-zA-Z0-9_-]+)`)
	proposalIDPattern = regexp.MustCompile(`(?i)(?:proposal[_\s]?id|Proposal ID)[:\s]+([a-zA-Z0-9_-]+)`)
	workersActive     = regexp.MustCompile(`(?i)(?:workers?[_\s]?active|Workers?)[:\s]+(\d+)`)
)

func (m *Manager) call(ctx context.Context, args []string) (Result, bool) {
	if m.gateway == nil {
		return Result{Success: false, Reason: "not_supported"}, false
	}
	res, err := m.gateway.Call(ctx, append([]string{"hive-mind"}, args...), nil)
	if err != nil {
		return Result{Success: false, Reason: "not_supported", Output: res.Stderr}, false
	}
	return Result{Success: res.Success, Output: res.Stdout}, true
}

// Init initializes a swarm with the given topology (hierarchical-mesh,
// mesh, star, ring), extracting a hive id from the orchestrator's output
// if present.
func (m *Manager) Init(ctx context.Context, topology string) Result {
	result, ok := m.call(ctx, []string{"init", "-t", topology})
	if !ok {
		return result
	}
	result.Extra = extractOne("hiveId", hiveIDPattern, result.Output)
	return result
}

// Spawn spawns count workers into the swarm.
func (m *Manager) Spawn(ctx context.Context, count int) Result {
	result, ok := m.call(ctx, []string{"spawn", "-n", strconv.Itoa(count)})
	if !ok {
		return result
	}
	result.Extra = extractAll("workerIds", workerIDPattern, result.Output)
	return result
}

// Submit submits a task for parallel execution. It may return
// {success:false, reason:"not_supported"} when the orchestrator's
// companion server isn't running; callers must treat that as a known
// limitation, not a failure.
func (m *Manager) Submit(ctx context.Context, description, priority string) Result {
	args := []string{"task", "-d", description}
	if priority != "" && priority != "normal" {
		args = append(args, "--priority", priority)
	}
	result, ok := m.call(ctx, args)
	if !ok {
		return result
	}
	result.Extra = extractOne("taskId", taskIDPattern, result.Output)
	return result
}

// Status returns the swarm's current status.
func (m *Manager) Status(ctx context.Context, verbose bool) Result {
	args := []string{"status"}
	if verbose {
		args = append(args, "--verbose")
	}
	result, ok := m.call(ctx, args)
	if !ok {
		return result
	}
	result.Extra = extractOne("workersActive", workersActive, result.Output)
	return result
}

// Consensus proposes a topic with options for a swarm-wide vote.
func (m *Manager) Consensus(ctx context.Context, topic string, options []string) Result {
	args := []string{"consensus", "propose", "--topic", topic}
	for _, opt := range options {
		args = append(args, "--option", opt)
	}
	result, ok := m.call(ctx, args)
	if !ok {
		return result
	}
	result.Extra = extractOne("proposalId", proposalIDPattern, result.Output)
	return result
}

// Broadcast sends a message to target workers ("all" or a specific id).
func (m *Manager) Broadcast(ctx context.Context, message, target string) Result {
	args := []string{"broadcast", "-m", message}
	if target != "" && target != "all" {
		args = append(args, "--target", target)
	}
	result, _ := m.call(ctx, args)
	return result
}

// Shutdown shuts the swarm down, gracefully unless force is set.
func (m *Manager) Shutdown(ctx context.Context, force bool) Result {
	args := []string{"shutdown"}
	if force {
		args = append(args, "--force")
	}
	result, _ := m.call(ctx, args)
	return result
}

func extractOne(key string, re *regexp.Regexp, text string) map[string]string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return map[string]string{key: m[1]}
}

func extractAll(key string, re *regexp.Regexp, text string) map[string]string {
	matches := re.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return map[string]string{key: strings.Join(ids, ",")}
}
