package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/mehmetkoksal-w/hookbound/internal/metrics"
	"github.com/mehmetkoksal-w/hookbound/internal/swarm"
)

// cmdSwarm implements both the hook-style JSON lifecycle calls and the
// user-facing skill command from spec.md §4.8 and §6.5: `hookbound swarm
// init|spawn|submit|status|consensus|broadcast|shutdown` each print a
// single confirmation or error line, the skill command's contract.
func cmdSwarm(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hookbound swarm init|spawn|submit|status|consensus|broadcast|shutdown")
	}
	mgr := newEnv().swarmManager()
	ctx := context.Background()

	switch args[0] {
	case "init":
		return swarmInit(ctx, mgr, args[1:])
	case "spawn":
		return swarmSpawn(ctx, mgr, args[1:])
	case "submit", "task":
		return swarmSubmit(ctx, mgr, args[1:])
	case "status":
		return swarmStatus(ctx, mgr, args[1:])
	case "consensus":
		return swarmConsensus(ctx, mgr, args[1:])
	case "broadcast":
		return swarmBroadcast(ctx, mgr, args[1:])
	case "shutdown":
		return swarmShutdown(ctx, mgr, args[1:])
	default:
		return fmt.Errorf("unknown swarm subcommand: %s", args[0])
	}
}

func printSwarmResult(op string, r swarm.Result) error {
	if !r.Success {
		if r.Reason == "not_supported" {
			fmt.Printf("swarm %s: not supported (orchestrator unavailable)\n", op)
			return nil
		}
		fmt.Printf("swarm %s: failed (%s)\n", op, r.Reason)
		return nil
	}
	if len(r.Extra) > 0 {
		var parts []string
		for k, v := range r.Extra {
			parts = append(parts, k+"="+v)
		}
		fmt.Printf("swarm %s: ok (%s)\n", op, strings.Join(parts, ", "))
		return nil
	}
	fmt.Printf("swarm %s: ok\n", op)
	return nil
}

func swarmInit(ctx context.Context, mgr *swarm.Manager, args []string) error {
	fs := flag.NewFlagSet("swarm init", flag.ContinueOnError)
	topology := fs.String("topology", "hierarchical-mesh", "hierarchical-mesh|mesh|star|ring")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return printSwarmResult("init", mgr.Init(ctx, *topology))
}

func swarmSpawn(ctx context.Context, mgr *swarm.Manager, args []string) error {
	fs := flag.NewFlagSet("swarm spawn", flag.ContinueOnError)
	count := fs.Int("count", 1, "number of workers to spawn")
	if err := fs.Parse(args); err != nil {
		return err
	}
	remaining := fs.Args()
	if len(remaining) > 0 {
		if n, err := strconv.Atoi(remaining[0]); err == nil {
			*count = n
		}
	}
	return printSwarmResult("spawn", mgr.Spawn(ctx, *count))
}

func swarmSubmit(ctx context.Context, mgr *swarm.Manager, args []string) error {
	fs := flag.NewFlagSet("swarm submit", flag.ContinueOnError)
	priority := fs.String("priority", "normal", "task priority")
	if err := fs.Parse(args); err != nil {
		return err
	}
	description := strings.Join(fs.Args(), " ")
	if description == "" {
		return fmt.Errorf("usage: hookbound swarm submit <description>")
	}
	return printSwarmResult("submit", mgr.Submit(ctx, description, *priority))
}

func swarmStatus(ctx context.Context, mgr *swarm.Manager, args []string) error {
	fs := flag.NewFlagSet("swarm status", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "include per-worker detail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r := mgr.Status(ctx, *verbose)
	emitSwarmAgentsMetric(r)
	return printSwarmResult("status", r)
}

// emitSwarmAgentsMetric reports the live worker count from a successful
// status call, the swarm-side half of the hookbound_agents table.
func emitSwarmAgentsMetric(r swarm.Result) {
	if !r.Success {
		return
	}
	active, err := strconv.Atoi(r.Extra["workersActive"])
	if err != nil {
		return
	}
	emitMetric(metrics.TableAgents, nil, []metrics.KV{{Key: "workersActive", Value: active}})
}

func swarmConsensus(ctx context.Context, mgr *swarm.Manager, args []string) error {
	fs := flag.NewFlagSet("swarm consensus", flag.ContinueOnError)
	topic := fs.String("topic", "", "proposal topic")
	if err := fs.Parse(args); err != nil {
		return err
	}
	options := fs.Args()
	if *topic == "" {
		return fmt.Errorf("usage: hookbound swarm consensus --topic=<topic> <option>...")
	}
	return printSwarmResult("consensus", mgr.Consensus(ctx, *topic, options))
}

func swarmBroadcast(ctx context.Context, mgr *swarm.Manager, args []string) error {
	fs := flag.NewFlagSet("swarm broadcast", flag.ContinueOnError)
	target := fs.String("target", "all", "target worker id, or all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	message := strings.Join(fs.Args(), " ")
	if message == "" {
		return fmt.Errorf("usage: hookbound swarm broadcast <message>")
	}
	return printSwarmResult("broadcast", mgr.Broadcast(ctx, message, *target))
}

func swarmShutdown(ctx context.Context, mgr *swarm.Manager, args []string) error {
	fs := flag.NewFlagSet("swarm shutdown", flag.ContinueOnError)
	var force boolFlag
	fs.Var(&force, "force", "force shutdown rather than graceful")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return printSwarmResult("shutdown", mgr.Shutdown(ctx, force.value))
}
