package cli

import (
	"fmt"
	"strings"
)

func cmdExplain(args []string) error {
	topic := "all"
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		topic = strings.TrimSpace(args[0])
	}
	switch topic {
	case "all":
		fmt.Println(explainAll())
	case "session":
		fmt.Println(explainSession())
	case "trajectory":
		fmt.Println(explainTrajectory())
	case "learning":
		fmt.Println(explainLearning())
	case "claim":
		fmt.Println(explainClaim())
	case "swarm":
		fmt.Println(explainSwarm())
	default:
		return fmt.Errorf("unknown explain topic: %s (try: session|trajectory|learning|claim|swarm|all)", topic)
	}
	return nil
}

func explainAll() string {
	return strings.Join([]string{
		explainSession(),
		"",
		explainTrajectory(),
		"",
		explainLearning(),
		"",
		explainClaim(),
		"",
		explainSwarm(),
	}, "\n")
}

func explainSession() string {
	return `session
  Purpose: Save and restore continuity across a single agent session.
  Subcommands:
    - checkpoint      (session end) writes session:{project}:{id} and the :last alias, completed=true
    - restore-check    (user prompt) detects an interrupted prior session past the grace window`
}

func explainTrajectory() string {
	return `trajectory
  Purpose: Record one subagent run's step sequence and success rate.
  Flags: --event=start|step|end
  Outputs: trajectory:{project}:{id} plus a capped trajectory:{project}:index`
}

func explainLearning() string {
	return `learning
  Purpose: Mine and inject lessons from past sessions.
  Subcommands:
    - meta-learning     (session end) runs high_rework/high_error/quality_drop detectors
    - lesson-injector    (user prompt) searches patterns, injects up to 3 confidence-banded lessons`
}

func explainClaim() string {
	return `claim
  Purpose: Coordinate file and task ownership across concurrent agents.
  Subcommands:
    - file-claim / file-release   (pre/post write-class tool use)
    - task-claim / task-release   (pre-task / subagent stop, never blocks)
    - stuck-detector              (session stop) moves this session's claims to stealable
    - dashboard                   (on-demand) renders ACTIVE/STEALABLE groups`
}

func explainSwarm() string {
	return `swarm
  Purpose: Drive the optional orchestrator's hive-mind lifecycle.
  Subcommands: init | spawn | submit | status | consensus | broadcast | shutdown
  Notes: submit may report not_supported when no orchestrator server is attached; treat as non-fatal.`
}
