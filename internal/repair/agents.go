package repair

import (
	"fmt"
	"sort"
	"strings"
)

// EnvVarRepairAgent names an agent preset (see Agents) used as the completer.
const EnvVarRepairAgent = "SAMPLEVERIFY_REPAIR_AGENT"

// EnvVarRepairModel is the model handed to the agent preset. Empty means the agent's default.
const EnvVarRepairModel = "SAMPLEVERIFY_REPAIR_MODEL"

type agentPreset struct {
	args       []string
	modelFlag  string // "--model" or "--model=" (joined form)
	beforeLast bool   // prompt follows a "--" separator
}

var agentPresets = map[string]agentPreset{
	"claude": {
		args:      []string{"claude", "-p", "--output-format", "text"},
		modelFlag: "--model",
	},
	"codex": {
		args:       []string{"codex", "exec", "--skip-git-repo-check", "--sandbox", "read-only"},
		modelFlag:  "--model",
		beforeLast: true,
	},
	"cursor-agent": {
		args:      []string{"cursor-agent", "-p", "--output-format=text"},
		modelFlag: "--model",
	},
	"crush": {
		args: []string{"crush", "run", "-q"},
	},
	"codalotl": {
		args:       []string{"codalotl", "exec", "-y"},
		modelFlag:  "--model=",
		beforeLast: true,
	},
}

// Agents returns the names of the built-in agent presets.
func Agents() []string {
	names := make([]string, 0, len(agentPresets))
	for name := range agentPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AgentArgs returns the non-interactive invocation of the named agent CLI, without the prompt.
func AgentArgs(name, model string) ([]string, error) {
	preset, ok := agentPresets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown repair agent %q (known: %s)", name, strings.Join(Agents(), ", "))
	}
	args := append([]string(nil), preset.args...)
	if model = strings.TrimSpace(model); model != "" {
		switch {
		case preset.modelFlag == "":
			return nil, fmt.Errorf("repair agent %q does not take a model", name)
		case strings.HasSuffix(preset.modelFlag, "="):
			args = append(args, preset.modelFlag+model)
		default:
			args = append(args, preset.modelFlag, model)
		}
	}
	if preset.beforeLast {
		args = append(args, "--")
	}
	return args, nil
}

// NewAgent returns a Command completer for the named agent preset.
func NewAgent(name, model, dir string) (*Command, error) {
	args, err := AgentArgs(name, model)
	if err != nil {
		return nil, err
	}
	return &Command{args: args, dir: dir}, nil
}
