package repair

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// EnvVarRepairCommand selects an agent CLI as the completer, e.g. "claude -p".
const EnvVarRepairCommand = "SAMPLEVERIFY_REPAIR_COMMAND"

// Command is a Completer that runs an agent CLI with the prompt as its final argument and
// treats stdout as the response.
type Command struct {
	args []string
	dir  string
}

// NewCommand parses command with shell quoting rules. dir is the working directory (empty
// means the current one).
func NewCommand(command, dir string) (*Command, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse repair command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("repair command is empty")
	}
	return &Command{args: args, dir: dir}, nil
}

// commandRunner is replaced in tests.
var commandRunner = func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (c *Command) Complete(ctx context.Context, system, user string) (string, error) {
	prompt := strings.TrimSpace(system) + "\n\n" + strings.TrimSpace(user)
	args := append(append([]string(nil), c.args[1:]...), prompt)
	stdout, stderr, err := commandRunner(ctx, c.dir, c.args[0], args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			return "", fmt.Errorf("%s: %w", c.args[0], err)
		}
		return "", fmt.Errorf("%s: %w: %s", c.args[0], err, msg)
	}
	return string(stdout), nil
}
