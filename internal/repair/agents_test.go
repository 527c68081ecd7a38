package repair

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentArgs(t *testing.T) {
	tests := []struct {
		name  string
		agent string
		model string
		want  []string
	}{
		{name: "claude default model", agent: "claude", want: []string{"claude", "-p", "--output-format", "text"}},
		{name: "claude with model", agent: "Claude", model: "sonnet", want: []string{"claude", "-p", "--output-format", "text", "--model", "sonnet"}},
		{name: "codex separator", agent: "codex", model: "gpt-5", want: []string{"codex", "exec", "--skip-git-repo-check", "--sandbox", "read-only", "--model", "gpt-5", "--"}},
		{name: "codalotl joined flag", agent: "codalotl", model: "gpt-5", want: []string{"codalotl", "exec", "-y", "--model=gpt-5", "--"}},
		{name: "crush", agent: "crush", want: []string{"crush", "run", "-q"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AgentArgs(tt.agent, tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgentArgsErrors(t *testing.T) {
	_, err := AgentArgs("aider", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude")

	_, err = AgentArgs("crush", "some-model")
	require.Error(t, err)
}

func TestAgentsSorted(t *testing.T) {
	assert.Equal(t, []string{"claude", "codalotl", "codex", "crush", "cursor-agent"}, Agents())
}

func TestNewAgentPassesPromptLast(t *testing.T) {
	orig := commandRunner
	t.Cleanup(func() { commandRunner = orig })

	var gotName string
	var gotArgs []string
	commandRunner = func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
		gotName, gotArgs = name, args
		return []byte("fixed"), nil, nil
	}

	c, err := NewAgent("codex", "gpt-5", "")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "codex", gotName)
	require.NotEmpty(t, gotArgs)
	assert.Equal(t, "--", gotArgs[len(gotArgs)-2])
	assert.Equal(t, "sys\n\nusr", gotArgs[len(gotArgs)-1])
}
