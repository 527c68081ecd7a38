package repair

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCommand(t *testing.T) {
	_, err := NewCommand("   ", "")
	require.Error(t, err)
	_, err = NewCommand(`claude -p "unterminated`, "")
	require.Error(t, err)

	c, err := NewCommand(`claude -p --model "claude sonnet"`, "/tmp")
	require.NoError(t, err)
	require.Equal(t, []string{"claude", "-p", "--model", "claude sonnet"}, c.args)
}

func TestCommandComplete(t *testing.T) {
	orig := commandRunner
	t.Cleanup(func() { commandRunner = orig })

	var gotDir, gotName string
	var gotArgs []string
	commandRunner = func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
		gotDir, gotName, gotArgs = dir, name, args
		return []byte("```go\npackage main\n```\n"), []byte("progress noise"), nil
	}

	c, err := NewCommand("claude -p", "/work")
	require.NoError(t, err)
	resp, err := c.Complete(context.Background(), "system text", "user text")
	require.NoError(t, err)
	require.Equal(t, "```go\npackage main\n```\n", resp)
	require.Equal(t, "/work", gotDir)
	require.Equal(t, "claude", gotName)
	require.Equal(t, []string{"-p", "system text\n\nuser text"}, gotArgs)
}

func TestCommandCompleteFailure(t *testing.T) {
	orig := commandRunner
	t.Cleanup(func() { commandRunner = orig })
	commandRunner = func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
		return nil, []byte("not logged in\n"), errors.New("exit status 1")
	}

	c, err := NewCommand("claude -p", "")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not logged in")
}
