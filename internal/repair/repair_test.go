package repair

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/sampleverify/internal/verify"
)

type fakeCompleter struct {
	resp   string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.resp, f.err
}

func TestExtractCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"fenced with language", "Here you go:\n```python\nimport os\nprint(os.sep)\n```\nDone.", "import os\nprint(os.sep)\n"},
		{"fenced without language", "```\nx = 1\n```", "x = 1\n"},
		{"first block wins", "```ts\nconst a = 1;\n```\n```ts\nconst b = 2;\n```", "const a = 1;\n"},
		{"no fence", "  let x = 1;  \n", "let x = 1;\n"},
		{"empty fence", "```go\n```", ""},
		{"blank", "   \n", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractCode(tc.in))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	system, user := BuildPrompt("var x: int = 'a'\n", "sample.py:1: error: Incompatible types\n", "python")
	require.Contains(t, system, "type checker")
	require.Contains(t, user, "python sample fails type checking")
	require.Contains(t, user, "```\nsample.py:1: error: Incompatible types\n```")
	require.Contains(t, user, "```python\nvar x: int = 'a'\n```")

	_, user = BuildPrompt("x", "err", "C#")
	require.Contains(t, user, "```csharp\nx\n```")
}

func TestRepair(t *testing.T) {
	fc := &fakeCompleter{resp: "```python\nx: int = 1\n```"}
	r := &Repairer{Completer: fc}

	fixed, err := r.Func()(context.Background(), "x: int = 'a'\n", "error: Incompatible types", "python")
	require.NoError(t, err)
	require.Equal(t, "x: int = 1\n", fixed)
	require.Contains(t, fc.user, "error: Incompatible types")
}

func TestRepairErrors(t *testing.T) {
	_, err := (&Repairer{}).Repair(context.Background(), "x", "err", "python")
	require.Error(t, err)

	boom := errors.New("rate limited")
	_, err = (&Repairer{Completer: &fakeCompleter{err: boom}}).Repair(context.Background(), "x", "err", "python")
	require.ErrorIs(t, err, boom)

	_, err = (&Repairer{Completer: &fakeCompleter{resp: "```\n\n```"}}).Repair(context.Background(), "x", "err", "python")
	require.ErrorIs(t, err, ErrEmptyRepair)
	require.ErrorIs(t, err, verify.ErrEmptyRepair)
}
