package workspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultsDir(t *testing.T) {
	root := t.TempDir()

	t.Setenv(EnvVarResults, "")
	require.Equal(t, filepath.Join(root, "results"), ResultsDir(root))

	t.Setenv(EnvVarResults, "out/records")
	require.Equal(t, filepath.Join(root, "out", "records"), ResultsDir(root))

	abs := filepath.Join(t.TempDir(), "elsewhere")
	t.Setenv(EnvVarResults, abs)
	require.Equal(t, abs, ResultsDir(root))
}

func TestSampleFileName(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want string
	}{
		{name: "list_queues.py", ext: ".py", want: "list_queues.py"},
		{name: "list_queues", ext: "py", want: "list_queues.py"},
		{name: "queues/list.txt", ext: ".ts", want: "queues_list.ts"},
		{name: `a\b`, ext: "", want: "a_b"},
		{name: "Main.JAVA", ext: ".java", want: "Main.JAVA"},
	}
	for _, tt := range tests {
		got, err := SampleFileName(tt.name, tt.ext)
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.want, got, tt.name)
	}

	_, err := SampleFileName("  ", ".py")
	require.Error(t, err)
	_, err = SampleFileName("..", "")
	require.Error(t, err)
}

func TestCleanRelative(t *testing.T) {
	got, err := CleanRelative("./dist/../dist/pkg")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("dist", "pkg"), got)

	_, err = CleanRelative("")
	require.Error(t, err)
	_, err = CleanRelative("./")
	require.Error(t, err)
}
