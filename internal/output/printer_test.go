package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppWritesPlainTextWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	require.NoError(t, p.App("hello"))
	require.NoError(t, p.Appf("attempt %d of %d", 1, 5))

	require.Equal(t, "hello\nattempt 1 of 5\n", buf.String())
}

func TestAppIgnoresEmptyText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	require.NoError(t, p.App(""))
	require.Empty(t, buf.String())
}

func TestWriteStyledKeepsLinesUnpadded(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	require.NoError(t, p.writeStyled(p.commandOutputStyle, "a\nlonger line\n\nb\n"))
	require.Equal(t, "a\nlonger line\n\nb\n", buf.String())
}

func TestFormatCommandQuotesArgs(t *testing.T) {
	got := formatCommand("docker", []string{"exec", "box", "sh", "-c", "echo $HOME", ""})
	require.Equal(t, `docker exec box sh -c 'echo $HOME' ''`, got)
}

func TestIsTerminalFalseForBuffer(t *testing.T) {
	require.False(t, IsTerminal(&bytes.Buffer{}))
}
