package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Printer writes application messages and command transcripts. It is safe for concurrent use.
type Printer struct {
	mu                 sync.Mutex
	out                io.Writer
	appStyle           lipgloss.Style
	commandStyle       lipgloss.Style
	commandOutputStyle lipgloss.Style
	last               outputKind
}

type outputKind int

const (
	outputNone outputKind = iota
	outputApp
	outputCommand
)

// NewPrinter creates a Printer that writes to out. Colors are only emitted when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = io.Discard
	}
	renderer := lipgloss.NewRenderer(out)
	return &Printer{
		out:      out,
		appStyle: renderer.NewStyle().Bold(true),
		commandStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "110"}),
		commandOutputStyle: renderer.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "238", Dark: "252"}),
		last: outputNone,
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// App writes bold application output.
func (p *Printer) App(text string) error {
	if text == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureGapBeforeApp(); err != nil {
		return err
	}
	if err := p.writeStyled(p.appStyle, text); err != nil {
		return err
	}
	p.last = outputApp
	return nil
}

func (p *Printer) Appf(format string, args ...any) error {
	return p.App(fmt.Sprintf(format, args...))
}

// RunCommand prints the command invocation, runs it, and prints its combined output once it exits.
func (p *Printer) RunCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	output, cmdErr := cmd.CombinedOutput()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureGapBeforeCommand(); err != nil {
		return output, err
	}
	if err := p.writeStyled(p.commandStyle, formatCommand(name, args)); err != nil {
		return output, err
	}
	if len(output) > 0 {
		if err := p.writeStyled(p.commandOutputStyle, string(output)); err != nil {
			return output, err
		}
	}
	p.last = outputCommand
	return output, cmdErr
}

// RunCommandStreaming streams stdout/stderr through the printer as it arrives, while capturing the combined output.
func (p *Printer) RunCommandStreaming(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	p.mu.Lock()
	if err := p.ensureGapBeforeCommand(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if err := p.writeStyled(p.commandStyle, formatCommand(name, args)); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.last = outputCommand
	p.mu.Unlock()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf lockedBuffer
	writer := &styledWriter{printer: p}
	cmd.Stdout = io.MultiWriter(&buf, writer)
	cmd.Stderr = io.MultiWriter(&buf, writer)
	err := cmd.Run()
	return buf.Bytes(), err
}

func (p *Printer) ensureGapBeforeCommand() error {
	switch p.last {
	case outputApp, outputCommand:
		_, err := io.WriteString(p.out, "\n")
		return err
	default:
		return nil
	}
}

func (p *Printer) ensureGapBeforeApp() error {
	if p.last != outputCommand {
		return nil
	}
	_, err := io.WriteString(p.out, "\n")
	return err
}

// writeStyled renders line by line so multi-line output is not padded into a block.
func (p *Printer) writeStyled(style lipgloss.Style, text string) error {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if line != "" {
			b.WriteString(style.Render(line))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

type styledWriter struct {
	printer *Printer
}

func (w *styledWriter) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	w.printer.mu.Lock()
	defer w.printer.mu.Unlock()
	if err := w.printer.writeStyled(w.printer.commandOutputStyle, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func formatCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(name))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$&|;<>*?[]{}()") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", "'\"'\"'") + "'"
}
