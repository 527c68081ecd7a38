// Package repair turns a failing sample and its diagnostics into a new candidate by asking a
// chat model (or an agent CLI) for a corrected version.
package repair

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/codalotl/sampleverify/internal/verify"
)

// ErrEmptyRepair is returned when the completion contains no code.
var ErrEmptyRepair = verify.ErrEmptyRepair

// Completer sends one system/user prompt pair and returns the raw response text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Repairer struct {
	Completer Completer
	Logger    *slog.Logger
}

// Repair asks the completer once for a corrected version of code. It does not retry; the
// verification loop decides whether another round happens.
func (r *Repairer) Repair(ctx context.Context, code, diagnostics, language string) (string, error) {
	if r == nil || r.Completer == nil {
		return "", fmt.Errorf("no completer configured")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	system, user := BuildPrompt(code, diagnostics, language)

	start := time.Now()
	resp, err := r.Completer.Complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	fixed := ExtractCode(resp)
	logger.Debug("repair completion received", "language", language, "duration", time.Since(start), "response_bytes", len(resp))
	if strings.TrimSpace(fixed) == "" {
		return "", ErrEmptyRepair
	}
	return fixed, nil
}

// Func adapts r to the verification loop.
func (r *Repairer) Func() verify.RepairFunc {
	return r.Repair
}

const systemPrompt = `You fix SDK code samples so that they pass a static type checker.
Keep the sample's intent, structure, and comments. Change only what the diagnostics require.
Do not add explanations. Reply with the complete corrected file in a single fenced code block.`

// BuildPrompt returns the system and user messages for one repair request. Only the latest
// diagnostics are included.
func BuildPrompt(code, diagnostics, language string) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "The following %s sample fails type checking.\n\n", language)
	b.WriteString("Diagnostics:\n```\n")
	b.WriteString(strings.TrimRight(diagnostics, "\n"))
	b.WriteString("\n```\n\n")
	fmt.Fprintf(&b, "Sample:\n```%s\n", fenceLanguage(language))
	b.WriteString(strings.TrimRight(code, "\n"))
	b.WriteString("\n```\n\nReturn the corrected sample.")
	return systemPrompt, b.String()
}

func fenceLanguage(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	switch l {
	case "c#", "cs", "dotnet":
		return "csharp"
	case "golang":
		return "go"
	}
	return l
}

var fencePattern = regexp.MustCompile("(?s)```[^\\n`]*\\n(.*?)\\n?```")

// ExtractCode returns the body of the first fenced code block in resp, or the whole trimmed
// response when it has none.
func ExtractCode(resp string) string {
	if m := fencePattern.FindStringSubmatch(resp); m != nil {
		body := strings.TrimRight(m[1], "\n")
		if strings.TrimSpace(body) == "" {
			return ""
		}
		return body + "\n"
	}
	trimmed := strings.TrimSpace(resp)
	if trimmed == "" {
		return ""
	}
	return trimmed + "\n"
}
