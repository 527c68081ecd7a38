package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/codalotl/sampleverify/internal/fsutil"
	"github.com/codalotl/sampleverify/internal/types"
	"github.com/codalotl/sampleverify/internal/workspace"
)

// WriteRecord persists record as JSON under the results directory and returns the file path.
func WriteRecord(rootPath string, record *types.VerificationRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("nil verification record")
	}
	filename := fmt.Sprintf("%s-%s-%s.verify.json",
		record.VerifiedAt.Format("2006-01-02"),
		safePart(record.RunID, "run"),
		safePart(record.Sample, "sample"))
	outDir := filepath.Join(workspace.ResultsDir(rootPath), safePart(record.Language, "unknown"))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	outPath := filepath.Join(outDir, filename)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(outPath, data, 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}

func safePart(value, fallback string) string {
	val := strings.TrimSpace(value)
	if val == "" {
		return fallback
	}
	val = strings.ReplaceAll(val, string(os.PathSeparator), "_")
	val = strings.ReplaceAll(val, "/", "_")
	return val
}

// SummaryString returns a human-readable summary of a verification record.
func SummaryString(record *types.VerificationRecord) string {
	if record == nil {
		return ""
	}
	result := record.Result
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Verification for %s (language=%s)\n", record.Sample, record.Language))
	for _, a := range result.Attempts {
		status := "FAIL"
		if a.TypeCheckSucceeded {
			status = "PASS"
		}
		if a.Preflight {
			builder.WriteString(fmt.Sprintf("- preflight: %s\n", status))
		} else {
			builder.WriteString(fmt.Sprintf("- attempt %d: %s (%.1fs)\n", a.AttemptNumber, status, a.Duration.Seconds()))
		}
	}
	if !result.Succeeded {
		if last := strings.TrimSpace(LastOutput(&result)); last != "" {
			for _, line := range lastLines(last, 20) {
				builder.WriteString("  " + line + "\n")
			}
		}
	}
	if result.Succeeded {
		builder.WriteString(fmt.Sprintf("Result: success after %d attempt(s)\n", result.AttemptsMade))
	} else {
		builder.WriteString(fmt.Sprintf("Result: failure after %d attempt(s)\n", result.AttemptsMade))
	}
	return builder.String()
}

// DetailedString returns the summary plus the full diagnostic output of every attempt.
func DetailedString(record *types.VerificationRecord) string {
	summary := SummaryString(record)
	if record == nil {
		return summary
	}
	builder := strings.Builder{}
	if summary != "" {
		builder.WriteString(summary)
		if !strings.HasSuffix(summary, "\n") {
			builder.WriteString("\n")
		}
	}
	for _, a := range record.Result.Attempts {
		out := strings.TrimSpace(a.TypeCheckOutput)
		if out == "" {
			continue
		}
		if a.Preflight {
			builder.WriteString("preflight output:\n")
		} else {
			builder.WriteString(fmt.Sprintf("attempt %d output:\n", a.AttemptNumber))
		}
		builder.WriteString(out)
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String())
}

func lastLines(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) > n {
		lines = append([]string{fmt.Sprintf("... (%d lines omitted)", len(lines)-n)}, lines[len(lines)-n:]...)
	}
	return lines
}
