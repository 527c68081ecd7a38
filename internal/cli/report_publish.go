package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codalotl/sampleverify/internal/fsutil"
	"github.com/codalotl/sampleverify/internal/report"
	"github.com/codalotl/sampleverify/internal/workspace"
)

const (
	beginResultsMarker = "<!-- BEGIN_RESULTS -->"
	endResultsMarker   = "<!-- END_RESULTS -->"
)

// publishReport stores the report under result_summaries/summary_<stamp>/ (CSV, markdown and
// the command that produced it) and replaces the README results block with the table. It
// returns the summary directory relative to rootDir.
func publishReport(rootDir string, rep *report.Report, command string, at time.Time) (string, error) {
	if strings.TrimSpace(rootDir) == "" {
		return "", errors.New("rootDir is required")
	}
	if rep == nil {
		return "", errors.New("report is nil")
	}
	local := at.In(time.Local)
	summaryRel := filepath.Join("result_summaries", "summary_"+local.Format("2006-01-02_15-04-05"))
	summaryDir := filepath.Join(rootDir, summaryRel)
	if err := workspace.EnsureDir(summaryDir); err != nil {
		return "", err
	}

	var csvBuf bytes.Buffer
	if err := rep.WriteCSV(&csvBuf); err != nil {
		return "", err
	}
	table := strings.TrimRight(rep.MarkdownTable(), "\n") + "\n"
	files := map[string][]byte{
		"report.csv": csvBuf.Bytes(),
		"report.md":  []byte(table),
		"command":    []byte(strings.TrimSpace(command) + "\n"),
	}
	for name, data := range files {
		if err := fsutil.WriteFileAtomic(filepath.Join(summaryDir, name), data, 0o644); err != nil {
			return "", err
		}
	}

	link := filepath.ToSlash(summaryRel)
	samples := 0
	for _, row := range rep.Rows {
		samples += row.UniqueSamples
	}
	resultsLine := fmt.Sprintf("%d sample(s) across %d language(s), verified as of %s. See [%s](%s).",
		samples, len(rep.Rows), local.Format("2006-01-02"), link, link)
	if err := updateReadmeResults(rootDir, table+"\n"+resultsLine+"\n"); err != nil {
		return "", err
	}
	return summaryRel, nil
}

func updateReadmeResults(rootDir string, replacement string) error {
	readmePath := filepath.Join(rootDir, "README.md")
	data, err := os.ReadFile(readmePath)
	if err != nil {
		return err
	}
	updated, err := replaceBetweenMarkers(string(data), beginResultsMarker, endResultsMarker, replacement)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(readmePath, []byte(updated), 0o644)
}

func replaceBetweenMarkers(doc, beginMarker, endMarker, replacement string) (string, error) {
	beginIdx := strings.Index(doc, beginMarker)
	if beginIdx < 0 {
		return "", fmt.Errorf("missing marker %q", beginMarker)
	}
	beginLineEnd := strings.Index(doc[beginIdx:], "\n")
	if beginLineEnd < 0 {
		return "", errors.New("begin marker line missing newline")
	}
	insertStart := beginIdx + beginLineEnd + 1

	endIdx := strings.Index(doc, endMarker)
	if endIdx < 0 {
		return "", fmt.Errorf("missing marker %q", endMarker)
	}
	if endIdx < insertStart {
		return "", errors.New("end marker precedes begin marker")
	}

	return doc[:insertStart] + replacement + doc[endIdx:], nil
}

func formatCommandForPublish(args []string) string {
	parts := []string{"sampleverify"}
	if len(args) > 1 {
		for _, arg := range args[1:] {
			parts = append(parts, shellQuote(arg))
		}
	}
	return strings.Join(parts, " ")
}

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	safe := true
	for _, r := range arg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '/' || r == ':' || r == ',' || r == '=':
		default:
			safe = false
		}
		if !safe {
			break
		}
	}
	if safe {
		return arg
	}
	// POSIX shell single-quote escaping: close, escape, reopen.
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
