package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/codalotl/sampleverify/internal/types"
	"github.com/codalotl/sampleverify/internal/workspace"
)

type Options struct {
	RootPath  string
	Languages []string
	Samples   []string
	Limit     int // most recent N records per {sample,language}; zero means 1
	After     *time.Time
}

type Row struct {
	Language         string
	UniqueSamples    int
	Count            int
	Success          int
	FirstTry         int // succeeded without any repair
	PreflightFailed  int
	SuccessRate      float64
	FirstTryRate     float64
	AvgAttempts      float64
	AvgTimeSeconds   float64
	RepairedFraction float64 // share of successes that needed at least one repair
}

type Report struct {
	Rows []Row
}

func Run(opts Options) (*Report, error) {
	if strings.TrimSpace(opts.RootPath) == "" {
		return nil, errors.New("RootPath is required")
	}
	limit := opts.Limit
	if limit == 0 {
		limit = 1
	}
	if limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1, got %d", limit)
	}

	entries, err := loadRecords(workspace.ResultsDir(opts.RootPath))
	if err != nil {
		return nil, err
	}

	languageSet := sliceToSet(opts.Languages)
	sampleSet := sliceToSet(opts.Samples)

	filtered := make([]recordEntry, 0, len(entries))
	for _, e := range entries {
		if languageSet != nil && !languageSet[e.Language] {
			continue
		}
		if sampleSet != nil && !sampleSet[e.Sample] {
			continue
		}
		if opts.After != nil && e.VerifiedAt.Before(*opts.After) {
			continue
		}
		filtered = append(filtered, e)
	}

	filtered = dedupKeepLatest(filtered)
	filtered = applyLimitPerSampleLanguage(filtered, limit)

	grouped := map[string][]recordEntry{}
	for _, e := range filtered {
		grouped[e.Language] = append(grouped[e.Language], e)
	}

	rows := make([]Row, 0, len(grouped))
	for _, group := range grouped {
		rows = append(rows, buildRow(group))
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SuccessRate != rows[j].SuccessRate {
			return rows[i].SuccessRate > rows[j].SuccessRate
		}
		return rows[i].Language < rows[j].Language
	})

	return &Report{Rows: rows}, nil
}

func (r *Report) WriteCSV(w io.Writer) error {
	if w == nil {
		return errors.New("writer is nil")
	}
	header := []string{
		"language",
		"unique_samples",
		"count",
		"success",
		"first_try",
		"preflight_failed",
		"success_rate",
		"first_try_rate",
		"avg_attempts",
		"avg_time",
		"repaired_fraction",
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range r.Rows {
		record := []string{
			row.Language,
			strconv.Itoa(row.UniqueSamples),
			strconv.Itoa(row.Count),
			strconv.Itoa(row.Success),
			strconv.Itoa(row.FirstTry),
			strconv.Itoa(row.PreflightFailed),
			formatFloat(row.SuccessRate),
			formatFloat(row.FirstTryRate),
			formatFloat(row.AvgAttempts),
			formatFloat(row.AvgTimeSeconds),
			formatFloat(row.RepairedFraction),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarkdownTable renders the rows as a GitHub-flavored markdown table.
func (r *Report) MarkdownTable() string {
	var b strings.Builder
	b.WriteString("| Language | Samples | Verified | First Try | Avg Attempts | Avg Time |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "| %s | %d | %d%% | %d%% | %s | %s |\n",
			row.Language,
			row.UniqueSamples,
			int(math.Round(row.SuccessRate*100)),
			int(math.Round(row.FirstTryRate*100)),
			formatFloat(row.AvgAttempts),
			FormatDurationSeconds(row.AvgTimeSeconds))
	}
	return b.String()
}

type recordEntry struct {
	RunID      string
	Sample     string
	Language   string
	VerifiedAt time.Time
	Success    bool
	Attempts   int
	Preflight  bool
	Duration   float64
}

func loadRecords(dir string) ([]recordEntry, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []recordEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".verify.json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var rec types.VerificationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		verifiedAt := rec.VerifiedAt
		if verifiedAt.IsZero() {
			if info, err := os.Stat(path); err == nil {
				verifiedAt = info.ModTime()
			}
		}
		language := strings.ToLower(strings.TrimSpace(rec.Language))
		if language == "" {
			language = languageFromPath(dir, path)
		}

		out = append(out, recordEntry{
			RunID:      strings.TrimSpace(rec.RunID),
			Sample:     strings.TrimSpace(rec.Sample),
			Language:   language,
			VerifiedAt: verifiedAt,
			Success:    rec.Result.Succeeded,
			Attempts:   rec.Result.AttemptsMade,
			Preflight:  rec.Result.AttemptsMade == 0,
			Duration:   rec.Result.TotalDuration().Seconds(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func languageFromPath(resultsDir, filePath string) string {
	rel, err := filepath.Rel(resultsDir, filePath)
	if err != nil {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}

func sliceToSet(items []string) map[string]bool {
	var out map[string]bool
	for _, s := range items {
		val := strings.TrimSpace(s)
		if val == "" {
			continue
		}
		if out == nil {
			out = map[string]bool{}
		}
		out[val] = true
	}
	return out
}

func sampleLanguageKey(sample, language string) string {
	return sample + "\x00" + language
}

// dedupKeepLatest keeps one record per {run,sample,language}, the most recently verified.
func dedupKeepLatest(entries []recordEntry) []recordEntry {
	seen := map[string]recordEntry{}
	var noRunID []recordEntry
	for _, e := range entries {
		if e.RunID == "" {
			noRunID = append(noRunID, e)
			continue
		}
		key := e.RunID + "\x00" + sampleLanguageKey(e.Sample, e.Language)
		prev, ok := seen[key]
		if !ok || e.VerifiedAt.After(prev.VerifiedAt) {
			seen[key] = e
		}
	}
	out := make([]recordEntry, 0, len(seen)+len(noRunID))
	out = append(out, noRunID...)
	for _, e := range seen {
		out = append(out, e)
	}
	return out
}

func applyLimitPerSampleLanguage(entries []recordEntry, limit int) []recordEntry {
	grouped := map[string][]recordEntry{}
	for _, e := range entries {
		key := sampleLanguageKey(e.Sample, e.Language)
		grouped[key] = append(grouped[key], e)
	}
	out := make([]recordEntry, 0, len(entries))
	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool {
			return group[i].VerifiedAt.After(group[j].VerifiedAt)
		})
		if len(group) > limit {
			group = group[:limit]
		}
		out = append(out, group...)
	}
	return out
}

func buildRow(group []recordEntry) Row {
	samples := map[string]bool{}
	success, firstTry, preflight := 0, 0, 0
	var attempts []float64
	var times []float64
	for _, e := range group {
		samples[e.Sample] = true
		if e.Success {
			success++
			if e.Attempts == 1 {
				firstTry++
			}
		}
		if e.Preflight {
			preflight++
			continue
		}
		attempts = append(attempts, float64(e.Attempts))
		if e.Duration != 0 {
			times = append(times, e.Duration)
		}
	}

	count := len(group)
	row := Row{
		Language:        group[0].Language,
		UniqueSamples:   len(samples),
		Count:           count,
		Success:         success,
		FirstTry:        firstTry,
		PreflightFailed: preflight,
		AvgAttempts:     avgOrZero(attempts),
		AvgTimeSeconds:  avgOrZero(times),
	}
	if count > 0 {
		row.SuccessRate = float64(success) / float64(count)
		row.FirstTryRate = float64(firstTry) / float64(count)
	}
	if success > 0 {
		row.RepairedFraction = float64(success-firstTry) / float64(success)
	}
	return row
}

func avgOrZero(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// FormatDurationSeconds renders seconds as e.g. "1h 2m 3s", "4m 5s" or "6s".
func FormatDurationSeconds(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	total := int64(math.Round(seconds))
	h := total / 3600
	total %= 3600
	m := total / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func formatFloat(v float64) string {
	// Compensate for common binary floating-point representation issues so values
	// like 1.005 reliably round to 1.01 at 2 decimal places.
	rounded := math.Round((v+math.Copysign(1e-9, v))*100) / 100
	if rounded == 0 {
		return "0"
	}
	s := strconv.FormatFloat(rounded, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
