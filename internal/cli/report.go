package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codalotl/sampleverify/internal/report"
)

func newReportCmd() *cobra.Command {
	var languages string
	var samples string
	var limit int
	var after string
	var publish bool

	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "report",
		Short: "Aggregate verification records into a CSV report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rootDir, _ := os.Getwd()
			var afterTime *time.Time
			if strings.TrimSpace(after) != "" {
				parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(after), time.Local)
				if err != nil {
					return fmt.Errorf("invalid --after (expected YYYY-MM-DD): %w", err)
				}
				afterTime = &parsed
			}

			rep, err := report.Run(report.Options{
				RootPath:  rootDir,
				Languages: splitCommaList(languages),
				Samples:   splitCommaList(samples),
				Limit:     limit,
				After:     afterTime,
			})
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := rep.WriteCSV(&buf); err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
				return err
			}
			if publish {
				command := formatCommandForPublish(os.Args)
				_, err := publishReport(rootDir, rep, command, time.Now())
				return err
			}
			return nil
		},
	})

	cmd.Flags().StringVar(&languages, "languages", "", "comma-separated language list (default: all)")
	cmd.Flags().StringVar(&samples, "samples", "", "comma-separated sample file names (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 1, "most recent N records per {sample,language}")
	cmd.Flags().StringVar(&after, "after", "", "only include records on/after YYYY-MM-DD (local time)")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish report summary to result_summaries and update README.md")

	return cmd
}

func splitCommaList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
