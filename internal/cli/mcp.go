package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codalotl/sampleverify/internal/mcpserver"
	"github.com/codalotl/sampleverify/internal/types"
	"github.com/codalotl/sampleverify/internal/verify"
)

func newMCPCmd(g *globalOptions) *cobra.Command {
	var maxAttempts int
	var onlyReport bool
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "mcp",
		Short: "Serve the " + mcpserver.ToolName + " tool over stdio (Model Context Protocol)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol.
			env, err := g.env(envOptions{out: cmd.ErrOrStderr(), maxAttempts: maxAttempts})
			if err != nil {
				return err
			}
			defer env.writeMetrics()

			rootDir, _ := os.Getwd()
			runID := uuid.NewString()
			server := mcpserver.New(env.mcpVerifyFunc(rootDir, runID, onlyReport), version, env.logger)
			env.logger.Info("serving MCP over stdio", "tool", mcpserver.ToolName, "run_id", runID)
			return mcpserver.Serve(cmd.Context(), server)
		},
	})
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "type checks per call before giving up (default 5)")
	cmd.Flags().BoolVar(&onlyReport, "only-report", false, "do not write records under results/")
	return cmd
}

func (e *runEnv) mcpVerifyFunc(rootDir, runID string, onlyReport bool) mcpserver.VerifyFunc {
	return func(ctx context.Context, req mcpserver.Request, sample types.GeneratedSample) (*types.VerificationResult, error) {
		res, err := verifyRunner(ctx, e.options(req.Language, req.ClientDistPath, req.PackageNameToExclude), sample)
		if err != nil {
			return nil, err
		}
		if onlyReport {
			return res, nil
		}
		language, _ := e.canonical(req.Language)
		record := &types.VerificationRecord{
			RunID:                runID,
			Sample:               sample.FileName,
			Language:             language,
			ClientDistPath:       req.ClientDistPath,
			PackageNameToExclude: req.PackageNameToExclude,
			VerifiedAt:           time.Now(),
			Result:               *res,
		}
		if _, err := verify.WriteRecord(rootDir, record); err != nil {
			return nil, fmt.Errorf("write record: %w", err)
		}
		return res, nil
	}
}
