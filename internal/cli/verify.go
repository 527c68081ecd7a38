package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codalotl/sampleverify/internal/fsutil"
	"github.com/codalotl/sampleverify/internal/manifest"
	"github.com/codalotl/sampleverify/internal/types"
	"github.com/codalotl/sampleverify/internal/verify"
	"github.com/codalotl/sampleverify/internal/workspace"
)

type fileOptions struct {
	runID      string
	rootDir    string
	write      bool
	onlyReport bool
	outDir     string
}

func newVerifyCmd(g *globalOptions) *cobra.Command {
	var language, clientDist, exclude, outDir string
	var maxAttempts int
	var write, onlyReport, asJSON, noRepair bool

	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "verify --language=<language> <file>",
		Short: "Type-check a sample and repair it until it passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.env(envOptions{out: cmd.OutOrStdout(), maxAttempts: maxAttempts, noRepair: noRepair})
			if err != nil {
				return err
			}
			defer env.writeMetrics()

			rootDir, _ := os.Getwd()
			job := manifest.Job{
				Path:                 args[0],
				Language:             language,
				ClientDistPath:       clientDist,
				PackageNameToExclude: exclude,
			}
			record, err := verifyFile(cmd.Context(), env, job, fileOptions{
				runID:      uuid.NewString(),
				rootDir:    rootDir,
				write:      write,
				onlyReport: onlyReport,
				outDir:     outDir,
			})
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(record, "", "  ")
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
					return err
				}
			} else if err := env.printer.App(env.summary(record)); err != nil {
				return err
			}
			if !record.Result.Succeeded {
				return fmt.Errorf("%s: %w", record.Sample, ErrVerificationFailed)
			}
			return nil
		},
	})
	cmd.Flags().StringVarP(&language, "language", "l", "", "sample language (required)")
	cmd.Flags().StringVar(&clientDist, "client-dist", "", "client library build to install before checking")
	cmd.Flags().StringVar(&exclude, "exclude-package", "", "package to remove from the sample's dependencies")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "type checks before giving up (default 5)")
	cmd.Flags().BoolVar(&write, "write", false, "write the repaired sample back (original kept as <file>.orig)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write repaired samples into this directory")
	cmd.Flags().BoolVar(&onlyReport, "only-report", false, "print the result without writing a record under results/")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verification record as JSON")
	cmd.Flags().BoolVar(&noRepair, "no-repair", false, "only type-check; never call a repair backend")
	_ = cmd.MarkFlagRequired("language")
	return cmd
}

func newVerifyBatchCmd(g *globalOptions) *cobra.Command {
	var parallel, maxAttempts int
	var write, onlyReport, noRepair bool
	var outDir string

	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "verify-batch <manifest.yml>",
		Short: "Verify every sample listed in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manifestPath := args[0]
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			dir := filepath.Dir(manifestPath)
			if err := manifest.Validate(m, dir); err != nil {
				return err
			}
			jobs, err := m.Jobs(dir)
			if err != nil {
				return err
			}
			env, err := g.env(envOptions{out: cmd.OutOrStdout(), maxAttempts: maxAttempts, parallel: parallel, noRepair: noRepair})
			if err != nil {
				return err
			}
			defer env.writeMetrics()

			rootDir, _ := os.Getwd()
			opts := fileOptions{
				runID:      uuid.NewString(),
				rootDir:    rootDir,
				write:      write,
				onlyReport: onlyReport,
				outDir:     outDir,
			}
			if err := env.printer.Appf("Verifying %d sample(s), %d at a time (run %s)", len(jobs), env.cfg.Parallel, opts.runID); err != nil {
				return err
			}

			var failed atomic.Int32
			grp, ctx := errgroup.WithContext(ctx)
			grp.SetLimit(env.cfg.Parallel)
			for _, job := range jobs {
				grp.Go(func() error {
					record, err := verifyFile(ctx, env, job, opts)
					if err != nil {
						return fmt.Errorf("%s: %w", job.Path, err)
					}
					if !record.Result.Succeeded {
						failed.Add(1)
					}
					return env.printer.App(env.summary(record))
				})
			}
			if err := grp.Wait(); err != nil {
				return err
			}
			n := int(failed.Load())
			if err := env.printer.Appf("%d of %d sample(s) verified.", len(jobs)-n, len(jobs)); err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%d of %d samples: %w", n, len(jobs), ErrVerificationFailed)
			}
			return nil
		},
	})
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "samples verified concurrently (default 4)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "type checks per sample before giving up (default 5)")
	cmd.Flags().BoolVar(&write, "write", false, "write repaired samples back (originals kept as <file>.orig)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write repaired samples into this directory")
	cmd.Flags().BoolVar(&onlyReport, "only-report", false, "print results without writing records under results/")
	cmd.Flags().BoolVar(&noRepair, "no-repair", false, "only type-check; never call a repair backend")
	return cmd
}

// verifyFile runs the verification loop on one sample file and persists the outcome. The
// returned error covers I/O and cancellation only; a failed verification is in the record.
func verifyFile(ctx context.Context, env *runEnv, job manifest.Job, opts fileOptions) (*types.VerificationRecord, error) {
	data, err := os.ReadFile(job.Path)
	if err != nil {
		return nil, err
	}
	language, ext := env.canonical(job.Language)
	base := job.Name
	if base == "" {
		base = filepath.Base(job.Path)
	}
	name, err := workspace.SampleFileName(base, ext)
	if err != nil {
		return nil, err
	}
	sample := types.GeneratedSample{FileName: name, Content: string(data)}

	res, err := verifyRunner(ctx, env.options(job.Language, job.ClientDistPath, job.PackageNameToExclude), sample)
	if err != nil {
		return nil, err
	}
	record := &types.VerificationRecord{
		RunID:                opts.runID,
		Sample:               name,
		Language:             language,
		ClientDistPath:       job.ClientDistPath,
		PackageNameToExclude: job.PackageNameToExclude,
		VerifiedAt:           time.Now(),
		Result:               *res,
	}
	if !opts.onlyReport {
		path, err := verify.WriteRecord(opts.rootDir, record)
		if err != nil {
			return nil, fmt.Errorf("write record: %w", err)
		}
		env.logger.Debug("wrote verification record", "path", path)
	}
	if !res.Succeeded || res.Content == sample.Content {
		return record, nil
	}
	if opts.write {
		backup, err := fsutil.BackupFile(job.Path)
		if err != nil {
			return nil, fmt.Errorf("backup %s: %w", job.Path, err)
		}
		if err := fsutil.WriteFileAtomic(job.Path, []byte(res.Content), 0o644); err != nil {
			return nil, err
		}
		if err := env.printer.Appf("Wrote repaired sample to %s (original saved as %s)", job.Path, backup); err != nil {
			return nil, err
		}
	}
	if opts.outDir != "" {
		dst, err := fsutil.SafeJoin(opts.outDir, name)
		if err != nil {
			return nil, err
		}
		if err := fsutil.WriteFileAtomic(dst, []byte(res.Content), 0o644); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// canonical returns the registered name and file extension for language, or the trimmed
// input and no extension when the language is unknown.
func (e *runEnv) canonical(language string) (string, string) {
	language = strings.TrimSpace(language)
	def, err := e.registry.Lookup(language)
	if err != nil {
		return language, ""
	}
	return def.Name, filepath.Ext(def.File)
}

func (e *runEnv) summary(record *types.VerificationRecord) string {
	if e.verbose {
		return verify.DetailedString(record)
	}
	return verify.SummaryString(record)
}
