package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codalotl/sampleverify/internal/config"
	"github.com/codalotl/sampleverify/internal/container"
	"github.com/codalotl/sampleverify/internal/metrics"
	"github.com/codalotl/sampleverify/internal/oracle"
	"github.com/codalotl/sampleverify/internal/output"
	"github.com/codalotl/sampleverify/internal/repair"
	"github.com/codalotl/sampleverify/internal/verify"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

// ErrVerificationFailed is returned by commands when at least one sample did not pass.
var ErrVerificationFailed = errors.New("verification failed")

// These function variables allow tests to stub external dependencies.
var (
	verifyRunner    = verify.Run
	providerFactory = func(cfg config.Config, printer *output.Printer, verbose bool, logger *slog.Logger) container.Provider {
		opts := container.DockerOptions{Binary: cfg.ContainerRuntime, Logger: logger}
		if verbose {
			opts.Printer = printer
			opts.Stream = true
		}
		return container.NewDocker(opts)
	}
)

type globalOptions struct {
	logLevel    string
	logFormat   string
	languages   string
	runtime     string
	metricsFile string
	verbose     bool
}

// Execute runs the CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	executed, err := root.ExecuteContextC(ctx)
	if err != nil {
		maybePrintUsage(executed, root, err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := silenceUsageAndErrors(&cobra.Command{
		Use:     "sampleverify",
		Short:   "Type-check SDK code samples in containers and repair them until they compile.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	})
	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&g.languages, "languages", "", "language registry file (default: built-in, or $"+oracle.EnvVarLanguages+")")
	pf.StringVar(&g.runtime, "runtime", "", "container CLI to use (default: docker, or $"+container.EnvVarRuntime+")")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus text-format metrics to this file")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "echo container commands and print full diagnostics")

	root.AddCommand(newVerifyCmd(g))
	root.AddCommand(newVerifyBatchCmd(g))
	root.AddCommand(newLanguagesCmd(g))
	root.AddCommand(newSetupCmd(g))
	root.AddCommand(newReportCmd())
	root.AddCommand(newMCPCmd(g))
	return root
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (expected text or json)", format)
	}
}

// runEnv is everything a verifying command needs, built from config and flags.
type runEnv struct {
	cfg      config.Config
	logger   *slog.Logger
	printer  *output.Printer
	provider container.Provider
	registry *oracle.Registry
	metrics  *metrics.Collector
	repair   verify.RepairFunc
	verbose  bool

	metricsFile string
}

type envOptions struct {
	out         io.Writer
	maxAttempts int
	parallel    int
	noRepair    bool
}

func (g *globalOptions) config(opts envOptions) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if s := strings.TrimSpace(g.languages); s != "" {
		cfg.LanguagesFile = s
	}
	if s := strings.TrimSpace(g.runtime); s != "" {
		cfg.ContainerRuntime = s
	}
	if opts.maxAttempts != 0 {
		cfg.MaxAttempts = opts.maxAttempts
	}
	if opts.parallel != 0 {
		cfg.Parallel = opts.parallel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (g *globalOptions) env(opts envOptions) (*runEnv, error) {
	cfg, err := g.config(opts)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	printer := output.NewPrinter(opts.out)
	provider := providerFactory(cfg, printer, g.verbose, logger)

	registry, err := oracle.LoadRegistry(cfg.LanguagesFile)
	if err != nil {
		return nil, fmt.Errorf("load languages: %w", err)
	}
	registry.Provider = provider
	registry.Logger = logger

	env := &runEnv{
		cfg:         cfg,
		logger:      logger,
		printer:     printer,
		provider:    provider,
		registry:    registry,
		metrics:     metrics.NewCollector(),
		verbose:     g.verbose,
		metricsFile: strings.TrimSpace(g.metricsFile),
	}
	if opts.noRepair {
		return env, nil
	}
	completer, err := cfg.Completer(logger)
	if err != nil {
		return nil, fmt.Errorf("repair backend: %w", err)
	}
	if completer == nil {
		logger.Warn("no repair backend configured; samples are only type-checked",
			"hint", "set "+config.EnvVarOpenAIKey+", "+repair.EnvVarRepairAgent+" or "+repair.EnvVarRepairCommand)
		return env, nil
	}
	env.repair = (&repair.Repairer{Completer: completer, Logger: logger}).Func()
	return env, nil
}

func (e *runEnv) options(language, clientDist, exclude string) verify.Options {
	return verify.Options{
		Language:             language,
		ClientDistPath:       clientDist,
		PackageNameToExclude: exclude,
		Provider:             e.provider,
		Oracles:              e.registry,
		Repair:               e.repair,
		MaxAttempts:          e.cfg.MaxAttempts,
		Logger:               e.logger,
		Observer:             e.metrics,
	}
}

func (e *runEnv) writeMetrics() {
	if e.metricsFile == "" {
		return
	}
	if err := e.metrics.WriteTextfile(e.metricsFile); err != nil {
		e.logger.Error("write metrics", "path", e.metricsFile, "error", err)
	}
}

func silenceUsageAndErrors(cmd *cobra.Command) *cobra.Command {
	silenceErrors(cmd)
	cmd.SilenceUsage = true
	return cmd
}

func silenceErrors(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceErrors = true
	return cmd
}

func maybePrintUsage(cmd, root *cobra.Command, err error) {
	if err == nil {
		return
	}
	target := cmd
	if target == nil {
		target = root
	}
	if target == nil {
		return
	}
	if shouldShowUsage(err) {
		_ = target.Usage()
	}
}

func shouldShowUsage(err error) bool {
	if errors.Is(err, ErrVerificationFailed) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "unknown command") {
		return true
	}
	if strings.HasPrefix(msg, "unknown flag") || strings.HasPrefix(msg, "unknown shorthand flag") {
		return true
	}
	if strings.Contains(msg, "accepts") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "requires at least") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "required flag") {
		return true
	}
	if strings.Contains(msg, "flag needs an argument") {
		return true
	}
	if strings.HasPrefix(msg, "invalid argument") {
		return true
	}
	return false
}
