package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codalotl/sampleverify/internal/types"
)

// DefaultMaxAttempts is the number of type checks Run performs when Options.MaxAttempts is zero.
const DefaultMaxAttempts = 5

var (
	// ErrEmptyRepair is reported when a repair function returns blank code without an error.
	ErrEmptyRepair = errors.New("repair returned empty code")

	// ErrNoProvider is wrapped by selectors that cannot build an oracle without an execution provider.
	ErrNoProvider = errors.New("no execution provider configured")
)

// Oracle type-checks one unit of code, usually inside a throwaway container.
type Oracle interface {
	TypeCheck(ctx context.Context, req types.TypeCheckRequest) (types.TypeCheckResult, error)
}

// OracleSelector maps a language identifier to an Oracle.
type OracleSelector interface {
	Resolve(language string) (Oracle, error)
}

// Provider is the part of the execution provider probed before any attempt runs.
type Provider interface {
	Available(ctx context.Context) error
}

// RepairFunc proposes new code given the failing code and the diagnostic text it produced.
type RepairFunc func(ctx context.Context, code, diagnostics, language string) (string, error)

// Observer receives notifications as verification progresses. Implementations must be safe
// for concurrent use when several Run calls share one Observer.
type Observer interface {
	AttemptFinished(language string, attempt types.VerificationAttempt)
	RepairFinished(language string, elapsed time.Duration, err error)
	VerificationFinished(language string, result *types.VerificationResult)
}

type Options struct {
	Language             string
	ClientDistPath       string
	PackageNameToExclude string

	Provider Provider
	Oracles  OracleSelector
	Repair   RepairFunc

	MaxAttempts int // zero means DefaultMaxAttempts
	Logger      *slog.Logger
	Observer    Observer
}

var tracer = otel.Tracer("github.com/codalotl/sampleverify/internal/verify")

// Run drives sample through type-check and repair rounds until a check passes or the
// attempt budget is spent. Every failure is reported through the returned result; the
// only error returned is the context's, when ctx is cancelled.
func Run(ctx context.Context, opts Options, sample types.GeneratedSample) (*types.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	language := strings.TrimSpace(opts.Language)
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("sample", sample.FileName, "language", language)
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	ctx, span := tracer.Start(ctx, "verify.Run", trace.WithAttributes(
		attribute.String("sample", sample.FileName),
		attribute.String("language", language),
		attribute.Int("max_attempts", maxAttempts),
	))
	defer span.End()

	oracle, failed, err := preflight(ctx, opts.Provider, opts.Oracles, language)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}
	if failed != nil {
		logger.Warn("verification stopped before the first attempt", "reason", LastOutput(failed))
		span.SetStatus(codes.Error, LastOutput(failed))
		observer.VerificationFinished(language, failed)
		return failed, nil
	}

	req := types.TypeCheckRequest{
		ClientDistPath:       opts.ClientDistPath,
		PackageNameToExclude: opts.PackageNameToExclude,
	}
	content := sample.Content
	attempts := make([]types.VerificationAttempt, 0, maxAttempts)
	succeeded := false

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req.Code = content
		checked, elapsed, err := typeCheck(ctx, oracle, req, attempt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
		record := newAttempt(attempt, checked, elapsed)
		logger.Info("type check finished", "attempt", attempt, "succeeded", checked.Succeeded, "duration", elapsed)

		if checked.Succeeded {
			attempts = append(attempts, record)
			observer.AttemptFinished(language, record)
			succeeded = true
			break
		}
		if attempt == maxAttempts {
			attempts = append(attempts, record)
			observer.AttemptFinished(language, record)
			break
		}

		fixed, err := repair(ctx, opts.Repair, content, checked.Output, language, observer)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				span.RecordError(ctxErr)
				span.SetStatus(codes.Error, "cancelled")
				return nil, ctxErr
			}
			logger.Warn("repair failed; stopping", "attempt", attempt, "error", err)
			record.TypeCheckOutput = withRepairFailure(record.TypeCheckOutput, err)
			attempts = append(attempts, record)
			observer.AttemptFinished(language, record)
			break
		}
		attempts = append(attempts, record)
		observer.AttemptFinished(language, record)
		content = fixed
	}

	result := &types.VerificationResult{
		Succeeded:    succeeded,
		Content:      content,
		AttemptsMade: len(attempts),
		Attempts:     attempts,
	}
	span.SetAttributes(
		attribute.Bool("succeeded", succeeded),
		attribute.Int("attempts_made", result.AttemptsMade),
	)
	if succeeded {
		span.SetStatus(codes.Ok, "")
		logger.Info("verification succeeded", "attempts", result.AttemptsMade)
	} else {
		span.SetStatus(codes.Error, "verification failed")
		logger.Warn("verification failed", "attempts", result.AttemptsMade)
	}
	observer.VerificationFinished(language, result)
	return result, nil
}

// preflight returns the resolved oracle, or a terminal zero-attempt result when the
// execution provider is unavailable or the language is unknown. The error is non-nil only
// when ctx was cancelled during the probe.
func preflight(ctx context.Context, provider Provider, oracles OracleSelector, language string) (Oracle, *types.VerificationResult, error) {
	if provider == nil {
		return nil, preflightFailure("execution provider unavailable: no provider configured"), nil
	}
	if err := provider.Available(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, preflightFailure(fmt.Sprintf("execution provider unavailable: %v", err)), nil
	}
	if language == "" {
		return nil, preflightFailure("language not supported: no language given"), nil
	}
	if oracles == nil {
		return nil, preflightFailure(fmt.Sprintf("language not supported: %q (no oracle registry configured)", language)), nil
	}
	oracle, err := oracles.Resolve(language)
	if errors.Is(err, ErrNoProvider) {
		return nil, preflightFailure(fmt.Sprintf("execution provider unavailable: %v", err)), nil
	}
	if err != nil || oracle == nil {
		msg := fmt.Sprintf("language not supported: %q", language)
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		return nil, preflightFailure(msg), nil
	}
	return oracle, nil, nil
}

func preflightFailure(reason string) *types.VerificationResult {
	return &types.VerificationResult{
		Succeeded:    false,
		AttemptsMade: 0,
		Attempts: []types.VerificationAttempt{
			{
				AttemptNumber:      1,
				TypeCheckSucceeded: false,
				TypeCheckOutput:    reason,
				Preflight:          true,
			},
		},
	}
}

func typeCheck(ctx context.Context, oracle Oracle, req types.TypeCheckRequest, attempt int) (types.TypeCheckResult, time.Duration, error) {
	ctx, span := tracer.Start(ctx, "verify.attempt", trace.WithAttributes(attribute.Int("attempt", attempt)))
	defer span.End()

	start := time.Now()
	res, err := callOracle(ctx, oracle, req)
	elapsed := time.Since(start)
	if ctxErr := ctx.Err(); ctxErr != nil {
		span.RecordError(ctxErr)
		span.SetStatus(codes.Error, "cancelled")
		return types.TypeCheckResult{}, elapsed, ctxErr
	}
	if err != nil {
		span.RecordError(err)
		res = types.TypeCheckResult{
			Succeeded: false,
			Output:    fmt.Sprintf("type check error: %v", err),
		}
	}
	span.SetAttributes(attribute.Bool("succeeded", res.Succeeded))
	if !res.Succeeded {
		span.SetStatus(codes.Error, "type check failed")
	}
	return res, elapsed, nil
}

// callOracle turns a panicking oracle into an attempt error.
func callOracle(ctx context.Context, oracle Oracle, req types.TypeCheckRequest) (res types.TypeCheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = types.TypeCheckResult{}, fmt.Errorf("panic: %v", r)
		}
	}()
	return oracle.TypeCheck(ctx, req)
}

func callRepair(ctx context.Context, fn RepairFunc, code, diagnostics, language string) (fixed string, err error) {
	defer func() {
		if r := recover(); r != nil {
			fixed, err = "", fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, code, diagnostics, language)
}

// repair reports to the observer only when a repair function actually ran.
func repair(ctx context.Context, fn RepairFunc, code, diagnostics, language string, observer Observer) (string, error) {
	if fn == nil {
		return "", errors.New("no repair function configured")
	}
	ctx, span := tracer.Start(ctx, "verify.repair")
	defer span.End()

	start := time.Now()
	fixed, err := callRepair(ctx, fn, code, diagnostics, language)
	elapsed := time.Since(start)
	if err == nil && strings.TrimSpace(fixed) == "" {
		err = ErrEmptyRepair
	}
	observer.RepairFinished(language, elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repair failed")
		return "", err
	}
	return fixed, nil
}

func newAttempt(number int, res types.TypeCheckResult, elapsed time.Duration) types.VerificationAttempt {
	return types.VerificationAttempt{
		AttemptNumber:      number,
		TypeCheckSucceeded: res.Succeeded,
		TypeCheckOutput:    res.Output,
		Duration:           elapsed,
		DurationSeconds:    elapsed.Seconds(),
	}
}

func withRepairFailure(output string, err error) string {
	line := fmt.Sprintf("repair failed: %v", err)
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return line
	}
	return output + "\n" + line
}

// LastOutput returns the diagnostic text of the final attempt, which explains why
// verification ended the way it did.
func LastOutput(result *types.VerificationResult) string {
	if result == nil || len(result.Attempts) == 0 {
		return ""
	}
	return result.Attempts[len(result.Attempts)-1].TypeCheckOutput
}

type nopObserver struct{}

func (nopObserver) AttemptFinished(string, types.VerificationAttempt)      {}
func (nopObserver) RepairFinished(string, time.Duration, error)            {}
func (nopObserver) VerificationFinished(string, *types.VerificationResult) {}
