package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codalotl/sampleverify/internal/container"
	"github.com/codalotl/sampleverify/internal/fsutil"
	"github.com/codalotl/sampleverify/internal/types"
)

// ClientDistMount is where a client dist is copied inside the container.
const ClientDistMount = "/client-dist"

const removeTimeout = time.Minute

// ContainerOracle type-checks code in a fresh container per call, so concurrent calls never
// share state.
type ContainerOracle struct {
	def      Definition
	provider container.Provider
	logger   *slog.Logger
}

func NewContainerOracle(def Definition, provider container.Provider, logger *slog.Logger) *ContainerOracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContainerOracle{
		def:      def,
		provider: provider,
		logger:   logger.With("language", def.Name),
	}
}

// TypeCheck returns Succeeded=false with the checker's output when the check command exits
// non-zero. Infrastructure failures (pull, create, copy, setup steps) are returned as errors.
func (o *ContainerOracle) TypeCheck(ctx context.Context, req types.TypeCheckRequest) (types.TypeCheckResult, error) {
	if err := o.ensureImage(ctx); err != nil {
		return types.TypeCheckResult{}, err
	}

	vars := o.variables(req)
	name := fmt.Sprintf("sampleverify-%s-%s", o.def.Name, uuid.NewString())
	env := make(map[string]string, len(o.def.Env)+len(vars))
	for k, v := range o.def.Env {
		env[k] = v
	}
	for k, v := range vars {
		env[k] = v
	}
	spec := container.Spec{Name: name, Image: o.def.Image, Env: env, WorkDir: o.def.workDir()}
	if err := o.provider.Create(ctx, spec); err != nil {
		return types.TypeCheckResult{}, fmt.Errorf("create container: %w", err)
	}
	defer o.remove(ctx, name)

	if err := o.provider.Start(ctx, name); err != nil {
		return types.TypeCheckResult{}, fmt.Errorf("start container: %w", err)
	}
	if err := o.copySample(ctx, name, req.Code); err != nil {
		return types.TypeCheckResult{}, err
	}
	if dist := strings.TrimSpace(req.ClientDistPath); dist != "" {
		if err := o.provider.CopyTo(ctx, name, dist, ClientDistMount); err != nil {
			return types.TypeCheckResult{}, fmt.Errorf("copy client dist: %w", err)
		}
	}

	for i, step := range o.def.Setup {
		if !step.Applies(req) {
			continue
		}
		res, err := o.exec(ctx, name, step.Run, vars)
		if err != nil {
			return types.TypeCheckResult{}, fmt.Errorf("setup step %d: %w", i+1, err)
		}
		if res.ExitCode != 0 {
			return types.TypeCheckResult{}, fmt.Errorf("setup step %d (%s) exited %d: %s", i+1, step.Run, res.ExitCode, strings.TrimSpace(res.Output))
		}
	}

	res, err := o.exec(ctx, name, o.def.Check, vars)
	if err != nil {
		return types.TypeCheckResult{}, fmt.Errorf("check: %w", err)
	}
	o.logger.Debug("type check command finished", "container", name, "exit_code", res.ExitCode)
	return types.TypeCheckResult{
		Succeeded: res.ExitCode == 0,
		Output:    res.Output,
	}, nil
}

func (o *ContainerOracle) ensureImage(ctx context.Context) error {
	ok, err := o.provider.ImageExists(ctx, o.def.Image)
	if err != nil {
		return fmt.Errorf("inspect image %s: %w", o.def.Image, err)
	}
	if ok {
		return nil
	}
	if err := o.provider.Pull(ctx, o.def.Image); err != nil {
		return fmt.Errorf("pull image %s: %w", o.def.Image, err)
	}
	return nil
}

func (o *ContainerOracle) copySample(ctx context.Context, name, code string) error {
	dir, err := os.MkdirTemp("", "sampleverify-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	hostPath := filepath.Join(dir, o.def.File)
	if err := fsutil.WriteFileAtomic(hostPath, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	if err := o.provider.CopyTo(ctx, name, hostPath, path.Join(o.def.workDir(), o.def.File)); err != nil {
		return fmt.Errorf("copy sample: %w", err)
	}
	return nil
}

// remove force-removes the container even when ctx has been cancelled.
func (o *ContainerOracle) remove(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()
	if err := o.provider.Remove(ctx, name, true); err != nil {
		o.logger.Warn("failed to remove container", "container", name, "error", err)
	}
}

func (o *ContainerOracle) exec(ctx context.Context, name, command string, vars map[string]string) (container.ExecResult, error) {
	args, err := expandCommand(command, vars)
	if err != nil {
		return container.ExecResult{}, err
	}
	return o.provider.Exec(ctx, name, args, o.def.workDir(), o.def.ExecTimeout())
}

func (o *ContainerOracle) variables(req types.TypeCheckRequest) map[string]string {
	vars := map[string]string{
		"SAMPLE_FILE": o.def.File,
		"WORKDIR":     o.def.workDir(),
	}
	if strings.TrimSpace(req.ClientDistPath) != "" {
		vars["CLIENT_DIST"] = ClientDistMount
	}
	if pkg := strings.TrimSpace(req.PackageNameToExclude); pkg != "" {
		vars["EXCLUDE_PACKAGE"] = pkg
	}
	return vars
}

// expandCommand splits command into argv, then expands known variables in each argument.
// Unknown variables are left untouched for the container's shell to resolve.
func expandCommand(command string, vars map[string]string) ([]string, error) {
	args, err := splitCommand(command)
	if err != nil {
		return nil, err
	}
	mapping := func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		if key == "CLIENT_DIST" || key == "EXCLUDE_PACKAGE" {
			return ""
		}
		return "${" + key + "}"
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, os.Expand(a, mapping))
	}
	return out, nil
}
