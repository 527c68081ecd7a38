package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/codalotl/sampleverify/internal/output"
)

// EnvVarRuntime selects the container CLI binary (docker or podman).
const EnvVarRuntime = "SAMPLEVERIFY_CONTAINER_RUNTIME"

// Docker implements Provider by shelling out to the docker CLI. Podman works too since it
// accepts the same subcommands.
type Docker struct {
	binary  string
	printer *output.Printer
	stream  bool
	logger  *slog.Logger
	run     commandRunner
}

type DockerOptions struct {
	// Binary is the CLI to invoke. Default: docker.
	Binary string

	// Printer, when set, echoes every command. Exec output is streamed through it when Stream is true.
	Printer *output.Printer
	Stream  bool

	Logger *slog.Logger
}

func NewDocker(opts DockerOptions) *Docker {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "docker"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Docker{
		binary:  binary,
		printer: opts.Printer,
		stream:  opts.Stream,
		logger:  logger,
	}
	d.run = d.defaultRun
	return d
}

// runResult carries a finished process's combined output. exitCode is non-zero when the
// process ran and failed.
type runResult struct {
	output   []byte
	exitCode int
}

// commandRunner returns an error only when the process could not be run to completion
// (missing binary, context ended); a non-zero exit is reported through runResult.
type commandRunner func(ctx context.Context, stream bool, name string, args ...string) (runResult, error)

func (d *Docker) defaultRun(ctx context.Context, stream bool, name string, args ...string) (runResult, error) {
	var out []byte
	var err error
	switch {
	case d.printer != nil && stream:
		out, err = d.printer.RunCommandStreaming(ctx, "", name, args...)
	case d.printer != nil:
		out, err = d.printer.RunCommand(ctx, "", name, args...)
	default:
		out, err = exec.CommandContext(ctx, name, args...).CombinedOutput()
	}
	if err == nil {
		return runResult{output: out}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return runResult{output: out}, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return runResult{output: out, exitCode: exitErr.ExitCode()}, nil
	}
	return runResult{output: out}, err
}

// Binary returns the CLI this provider invokes.
func (d *Docker) Binary() string {
	return d.binary
}

// Available checks that the CLI is installed and its daemon answers.
func (d *Docker) Available(ctx context.Context) error {
	res, err := d.run(ctx, false, d.binary, "version", "--format", "{{.Server.Version}}")
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		d.logger.Debug("container runtime availability check failed", "binary", d.binary, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, d.binary, err)
	}
	if res.exitCode != 0 {
		return fmt.Errorf("%w: %s version exited %d: %s", ErrUnavailable, d.binary, res.exitCode, strings.TrimSpace(string(res.output)))
	}
	return nil
}

func (d *Docker) ImageExists(ctx context.Context, image string) (bool, error) {
	if strings.TrimSpace(image) == "" {
		return false, fmt.Errorf("%w: image name cannot be empty", ErrInvalidArgument)
	}
	res, err := d.run(ctx, false, d.binary, "image", "inspect", "--format", "{{.Id}}", image)
	if err != nil {
		return false, err
	}
	return res.exitCode == 0, nil
}

func (d *Docker) Pull(ctx context.Context, image string) error {
	if strings.TrimSpace(image) == "" {
		return fmt.Errorf("%w: image name cannot be empty", ErrInvalidArgument)
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultPullTimeout)
	defer cancel()
	d.logger.Info("pulling image", "image", image)
	return d.check(d.run(ctx, false, d.binary, "pull", image))
}

// Create creates (but does not start) a container that idles until commands are exec'd into it.
func (d *Docker) Create(ctx context.Context, spec Spec) error {
	if strings.TrimSpace(spec.Image) == "" {
		return fmt.Errorf("%w: image name cannot be empty", ErrInvalidArgument)
	}
	d.logger.Debug("creating container", "name", spec.Name, "image", spec.Image)
	return d.check(d.run(ctx, false, d.binary, createArgs(spec)...))
}

func createArgs(spec Spec) []string {
	args := []string{"create"}
	if name := strings.TrimSpace(spec.Name); name != "" {
		args = append(args, "--name", name)
	}
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, spec.Env[k]))
	}
	if wd := strings.TrimSpace(spec.WorkDir); wd != "" {
		args = append(args, "-w", wd)
	}
	return append(args, "-t", spec.Image, "tail", "-f", "/dev/null")
}

func (d *Docker) Start(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: container name cannot be empty", ErrInvalidArgument)
	}
	return d.check(d.run(ctx, false, d.binary, "start", name))
}

func (d *Docker) CopyTo(ctx context.Context, name, hostPath, containerPath string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: container name cannot be empty", ErrInvalidArgument)
	case strings.TrimSpace(hostPath) == "":
		return fmt.Errorf("%w: host path cannot be empty", ErrInvalidArgument)
	case strings.TrimSpace(containerPath) == "":
		return fmt.Errorf("%w: container path cannot be empty", ErrInvalidArgument)
	}
	return d.check(d.run(ctx, false, d.binary, "cp", hostPath, name+":"+containerPath))
}

// Exec runs command inside the container. A zero timeout means DefaultExecTimeout.
func (d *Docker) Exec(ctx context.Context, name string, command []string, workDir string, timeout time.Duration) (ExecResult, error) {
	if strings.TrimSpace(name) == "" {
		return ExecResult{}, fmt.Errorf("%w: container name cannot be empty", ErrInvalidArgument)
	}
	if len(command) == 0 {
		return ExecResult{}, fmt.Errorf("%w: command cannot be empty", ErrInvalidArgument)
	}
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	args := []string{"exec"}
	if wd := strings.TrimSpace(workDir); wd != "" {
		args = append(args, "-w", wd)
	}
	args = append(args, name)
	args = append(args, command...)

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	d.logger.Debug("running command in container", "name", name, "command", strings.Join(command, " "))
	res, err := d.run(execCtx, d.stream, d.binary, args...)
	if err != nil {
		if ctx.Err() == nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return ExecResult{ExitCode: -1, Output: string(res.output)}, fmt.Errorf("%s timed out after %s: %w", strings.Join(command, " "), timeout, context.DeadlineExceeded)
		}
		return ExecResult{ExitCode: -1, Output: string(res.output)}, err
	}
	return ExecResult{ExitCode: res.exitCode, Output: string(res.output)}, nil
}

func (d *Docker) Remove(ctx context.Context, name string, force bool) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: container name cannot be empty", ErrInvalidArgument)
	}
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)
	return d.check(d.run(ctx, false, d.binary, args...))
}

func (d *Docker) check(res runResult, err error) error {
	if err != nil {
		return err
	}
	if res.exitCode != 0 {
		return fmt.Errorf("%s exited %d: %s", d.binary, res.exitCode, strings.TrimSpace(string(res.output)))
	}
	return nil
}
