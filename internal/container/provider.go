// Package container wraps a container runtime CLI (docker or podman) behind the small set of
// lifecycle operations the language oracles need.
package container

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the container runtime cannot be reached.
	ErrUnavailable = errors.New("container runtime unavailable")

	// ErrInvalidArgument is returned when a required argument is empty.
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	DefaultExecTimeout = 5 * time.Minute
	DefaultPullTimeout = 10 * time.Minute
)

// Spec describes a container to create.
type Spec struct {
	Name    string
	Image   string
	Env     map[string]string
	WorkDir string
}

// ExecResult is the outcome of a command run inside a container.
type ExecResult struct {
	ExitCode int
	Output   string
}

// Provider is an isolated execution provider.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; callers use distinct
// container names per call.
// - Context: every method must honor cancellation.
// - Exec returns a nil error for commands that ran and exited non-zero; the exit code is in
// the result.
type Provider interface {
	Available(ctx context.Context) error
	ImageExists(ctx context.Context, image string) (bool, error)
	Pull(ctx context.Context, image string) error
	Create(ctx context.Context, spec Spec) error
	Start(ctx context.Context, name string) error
	CopyTo(ctx context.Context, name, hostPath, containerPath string) error
	Exec(ctx context.Context, name string, command []string, workDir string, timeout time.Duration) (ExecResult, error)
	Remove(ctx context.Context, name string, force bool) error
}
