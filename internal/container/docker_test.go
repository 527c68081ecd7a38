package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	stream bool
	name   string
	args   []string
}

// fakeDocker returns a Docker whose command runner records calls and replies via respond.
func fakeDocker(respond func(args []string) (runResult, error)) (*Docker, *[]fakeCall) {
	d := NewDocker(DockerOptions{})
	var calls []fakeCall
	d.run = func(ctx context.Context, stream bool, name string, args ...string) (runResult, error) {
		calls = append(calls, fakeCall{stream: stream, name: name, args: append([]string(nil), args...)})
		if respond == nil {
			return runResult{}, nil
		}
		return respond(args)
	}
	return d, &calls
}

func TestNewDockerDefaultsBinary(t *testing.T) {
	require.Equal(t, "docker", NewDocker(DockerOptions{}).Binary())
	require.Equal(t, "podman", NewDocker(DockerOptions{Binary: " podman "}).Binary())
}

func TestAvailable(t *testing.T) {
	d, calls := fakeDocker(nil)
	require.NoError(t, d.Available(context.Background()))
	require.Equal(t, []string{"version", "--format", "{{.Server.Version}}"}, (*calls)[0].args)

	d, _ = fakeDocker(func([]string) (runResult, error) {
		return runResult{output: []byte("Cannot connect to the Docker daemon\n"), exitCode: 1}, nil
	})
	err := d.Available(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.Contains(t, err.Error(), "Cannot connect")

	d, _ = fakeDocker(func([]string) (runResult, error) {
		return runResult{}, errors.New(`exec: "docker": executable file not found in $PATH`)
	})
	require.ErrorIs(t, d.Available(context.Background()), ErrUnavailable)
}

func TestImageExists(t *testing.T) {
	d, calls := fakeDocker(func(args []string) (runResult, error) {
		if args[len(args)-1] == "python:3.12" {
			return runResult{output: []byte("sha256:abc")}, nil
		}
		return runResult{output: []byte("Error: No such image"), exitCode: 1}, nil
	})

	ok, err := d.ImageExists(context.Background(), "python:3.12")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"image", "inspect", "--format", "{{.Id}}", "python:3.12"}, (*calls)[0].args)

	ok, err = d.ImageExists(context.Background(), "missing:latest")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = d.ImageExists(context.Background(), " ")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateArgs(t *testing.T) {
	args := createArgs(Spec{
		Name:    "sampleverify-python-1",
		Image:   "python:3.12",
		Env:     map[string]string{"B": "2", "A": "1"},
		WorkDir: "/work",
	})
	require.Equal(t, []string{
		"create", "--name", "sampleverify-python-1",
		"-e", "A=1", "-e", "B=2",
		"-w", "/work",
		"-t", "python:3.12", "tail", "-f", "/dev/null",
	}, args)

	require.Equal(t, []string{"create", "-t", "alpine", "tail", "-f", "/dev/null"}, createArgs(Spec{Image: "alpine"}))
}

func TestCreateReportsFailureOutput(t *testing.T) {
	d, _ := fakeDocker(func([]string) (runResult, error) {
		return runResult{output: []byte("conflict: name in use\n"), exitCode: 125}, nil
	})
	err := d.Create(context.Background(), Spec{Name: "x", Image: "alpine"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "exited 125")
	require.Contains(t, err.Error(), "conflict: name in use")

	require.ErrorIs(t, d.Create(context.Background(), Spec{Name: "x"}), ErrInvalidArgument)
}

func TestCopyToAndRemove(t *testing.T) {
	d, calls := fakeDocker(nil)
	require.NoError(t, d.CopyTo(context.Background(), "c1", "/tmp/sample.py", "/work/sample.py"))
	require.NoError(t, d.Remove(context.Background(), "c1", true))
	require.NoError(t, d.Remove(context.Background(), "c2", false))

	require.Equal(t, []string{"cp", "/tmp/sample.py", "c1:/work/sample.py"}, (*calls)[0].args)
	require.Equal(t, []string{"rm", "-f", "c1"}, (*calls)[1].args)
	require.Equal(t, []string{"rm", "c2"}, (*calls)[2].args)

	require.ErrorIs(t, d.CopyTo(context.Background(), "c1", "", "/work"), ErrInvalidArgument)
	require.ErrorIs(t, d.Remove(context.Background(), "", true), ErrInvalidArgument)
}

func TestExec(t *testing.T) {
	d, calls := fakeDocker(func([]string) (runResult, error) {
		return runResult{output: []byte("error: Incompatible types\n"), exitCode: 1}, nil
	})
	d.stream = true

	res, err := d.Exec(context.Background(), "c1", []string{"mypy", "sample.py"}, "/work", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "error: Incompatible types\n", res.Output)

	call := (*calls)[0]
	assert.True(t, call.stream)
	assert.Equal(t, "docker", call.name)
	assert.Equal(t, []string{"exec", "-w", "/work", "c1", "mypy", "sample.py"}, call.args)

	_, err = d.Exec(context.Background(), "c1", nil, "", 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExecTimeout(t *testing.T) {
	d := NewDocker(DockerOptions{})
	d.run = func(ctx context.Context, stream bool, name string, args ...string) (runResult, error) {
		<-ctx.Done()
		return runResult{output: []byte("partial")}, ctx.Err()
	}

	res, err := d.Exec(context.Background(), "c1", []string{"tsc"}, "", 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "timed out")
	require.Equal(t, -1, res.ExitCode)
	require.Equal(t, "partial", res.Output)
}

func TestExecParentCancelled(t *testing.T) {
	d := NewDocker(DockerOptions{})
	d.run = func(ctx context.Context, stream bool, name string, args ...string) (runResult, error) {
		return runResult{}, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Exec(ctx, "c1", []string{"tsc"}, "", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}
