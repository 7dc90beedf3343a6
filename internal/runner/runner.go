// Package runner wraps one-shot OS process invocations: spawn through the
// platform shell, capture output, and enforce a hard timeout.
package runner

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"

	apperr "termdeck/internal/errors"
)

// DefaultTimeout bounds a one-shot command when the caller passes none.
const DefaultTimeout = 30 * time.Second

// Result carries the captured outcome of a one-shot execution. A non-zero
// exit code is a normal result, not an error.
type Result struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Run executes a command through the platform shell in the given working
// directory. If the command outlives the timeout it is force-killed and a
// TIMEOUT error is returned.
func Run(ctx context.Context, command, cwd string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd.exe", "/c", command)
	} else {
		cmd = exec.CommandContext(ctx, "bash", "-c", command)
	}
	cmd.Dir = cwd

	return capture(ctx, cmd, command, timeout)
}

// RunFile executes a file (script or binary) directly, without a shell.
func RunFile(ctx context.Context, filePath string, args []string, cwd string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, filePath, args...)
	cmd.Dir = cwd

	return capture(ctx, cmd, filePath, timeout)
}

func capture(ctx context.Context, cmd *exec.Cmd, label string, timeout time.Duration) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		// CommandContext already killed the process.
		return nil, apperr.Timeout(label, timeout.Milliseconds())
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &Result{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, nil
		}
		// ENOENT-class failures: the process never started.
		return nil, apperr.SpawnFailed(label, err)
	}

	return &Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
