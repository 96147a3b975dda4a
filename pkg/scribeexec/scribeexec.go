// Package scribeexec is the single place where notescribe starts subprocesses
// (ffmpeg, whisper-cli, whisper).
package scribeexec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	execute "github.com/alexellis/go-execute/v2"
	"github.com/notescribe/notescribe/pkg/logging"
)

// Result is the captured outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, command string, args ...string) (Result, error)
}

// TaskRunner runs commands through go-execute.
type TaskRunner struct {
	// Cwd is optional; "" uses the current working directory.
	Cwd    string
	Logger *logging.Logger
}

// NewTaskRunner returns a runner logging to logger.
func NewTaskRunner(logger *logging.Logger) *TaskRunner {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &TaskRunner{Logger: logger}
}

// Run executes command and waits for it. A non-zero exit code is an error
// whose message carries the trimmed stderr.
func (r *TaskRunner) Run(ctx context.Context, command string, args ...string) (Result, error) {
	r.Logger.Debug("executing", "command", command, "args", args, "dir", r.Cwd)

	task := execute.ExecTask{
		Command:     command,
		Args:        args,
		Cwd:         r.Cwd,
		StreamStdio: false,
	}

	start := time.Now()
	res, err := task.Execute(ctx)
	out := Result{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Duration: time.Since(start),
	}
	logging.NewRunLogger(r.Logger).LogCommandExecution(command, out.ExitCode, out.Duration, err)
	if err != nil {
		return out, fmt.Errorf("%s: %w", command, err)
	}
	if res.ExitCode != 0 {
		return out, &ExitError{Command: command, Code: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}
	return out, nil
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: exit code %d: %s", e.Command, e.Code, lastLines(e.Stderr, 5))
}

// LookPath reports whether bin can be found on PATH (or is an existing path).
func LookPath(bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH: %w", bin, err)
	}
	return path, nil
}

// lastLines keeps the tail of noisy tool output such as ffmpeg's banner.
func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
