package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Executor runs a shell command line with the helper's privileges.
type Executor interface {
	Run(ctx context.Context, command string) (ExecResult, error)
}

// waitDelay bounds how long Run waits for pipes held by children of a killed shell.
const waitDelay = time.Second

// runDelayFunc backgrounds a command after a delay so the caller can exit first.
const runDelayFunc = `run_delay() { (sleep "$1"; eval "$2") >/dev/null 2>&1 & }`

// ShellExecutor runs commands through `<Shell> -c`.
type ShellExecutor struct {
	Shell string
}

// NewShellExecutor returns a ShellExecutor for shell, defaulting to su.
func NewShellExecutor(shell string) *ShellExecutor {
	if shell == "" {
		shell = "su"
	}
	return &ShellExecutor{Shell: shell}
}

// Run executes command. A non-zero exit status is reported in ExecResult, not
// as an error; err is set when the shell could not be run at all or when ctx
// ended before the command did.
func (s *ShellExecutor) Run(ctx context.Context, command string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, s.Shell, "-c", runDelayFunc+"\n"+command)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s - %s interrupted: %w", logPrefix, s.Shell, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("%s - failed to run %s: %w", logPrefix, s.Shell, err)
	}
	return res, nil
}
