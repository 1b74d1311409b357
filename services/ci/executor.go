// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ci

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Executor runs a single step as an external process.
//
// # Description
//
// All process execution in the driver goes through this interface so the
// branch logic can be tested without spawning real tools.
//
// # Contract
//
//   - Returns nil when the process exits with status 0.
//   - Otherwise returns a *StepError whose ExitCode is the status the driver
//     should propagate.
//   - Output is streamed to stdout and stderr as it is produced. Either may
//     be nil to discard.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Executor interface {
	Execute(ctx context.Context, step Step, stdout, stderr io.Writer) error
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// stderrTailBytes bounds the stderr kept for error messages.
const stderrTailBytes = 4096

// defaultWaitDelay bounds how long Wait blocks on open pipes after a kill.
const defaultWaitDelay = 5 * time.Second

// ExecExecutor implements Executor using os/exec.
type ExecExecutor struct {
	waitDelay time.Duration
}

// NewExecExecutor creates an Executor that runs real processes.
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{waitDelay: defaultWaitDelay}
}

// Execute runs the step and classifies its failure, if any.
//
// # Description
//
// Starts step.Command with step.Args in step.Dir, with step.Env appended to
// the inherited environment. A positive step.Timeout bounds the run.
//
// # Outputs
//
//   - error: nil on exit status 0, *StepError otherwise:
//     not found → 127, timeout → 124, canceled → 130,
//     killed by signal → 128+signal, nonzero exit → the child's status.
func (e *ExecExecutor) Execute(ctx context.Context, step Step, stdout, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("%w: ctx must not be nil", ErrInvalidPlan)
	}

	runCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, step.Command, step.Args...)
	cmd.Dir = step.Dir
	if len(step.Env) > 0 {
		cmd.Env = append(os.Environ(), step.Env...)
	}
	cmd.WaitDelay = e.waitDelay

	tail := newTailBuffer(stderrTailBytes)
	cmd.Stdout = orDiscard(stdout)
	cmd.Stderr = io.MultiWriter(orDiscard(stderr), tail)

	err := cmd.Run()
	if err == nil {
		return nil
	}

	line := step.CommandLine()
	switch {
	case isNotFound(err):
		return NewStepError(step.Name, line, ExitNotFound, tail.String(),
			fmt.Errorf("%w: %s", ErrCommandNotFound, step.Command))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return NewStepError(step.Name, line, ExitTimeout, tail.String(),
			fmt.Errorf("%w after %s", ErrStepTimeout, step.Timeout))
	case ctx.Err() != nil:
		return NewStepError(step.Name, line, ExitInterrupted, tail.String(), ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewStepError(step.Name, line, exitStatus(exitErr), tail.String(),
			fmt.Errorf("%w: %v", ErrStepFailed, err))
	}
	return NewStepError(step.Name, line, ExitFailure, tail.String(), err)
}

// isNotFound reports whether Start failed because the executable is missing.
// A missing working directory is reported as a chdir error and is not
// treated as a missing command.
func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && pathErr.Op != "chdir" {
		return errors.Is(pathErr.Err, fs.ErrNotExist)
	}
	return false
}

// exitStatus maps a process exit to a shell-style status.
func exitStatus(exitErr *exec.ExitError) int {
	if code := exitErr.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ExitFailure
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last max bytes written to it. Once older output has
// been dropped, String starts at the first complete line so a token cut in
// half never survives without its prefix. A wrapped tail with no newline
// yields nothing.
type tailBuffer struct {
	mu      sync.Mutex
	buf     []byte
	max     int
	wrapped bool
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
		t.wrapped = true
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.wrapped {
		return string(t.buf)
	}
	i := bytes.IndexByte(t.buf, '\n')
	if i < 0 {
		return ""
	}
	return string(t.buf[i+1:])
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockExecutor is a test double for Executor.
//
// ExecuteFunc takes precedence. Without it, Failures is consulted by step
// name: a listed step fails with a StepError carrying the given exit code,
// every other step succeeds.
//
// # Examples
//
//	mock := &MockExecutor{Failures: map[string]int{StepInstall: 101}}
//	result, err := NewDriver(WithExecutor(mock)).Run(ctx, plan)
type MockExecutor struct {
	// ExecuteFunc is called when Execute is invoked.
	ExecuteFunc func(ctx context.Context, step Step, stdout, stderr io.Writer) error

	// Failures maps step names to the exit code they fail with.
	Failures map[string]int

	// Calls records every executed step.
	Calls []Step

	mu sync.Mutex
}

// Execute records the call and delegates.
func (m *MockExecutor) Execute(ctx context.Context, step Step, stdout, stderr io.Writer) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, step.Clone())
	fn := m.ExecuteFunc
	code, fail := m.Failures[step.Name]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, step, stdout, stderr)
	}
	if !fail {
		return nil
	}
	cause := ErrStepFailed
	if code == ExitNotFound {
		cause = ErrCommandNotFound
	}
	return NewStepError(step.Name, step.CommandLine(), code, "", cause)
}

// StepNames returns the names of the executed steps in order.
func (m *MockExecutor) StepNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.Calls))
	for i, s := range m.Calls {
		names[i] = s.Name
	}
	return names
}

// Reset clears all recorded calls.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// Compile-time interface compliance check.
var (
	_ Executor = (*ExecExecutor)(nil)
	_ Executor = (*MockExecutor)(nil)
)
