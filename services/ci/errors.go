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
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the CI driver.
var (
	// ErrInvalidPlan indicates a plan that cannot be executed.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrInvalidMode indicates an unknown mode string.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrCommandNotFound indicates the step executable is not on PATH.
	ErrCommandNotFound = errors.New("command not found")

	// ErrStepTimeout indicates the step exceeded its timeout.
	ErrStepTimeout = errors.New("step timed out")

	// ErrStepFailed indicates the step exited with a nonzero status.
	ErrStepFailed = errors.New("step failed")

	// ErrToolMissing indicates a required tool was not found during probing.
	ErrToolMissing = errors.New("required tool missing")
)

// Conventional exit statuses for failures that have no child exit code.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitTimeout     = 124
	ExitNotFound    = 127
	ExitInterrupted = 130
)

// StepError wraps a step failure with its exit status and stderr context.
//
// # Description
//
// Carries the step name, the rendered command line, the exit status the
// driver propagates, and the tail of the step's stderr. Implements error
// and supports unwrapping to the sentinel cause.
//
// # Example
//
//	var stepErr *StepError
//	if errors.As(err, &stepErr) {
//	    os.Exit(stepErr.ExitCode)
//	}
type StepError struct {
	// Step is the step name ("install", "lint", "test").
	Step string

	// Command is the rendered command line.
	Command string

	// ExitCode is the status the driver exits with for this failure.
	ExitCode int

	// Stderr holds the last bytes written to stderr by the step.
	Stderr string

	// Err is the underlying cause.
	Err error
}

// Error returns a formatted error message.
func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s step %q (exit %d)", e.Step, e.Command, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + lastLine(e.Stderr)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError creates a StepError. Stderr is trimmed.
func NewStepError(step, command string, exitCode int, stderr string, err error) *StepError {
	return &StepError{
		Step:     step,
		Command:  command,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Err:      err,
	}
}

// ExitCode maps an error returned by the driver to a process exit status.
//
// # Description
//
// nil maps to 0. A StepError anywhere in the chain yields its ExitCode.
// Plan and mode errors map to 2. Cancellation maps to 130. Everything
// else maps to 1.
//
// # Inputs
//
//   - err: Error returned by Driver.Run or the CLI layer (may be nil)
//
// # Outputs
//
//   - int: Process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidPlan), errors.Is(err, ErrInvalidMode):
		return ExitUsage
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// lastLine returns the final non-empty line of s.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
