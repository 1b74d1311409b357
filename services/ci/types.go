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
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// MODE
// =============================================================================

// Mode selects which branch of the driver runs.
type Mode string

const (
	// ModeTest runs the project's test suite.
	ModeTest Mode = "test"

	// ModeLint installs the lint tool and runs it with warnings as errors.
	ModeLint Mode = "lint"
)

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeTest || m == ModeLint
}

// ModeFromEnv resolves the mode from the lint flag variable.
//
// Description:
//
//	The flag counts as set when the variable exists and is non-empty,
//	matching a shell `[ -n "$VAR" ]` test. Any non-empty value, including
//	"0" or "false", selects lint mode.
//
// Inputs:
//
//	lookup - Environment lookup, usually os.LookupEnv
//	key - Name of the flag variable
//
// Outputs:
//
//	Mode - ModeLint if the flag is set, ModeTest otherwise
func ModeFromEnv(lookup func(string) (string, bool), key string) Mode {
	if lookup == nil || key == "" {
		return ModeTest
	}
	if v, ok := lookup(key); ok && v != "" {
		return ModeLint
	}
	return ModeTest
}

// ParseMode parses a mode name. Case and surrounding space are ignored.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTest:
		return ModeTest, nil
	case ModeLint:
		return ModeLint, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidMode, s, ModeLint, ModeTest)
	}
}

// =============================================================================
// STEP
// =============================================================================

// Step names.
const (
	StepInstall = "install"
	StepLint    = "lint"
	StepTest    = "test"
)

// Step is a single external command the driver may run.
//
// Thread Safety: Treat as immutable after creation.
type Step struct {
	// Name identifies the step ("install", "lint", "test").
	Name string

	// Command is the executable name or path.
	Command string

	// Args are passed to Command verbatim.
	Args []string

	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout bounds the step. Zero means no limit.
	Timeout time.Duration
}

// CommandLine renders the step as a shell-like string for logs and reports.
func (s Step) CommandLine() string {
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, quoteArg(s.Command))
	for _, a := range s.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	clone := s
	clone.Args = append([]string(nil), s.Args...)
	clone.Env = append([]string(nil), s.Env...)
	return clone
}

func (s Step) validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("%w: %s step has no command", ErrInvalidPlan, s.Name)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: %s step has negative timeout", ErrInvalidPlan, s.Name)
	}
	for _, kv := range s.Env {
		if !strings.Contains(kv, "=") || strings.HasPrefix(kv, "=") {
			return fmt.Errorf("%w: %s step env entry %q is not KEY=VALUE", ErrInvalidPlan, s.Name, kv)
		}
	}
	return nil
}

func quoteArg(a string) string {
	if a == "" {
		return `""`
	}
	if strings.ContainsAny(a, " \t\"'\\$`") {
		return fmt.Sprintf("%q", a)
	}
	return a
}

// =============================================================================
// PLAN
// =============================================================================

// Plan is the fully resolved work for one driver invocation.
type Plan struct {
	// Toolchain names the preset the plan was built from, for reporting.
	Toolchain string

	// Mode selects the lint or test branch.
	Mode Mode

	// LintEnv is the name of the flag variable that selected Mode.
	LintEnv string

	// Install builds or installs the lint tool. Nil skips installation.
	Install *Step

	// Lint runs the lint tool with warnings treated as errors.
	Lint Step

	// Test runs the test suite.
	Test Step
}

// Validate checks that every step reachable in the plan's mode is runnable.
func (p Plan) Validate() error {
	if !p.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPlan, p.Mode)
	}
	for _, s := range p.Steps() {
		if err := s.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Steps returns, in order, the steps the plan's mode may execute.
func (p Plan) Steps() []Step {
	switch p.Mode {
	case ModeLint:
		if p.Install != nil {
			return []Step{*p.Install, p.Lint}
		}
		return []Step{p.Lint}
	case ModeTest:
		return []Step{p.Test}
	default:
		return nil
	}
}

// =============================================================================
// RESULT
// =============================================================================

// Outcome summarises a whole run.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepState is the terminal state of one executed step.
type StepState string

const (
	StepSucceeded StepState = "succeeded"
	StepFailed    StepState = "failed"
	StepTimedOut  StepState = "timed_out"
	StepNotFound  StepState = "not_found"
	StepCanceled  StepState = "canceled"
)

// StepRecord captures what happened to one executed step.
type StepRecord struct {
	Name       string        `json:"name" yaml:"name"`
	Command    string        `json:"command" yaml:"command"`
	State      StepState     `json:"state" yaml:"state"`
	ExitCode   int           `json:"exit_code" yaml:"exit_code"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	Duration   time.Duration `json:"-" yaml:"-"`
	DurationMS int64         `json:"duration_ms" yaml:"duration_ms"`
	Message    string        `json:"message,omitempty" yaml:"message,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty" yaml:"stderr_tail,omitempty"`
}

// Result is the outcome of Driver.Run.
type Result struct {
	Mode       Mode
	Outcome    Outcome
	ExitCode   int
	Steps      []StepRecord
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ran reports whether a step with the given name was executed.
func (r *Result) Ran(name string) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Steps {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
