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
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/auto-lang/Auto/services/telemetry"
)

// =============================================================================
// DRIVER
// =============================================================================

// Driver executes a Plan: either the lint branch or the test branch.
//
// Description:
//
//	The driver owns the branch decision and the exit-status policy.
//	Process execution is delegated to an Executor so the policy can be
//	tested without spawning real tools.
//
// Thread Safety: Safe for concurrent use.
type Driver struct {
	exec   Executor
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	clock  func() time.Time
	redact Redactor
}

// Redactor scrubs secrets from step stderr before it reaches logs, errors
// and reports. Live step output is streamed unmodified.
type Redactor interface {
	Redact(s string) string
}

// Option configures the Driver.
type Option func(*Driver)

// WithExecutor sets the process executor.
func WithExecutor(e Executor) Option {
	return func(d *Driver) {
		d.exec = e
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithOutput sets where step output and driver warnings are written.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(d *Driver) {
		d.stdout = stdout
		d.stderr = stderr
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(d *Driver) {
		d.clock = clock
	}
}

// WithRedactor sets the secret scrubber for captured stderr.
func WithRedactor(r Redactor) Option {
	return func(d *Driver) {
		d.redact = r
	}
}

// NewDriver creates a driver that runs real processes and streams their
// output to os.Stdout / os.Stderr unless overridden.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		exec:   NewExecExecutor(),
		logger: slog.Default(),
		stdout: os.Stdout,
		stderr: os.Stderr,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.clock == nil {
		d.clock = time.Now
	}
	return d
}

// Run executes the plan.
//
// Description:
//
//	Test mode runs the test step. Lint mode runs the install step, if any,
//	and then the lint step. A failed install ends the run as skipped with
//	exit status 0; a warning is logged and written to stderr. The lint and
//	test steps never both run in one call.
//
// Inputs:
//
//	ctx - Context for cancellation. Cancelling kills the running step.
//	plan - The resolved plan. Validated before anything runs.
//
// Outputs:
//
//	*Result - Always non-nil when the plan is valid, including on failure.
//	error - nil when the run passed or was skipped. A *StepError when the
//	        lint or test step failed, or when the caller's context was
//	        cancelled during install. ErrInvalidPlan for a bad plan.
//
// Thread Safety: Safe for concurrent use.
func (d *Driver) Run(ctx context.Context, plan Plan) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidPlan)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	ctx, span := startRunSpan(ctx, plan)
	res := &Result{Mode: plan.Mode, StartedAt: d.clock().UTC()}

	logger := telemetry.LoggerWithTrace(ctx, d.logger).With(
		slog.String("mode", plan.Mode.String()),
		slog.String("toolchain", plan.Toolchain),
	)
	logger.Info("ci run started", slog.String("lint_env", plan.LintEnv))

	var err error
	switch plan.Mode {
	case ModeLint:
		err = d.runLint(ctx, logger, plan, res)
	default:
		err = d.runTest(ctx, plan, res)
	}

	res.FinishedAt = d.clock().UTC()
	res.ExitCode = ExitCode(err)
	if res.Outcome == "" {
		if err != nil {
			res.Outcome = OutcomeFailed
		} else {
			res.Outcome = OutcomePassed
		}
	}

	recordRunMetrics(ctx, res, res.Duration())
	endRunSpan(span, res, err)

	attrs := []any{
		slog.String("outcome", string(res.Outcome)),
		slog.Int("exit_code", res.ExitCode),
		slog.Duration("duration", res.Duration()),
	}
	if err != nil {
		logger.Error("ci run failed", append(attrs, slog.String("error", err.Error()))...)
	} else {
		logger.Info("ci run finished", attrs...)
	}
	return res, err
}

func (d *Driver) runTest(ctx context.Context, plan Plan, res *Result) error {
	return d.step(ctx, plan.Test, res)
}

func (d *Driver) runLint(ctx context.Context, logger *slog.Logger, plan Plan, res *Result) error {
	if plan.Install != nil {
		if err := d.step(ctx, *plan.Install, res); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("lint tool could not be installed, skipping lint",
				slog.String("command", plan.Install.CommandLine()),
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(orDiscard(d.stderr), "warning: could not install lint tool (%s); skipping lint\n", describe(err))
			res.Outcome = OutcomeSkipped
			return nil
		}
	}
	return d.step(ctx, plan.Lint, res)
}

// step runs one step and appends its record to res.
func (d *Driver) step(ctx context.Context, step Step, res *Result) error {
	ctx, span := startStepSpan(ctx, step)
	d.logger.Info("step started", slog.String("step", step.Name), slog.String("command", step.CommandLine()))

	start := d.clock()
	err := d.exec.Execute(ctx, step, d.stdout, d.stderr)
	elapsed := d.clock().Sub(start)

	rec := StepRecord{
		Name:       step.Name,
		Command:    step.CommandLine(),
		State:      StepSucceeded,
		StartedAt:  start.UTC(),
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}
	if err != nil {
		err = d.scrub(asStepError(step, err))
		rec.State = stateOf(err)
		rec.ExitCode = ExitCode(err)
		rec.Message = describe(err)
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			rec.StderrTail = stepErr.Stderr
		}
	}
	res.Steps = append(res.Steps, rec)

	recordStepMetrics(ctx, rec)
	endStepSpan(span, rec, err)

	d.logger.Info("step finished",
		slog.String("step", step.Name),
		slog.String("state", string(rec.State)),
		slog.Int("exit_code", rec.ExitCode),
		slog.Duration("duration", elapsed),
	)
	return err
}

// scrub redacts the captured stderr of a step failure in place.
func (d *Driver) scrub(err error) error {
	var stepErr *StepError
	if d.redact != nil && errors.As(err, &stepErr) && stepErr.Stderr != "" {
		stepErr.Stderr = d.redact.Redact(stepErr.Stderr)
	}
	return err
}

// asStepError guarantees the driver always surfaces a *StepError for a
// failed step, whatever the Executor returned.
func asStepError(step Step, err error) error {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return err
	}
	code := ExitFailure
	if errors.Is(err, context.Canceled) {
		code = ExitInterrupted
	}
	return NewStepError(step.Name, step.CommandLine(), code, "", err)
}

func stateOf(err error) StepState {
	switch {
	case err == nil:
		return StepSucceeded
	case errors.Is(err, ErrCommandNotFound):
		return StepNotFound
	case errors.Is(err, ErrStepTimeout):
		return StepTimedOut
	case errors.Is(err, context.Canceled):
		return StepCanceled
	default:
		return StepFailed
	}
}

// describe returns a short reason without the command line.
func describe(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		msg := fmt.Sprintf("exit %d", stepErr.ExitCode)
		if stepErr.Err != nil {
			msg += ": " + stepErr.Err.Error()
		}
		return msg
	}
	return err.Error()
}
