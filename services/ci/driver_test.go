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
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Helpers
// =============================================================================

func cargoPlan(mode Mode) Plan {
	return Plan{
		Toolchain: "cargo",
		Mode:      mode,
		LintEnv:   "CLIPPY",
		Install:   &Step{Name: StepInstall, Command: "cargo", Args: []string{"install", "clippy", "--force"}},
		Lint:      Step{Name: StepLint, Command: "cargo", Args: []string{"clippy", "--", "-D", "warnings"}},
		Test:      Step{Name: StepTest, Command: "cargo", Args: []string{"test"}},
	}
}

func newTestDriver(mock *MockExecutor, stderr io.Writer) *Driver {
	return NewDriver(
		WithExecutor(mock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithOutput(io.Discard, stderr),
	)
}

// =============================================================================
// Branch selection and exit status
// =============================================================================

func TestDriver_TestMode_ExitCodeFollowsTestStep(t *testing.T) {
	tests := []struct {
		name     string
		failures map[string]int
		wantCode int
		want     Outcome
	}{
		{"passes", nil, 0, OutcomePassed},
		{"fails with 101", map[string]int{StepTest: 101}, 101, OutcomeFailed},
		{"fails with 3", map[string]int{StepTest: 3}, 3, OutcomeFailed},
		{"test tool missing", map[string]int{StepTest: ExitNotFound}, ExitNotFound, OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockExecutor{Failures: tt.failures}
			res, err := newTestDriver(mock, io.Discard).Run(context.Background(), cargoPlan(ModeTest))

			require.NotNil(t, res)
			assert.Equal(t, tt.wantCode, res.ExitCode)
			assert.Equal(t, tt.wantCode, ExitCode(err))
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, []string{StepTest}, mock.StepNames())
		})
	}
}

func TestDriver_LintMode_InstallSucceeds_ExitCodeFollowsLint(t *testing.T) {
	tests := []struct {
		name     string
		failures map[string]int
		wantCode int
	}{
		{"lint passes", nil, 0},
		{"lint fails", map[string]int{StepLint: 101}, 101},
		{"lint fails and test would fail", map[string]int{StepLint: 1, StepTest: 7}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockExecutor{Failures: tt.failures}
			res, err := newTestDriver(mock, io.Discard).Run(context.Background(), cargoPlan(ModeLint))

			require.NotNil(t, res)
			assert.Equal(t, tt.wantCode, res.ExitCode)
			assert.Equal(t, tt.wantCode, ExitCode(err))
			assert.Equal(t, []string{StepInstall, StepLint}, mock.StepNames())
		})
	}
}

func TestDriver_LintMode_InstallFails_SkipsWithZero(t *testing.T) {
	for _, code := range []int{1, 101, ExitNotFound, ExitTimeout} {
		mock := &MockExecutor{Failures: map[string]int{StepInstall: code, StepLint: 9}}
		var stderr bytes.Buffer

		res, err := newTestDriver(mock, &stderr).Run(context.Background(), cargoPlan(ModeLint))

		require.NoError(t, err, "install exit %d", code)
		require.NotNil(t, res)
		assert.Equal(t, 0, res.ExitCode)
		assert.Equal(t, OutcomeSkipped, res.Outcome)
		assert.Equal(t, []string{StepInstall}, mock.StepNames(), "lint must not run after failed install")
		assert.Contains(t, stderr.String(), "skipping lint")
		require.Len(t, res.Steps, 1)
		assert.Equal(t, code, res.Steps[0].ExitCode)
	}
}

func TestDriver_LintMode_NoInstallStep(t *testing.T) {
	plan := cargoPlan(ModeLint)
	plan.Install = nil
	mock := &MockExecutor{Failures: map[string]int{StepLint: ExitNotFound}}

	res, err := newTestDriver(mock, io.Discard).Run(context.Background(), plan)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandNotFound))
	assert.Equal(t, ExitNotFound, res.ExitCode)
	assert.Equal(t, []string{StepLint}, mock.StepNames())
}

func TestDriver_NeverRunsBothBranches(t *testing.T) {
	for _, mode := range []Mode{ModeLint, ModeTest} {
		for _, failures := range []map[string]int{nil, {StepInstall: 1}, {StepLint: 1}, {StepTest: 1}} {
			mock := &MockExecutor{Failures: failures}
			res, _ := newTestDriver(mock, io.Discard).Run(context.Background(), cargoPlan(mode))

			require.NotNil(t, res)
			assert.False(t, res.Ran(StepLint) && res.Ran(StepTest), "mode %s ran lint and test", mode)
			if mode == ModeTest {
				assert.False(t, res.Ran(StepInstall))
			}
		}
	}
}

// =============================================================================
// Cancellation and errors
// =============================================================================

func TestDriver_CanceledDuringInstall_IsNotSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &MockExecutor{
		ExecuteFunc: func(ctx context.Context, step Step, _, _ io.Writer) error {
			cancel()
			return NewStepError(step.Name, step.CommandLine(), ExitInterrupted, "", context.Canceled)
		},
	}

	res, err := newTestDriver(mock, io.Discard).Run(ctx, cargoPlan(ModeLint))

	require.Error(t, err)
	assert.Equal(t, ExitInterrupted, ExitCode(err))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StepCanceled, res.Steps[0].State)
}

func TestDriver_PlainExecutorErrorIsWrapped(t *testing.T) {
	mock := &MockExecutor{
		ExecuteFunc: func(context.Context, Step, io.Writer, io.Writer) error {
			return errors.New("boom")
		},
	}

	res, err := newTestDriver(mock, io.Discard).Run(context.Background(), cargoPlan(ModeTest))

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepTest, stepErr.Step)
	assert.Equal(t, ExitFailure, res.ExitCode)
}

func TestDriver_InvalidPlan(t *testing.T) {
	plan := cargoPlan(ModeTest)
	plan.Test.Command = ""
	mock := &MockExecutor{}

	res, err := newTestDriver(mock, io.Discard).Run(context.Background(), plan)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.Equal(t, ExitUsage, ExitCode(err))
	assert.Empty(t, mock.StepNames())
}

func TestDriver_RecordsTiming(t *testing.T) {
	base := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	mock := &MockExecutor{}
	d := NewDriver(WithExecutor(mock), WithOutput(io.Discard, io.Discard), WithClock(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	res, err := d.Run(context.Background(), cargoPlan(ModeTest))

	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, time.Second, res.Steps[0].Duration)
	assert.Equal(t, int64(1000), res.Steps[0].DurationMS)
	assert.True(t, res.FinishedAt.After(res.StartedAt))
	assert.Equal(t, "cargo test", res.Steps[0].Command)
}

func TestDriver_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := NewDriver(WithExecutor(&MockExecutor{})).Run(nil, cargoPlan(ModeTest))
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

// =============================================================================
// Redaction
// =============================================================================

type maskRedactor struct{ secret string }

func (m maskRedactor) Redact(s string) string {
	return strings.ReplaceAll(s, m.secret, "[REDACTED]")
}

func TestDriver_RedactsCapturedStderr(t *testing.T) {
	mock := &MockExecutor{
		ExecuteFunc: func(_ context.Context, step Step, _, _ io.Writer) error {
			return NewStepError(step.Name, step.CommandLine(), 101, "error: auth failed for token hunter2", ErrStepFailed)
		},
	}
	var logs bytes.Buffer
	d := NewDriver(
		WithExecutor(mock),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithOutput(io.Discard, io.Discard),
		WithRedactor(maskRedactor{secret: "hunter2"}),
	)

	res, err := d.Run(context.Background(), cargoPlan(ModeTest))

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "[REDACTED]")
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "error: auth failed for token [REDACTED]", res.Steps[0].StderrTail)
	assert.NotContains(t, logs.String(), "hunter2")
}
