// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package ci contains process-level tests for ExecExecutor.

# Testing Strategy

These tests run POSIX sh, so they are skipped on Windows. They verify:
  - Output streaming
  - Exit status propagation
  - Classification of missing commands, timeouts and cancellation
*/
package ci

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func shStep(name, script string) Step {
	return Step{Name: name, Command: "sh", Args: []string{"-c", script}}
}

func TestExecExecutor_Success_StreamsOutput(t *testing.T) {
	requireShell(t)
	var stdout, stderr bytes.Buffer

	err := NewExecExecutor().Execute(context.Background(), shStep(StepTest, "echo out; echo err >&2"), &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

func TestExecExecutor_NonZeroExit(t *testing.T) {
	requireShell(t)
	var stderr bytes.Buffer

	err := NewExecExecutor().Execute(context.Background(), shStep(StepLint, "echo 'warning: unused' >&2; exit 101"), nil, &stderr)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 101, stepErr.ExitCode)
	assert.Equal(t, StepLint, stepErr.Step)
	assert.Equal(t, "warning: unused", stepErr.Stderr)
	assert.ErrorIs(t, err, ErrStepFailed)
	assert.Equal(t, 101, ExitCode(err))
}

func TestExecExecutor_CommandNotFound(t *testing.T) {
	step := Step{Name: StepInstall, Command: "autoci-definitely-not-installed-12345"}

	err := NewExecExecutor().Execute(context.Background(), step, nil, nil)

	assert.ErrorIs(t, err, ErrCommandNotFound)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestExecExecutor_MissingDirIsNotCommandNotFound(t *testing.T) {
	requireShell(t)
	step := shStep(StepTest, "true")
	step.Dir = t.TempDir() + "/does-not-exist"

	err := NewExecExecutor().Execute(context.Background(), step, nil, nil)

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCommandNotFound))
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestExecExecutor_Timeout(t *testing.T) {
	requireShell(t)
	step := shStep(StepTest, "sleep 5")
	step.Timeout = 50 * time.Millisecond

	start := time.Now()
	err := NewExecExecutor().Execute(context.Background(), step, nil, nil)

	assert.ErrorIs(t, err, ErrStepTimeout)
	assert.Equal(t, ExitTimeout, ExitCode(err))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecExecutor_Canceled(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := NewExecExecutor().Execute(ctx, shStep(StepTest, "sleep 5"), nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ExitInterrupted, ExitCode(err))
}

func TestExecExecutor_EnvAndDir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	step := shStep(StepTest, `printf '%s %s' "$AUTOCI_PROBE" "$(pwd)"`)
	step.Env = []string{"AUTOCI_PROBE=hello"}
	step.Dir = dir
	var stdout bytes.Buffer

	require.NoError(t, NewExecExecutor().Execute(context.Background(), step, &stdout, nil))

	fields := strings.SplitN(stdout.String(), " ", 2)
	require.Len(t, fields, 2)
	assert.Equal(t, "hello", fields[0])
	assert.True(t, strings.HasSuffix(fields[1], dir), "pwd %q not in %q", fields[1], dir)
}

func TestTailBuffer_KeepsLastBytes(t *testing.T) {
	tb := newTailBuffer(8)
	_, _ = tb.Write([]byte("abc\n"))
	_, _ = tb.Write([]byte("defg"))
	assert.Equal(t, "abc\ndefg", tb.String())

	_, _ = tb.Write([]byte("\nhi\n"))
	assert.Equal(t, "hi\n", tb.String())
}

func TestTailBuffer_DropsPartialFirstLine(t *testing.T) {
	tb := newTailBuffer(24)
	_, _ = tb.Write([]byte("token=ghp_ABCDEFGHIJKLMNOP\n"))
	_, _ = tb.Write([]byte("error: denied\n"))

	got := tb.String()
	assert.Equal(t, "error: denied\n", got)
	assert.NotContains(t, got, "KLMNOP")
}

func TestTailBuffer_WrappedWithoutNewline(t *testing.T) {
	tb := newTailBuffer(4)
	_, _ = tb.Write([]byte("abcdefg"))
	assert.Empty(t, tb.String())
}

func TestMockExecutor_RecordsCalls(t *testing.T) {
	mock := &MockExecutor{Failures: map[string]int{StepLint: 2}}

	require.NoError(t, mock.Execute(context.Background(), Step{Name: StepInstall, Command: "x"}, nil, nil))
	err := mock.Execute(context.Background(), Step{Name: StepLint, Command: "y"}, nil, nil)

	assert.Equal(t, 2, ExitCode(err))
	assert.Equal(t, []string{StepInstall, StepLint}, mock.StepNames())
	mock.Reset()
	assert.Empty(t, mock.StepNames())
}
