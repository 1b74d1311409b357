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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"step error", NewStepError(StepTest, "cargo test", 101, "", ErrStepFailed), 101},
		{"wrapped step error", fmt.Errorf("run: %w", NewStepError(StepLint, "x", 3, "", nil)), 3},
		{"invalid plan", fmt.Errorf("%w: bad", ErrInvalidPlan), ExitUsage},
		{"invalid mode", fmt.Errorf("%w: bad", ErrInvalidMode), ExitUsage},
		{"canceled", context.Canceled, ExitInterrupted},
		{"other", errors.New("boom"), ExitFailure},
		{"tool missing", fmt.Errorf("%w: cargo", ErrToolMissing), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestStepError_ErrorAndUnwrap(t *testing.T) {
	err := NewStepError(StepLint, "cargo clippy -- -D warnings", 101, "  warning: x\nerror: aborting  \n", ErrStepFailed)

	assert.Equal(t, `lint step "cargo clippy -- -D warnings" (exit 101): step failed: error: aborting`, err.Error())
	assert.Equal(t, "warning: x\nerror: aborting", err.Stderr)
	assert.ErrorIs(t, err, ErrStepFailed)
}

func TestStepError_NoCause(t *testing.T) {
	err := NewStepError(StepTest, "go test ./...", 1, "", nil)
	assert.Equal(t, `test step "go test ./..." (exit 1)`, err.Error())
	assert.Nil(t, errors.Unwrap(err))
}
