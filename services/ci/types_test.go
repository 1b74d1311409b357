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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestModeFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Mode
	}{
		{"unset", map[string]string{}, ModeTest},
		{"empty", map[string]string{"CLIPPY": ""}, ModeTest},
		{"one", map[string]string{"CLIPPY": "1"}, ModeLint},
		{"zero still counts as set", map[string]string{"CLIPPY": "0"}, ModeLint},
		{"false still counts as set", map[string]string{"CLIPPY": "false"}, ModeLint},
		{"other variable", map[string]string{"LINT": "1"}, ModeTest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ModeFromEnv(envMap(tt.env), "CLIPPY"))
		})
	}
}

func TestModeFromEnv_NilLookupOrKey(t *testing.T) {
	assert.Equal(t, ModeTest, ModeFromEnv(nil, "CLIPPY"))
	assert.Equal(t, ModeTest, ModeFromEnv(envMap(map[string]string{"": "x"}), ""))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Lint ")
	require.NoError(t, err)
	assert.Equal(t, ModeLint, m)

	m, err = ParseMode("test")
	require.NoError(t, err)
	assert.Equal(t, ModeTest, m)

	_, err = ParseMode("bench")
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestStep_CommandLine(t *testing.T) {
	s := Step{Command: "cargo", Args: []string{"clippy", "--", "-D", "warnings"}}
	assert.Equal(t, "cargo clippy -- -D warnings", s.CommandLine())

	s = Step{Command: "sh", Args: []string{"-c", "exit 3", ""}}
	assert.Equal(t, `sh -c "exit 3" ""`, s.CommandLine())
}

func TestStep_Clone_IsDeep(t *testing.T) {
	s := Step{Command: "go", Args: []string{"test"}, Env: []string{"A=1"}}
	c := s.Clone()
	c.Args[0] = "vet"
	c.Env[0] = "A=2"
	assert.Equal(t, "test", s.Args[0])
	assert.Equal(t, "A=1", s.Env[0])
}

func TestPlan_Validate(t *testing.T) {
	require.NoError(t, cargoPlan(ModeLint).Validate())
	require.NoError(t, cargoPlan(ModeTest).Validate())

	p := cargoPlan(Mode("bench"))
	assert.ErrorIs(t, p.Validate(), ErrInvalidPlan)

	p = cargoPlan(ModeTest)
	p.Test.Timeout = -time.Second
	assert.ErrorIs(t, p.Validate(), ErrInvalidPlan)

	p = cargoPlan(ModeLint)
	p.Lint.Env = []string{"=oops"}
	assert.ErrorIs(t, p.Validate(), ErrInvalidPlan)

	// Steps outside the selected branch are not validated.
	p = cargoPlan(ModeTest)
	p.Lint.Command = ""
	assert.NoError(t, p.Validate())
}

func TestPlan_Steps(t *testing.T) {
	names := func(steps []Step) []string {
		out := make([]string, len(steps))
		for i, s := range steps {
			out[i] = s.Name
		}
		return out
	}

	assert.Equal(t, []string{StepInstall, StepLint}, names(cargoPlan(ModeLint).Steps()))
	assert.Equal(t, []string{StepTest}, names(cargoPlan(ModeTest).Steps()))

	p := cargoPlan(ModeLint)
	p.Install = nil
	assert.Equal(t, []string{StepLint}, names(p.Steps()))
}

func TestResult_RanAndDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Result{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Steps:      []StepRecord{{Name: StepInstall}},
	}
	assert.True(t, r.Ran(StepInstall))
	assert.False(t, r.Ran(StepLint))
	assert.Equal(t, 3*time.Second, r.Duration())
}
