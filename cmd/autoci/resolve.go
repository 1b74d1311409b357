// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/auto-lang/Auto/cmd/autoci/config"
	"github.com/auto-lang/Auto/pkg/validation"
	"github.com/auto-lang/Auto/services/ci"
	"github.com/auto-lang/Auto/services/ci/toolchain"
)

// resolution is everything a command needs to act on a project.
type resolution struct {
	Config    config.Loaded
	Toolchain toolchain.Toolchain
	Detection toolchain.Detection
	WorkDir   string
	Plan      ci.Plan
}

// resolve builds the plan from config, toolchain preset and flags.
//
// Description:
//
//	Precedence is flag, then config file, then preset. The toolchain is
//	detected from the work directory when set to "auto". The mode comes
//	from forced when non-nil, else from the lint flag variable.
func (a *app) resolve(opts *globalOptions, forced *ci.Mode) (*resolution, error) {
	loaded, err := config.Load(opts.configPath, opts.workDir)
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config

	workDir := firstNonEmpty(opts.workDir, cfg.WorkDir, ".")
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workdir: %w", err)
	}

	r := &resolution{Config: loaded, WorkDir: workDir}

	name := firstNonEmpty(opts.toolchain, cfg.Toolchain, config.ToolchainAuto)
	if name == config.ToolchainAuto {
		det, err := a.registry.Detect(workDir)
		if err != nil {
			return nil, err
		}
		r.Detection = det
		name = det.Toolchain
	} else if det, err := a.registry.Detect(workDir); err == nil && det.Toolchain == name {
		r.Detection = det
	}

	tc, err := a.registry.Get(name)
	if err != nil {
		return nil, err
	}
	r.Toolchain = tc

	lintEnv := firstNonEmpty(opts.lintEnv, cfg.LintEnv, tc.LintEnv)
	if err := validation.ValidateEnvName(lintEnv); err != nil {
		return nil, fmt.Errorf("%w: lint env: %v", errUsage, err)
	}
	tc.LintEnv = lintEnv

	mode := ci.ModeFromEnv(a.lookupEnv, lintEnv)
	if forced != nil {
		mode = *forced
	}

	plan := tc.Plan(mode, workDir)
	plan.Lint = applyStepConfig(plan.Lint, cfg.Lint)
	plan.Test = applyStepConfig(plan.Test, cfg.Test)
	switch {
	case cfg.Install.Disabled:
		plan.Install = nil
	case plan.Install != nil:
		install := applyStepConfig(*plan.Install, cfg.Install)
		plan.Install = &install
	case len(cfg.Install.Command) > 0:
		install := applyStepConfig(ci.Step{Name: ci.StepInstall, Dir: workDir}, cfg.Install)
		plan.Install = &install
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	r.Plan = plan
	return r, nil
}

// applyStepConfig overlays config overrides on a preset step.
func applyStepConfig(step ci.Step, sc config.StepConfig) ci.Step {
	if len(sc.Command) > 0 {
		dir := step.Dir
		step = toolchain.StepFromArgv(step.Name, sc.Command, dir)
	}
	if len(sc.Env) > 0 {
		keys := make([]string, 0, len(sc.Env))
		for k := range sc.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			step.Env = append(step.Env, k+"="+sc.Env[k])
		}
	}
	if sc.Timeout > 0 {
		step.Timeout = sc.Timeout
	}
	return step
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
