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
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ToolStatus reports whether one step's executable can be found.
type ToolStatus struct {
	Step      string
	Command   string
	Path      string
	Available bool
	Required  bool
	Guidance  string
}

// Probe checks PATH for every executable the plan references, regardless
// of the plan's mode.
//
// Description:
//
//	Lookups run concurrently. The test tool is always required. The lint
//	tool is required only when the plan has no install step, since the
//	install step is expected to provide it. The install tool is never
//	required: a missing installer only means lint will be skipped.
//
// Inputs:
//
//	ctx - Context for cancellation
//	plan - The plan to probe
//	lookPath - PATH lookup, exec.LookPath when nil
//
// Outputs:
//
//	[]ToolStatus - One entry per step, in install, lint, test order
//	error - ErrToolMissing when a required tool is unavailable
func Probe(ctx context.Context, plan Plan, lookPath func(string) (string, error)) ([]ToolStatus, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	steps := make([]Step, 0, 3)
	if plan.Install != nil {
		steps = append(steps, *plan.Install)
	}
	steps = append(steps, plan.Lint, plan.Test)

	statuses := make([]ToolStatus, len(steps))
	g, gctx := errgroup.WithContext(ctx)
	for i, step := range steps {
		statuses[i] = ToolStatus{
			Step:     step.Name,
			Command:  step.Command,
			Required: step.Name == StepTest || (step.Name == StepLint && plan.Install == nil),
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := lookPath(step.Command)
			if err != nil {
				statuses[i].Guidance = guidanceFor(step)
				return nil
			}
			statuses[i].Path = path
			statuses[i].Available = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return statuses, err
	}

	var missing []string
	for _, s := range statuses {
		if s.Required && !s.Available {
			missing = append(missing, s.Command)
		}
	}
	if len(missing) > 0 {
		return statuses, fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(missing, ", "))
	}
	return statuses, nil
}

func guidanceFor(step Step) string {
	switch step.Name {
	case StepInstall:
		return fmt.Sprintf("install %s to enable lint-tool installation; lint runs will be skipped without it", step.Command)
	case StepLint:
		return fmt.Sprintf("install %s or configure an install step", step.Command)
	default:
		return fmt.Sprintf("install %s and expose it on PATH", step.Command)
	}
}
