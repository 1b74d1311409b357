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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/auto-lang/Auto/pkg/ux"
	"github.com/auto-lang/Auto/services/ci"
)

// planView is the JSON shape of `autoci plan -o json`.
type planView struct {
	Toolchain    string     `json:"toolchain"`
	Project      string     `json:"project,omitempty"`
	Mode         ci.Mode    `json:"mode"`
	LintEnv      string     `json:"lint_env"`
	LintEnvSet   bool       `json:"lint_env_set"`
	ConfigSource string     `json:"config_source"`
	WorkDir      string     `json:"workdir"`
	Steps        []stepView `json:"steps"`
}

type stepView struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	EnvKeys []string `json:"env_keys,omitempty"`
	Timeout string   `json:"timeout,omitempty"`
	Runs    bool     `json:"runs"`
}

func (a *app) newPlanCmd(opts *globalOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which steps would run, without running them",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("%w: --output %q must be text or json", errUsage, output)
			}
			res, err := a.resolve(opts, nil)
			if err != nil {
				return err
			}
			view := a.planViewOf(res)
			if output == "json" {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printPlan(ux.NewOutput(a.stdout), view)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func (a *app) planViewOf(res *resolution) planView {
	set := ci.ModeFromEnv(a.lookupEnv, res.Plan.LintEnv) == ci.ModeLint
	view := planView{
		Toolchain:    res.Plan.Toolchain,
		Project:      res.Detection.Project,
		Mode:         res.Plan.Mode,
		LintEnv:      res.Plan.LintEnv,
		LintEnvSet:   set,
		ConfigSource: res.Config.Source,
		WorkDir:      res.WorkDir,
	}

	runs := map[string]bool{}
	for _, s := range res.Plan.Steps() {
		runs[s.Name] = true
	}
	all := []ci.Step{res.Plan.Lint, res.Plan.Test}
	if res.Plan.Install != nil {
		all = append([]ci.Step{*res.Plan.Install}, all...)
	}
	for _, s := range all {
		sv := stepView{Name: s.Name, Command: s.CommandLine(), Runs: runs[s.Name]}
		for _, kv := range s.Env {
			sv.EnvKeys = append(sv.EnvKeys, strings.SplitN(kv, "=", 2)[0])
		}
		if s.Timeout > 0 {
			sv.Timeout = s.Timeout.String()
		}
		view.Steps = append(view.Steps, sv)
	}
	return view
}

func printPlan(out *ux.Output, v planView) {
	flag := "unset"
	if v.LintEnvSet {
		flag = "set"
	}
	pairs := [][2]string{
		{"toolchain", v.Toolchain},
	}
	if v.Project != "" {
		pairs = append(pairs, [2]string{"project", v.Project})
	}
	pairs = append(pairs,
		[2]string{"mode", fmt.Sprintf("%s (%s is %s)", v.Mode, v.LintEnv, flag)},
		[2]string{"config", v.ConfigSource},
		[2]string{"workdir", v.WorkDir},
	)
	out.KeyValues("Plan", pairs)

	for _, s := range v.Steps {
		line := fmt.Sprintf("%s: %s", s.Name, s.Command)
		if s.Timeout != "" {
			line += " (timeout " + s.Timeout + ")"
		}
		if s.Runs {
			out.Success(line)
		} else {
			out.Info("  " + line + " [not run]")
		}
	}
}
