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
	"github.com/spf13/cobra"

	"github.com/auto-lang/Auto/pkg/ux"
	"github.com/auto-lang/Auto/services/ci"
)

func (a *app) newDoctorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the toolchain's commands are on PATH",
		Long: `doctor looks up every command the resolved plan references. It fails
when the test command is missing, or when the lint command is missing and
there is no install step to provide it.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.resolve(opts, nil)
			if err != nil {
				return err
			}
			statuses, probeErr := ci.Probe(cmd.Context(), res.Plan, a.lookPath)

			lines := make([]ux.ToolLine, 0, len(statuses))
			for _, s := range statuses {
				lines = append(lines, ux.ToolLine{
					Step:      s.Step,
					Command:   s.Command,
					Path:      s.Path,
					Available: s.Available,
					Required:  s.Required,
					Guidance:  s.Guidance,
				})
			}
			out := ux.NewOutput(a.stdout)
			out.Title("Toolchain " + res.Plan.Toolchain)
			out.Tools(lines)
			return probeErr
		},
	}
}
