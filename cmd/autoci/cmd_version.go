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
	"runtime"

	"github.com/spf13/cobra"

	"github.com/auto-lang/Auto/internal/buildinfo"
)

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the autoci version",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			line := fmt.Sprintf("autoci %s (%s/%s)", buildinfo.Version(), runtime.GOOS, runtime.GOARCH)
			if commit := buildinfo.Commit(); commit != "" {
				line += " " + commit
			}
			fmt.Fprintln(a.stdout, line)
		},
	}
}
