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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/auto-lang/Auto/cmd/autoci/config"
	"github.com/auto-lang/Auto/pkg/ux"
)

func (a *app) newInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter " + config.DefaultFileName,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = filepath.Join(firstNonEmpty(opts.workDir, "."), config.DefaultFileName)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			ux.NewOutput(a.stdout).Success("wrote " + path)
			return nil
		},
	}
}
