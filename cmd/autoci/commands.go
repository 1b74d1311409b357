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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/auto-lang/Auto/cmd/autoci/config"
	"github.com/auto-lang/Auto/services/ci"
	"github.com/auto-lang/Auto/services/ci/toolchain"
)

// errUsage marks command-line mistakes. They exit with ci.ExitUsage.
var errUsage = errors.New("usage error")

// app carries the process boundary so commands can be tested in-process.
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
	lookPath  func(string) (string, error)
	executor  ci.Executor
	registry  *toolchain.Registry
}

func newApp() *app {
	return &app{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: os.LookupEnv,
		lookPath:  exec.LookPath,
		executor:  ci.NewExecExecutor(),
		registry:  toolchain.NewRegistry(),
	}
}

// globalOptions holds the persistent flags. Empty means "not set".
type globalOptions struct {
	configPath   string
	workDir      string
	toolchain    string
	lintEnv      string
	logLevel     string
	logFormat    string
	reportPath   string
	reportFormat string
}

// execute runs the CLI and returns the process exit status.
func (a *app) execute(ctx context.Context, args []string) int {
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	// cobra reports unknown subcommands as plain errors.
	if err != nil && strings.HasPrefix(err.Error(), "unknown command") {
		err = fmt.Errorf("%w: %v", errUsage, err)
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "autoci: %v\n", err)
	}
	return exitCode(err)
}

// exitCode extends ci.ExitCode with the CLI's usage errors.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ci.ExitOK
	case errors.Is(err, errUsage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, toolchain.ErrUnknownToolchain),
		errors.Is(err, toolchain.ErrNoToolchain):
		return ci.ExitUsage
	default:
		return ci.ExitCode(err)
	}
}

func (a *app) newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "autoci",
		Short: "Run a project's lint or test step for CI",
		Long: `autoci runs the lint step when the toolchain's flag variable is set
(CLIPPY for cargo, LINT for go) and the test step otherwise.

In lint mode the lint tool is installed first. If installation fails the
lint run is skipped with a warning and autoci exits 0. Otherwise autoci
exits with the status of the step that ran.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./"+config.DefaultFileName+" if present)")
	flags.StringVarP(&opts.workDir, "workdir", "C", "", "project directory the steps run in")
	flags.StringVarP(&opts.toolchain, "toolchain", "t", "", "toolchain preset: auto, cargo, go")
	flags.StringVar(&opts.lintEnv, "lint-env", "", "environment variable that selects lint mode")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.reportPath, "report", "", "write a run report to this file")
	flags.StringVar(&opts.reportFormat, "report-format", "", "report format: json or yaml (default: from extension)")

	rootCmd.AddCommand(
		a.newRunCmd(opts, "run", "Run lint or test depending on the flag variable", nil),
		a.newRunCmd(opts, "lint", "Install the lint tool and run it, ignoring the flag variable", modePtr(ci.ModeLint)),
		a.newRunCmd(opts, "test", "Run the test suite, ignoring the flag variable", modePtr(ci.ModeTest)),
		a.newPlanCmd(opts),
		a.newDoctorCmd(opts),
		a.newInitCmd(opts),
		a.newVersionCmd(),
	)
	return rootCmd
}

// noArgs is cobra.NoArgs reported as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func modePtr(m ci.Mode) *ci.Mode {
	return &m
}
