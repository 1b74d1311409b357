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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/auto-lang/Auto/internal/buildinfo"
	"github.com/auto-lang/Auto/pkg/logging"
	"github.com/auto-lang/Auto/pkg/ux"
	"github.com/auto-lang/Auto/services/ci"
	"github.com/auto-lang/Auto/services/policy_engine"
)

func (a *app) newRunCmd(opts *globalOptions, use, short string, forced *ci.Mode) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDriver(cmd.Context(), opts, forced)
		},
	}
}

// runDriver resolves the plan, runs it and writes the summary and report.
//
// Description:
//
//	Step output streams to stdout/stderr as it happens; the summary goes
//	to stderr after the run. The returned error carries the exit status
//	(see exitCode). A report that cannot be written fails an otherwise
//	successful run, but never masks a step failure.
func (a *app) runDriver(ctx context.Context, opts *globalOptions, forced *ci.Mode) error {
	res, err := a.resolve(opts, forced)
	if err != nil {
		return err
	}
	reportFormat := firstNonEmpty(opts.reportFormat, res.Config.Report.Format)
	if err := checkReportFormat(reportFormat); err != nil {
		return err
	}

	logger, err := a.newLogger(opts, res.Config.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	shutdown, err := initTelemetry(ctx, res.Config.Telemetry, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	logger.Debug("plan resolved",
		"config", res.Config.Source,
		"toolchain", res.Plan.Toolchain,
		"workdir", res.WorkDir,
		"mode", res.Plan.Mode.String(),
	)
	if merr := res.Detection.ManifestErr; merr != nil {
		logger.Warn("project manifest not readable, running anyway",
			"marker", res.Detection.Marker,
			"error", merr.Error(),
		)
	}

	redactor, err := policy_engine.NewPolicyEngine()
	if err != nil {
		return fmt.Errorf("load secret patterns: %w", err)
	}

	driver := ci.NewDriver(
		ci.WithExecutor(a.executor),
		ci.WithRedactor(redactor),
		ci.WithLogger(logger.Slog()),
		ci.WithOutput(a.stdout, a.stderr),
	)
	result, runErr := driver.Run(ctx, res.Plan)
	if result == nil {
		return runErr
	}

	reportPath := firstNonEmpty(opts.reportPath, res.Config.Report.Path)
	var reportErr error
	if reportPath != "" {
		reportErr = a.writeReport(res, result, reportPath, reportFormat, logger)
	}

	ux.NewOutput(a.stderr).Summary(summaryOf(res.Plan, result, reportPath))

	if runErr != nil {
		return runErr
	}
	return reportErr
}

// checkReportFormat rejects a report format before any step runs. Empty
// means infer from the file extension.
func checkReportFormat(format string) error {
	if format != "" && format != ci.FormatJSON && format != ci.FormatYAML {
		return fmt.Errorf("%w: --report-format %q must be json or yaml", errUsage, format)
	}
	return nil
}

func (a *app) writeReport(res *resolution, result *ci.Result, path, format string, logger *logging.Logger) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	report := ci.NewReport(ci.ReportOptions{
		CreatedAt:    time.Now(),
		Hostname:     hostname,
		AppVersion:   buildinfo.Version(),
		ConfigSource: res.Config.Source,
		Project:      res.Detection.Project,
		Plan:         res.Plan,
	}, result)

	if err := ci.SaveReport(report, path, format); err != nil {
		logger.Error("report not written", "path", path, "error", err.Error())
		if errors.Is(err, ci.ErrUnknownFormat) {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return err
	}
	logger.Info("report written", "path", path, "run_id", report.RunID)
	return nil
}

func summaryOf(plan ci.Plan, res *ci.Result, reportPath string) ux.RunSummary {
	s := ux.RunSummary{
		Toolchain: plan.Toolchain,
		Mode:      res.Mode.String(),
		Outcome:   string(res.Outcome),
		ExitCode:  res.ExitCode,
		Duration:  res.Duration(),
		Report:    reportPath,
	}
	for _, st := range res.Steps {
		s.Steps = append(s.Steps, ux.StepLine{
			Name:     st.Name,
			Command:  st.Command,
			State:    string(st.State),
			ExitCode: st.ExitCode,
			Duration: st.Duration,
			Message:  st.Message,
		})
	}
	return s
}
