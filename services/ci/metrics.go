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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/auto-lang/Auto/services/telemetry"
)

const instrumentationName = "github.com/auto-lang/Auto/services/ci"

// Metrics for driver runs. Instruments are created lazily against the
// global MeterProvider so telemetry.Init may run before or after import.
var (
	runsTotal    metric.Int64Counter
	stepsTotal   metric.Int64Counter
	stepDuration metric.Float64Histogram
	lintSkipped  metric.Int64Counter
	runDuration  metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		var err error

		runsTotal, err = meter.Int64Counter(
			"ci_runs_total",
			metric.WithDescription("Total number of CI driver runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runDuration, err = meter.Float64Histogram(
			"ci_run_duration_seconds",
			metric.WithDescription("Wall time of CI driver runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stepsTotal, err = meter.Int64Counter(
			"ci_steps_total",
			metric.WithDescription("Total number of executed CI steps"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stepDuration, err = meter.Float64Histogram(
			"ci_step_duration_seconds",
			metric.WithDescription("Duration of executed CI steps"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lintSkipped, err = meter.Int64Counter(
			"ci_lint_skipped_total",
			metric.WithDescription("Lint runs skipped because the lint tool could not be installed"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates the root span of a driver run.
func startRunSpan(ctx context.Context, plan Plan) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, instrumentationName, "Driver.Run",
		trace.WithAttributes(
			attribute.String("ci.mode", plan.Mode.String()),
			attribute.String("ci.toolchain", plan.Toolchain),
			attribute.String("ci.lint_env", plan.LintEnv),
		),
	)
}

// startStepSpan creates a child span for one step.
func startStepSpan(ctx context.Context, step Step) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, instrumentationName, "Driver.step",
		trace.WithAttributes(
			attribute.String("ci.step", step.Name),
			attribute.String("ci.command", step.CommandLine()),
		),
	)
}

// endStepSpan records the step outcome on its span and ends it.
func endStepSpan(span trace.Span, rec StepRecord, err error) {
	span.SetAttributes(
		attribute.String("ci.step_state", string(rec.State)),
		attribute.Int("ci.exit_code", rec.ExitCode),
	)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanOK(span)
	}
	span.End()
}

// endRunSpan records the run outcome on its span and ends it.
func endRunSpan(span trace.Span, res *Result, err error) {
	span.SetAttributes(
		attribute.String("ci.outcome", string(res.Outcome)),
		attribute.Int("ci.exit_code", res.ExitCode),
	)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanOK(span)
	}
	span.End()
}

// recordStepMetrics records metrics for one executed step.
func recordStepMetrics(ctx context.Context, rec StepRecord) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("step", rec.Name),
		attribute.String("state", string(rec.State)),
	)
	stepsTotal.Add(ctx, 1, attrs)
	stepDuration.Record(ctx, rec.Duration.Seconds(), attrs)
}

// recordRunMetrics records metrics for a finished run.
func recordRunMetrics(ctx context.Context, res *Result, elapsed time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", res.Mode.String()),
		attribute.String("outcome", string(res.Outcome)),
	)
	runsTotal.Add(ctx, 1, attrs)
	runDuration.Record(ctx, elapsed.Seconds(), attrs)
	if res.Outcome == OutcomeSkipped {
		lintSkipped.Add(ctx, 1)
	}
}
