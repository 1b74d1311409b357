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
	"fmt"
	"time"

	"github.com/auto-lang/Auto/cmd/autoci/config"
	"github.com/auto-lang/Auto/internal/buildinfo"
	"github.com/auto-lang/Auto/pkg/logging"
	"github.com/auto-lang/Auto/services/telemetry"
)

// newLogger builds the diagnostic logger. Flags override the config file.
func (a *app) newLogger(opts *globalOptions, cfg config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(firstNonEmpty(opts.logLevel, cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	format := firstNonEmpty(opts.logFormat, cfg.Format, "text")
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("%w: --log-format %q must be text or json", errUsage, format)
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Dir,
		Service: "autoci",
		JSON:    format == "json",
		Output:  a.stderr,
	})
}

// initTelemetry starts the configured exporters and returns a shutdown
// func that is always safe to call.
func initTelemetry(ctx context.Context, cfg config.TelemetryConfig, logger *logging.Logger) (func(), error) {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = buildinfo.Version()
	if cfg.Traces != "" {
		tcfg.TraceExporter = cfg.Traces
	}
	if cfg.Metrics != "" {
		tcfg.MetricExporter = cfg.Metrics
	}
	if cfg.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	tcfg.TraceFile = cfg.TraceFile
	tcfg.MetricsFile = cfg.MetricsFile

	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return func() {}, fmt.Errorf("init telemetry: %w", err)
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err.Error())
		}
	}, nil
}
