// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry bootstraps OpenTelemetry for the CI driver.
//
// The driver is a short-lived process, so nothing is served: spans go to
// an OTLP collector or a JSON file, and metrics are flushed on shutdown,
// either as a Prometheus textfile (for node_exporter's textfile collector)
// or as stdoutmetric JSON.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.MetricExporter = telemetry.ExporterPrometheus
//	cfg.MetricsFile = "/var/lib/node_exporter/autoci.prom"
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - AUTOCI_ENV: environment name (default: ci)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init() returns.
package telemetry
