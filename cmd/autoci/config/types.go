// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the autoci YAML configuration file.
package config

import "time"

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = ".autoci.yaml"

// ToolchainAuto selects the toolchain by marker-file detection.
const ToolchainAuto = "auto"

// Config is the on-disk configuration.
//
// Every field is optional. Command-line flags override file values.
type Config struct {
	// Toolchain names a preset, or "auto" to detect one from WorkDir.
	Toolchain string `yaml:"toolchain" validate:"omitempty,toolchainname"`

	// LintEnv overrides the preset's lint flag variable.
	LintEnv string `yaml:"lint_env,omitempty" validate:"omitempty,envname"`

	// WorkDir is the directory the steps run in. Relative paths are
	// resolved against the config file's directory.
	WorkDir string `yaml:"work_dir,omitempty"`

	// Install, Lint and Test override the preset's steps.
	Install StepConfig `yaml:"install,omitempty"`
	Lint    StepConfig `yaml:"lint,omitempty"`
	Test    StepConfig `yaml:"test,omitempty"`

	Report    ReportConfig    `yaml:"report,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// StepConfig overrides one step of the preset.
type StepConfig struct {
	// Command replaces the preset's argv when non-empty.
	Command []string `yaml:"command,omitempty" validate:"omitempty,dive,required"`

	// Env adds variables to the step's environment.
	Env map[string]string `yaml:"env,omitempty" validate:"omitempty,dive,keys,envname,endkeys"`

	// Timeout bounds the step, e.g. "10m". Zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`

	// Disabled removes the step. Only the install step may be disabled.
	Disabled bool `yaml:"disabled,omitempty"`
}

// ReportConfig controls the run report file.
type ReportConfig struct {
	// Path of the report. Empty disables the report.
	Path string `yaml:"path,omitempty"`

	// Format is "json" or "yaml". Empty infers it from Path.
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=json yaml"`
}

// LoggingConfig controls diagnostic logging on stderr.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json"`

	// Dir additionally writes JSON logs to a dated file in this directory.
	Dir string `yaml:"dir,omitempty"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	Traces       string `yaml:"traces,omitempty" validate:"omitempty,oneof=none stdout otlp"`
	TraceFile    string `yaml:"trace_file,omitempty"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"required_if=Traces otlp"`
	Metrics      string `yaml:"metrics,omitempty" validate:"omitempty,oneof=none prometheus stdout"`
	MetricsFile  string `yaml:"metrics_file,omitempty" validate:"required_if=Metrics prometheus"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Toolchain: ToolchainAuto,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Traces:       "none",
			OTLPEndpoint: "localhost:4317",
			Metrics:      "none",
		},
	}
}
