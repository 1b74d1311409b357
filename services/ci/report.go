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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ReportSchemaVersion captures the report version for compatibility checks.
const ReportSchemaVersion = 1

// Report formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat indicates an unsupported report format.
var ErrUnknownFormat = errors.New("unknown report format")

// Report is the durable record of one driver run.
type Report struct {
	SchemaVersion int          `json:"schema_version" yaml:"schema_version"`
	RunID         string       `json:"run_id" yaml:"run_id"`
	CreatedAt     time.Time    `json:"created_at" yaml:"created_at"`
	Hostname      string       `json:"hostname" yaml:"hostname"`
	AppVersion    string       `json:"app_version" yaml:"app_version"`
	ConfigSource  string       `json:"config_source" yaml:"config_source"`
	Toolchain     string       `json:"toolchain" yaml:"toolchain"`
	Project       string       `json:"project,omitempty" yaml:"project,omitempty"`
	Mode          Mode         `json:"mode" yaml:"mode"`
	LintEnv       string       `json:"lint_env" yaml:"lint_env"`
	Outcome       Outcome      `json:"outcome" yaml:"outcome"`
	ExitCode      int          `json:"exit_code" yaml:"exit_code"`
	StartedAt     time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time    `json:"finished_at" yaml:"finished_at"`
	Steps         []StepRecord `json:"steps" yaml:"steps"`
}

// ReportOptions captures the run metadata that is not part of Result.
type ReportOptions struct {
	RunID        string
	CreatedAt    time.Time
	Hostname     string
	AppVersion   string
	ConfigSource string
	Project      string
	Plan         Plan
}

// NewReport builds a report from a finished run. A missing RunID is
// replaced with a random UUID.
func NewReport(opts ReportOptions, res *Result) Report {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	created := opts.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	r := Report{
		SchemaVersion: ReportSchemaVersion,
		RunID:         runID,
		CreatedAt:     created.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  opts.ConfigSource,
		Toolchain:     opts.Plan.Toolchain,
		Project:       opts.Project,
		Mode:          opts.Plan.Mode,
		LintEnv:       opts.Plan.LintEnv,
		Steps:         []StepRecord{},
	}
	if res != nil {
		r.Mode = res.Mode
		r.Outcome = res.Outcome
		r.ExitCode = res.ExitCode
		r.StartedAt = res.StartedAt
		r.FinishedAt = res.FinishedAt
		r.Steps = append(r.Steps, res.Steps...)
	}
	return r
}

// FormatFromPath infers the report format from the file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// SaveReport writes the report to path. An empty format is inferred from
// the extension. Parent directories are created.
func SaveReport(r Report, path, format string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("report path must not be empty")
	}
	if format == "" {
		format = FormatFromPath(path)
	}

	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(r, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (Report, error) {
	var r Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read report: %w", err)
	}
	switch FormatFromPath(path) {
	case FormatYAML:
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return r, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
