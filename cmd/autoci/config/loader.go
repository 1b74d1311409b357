// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/auto-lang/Auto/pkg/validation"
)

// SourceDefaults is the Source reported when no file was read.
const SourceDefaults = "defaults"

// ErrInvalidConfig indicates a config file that failed validation.
var ErrInvalidConfig = errors.New("invalid config")

// validate is the validator instance for config types.
// Initialized in init() with custom validators.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("envname", validateEnvName)
	_ = validate.RegisterValidation("toolchainname", validateToolchainName)
}

func validateEnvName(fl validator.FieldLevel) bool {
	return validation.ValidateEnvName(fl.Field().String()) == nil
}

func validateToolchainName(fl validator.FieldLevel) bool {
	return validation.ValidateToolchainName(fl.Field().String()) == nil
}

// Loaded is a Config with the file it came from.
type Loaded struct {
	Config

	// Source is the absolute path of the file read, or SourceDefaults.
	Source string
}

// Load reads and validates the configuration.
//
// Description:
//
//	An empty path looks for DefaultFileName in dir; a missing default file
//	yields Default(). An explicit path must exist. File values are decoded
//	over Default(), so omitted fields keep their defaults. Unknown keys
//	are rejected. A relative WorkDir is resolved against the file's
//	directory.
//
// Inputs:
//
//	path - Explicit config path, or "" for the default lookup
//	dir - Directory for the default lookup. Empty means ".".
//
// Outputs:
//
//	Loaded - The configuration and its source
//	error - Read, parse or validation failure (ErrInvalidConfig)
func Load(path, dir string) (Loaded, error) {
	explicit := path != ""
	if !explicit {
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, DefaultFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Loaded{Config: Default(), Source: SourceDefaults}, nil
		}
		return Loaded{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Loaded{}, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if cfg.WorkDir != "" && !filepath.IsAbs(cfg.WorkDir) {
		cfg.WorkDir = filepath.Join(filepath.Dir(abs), cfg.WorkDir)
	}
	return Loaded{Config: cfg, Source: abs}, nil
}

// Parse decodes YAML over Default() and validates the result. Empty input
// yields Default().
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Lint.Disabled {
		return fmt.Errorf("%w: lint step cannot be disabled", ErrInvalidConfig)
	}
	if c.Test.Disabled {
		return fmt.Errorf("%w: test step cannot be disabled", ErrInvalidConfig)
	}
	for _, s := range []struct {
		name string
		cfg  StepConfig
	}{{"install", c.Install}, {"lint", c.Lint}, {"test", c.Test}} {
		if len(s.cfg.Command) == 0 {
			continue
		}
		if err := validation.ValidateArgv(s.cfg.Command); err != nil {
			return fmt.Errorf("%w: %s.command: %v", ErrInvalidConfig, s.name, err)
		}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "envname":
		return fmt.Sprintf("%s: %q is not a valid environment variable name", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s: %q must be one of [%s]", field, fe.Value(), fe.Param())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, strings.Replace(fe.Param(), " ", " is ", 1))
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}

// WriteDefault writes a commented starter config to path. An existing
// file is not overwritten.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	header := "# autoci configuration. See `autoci plan` for the resolved commands.\n"
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := f.Write(append([]byte(header), data...)); err != nil {
		f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}
