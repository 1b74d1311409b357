// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for values that
// end up in subprocess calls.
//
// The CI driver passes user-provided names and command lines straight to
// the environment and to exec. These validators reject inputs that would
// be silently misread there (a flag variable that can never be set, an
// argv containing NUL bytes).
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// envNamePattern matches POSIX environment variable names.
var envNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// toolchainNamePattern matches toolchain preset names like "cargo".
// Max length: 32 characters
var toolchainNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// ErrInvalidName is returned for malformed variable and toolchain names.
var ErrInvalidName = errors.New("invalid name")

// ErrInvalidArgv is returned for command lines exec cannot run as given.
var ErrInvalidArgv = errors.New("invalid command")

// ValidateEnvName validates an environment variable name.
//
// Valid names:
//   - Start with a letter or underscore
//   - Contain only letters, digits and underscores
//
// Example:
//
//	if err := validation.ValidateEnvName(lintEnv); err != nil {
//	    return fmt.Errorf("--lint-env: %w", err)
//	}
func ValidateEnvName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: environment variable name cannot be empty", ErrInvalidName)
	}
	if !envNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid environment variable name", ErrInvalidName, name)
	}
	return nil
}

// ValidateToolchainName validates a toolchain preset name: lowercase
// letters, digits, '_' and '-', starting with a letter, at most 32 chars.
func ValidateToolchainName(name string) error {
	if !toolchainNamePattern.MatchString(name) {
		return fmt.Errorf("%w: toolchain %q (must be lowercase alphanumeric, '-' or '_')", ErrInvalidName, name)
	}
	return nil
}

// ValidateArgv validates a command line before it is handed to exec.
//
// argv[0] must be non-blank and single-line. No argument may contain a NUL
// byte.
func ValidateArgv(argv []string) error {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return fmt.Errorf("%w: command cannot be empty", ErrInvalidArgv)
	}
	if strings.ContainsAny(argv[0], "\n\r") {
		return fmt.Errorf("%w: command %q spans lines", ErrInvalidArgv, argv[0])
	}
	for i, a := range argv {
		if strings.IndexByte(a, 0) >= 0 {
			return fmt.Errorf("%w: argument %d contains a NUL byte", ErrInvalidArgv, i)
		}
	}
	return nil
}
