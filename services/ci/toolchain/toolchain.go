// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package toolchain holds the per-ecosystem command presets the CI driver
// runs, and detects which preset a project directory needs.
package toolchain

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/auto-lang/Auto/pkg/validation"
	"github.com/auto-lang/Auto/services/ci"
)

// Sentinel errors.
var (
	// ErrUnknownToolchain indicates a name with no registered preset.
	ErrUnknownToolchain = errors.New("unknown toolchain")

	// ErrNoToolchain indicates that no preset's marker file was found.
	ErrNoToolchain = errors.New("no toolchain detected")
)

// =============================================================================
// PRESETS
// =============================================================================

// Toolchain is a named set of install, lint and test commands.
type Toolchain struct {
	// Name identifies the toolchain ("cargo", "go").
	Name string

	// Description is shown by the CLI.
	Description string

	// LintEnv is the default flag variable that selects lint mode.
	LintEnv string

	// Markers are files whose presence in a directory selects this toolchain.
	Markers []string

	// Install is the argv that installs the lint tool. Empty means none.
	Install []string

	// Lint is the argv that runs the linter with warnings as errors.
	Lint []string

	// Test is the argv that runs the test suite.
	Test []string
}

// Cargo is the Rust preset: clippy for lint, cargo test for tests.
var Cargo = Toolchain{
	Name:        "cargo",
	Description: "Rust crate built with cargo; lint with clippy",
	LintEnv:     "CLIPPY",
	Markers:     []string{"Cargo.toml"},
	Install:     []string{"cargo", "install", "clippy", "--force"},
	Lint:        []string{"cargo", "clippy", "--", "-D", "warnings"},
	Test:        []string{"cargo", "test"},
}

// Go is the Go module preset: golangci-lint for lint, go test for tests.
var Go = Toolchain{
	Name:        "go",
	Description: "Go module; lint with golangci-lint",
	LintEnv:     "LINT",
	Markers:     []string{"go.mod"},
	Install:     []string{"go", "install", "github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest"},
	Lint:        []string{"golangci-lint", "run", "--max-issues-per-linter=0", "--max-same-issues=0"},
	Test:        []string{"go", "test", "./..."},
}

// Clone returns a deep copy.
func (t Toolchain) Clone() Toolchain {
	c := t
	c.Markers = append([]string(nil), t.Markers...)
	c.Install = append([]string(nil), t.Install...)
	c.Lint = append([]string(nil), t.Lint...)
	c.Test = append([]string(nil), t.Test...)
	return c
}

// Validate checks that the preset can produce a runnable plan.
func (t Toolchain) Validate() error {
	if err := validation.ValidateToolchainName(t.Name); err != nil {
		return err
	}
	if err := validation.ValidateEnvName(t.LintEnv); err != nil {
		return fmt.Errorf("toolchain %s: %w", t.Name, err)
	}
	if err := validation.ValidateArgv(t.Lint); err != nil {
		return fmt.Errorf("toolchain %s: lint: %w", t.Name, err)
	}
	if err := validation.ValidateArgv(t.Test); err != nil {
		return fmt.Errorf("toolchain %s: test: %w", t.Name, err)
	}
	if len(t.Install) > 0 {
		if err := validation.ValidateArgv(t.Install); err != nil {
			return fmt.Errorf("toolchain %s: install: %w", t.Name, err)
		}
	}
	return nil
}

// Plan builds a driver plan for mode from the preset's commands.
//
// Description:
//
//	Steps run in dir. The install step is nil when the preset has no
//	install command. The returned plan owns its slices.
func (t Toolchain) Plan(mode ci.Mode, dir string) ci.Plan {
	p := ci.Plan{
		Toolchain: t.Name,
		Mode:      mode,
		LintEnv:   t.LintEnv,
		Lint:      StepFromArgv(ci.StepLint, t.Lint, dir),
		Test:      StepFromArgv(ci.StepTest, t.Test, dir),
	}
	if len(t.Install) > 0 {
		install := StepFromArgv(ci.StepInstall, t.Install, dir)
		p.Install = &install
	}
	return p
}

// StepFromArgv builds a step whose command is argv[0].
func StepFromArgv(name string, argv []string, dir string) ci.Step {
	s := ci.Step{Name: name, Dir: dir}
	if len(argv) > 0 {
		s.Command = argv[0]
		s.Args = append([]string(nil), argv[1:]...)
	}
	return s
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the known toolchains in registration order.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	toolchains map[string]Toolchain
	order      []string
}

// NewRegistry creates a registry with the cargo and go presets, in that
// order.
func NewRegistry() *Registry {
	r := &Registry{toolchains: make(map[string]Toolchain)}
	r.mustRegister(Cargo)
	r.mustRegister(Go)
	return r
}

func (r *Registry) mustRegister(t Toolchain) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Register adds or replaces a toolchain. A replaced toolchain keeps its
// position in detection order.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Register(t Toolchain) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.toolchains[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.toolchains[t.Name] = t.Clone()
	return nil
}

// Get returns a copy of the named toolchain.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Get(name string) (Toolchain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.toolchains[name]
	if !ok {
		return Toolchain{}, fmt.Errorf("%w: %q", ErrUnknownToolchain, name)
	}
	return t.Clone(), nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// ordered returns copies of the toolchains in registration order.
func (r *Registry) ordered() []Toolchain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Toolchain, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.toolchains[name].Clone())
	}
	return out
}
