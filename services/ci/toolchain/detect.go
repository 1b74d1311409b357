// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package toolchain

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"
)

// Detection describes the project found in a directory.
type Detection struct {
	// Toolchain is the name of the matching preset.
	Toolchain string

	// Marker is the path of the file that matched.
	Marker string

	// Project is the crate name or module path, when readable.
	Project string

	// Version is the crate version or the go directive, when readable.
	Version string

	// ManifestErr is set when the marker matched but could not be read or
	// parsed. The toolchain still applies; only the metadata is missing.
	ManifestErr error
}

// Detect finds the toolchain for dir using the default presets.
func Detect(dir string) (Detection, error) {
	return NewRegistry().Detect(dir)
}

// Detect finds the toolchain for dir.
//
// Description:
//
//	Toolchains are tried in registration order and the first one with a
//	marker file in dir wins. Project metadata is read from Cargo.toml or
//	go.mod when the marker is one of those. A marker that exists but
//	cannot be parsed still selects its toolchain; the problem is returned
//	in Detection.ManifestErr so the build tool can report it itself.
//
// Inputs:
//
//	dir - Project directory. Empty means the current directory.
//
// Outputs:
//
//	Detection - The matched toolchain and project metadata
//	error - ErrNoToolchain if nothing matched, or a stat failure
func (r *Registry) Detect(dir string) (Detection, error) {
	if dir == "" {
		dir = "."
	}
	for _, t := range r.ordered() {
		for _, marker := range t.Markers {
			path := filepath.Join(dir, marker)
			info, err := os.Stat(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return Detection{}, fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				continue
			}

			d := Detection{Toolchain: t.Name, Marker: path}
			if err := readProject(path, &d); err != nil {
				d.Project, d.Version = "", ""
				d.ManifestErr = err
			}
			return d, nil
		}
	}
	return Detection{}, fmt.Errorf("%w in %s (looked for %s)", ErrNoToolchain, dir, r.markerList())
}

func (r *Registry) markerList() string {
	var list string
	for _, t := range r.ordered() {
		for _, m := range t.Markers {
			if list != "" {
				list += ", "
			}
			list += m
		}
	}
	return list
}

func readProject(path string, d *Detection) error {
	switch filepath.Base(path) {
	case "Cargo.toml":
		return readCargoManifest(path, d)
	case "go.mod":
		return readGoMod(path, d)
	default:
		return nil
	}
}

// cargoManifest is the subset of Cargo.toml the driver reports. Version is
// loosely typed because it may be a `{ workspace = true }` table.
type cargoManifest struct {
	Package *struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
	} `toml:"package"`
	Workspace *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

func readCargoManifest(path string, d *Detection) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	switch {
	case m.Package != nil:
		d.Project = m.Package.Name
		if v, ok := m.Package.Version.(string); ok {
			d.Version = v
		}
	case m.Workspace != nil:
		d.Project = fmt.Sprintf("workspace (%d members)", len(m.Workspace.Members))
	}
	return nil
}

func readGoMod(path string, d *Detection) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Module != nil {
		d.Project = f.Module.Mod.Path
	}
	if f.Go != nil {
		d.Version = f.Go.Version
	}
	return nil
}
