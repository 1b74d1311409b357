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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDetect_Cargo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", `
[package]
name = "autopilot"
version = "0.4.2"
authors = ["someone"]

[dependencies]
libc = "0.2"
`)

	d, err := Detect(dir)

	require.NoError(t, err)
	assert.Equal(t, "cargo", d.Toolchain)
	assert.Equal(t, "autopilot", d.Project)
	assert.Equal(t, "0.4.2", d.Version)
	assert.Equal(t, filepath.Join(dir, "Cargo.toml"), d.Marker)
}

func TestDetect_CargoWorkspaceVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", `
[package]
name = "member"
version.workspace = true
`)

	d, err := Detect(dir)

	require.NoError(t, err)
	assert.Equal(t, "member", d.Project)
	assert.Empty(t, d.Version)
}

func TestDetect_CargoVirtualWorkspace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", `
[workspace]
members = ["a", "b"]
`)

	d, err := Detect(dir)

	require.NoError(t, err)
	assert.Equal(t, "workspace (2 members)", d.Project)
}

func TestDetect_GoMod(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/widget\n\ngo 1.22\n\nrequire github.com/spf13/cobra v1.8.0\n")

	d, err := Detect(dir)

	require.NoError(t, err)
	assert.Equal(t, "go", d.Toolchain)
	assert.Equal(t, "example.com/widget", d.Project)
	assert.Equal(t, "1.22", d.Version)
}

func TestDetect_CargoWinsOverGo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/x\n")
	writeFile(t, dir, "Cargo.toml", "[package]\nname = \"x\"\n")

	d, err := Detect(dir)

	require.NoError(t, err)
	assert.Equal(t, "cargo", d.Toolchain)
}

func TestDetect_NothingFound(t *testing.T) {
	_, err := Detect(t.TempDir())

	assert.ErrorIs(t, err, ErrNoToolchain)
	assert.Contains(t, err.Error(), "Cargo.toml, go.mod")
}

func TestDetect_MarkerDirectoryIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Cargo.toml"), 0o755))

	_, err := Detect(dir)

	assert.ErrorIs(t, err, ErrNoToolchain)
}

func TestDetect_MalformedManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", "[package\nname = demo\n")

	d, err := Detect(dir)

	require.NoError(t, err)
	assert.Equal(t, "cargo", d.Toolchain)
	assert.Empty(t, d.Project)
	require.Error(t, d.ManifestErr)
	assert.Contains(t, d.ManifestErr.Error(), "Cargo.toml")
}

func TestDetect_MalformedGoMod(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module\ngo 1.22 extra junk\n")

	d, err := Detect(dir)

	require.NoError(t, err)
	assert.Equal(t, "go", d.Toolchain)
	assert.Empty(t, d.Project)
	assert.Error(t, d.ManifestErr)
}
