// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package buildinfo reports the autoci version.
package buildinfo

import (
	"runtime/debug"
	"sync"
)

// version is set at link time:
//
//	go build -ldflags "-X github.com/auto-lang/Auto/internal/buildinfo.version=v1.2.3"
var version = "dev"

var mu sync.RWMutex

// SetVersion overrides the version. An empty string is ignored.
func SetVersion(v string) {
	if v == "" {
		return
	}
	mu.Lock()
	version = v
	mu.Unlock()
}

// Version returns the link-time version, else the main module version
// from the embedded build info, else "dev".
func Version() string {
	mu.RLock()
	v := version
	mu.RUnlock()
	if v != "dev" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Commit returns the VCS revision recorded by the go tool, or "".
func Commit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
