// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ci implements the Auto CI driver.
//
// A CI invocation runs exactly one of two branches, chosen by a single
// environment flag:
//
//	flag set   → install lint tool → lint (warnings are errors)
//	flag unset → test suite
//
// # Exit Status
//
// The driver's exit status is the exit status of the step it ran:
//
//	| Situation                         | Exit status        |
//	|-----------------------------------|--------------------|
//	| test / lint passed                | 0                  |
//	| test / lint failed                | child's exit code  |
//	| lint tool could not be installed  | 0 (lint skipped)   |
//	| command not found                 | 127                |
//	| step timed out                    | 124                |
//	| interrupted                       | 130                |
//
// A failed lint-tool installation is never fatal: the driver prints a
// warning and reports the run as skipped. Every other failure is fatal.
//
// # Usage
//
//	plan := ci.Plan{
//	    Mode:    ci.ModeFromEnv(os.LookupEnv, "CLIPPY"),
//	    Install: &ci.Step{Name: ci.StepInstall, Command: "cargo", Args: []string{"install", "clippy", "--force"}},
//	    Lint:    ci.Step{Name: ci.StepLint, Command: "cargo", Args: []string{"clippy", "--", "-D", "warnings"}},
//	    Test:    ci.Step{Name: ci.StepTest, Command: "cargo", Args: []string{"test"}},
//	}
//
//	result, err := ci.NewDriver().Run(ctx, plan)
//	os.Exit(ci.ExitCode(err))
//
// # Thread Safety
//
// Driver is safe for concurrent use; each Run is independent. The steps of a
// single Run execute sequentially.
package ci
