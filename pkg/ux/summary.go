// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"
	"time"
)

// StepLine is one row of a run summary.
type StepLine struct {
	Name     string
	Command  string
	State    string
	ExitCode int
	Duration time.Duration
	Message  string
}

// RunSummary is the end-of-run view of a driver invocation.
type RunSummary struct {
	Toolchain string
	Mode      string
	Outcome   string
	ExitCode  int
	Duration  time.Duration
	Steps     []StepLine
	Report    string
}

// ToolLine is one row of the doctor view.
type ToolLine struct {
	Step      string
	Command   string
	Path      string
	Available bool
	Required  bool
	Guidance  string
}

// Summary prints the run summary.
//
// Description:
//
//	Styled output shows one icon line per step followed by a boxed
//	outcome. Plain output prints tab-separated step rows and a final
//	"SUMMARY:" line that CI log scrapers can match.
func (o *Output) Summary(s RunSummary) {
	if o.plain {
		for _, st := range s.Steps {
			fmt.Fprintf(o.w, "STEP\t%s\t%s\t%d\t%s\t%s\n", st.Name, st.State, st.ExitCode, roundDuration(st.Duration), st.Command)
		}
		fmt.Fprintf(o.w, "SUMMARY: toolchain=%s mode=%s outcome=%s exit=%d duration=%s\n",
			s.Toolchain, s.Mode, s.Outcome, s.ExitCode, roundDuration(s.Duration))
		if s.Report != "" {
			fmt.Fprintf(o.w, "REPORT: %s\n", s.Report)
		}
		return
	}

	fmt.Fprintln(o.w)
	for _, st := range s.Steps {
		line := fmt.Sprintf("%s %s %s", o.icon(stepIcon(st.State)), o.styles.Bold.Render(st.Name), st.Command)
		line += " " + o.styles.Muted.Render(fmt.Sprintf("(%s)", roundDuration(st.Duration)))
		fmt.Fprintln(o.w, line)
		if st.Message != "" && st.State != "succeeded" {
			fmt.Fprintf(o.w, "  %s %s\n", IconArrow, o.styles.Muted.Render(st.Message))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  exit %d  %s",
		o.icon(outcomeIcon(s.Outcome)), o.outcomeStyle(s.Outcome), s.ExitCode,
		o.styles.Muted.Render(roundDuration(s.Duration).String()))
	fmt.Fprintf(&b, "\n%s %s", o.styles.Muted.Render("mode"), s.Mode)
	fmt.Fprintf(&b, "\n%s %s", o.styles.Muted.Render("toolchain"), s.Toolchain)
	if s.Report != "" {
		fmt.Fprintf(&b, "\n%s %s", o.styles.Muted.Render("report"), s.Report)
	}
	fmt.Fprintln(o.w, o.styles.Box.Render(b.String()))
}

// Tools prints the doctor view.
func (o *Output) Tools(tools []ToolLine) {
	for _, t := range tools {
		icon := IconSuccess
		switch {
		case !t.Available && t.Required:
			icon = IconError
		case !t.Available:
			icon = IconWarning
		}

		if o.plain {
			path := t.Path
			if path == "" {
				path = "-"
			}
			fmt.Fprintf(o.w, "%s %s\t%s\t%s\n", o.icon(icon), t.Step, t.Command, path)
			if t.Guidance != "" {
				fmt.Fprintf(o.w, "  %s\n", t.Guidance)
			}
			continue
		}

		line := fmt.Sprintf("%s %s %s", o.icon(icon), o.styles.Bold.Render(t.Step), t.Command)
		if t.Path != "" {
			line += " " + o.styles.Muted.Render(t.Path)
		}
		fmt.Fprintln(o.w, line)
		if t.Guidance != "" {
			fmt.Fprintf(o.w, "  %s %s\n", IconArrow, o.styles.Muted.Render(t.Guidance))
		}
	}
}

func (o *Output) outcomeStyle(outcome string) string {
	switch outcome {
	case "passed":
		return o.styles.Success.Render(outcome)
	case "skipped":
		return o.styles.Warning.Render(outcome)
	default:
		return o.styles.Error.Render(outcome)
	}
}

func stepIcon(state string) Icon {
	switch state {
	case "succeeded":
		return IconSuccess
	case "":
		return IconPending
	default:
		return IconError
	}
}

func outcomeIcon(outcome string) Icon {
	switch outcome {
	case "passed":
		return IconSuccess
	case "skipped":
		return IconWarning
	default:
		return IconError
	}
}

func roundDuration(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(100 * time.Millisecond)
}
