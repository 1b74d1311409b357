// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders the autoci CLI's human-facing output.
//
// Output is styled with lipgloss when the destination is a terminal and
// falls back to plain, line-oriented text otherwise (CI logs, pipes,
// NO_COLOR).
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights
	ColorTealPrimary = lipgloss.Color("#20B9B4") // titles
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Icon provides status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
)

// plainLabel is the icon's text form in plain output.
func (i Icon) plainLabel() string {
	switch i {
	case IconSuccess:
		return "OK"
	case IconWarning:
		return "WARN"
	case IconError:
		return "ERROR"
	case IconPending:
		return "SKIP"
	default:
		return "-"
	}
}

// styles are bound to one renderer so color detection follows the writer.
type styles struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(ColorSlate),
		Success: r.NewStyle().Foreground(ColorSuccess),
		Warning: r.NewStyle().Foreground(ColorWarning),
		Error:   r.NewStyle().Foreground(ColorError),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
	}
}

// Output writes styled or plain messages to one writer.
//
// Thread Safety: Not safe for concurrent use.
type Output struct {
	w      io.Writer
	plain  bool
	styles styles
}

// NewOutput creates an Output for w. Styling is enabled only when w is a
// terminal and NO_COLOR is unset.
func NewOutput(w io.Writer) *Output {
	return newOutput(w, !IsInteractive(w) || os.Getenv("NO_COLOR") != "")
}

// NewPlainOutput creates an Output that never styles.
func NewPlainOutput(w io.Writer) *Output {
	return newOutput(w, true)
}

func newOutput(w io.Writer, plain bool) *Output {
	if w == nil {
		w = io.Discard
	}
	return &Output{
		w:      w,
		plain:  plain,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// IsInteractive reports whether w is a terminal.
func IsInteractive(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Plain reports whether styling is disabled.
func (o *Output) Plain() bool {
	return o.plain
}

// Writer returns the destination.
func (o *Output) Writer() io.Writer {
	return o.w
}

func (o *Output) icon(i Icon) string {
	if o.plain {
		return i.plainLabel() + ":"
	}
	switch i {
	case IconSuccess:
		return o.styles.Success.Render(string(i))
	case IconWarning:
		return o.styles.Warning.Render(string(i))
	case IconError:
		return o.styles.Error.Render(string(i))
	case IconPending:
		return o.styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Title prints a title. Plain output omits it.
func (o *Output) Title(text string) {
	if o.plain {
		return
	}
	fmt.Fprintln(o.w, o.styles.Title.Render(text))
}

// Success prints a success line.
func (o *Output) Success(text string) {
	o.status(IconSuccess, text, o.styles.Success)
}

// Warning prints a warning line.
func (o *Output) Warning(text string) {
	o.status(IconWarning, text, o.styles.Warning)
}

// Error prints an error line.
func (o *Output) Error(text string) {
	o.status(IconError, text, o.styles.Error)
}

func (o *Output) status(i Icon, text string, style lipgloss.Style) {
	if o.plain {
		fmt.Fprintf(o.w, "%s %s\n", o.icon(i), text)
		return
	}
	fmt.Fprintf(o.w, "%s %s\n", o.icon(i), style.Render(text))
}

// Info prints an informational line.
func (o *Output) Info(text string) {
	if o.plain {
		fmt.Fprintln(o.w, text)
		return
	}
	fmt.Fprintf(o.w, "%s %s\n", o.styles.Muted.Render("│"), text)
}

// Box prints content in a rounded box, or "title: content" lines when plain.
func (o *Output) Box(title, content string) {
	if o.plain {
		for _, line := range strings.Split(content, "\n") {
			fmt.Fprintf(o.w, "%s: %s\n", title, line)
		}
		return
	}
	fmt.Fprintln(o.w, o.styles.Box.Render(o.styles.Title.Render(title)+"\n"+content))
}

// KeyValues prints aligned key/value pairs under an optional title.
func (o *Output) KeyValues(title string, pairs [][2]string) {
	if title != "" {
		o.Title(title)
	}
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}
	for _, p := range pairs {
		key := fmt.Sprintf("%-*s", width, p[0])
		if o.plain {
			fmt.Fprintf(o.w, "%s  %s\n", key, p[1])
			continue
		}
		fmt.Fprintf(o.w, "%s  %s\n", o.styles.Muted.Render(key), p[1])
	}
}
