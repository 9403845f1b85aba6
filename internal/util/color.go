// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	addressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// SupportsColor reports whether f is a terminal that accepts ANSI colors.
func SupportsColor(f *os.File) bool {
	if !term.IsTerminal(int(f.Fd())) { // #nosec G115 - file descriptors are small integers
		return false
	}
	termEnv := os.Getenv("TERM")
	return termEnv != "" && termEnv != "dumb" && os.Getenv("NO_COLOR") == ""
}

// Styler renders CLI output, with colors only when enabled.
type Styler struct {
	Color bool
}

// NewStyler returns a Styler that colors when f is a color terminal.
func NewStyler(f *os.File) Styler {
	return Styler{Color: SupportsColor(f)}
}

func (s Styler) render(st lipgloss.Style, text string) string {
	if !s.Color {
		return text
	}
	return st.Render(text)
}

// Address formats an hx address.
func (s Styler) Address(a string) string { return s.render(addressStyle, a) }

// Label formats a field label.
func (s Styler) Label(l string) string { return s.render(labelStyle, l) }

// OK formats a success message.
func (s Styler) OK(m string) string { return s.render(okStyle, m) }

// Error formats an error message.
func (s Styler) Error(m string) string { return s.render(errStyle, m) }
