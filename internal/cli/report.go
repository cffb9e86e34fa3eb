// Package cli renders launcher progress and errors to the terminal. It is
// the thin presentation layer spec.md's CLI surface delegates to; the
// top-level argument parser itself lives in cmd/proton-launcher.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/protonlauncher/launcher/internal/download"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorAccent  = lipgloss.Color("#34D399")
	colorWarning = lipgloss.Color("#FBBF24")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#626262")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	stepStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarning)
)

// Reporter prints status lines for one launch run.
type Reporter struct{}

// Stage announces the start of a top-level pipeline step (fetch, install,
// launch script, spawn).
func (Reporter) Stage(name string) {
	fmt.Fprintln(os.Stderr, titleStyle.Render("==> ")+stepStyle.Render(name))
}

// Progress renders a single-line download pool snapshot.
func (Reporter) Progress(p download.Progress) {
	fmt.Fprintf(os.Stderr, "%s %d done, %d failed (%s)\n",
		stepStyle.Render("downloading"), p.CompletedItems, p.FailedItems, download.FormatSpeed(p.Speed))
}

// Warn prints a non-fatal message, e.g. a collected download-pool task error.
func (Reporter) Warn(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, warnStyle.Render("warn: ")+fmt.Sprintf(format, args...))
}

// Error prints a fatal error before the process exits non-zero.
func (Reporter) Error(err error) {
	fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
}

// Success prints the final confirmation line.
func (Reporter) Success(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, okStyle.Render("==> ")+fmt.Sprintf(format, args...))
}
