// Package report prints the per-build asset table
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hannes/pagepack/bundler"
)

type styles struct {
	header  lipgloss.Style
	name    lipgloss.Style
	size    lipgloss.Style
	kind    lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	success lipgloss.Style
}

func newStyles(colors bool) styles {
	if !colors {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		header:  lipgloss.NewStyle().Bold(true),
		name:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		size:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		kind:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	}
}

// Write prints the build result to w
func Write(w io.Writer, result *bundler.Result, colors bool) error {
	s := newStyles(colors)
	var b strings.Builder

	nameWidth := len("Asset")
	for _, a := range result.Assets {
		if len(a.Name) > nameWidth {
			nameWidth = len(a.Name)
		}
	}

	if len(result.Assets) > 0 {
		fmt.Fprintf(&b, "%s  %s  %s\n",
			s.header.Render(pad("Asset", nameWidth)),
			s.header.Render(padLeft("Size", 10)),
			s.header.Render("Kind"))
		for _, a := range result.Assets {
			fmt.Fprintf(&b, "%s  %s  %s\n",
				s.name.Render(pad(a.Name, nameWidth)),
				s.size.Render(padLeft(HumanSize(a.Size), 10)),
				s.kind.Render(a.Kind))
		}
		b.WriteString("\n")
	}

	for _, m := range result.Warnings {
		fmt.Fprintf(&b, "%s %s\n", s.warning.Render("WARNING"), m.String())
	}
	for _, m := range result.Errors {
		fmt.Fprintf(&b, "%s %s\n", s.err.Render("ERROR"), m.String())
	}

	status := s.success.Render("Built")
	if !result.Succeeded() {
		status = s.err.Render(fmt.Sprintf("Failed with %d errors", len(result.Errors)))
	}
	fmt.Fprintf(&b, "%s %s in %s (mode: %s, build: %s)\n",
		status,
		HumanSize(result.TotalSize()),
		result.Duration.Round(time.Millisecond),
		result.Mode,
		result.ID)

	_, err := io.WriteString(w, b.String())
	return err
}

// HumanSize formats a byte count like "12.3 KiB"
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
