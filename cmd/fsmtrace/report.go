package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/fsm-trace/diag"
)

// printer writes human-readable diagnostics, styled when w is a terminal.
type printer struct {
	w        io.Writer
	fatal    lipgloss.Style
	advisory lipgloss.Style
	ok       lipgloss.Style
	dim      lipgloss.Style
	styled   bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.styled = true
	}

	r := lipgloss.NewRenderer(w)
	p.fatal = r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	p.advisory = r.NewStyle().Foreground(lipgloss.Color("#FFD166"))
	p.ok = r.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	p.dim = r.NewStyle().Foreground(lipgloss.Color("#666666"))
	return p
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// diagnostics prints one line per diagnostic, prefixed with path.
func (p *printer) diagnostics(path string, ds []diag.Diagnostic) {
	for _, d := range ds {
		style := p.advisory
		if d.Severity() == diag.Fatal {
			style = p.fatal
		}
		fmt.Fprintf(p.w, "%s: %s\n", path, p.render(style, d.String()))
	}
}

func (p *printer) success(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.ok, fmt.Sprintf(format, args...)))
}

func (p *printer) failure(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.fatal, fmt.Sprintf(format, args...)))
}

func (p *printer) note(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.dim, fmt.Sprintf(format, args...)))
}
