package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// printer writes the user-facing report. Colors are dropped automatically
// when w is not a terminal.
type printer struct {
	w     io.Writer
	ok    lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	note  lipgloss.Style
	faint lipgloss.Style
	bold  lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:     w,
		ok:    r.NewStyle().Foreground(lipgloss.Color("2")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("3")),
		note:  r.NewStyle().Foreground(lipgloss.Color("4")),
		faint: r.NewStyle().Faint(true),
		bold:  r.NewStyle().Bold(true),
	}
}

func (p *printer) success(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.ok.Render("✓"), fmt.Sprintf(format, args...))
}

func (p *printer) failure(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.fail.Render("✗"), fmt.Sprintf(format, args...))
}

func (p *printer) warning(format string, args ...any) {
	fmt.Fprintf(p.w, "%s  %s\n", p.warn.Render("⚠"), fmt.Sprintf(format, args...))
}

func (p *printer) info(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.note.Render("•"), fmt.Sprintf(format, args...))
}

// detail prints an indented secondary line.
func (p *printer) detail(format string, args ...any) {
	fmt.Fprintf(p.w, "  %s\n", p.faint.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) heading(format string, args ...any) {
	fmt.Fprintln(p.w, p.bold.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) println(args ...any) {
	fmt.Fprintln(p.w, args...)
}
