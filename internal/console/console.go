// Package console writes build status lines. Writes are serialized so lines
// and output blocks from concurrent builds never interleave.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var std = New(os.Stdout)

// Default returns the shared stdout Printer.
func Default() *Printer { return std }

// Printer is safe for concurrent use.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// New returns a Printer writing to out (stdout when nil).
func New(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out}
}

// Success prints a check-marked line.
func (p *Printer) Success(format string, args ...any) {
	p.line(successStyle.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// Failure prints a cross-marked line.
func (p *Printer) Failure(format string, args ...any) {
	p.line(failureStyle.Render("✗") + " " + fmt.Sprintf(format, args...))
}

// Header prints a bold line.
func (p *Printer) Header(format string, args ...any) {
	p.line(headerStyle.Render(fmt.Sprintf(format, args...)))
}

// Rule prints a muted separator.
func (p *Printer) Rule() {
	p.line(mutedStyle.Render(strings.Repeat("-", 50)))
}

// Printf writes unstyled text.
func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// Block writes captured output as one unit.
func (p *Printer) Block(chunks ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range chunks {
		if c == "" {
			continue
		}
		io.WriteString(p.out, c)
		if !strings.HasSuffix(c, "\n") {
			io.WriteString(p.out, "\n")
		}
	}
}

func (p *Printer) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}
