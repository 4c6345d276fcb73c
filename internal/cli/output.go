// Package cli provides terminal output helpers for the domuctl commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
)

// Printer writes status lines, colored when the writer is a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a printer for w. Color is enabled only for terminals.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: isTerminal(w)}
}

// Success prints a check-marked line.
func (p *Printer) Success(format string, args ...interface{}) {
	p.line("✓", ColorGreen, format, args...)
}

// Error prints a cross-marked line.
func (p *Printer) Error(format string, args ...interface{}) {
	p.line("✗", ColorRed, format, args...)
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...interface{}) {
	p.line("⚠", ColorYellow, format, args...)
}

// Info prints an informational line.
func (p *Printer) Info(format string, args ...interface{}) {
	p.line("ℹ", ColorBlue, format, args...)
}

func (p *Printer) line(mark, color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s %s\n", color, mark, ColorReset, msg)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", mark, msg)
}

// Spinner shows progress for a step of unknown length. It only animates on
// terminals; elsewhere it prints the final line alone.
type Spinner struct {
	p      *Printer
	prefix string
	frames []string

	mu      sync.Mutex
	active  bool
	done    chan struct{}
	started time.Time
}

// Spinner starts a spinner labelled prefix.
func (p *Printer) Spinner(prefix string) *Spinner {
	s := &Spinner{
		p:       p,
		prefix:  prefix,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		done:    make(chan struct{}),
		started: time.Now(),
	}
	if p.color {
		s.active = true
		go s.loop()
	}
	return s
}

func (s *Spinner) loop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.active {
				fmt.Fprintf(s.p.w, "\r%s%s%s %s", ColorCyan, s.frames[i%len(s.frames)], ColorReset, s.prefix)
			}
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	fmt.Fprint(s.p.w, "\r"+strings.Repeat(" ", len(s.prefix)+4)+"\r")
}

// Success stops the spinner with a success line including the elapsed time.
func (s *Spinner) Success(message string) {
	s.stop()
	s.p.Success("%s (%s)", message, FormatDuration(time.Since(s.started)))
}

// Error stops the spinner with an error line.
func (s *Spinner) Error(message string) {
	s.stop()
	s.p.Error("%s", message)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
