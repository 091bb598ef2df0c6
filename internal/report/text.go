package report

import (
	"fmt"
	"io"
	"strings"
)

// TextWriter renders Diagnostics for a terminal.
type TextWriter struct {
	baseWriter

	// verbose adds the Tor log tail.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose includes the Tor log tail in the output.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders d as plain text.
func (w *TextWriter) Write(d *Diagnostics) (int, error) {
	var sb strings.Builder

	rule := strings.Repeat("=", 60)
	sb.WriteString(rule + "\n")
	sb.WriteString("                  TORKEEPER DIAGNOSTICS\n")
	sb.WriteString(rule + "\n\n")

	fmt.Fprintf(&sb, "Generated:     %s\n", d.GeneratedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Mode:          %s\n", d.Mode)
	fmt.Fprintf(&sb, "Environment:   %s\n", d.Environment)
	fmt.Fprintf(&sb, "Endpoint:      %s\n", d.Endpoint)
	fmt.Fprintf(&sb, "Connected:     %s\n", yesNo(d.Connected))
	fmt.Fprintf(&sb, "State:         %s\n", d.State)
	fmt.Fprintf(&sb, "Attempts:      %d\n", d.RestartCount)
	if d.TorVersion != "" {
		fmt.Fprintf(&sb, "Tor version:   %s\n", d.TorVersion)
	}
	if d.BinaryPath != "" {
		fmt.Fprintf(&sb, "Binary:        %s\n", d.BinaryPath)
		fmt.Fprintf(&sb, "Data dir:      %s\n", d.DataDir)
	}
	if d.ProxyStatus != "" {
		fmt.Fprintf(&sb, "SOCKS5 check:  %s\n", d.ProxyStatus)
	}
	if d.LogDropped > 0 {
		fmt.Fprintf(&sb, "Log evicted:   %d bytes\n", d.LogDropped)
	}
	if d.JournalSize >= 0 {
		fmt.Fprintf(&sb, "Journal:       %d events\n", d.JournalSize)
	}
	sb.WriteString("\n")

	if problems := d.Problems(); len(problems) > 0 {
		sb.WriteString("PROBLEMS\n")
		for _, p := range problems {
			fmt.Fprintf(&sb, "  [!] %s\n", p)
		}
	} else {
		sb.WriteString("No problems found.\n")
	}
	sb.WriteString("\n")

	if len(d.History) > 0 {
		sb.WriteString("RECENT EVENTS\n")
		for _, e := range d.History {
			fmt.Fprintf(&sb, "  %s  %-12s %-10s %s\n", e.Timestamp.Local().Format(timeLayout), e.Kind, e.State, e.Message)
		}
		sb.WriteString("\n")
	}

	if w.verbose && d.LogTail != "" {
		sb.WriteString("TOR LOG\n")
		for _, line := range strings.Split(d.LogTail, "\n") {
			sb.WriteString("  " + line + "\n")
		}
		sb.WriteString("\n")
	}

	return io.WriteString(w.output, sb.String())
}
