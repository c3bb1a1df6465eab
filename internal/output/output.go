// Package output handles user-facing console lines: the naming plan, in-place
// progress and end-of-run summaries. Diagnostics go through zap instead.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/term"
)

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Enable verbose output
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	IsTTY     bool      // Whether output is a terminal
}

// PlanRow is one line of the naming plan.
type PlanRow struct {
	Source      string
	Destination string
	Group       int
	Version     int
	Note        string // e.g. "fallback", "duplicate", "unchanged"
}

// Totals is the end-of-run tally printed by Summary.
type Totals struct {
	Tagged   int
	Failed   int
	Skipped  int
	Warnings int
	Fallback int
	Duration time.Duration
	DryRun   bool
}

// Output handles formatted output with verbose and progress support.
type Output struct {
	config          Config
	progressActive  bool
	progressTotal   int
	progressCurrent int
	progressMu      sync.Mutex
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{config: config}
}

// DefaultConfig returns a Config writing to stdout/stderr, with progress
// enabled only when stdout is a terminal.
func DefaultConfig() Config {
	return Config{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		IsTTY:     term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.println(o.config.Writer, format, args...)
}

// Info prints an informational message (always shown).
func (o *Output) Info(format string, args ...interface{}) {
	o.println(o.config.Writer, format, args...)
}

// Warn prints a warning to stderr.
func (o *Output) Warn(format string, args ...interface{}) {
	o.println(o.config.ErrWriter, "warning: "+format, args...)
}

// Error prints an error message to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.println(o.config.ErrWriter, format, args...)
}

func (o *Output) println(w io.Writer, format string, args ...interface{}) {
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
}

// PlanTable prints rows as aligned columns. An empty plan prints a single line.
func (o *Output) PlanTable(rows []PlanRow) {
	o.clearProgressLine()
	if len(rows) == 0 {
		fmt.Fprintln(o.config.Writer, "Nothing to do: no sidecar/video pairs found.")
		return
	}

	tw := tabwriter.NewWriter(o.config.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tDESTINATION\tP\tv\tNOTE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Source, r.Destination, r.Group, r.Version, r.Note)
	}
	tw.Flush()
}

// Summary prints the end-of-run tally.
func (o *Output) Summary(t Totals) {
	o.clearProgressLine()
	verb := "Tagged"
	if t.DryRun {
		verb = "Would tag"
	}
	fmt.Fprintf(o.config.Writer, "%s %d file(s), %d failed, %d skipped", verb, t.Tagged, t.Failed, t.Skipped)
	if t.Warnings > 0 {
		fmt.Fprintf(o.config.Writer, ", %d warning(s)", t.Warnings)
	}
	if t.Fallback > 0 {
		fmt.Fprintf(o.config.Writer, ", %d fallback-keyed", t.Fallback)
	}
	if !t.DryRun {
		fmt.Fprintf(o.config.Writer, " in %s", t.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(o.config.Writer)
}

// clearProgressLine clears the current progress line if active.
func (o *Output) clearProgressLine() {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if o.progressActive && o.config.IsTTY {
		fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", 60)+"\r")
	}
}

// progressEnabled reports whether in-place progress is drawn: only on a
// terminal and never alongside verbose lines.
func (o *Output) progressEnabled() bool {
	return o.config.IsTTY && !o.config.Verbose
}

// StartProgress begins a progress indicator session.
func (o *Output) StartProgress(total int) {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.progressActive = true
	o.progressTotal = total
	o.progressCurrent = 0
}

// UpdateProgress redraws the progress line for item current.
func (o *Output) UpdateProgress(current int, name string) {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressCurrent = current
	line := fmt.Sprintf("\rTagging %d/%d", current, o.progressTotal)
	if name != "" {
		line += " " + name
	}
	fmt.Fprint(o.config.Writer, line)
}

// EndProgress clears the progress indicator.
func (o *Output) EndProgress() {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressActive = false
	fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", 60)+"\r")
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
