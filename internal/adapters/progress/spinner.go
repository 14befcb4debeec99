package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// Reporter renders progress events. Interactive reporters animate a spinner
// for long waits, others print one line per event. Verification reports from
// several goroutines at once, so all output is serialized.
type Reporter struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	spinner     *spinner.Spinner
	lastLine    string
	started     time.Time
}

// NewReporter creates a reporter writing to out
func NewReporter(out io.Writer, interactive bool) *Reporter {
	r := &Reporter{out: out, interactive: interactive, started: time.Now()}
	if interactive {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Writer = out
		s.HideCursor = false
		_ = s.Color("cyan", "bold")
		r.spinner = s
	}
	return r
}

// OnProgress handles progress events
func (r *Reporter) OnProgress(_ context.Context, event usecase.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := formatEvent(event)
	if !r.interactive {
		if line != "" && line != r.lastLine {
			fmt.Fprintln(r.out, line)
			r.lastLine = line
		}
		return
	}

	if event.Spinner && line != "" {
		r.spinner.Suffix = " " + line
		if !r.spinner.Active() {
			r.spinner.Start()
		}
		return
	}
	if r.spinner.Active() {
		r.spinner.Stop()
	}
	if event.Total > 0 && event.Current == event.Total && event.Message == "" {
		color.New(color.Faint).Fprintf(r.out, "%s finished in %s\n", event.Stage, time.Since(r.started).Round(time.Second))
	}
}

// Info prints an info message
func (r *Reporter) Info(message string) {
	r.print(color.New(color.FgCyan), message)
}

// Error prints an error message
func (r *Reporter) Error(message string) {
	r.print(color.New(color.FgRed), message)
}

// Stop halts the spinner, if one is running
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spinner != nil && r.spinner.Active() {
		r.spinner.Stop()
	}
}

func (r *Reporter) print(c *color.Color, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasActive := r.spinner != nil && r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}
	c.Fprintln(r.out, message)
	if wasActive {
		r.spinner.Start()
	}
}

// formatEvent renders the line shown for an event: the message, prefixed with
// the position when the event carries one.
func formatEvent(event usecase.ProgressEvent) string {
	if event.Message == "" {
		return ""
	}
	if event.Total > 0 {
		return fmt.Sprintf("[%d/%d] %s", event.Current, event.Total, event.Message)
	}
	return event.Message
}

var _ usecase.ProgressSink = (*Reporter)(nil)
