package tui

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/timer"
)

// lineClockEvery is how often line mode prints the clock of a live run.
const lineClockEvery = 30 * time.Second

// promptHint tells a line-mode user how to answer a completion prompt.
const promptHint = "  answer with: growth prompt log | growth prompt partial --duration 5m | growth prompt dismiss"

// usableTerminal reports whether stdin and stdout are TTYs large enough for
// the full view.
func usableTerminal() bool {
	out, in := int(os.Stdout.Fd()), int(os.Stdin.Fd())
	if !term.IsTerminal(out) || !term.IsTerminal(in) {
		return false
	}
	width, height, err := term.GetSize(out)
	if err != nil {
		return false
	}
	return width >= minWidth && height >= minHeight
}

// runLines is the fallback without a usable terminal: events are printed one
// per line and the clock of a live run every lineClockEvery, until the
// process is interrupted or the event channel closes.
func (t *TUI) runLines() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(lineClockEvery)
	defer ticker.Stop()

	return t.printLines(os.Stdout, sigChan, ticker.C)
}

func (t *TUI) printLines(w io.Writer, stop <-chan os.Signal, clock <-chan time.Time) error {
	for {
		select {
		case <-stop:
			if t.onQuit != nil {
				t.onQuit()
			}
			return nil

		case <-clock:
			if line := t.clockLine(); line != "" {
				_, _ = fmt.Fprintln(w, line)
			}

		case event, ok := <-t.eventChan:
			if !ok {
				return nil
			}
			text := Format(event)
			if text == "" {
				continue
			}
			_, _ = fmt.Fprintf(w, "%s %s\n", event.Timestamp().Local().Format(time.TimeOnly), text)

			// A deferred prompt is reissued once the view is visible again.
			if p, ok := event.(*events.PromptRequestedEvent); ok && !p.Deferred {
				_, _ = fmt.Fprintln(w, promptHint)
			}
		}
	}
}

// clockLine renders the running timer, or "" when nothing is running.
func (t *TUI) clockLine() string {
	st, err := t.ctrl.Status()
	if err != nil || st.Timer.State != string(timer.StateRunning) {
		return ""
	}
	line := fmt.Sprintf("  %s %s", displayName(st.Timer.OwnerName, st.Timer.Owner), st.Timer.Display)
	if st.Timer.IntervalName != "" {
		line += fmt.Sprintf(" [%s %s]", safeString(st.Timer.IntervalName), formatMs(st.Timer.IntervalRemainingMs))
	}
	return line
}
