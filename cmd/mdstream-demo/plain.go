package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/glamour"

	mdstream "github.com/Latias94/mdstream"
	"github.com/Latias94/mdstream/ansisafe"
)

// runPlain drives the stream without bubbletea, writing straight to stdout
// with raw cursor control. It exists for non-interactive terminals (piping
// to a log file, CI output) where bubbletea's alt-screen renderer either
// doesn't apply or isn't wanted. Grounded on the teacher's
// StreamRenderer.applyRenderedSnapshot (internal/ui/streaming/streaming.go):
// committed blocks are appended once and never redrawn; the single pending
// block is redrawn in place every tick, appending the ANSI-safe delta when
// the new render only extends the last one and falling back to a full
// ClearLines+rewrite otherwise.
func runPlain(src []byte, opts mdstream.Options, tr *glamour.TermRenderer, width int, out io.Writer) error {
	stream := mdstream.New(opts)
	tc := newAnsiController(out, width)

	var lastPending []byte
	var lastPendingLines int

	redrawPending := func(rendered []byte) error {
		switch {
		case bytes.Equal(rendered, lastPending):
			return nil
		case bytes.HasPrefix(rendered, lastPending):
			delta := ansisafe.SuffixBytes(rendered, len(lastPending))
			if len(delta) > 0 {
				if _, err := out.Write(delta); err != nil {
					return err
				}
			}
		default:
			if err := tc.ClearLines(lastPendingLines); err != nil {
				return err
			}
			if _, err := out.Write(rendered); err != nil {
				return err
			}
		}
		lastPending = append(lastPending[:0], rendered...)
		lastPendingLines = tc.CountLines(string(rendered))
		return nil
	}

	apply := func(u mdstream.Update) error {
		for _, b := range u.Committed {
			if lastPendingLines > 0 {
				if err := tc.ClearLines(lastPendingLines); err != nil {
					return err
				}
				lastPending = lastPending[:0]
				lastPendingLines = 0
			}
			rendered, err := tr.Render(b.Raw)
			if err != nil {
				return err
			}
			if _, err := out.Write([]byte(rendered)); err != nil {
				return err
			}
		}
		if u.Pending != nil {
			rendered, err := tr.Render(u.Pending.DisplayOrRaw())
			if err != nil {
				return err
			}
			return redrawPending([]byte(rendered))
		}
		return redrawPending(nil)
	}

	remaining := src
	for len(remaining) > 0 {
		n := minChunk + rand.Intn(maxChunk-minChunk+1)
		if n > len(remaining) {
			n = len(remaining)
		}
		chunk := remaining[:n]
		remaining = remaining[n:]

		if err := apply(stream.Append(string(chunk))); err != nil {
			return fmt.Errorf("rendering chunk: %w", err)
		}
		time.Sleep(time.Duration(intervalMS) * time.Millisecond)
	}

	if err := apply(stream.Finalize()); err != nil {
		return fmt.Errorf("rendering final update: %w", err)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}
