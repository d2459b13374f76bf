package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// ansiController handles terminal cursor movement and screen clearing for
// the --plain render path, where there is no bubbletea alt-screen to redraw
// on every tick. Grounded on the teacher's
// internal/ui/streaming/terminal.go terminalController.
type ansiController struct {
	output io.Writer
	width  int
}

func newAnsiController(output io.Writer, width int) *ansiController {
	return &ansiController{output: output, width: width}
}

// ClearLines moves the cursor up n lines and erases from there to the end
// of the screen, so the next write redraws those lines from scratch.
func (tc *ansiController) ClearLines(n int) error {
	if n <= 0 {
		return nil
	}
	seq := ansi.CursorUp(n)
	seq += ansi.CursorHorizontalAbsolute(1)
	seq += ansi.EraseDisplay(0)
	_, err := tc.output.Write([]byte(seq))
	return err
}

// CountLines calculates how many terminal lines rendered occupies, wrapping
// each logical line at tc.width (ANSI sequences don't count towards width).
func (tc *ansiController) CountLines(rendered string) int {
	if len(rendered) == 0 {
		return 0
	}
	lines := strings.Split(rendered, "\n")
	total := 0
	for i, line := range lines {
		if i == len(lines)-1 && line == "" {
			continue
		}
		lineWidth := ansi.StringWidth(line)
		switch {
		case lineWidth == 0:
			total++
		case tc.width > 0:
			wrapped := (lineWidth + tc.width - 1) / tc.width
			if wrapped == 0 {
				wrapped = 1
			}
			total += wrapped
		default:
			total++
		}
	}
	return total
}
