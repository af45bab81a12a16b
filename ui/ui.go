// Package ui provides the minimal interactive frontend: a single
// Confirm prompt used by restart mode "i" and overridden entirely in
// "a" (automatic) and "l" (list-only) modes.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Frontend is the narrow interface the driver needs from an interactive
// dialog: a single yes/no confirmation.
type Frontend interface {
	Confirm(prompt string, defaultYes bool) bool
}

// LineFrontend implements Frontend by reading one line from in and
// writing the prompt to out. An empty line accepts defaultYes.
type LineFrontend struct {
	In  io.Reader
	Out io.Writer
}

// NewLineFrontend returns a LineFrontend wired to the given streams.
func NewLineFrontend(in io.Reader, out io.Writer) *LineFrontend {
	return &LineFrontend{In: in, Out: out}
}

// Confirm prompts the user and blocks for one line of input.
func (f *LineFrontend) Confirm(prompt string, defaultYes bool) bool {
	suffix := "[Y/n]"
	if !defaultYes {
		suffix = "[y/N]"
	}
	fmt.Fprintf(f.Out, "%s %s ", prompt, suffix)

	sc := bufio.NewScanner(f.In)
	if !sc.Scan() {
		return defaultYes
	}

	answer := strings.ToLower(strings.TrimSpace(sc.Text()))
	switch answer {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultYes
	}
}

// AutoFrontend never prompts; it always returns Answer, for restart
// mode "a" (automatic).
type AutoFrontend struct {
	Answer bool
}

// Confirm returns f.Answer without reading anything.
func (f AutoFrontend) Confirm(prompt string, defaultYes bool) bool {
	return f.Answer
}
