// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package progress renders live download progress to a terminal, grounded
// on the teacher's internal/tui.LiveRenderer (interactive-detection +
// colorized status lines) but delegating the actual bar drawing to
// github.com/cheggaaa/pb/v3, the teacher's own progress-bar dependency,
// which the teacher's hand-rolled ANSI renderer never actually calls.
package progress

import (
	"fmt"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"golang.org/x/term"

	"hubdl/pkg/hubdl"
)

// Renderer drives a single live progress bar for the file currently being
// downloaded. Multiple sequential files reuse the same Renderer; call
// Finish between files.
type Renderer struct {
	interactive bool
	quiet       bool

	mu  sync.Mutex
	bar *pb.ProgressBar
}

// NewRenderer constructs a Renderer. When stdout is not a terminal, it
// prints one plain-text status line per progress update instead of a
// live-updating bar — matching the teacher's isInteractive() gate. When
// quiet is set, progress updates print nothing.
func NewRenderer(quiet bool) *Renderer {
	return &Renderer{
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
		quiet:       quiet,
	}
}

// Handler returns a callback suitable for hubdl.Client.DownloadFile's
// progress parameter.
func (r *Renderer) Handler() func(hubdl.DownloadProgress) {
	return func(p hubdl.DownloadProgress) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.quiet {
			return
		}
		if !r.interactive {
			fmt.Printf("%s: %d/%d bytes (%.1f KB/s)\n", p.Filename, p.Downloaded, p.Total, p.SpeedBPS/1024)
			return
		}

		if r.bar == nil {
			r.bar = pb.New64(p.Total)
			r.bar.SetTemplateString(`{{ string . "prefix" }}{{ bar . }} {{ percent . }} {{ speed . }}`)
			r.bar.Set("prefix", color.CyanString(p.Filename)+" ")
			r.bar.Start()
		}
		r.bar.SetCurrent(p.Downloaded)
	}
}

// Finish completes the current bar, if any, and resets state for the next
// file.
func (r *Renderer) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Finish()
		r.bar = nil
	}
}

// Status prints a one-line colored status message (start/done/error),
// suppressed entirely in quiet mode.
func (r *Renderer) Status(kind, msg string) {
	if r.quiet {
		return
	}
	switch kind {
	case "error":
		fmt.Fprintln(os.Stderr, color.RedString("error: ")+msg)
	case "done":
		fmt.Println(color.GreenString("✓ ") + msg)
	default:
		fmt.Println(color.YellowString("… ") + msg)
	}
}
