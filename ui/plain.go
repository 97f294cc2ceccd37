package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lepinkainen/exrmatte/pipeline"
)

// PlainProgress renders pipeline events as a single progress bar line, for
// terminals without TUI support and for --no-tui.
type PlainProgress struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewPlainProgress creates a bar for total frames written to w.
func NewPlainProgress(w io.Writer, total int) *PlainProgress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Embedding"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(500*time.Millisecond),
		progressbar.OptionFullWidth(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
	return &PlainProgress{bar: bar, out: w}
}

// Handle applies one event to the bar. Failed frames are printed above it.
func (p *PlainProgress) Handle(ev pipeline.Event) {
	switch ev := ev.(type) {
	case pipeline.ProgressEvent:
		if ev.Err != nil {
			_ = p.bar.Clear()
			fmt.Fprintln(p.out, ErrorStyle.Render(fmt.Sprintf("❌ %s: %v", filepath.Base(ev.File), ev.Err)))
		}
		p.bar.Describe(ev.Status)
		_ = p.bar.Set(ev.Processed)
	case pipeline.ReplaceEvent:
		p.bar.Describe(fmt.Sprintf("Replacing %s", filepath.Base(ev.BaseFolder)))
	}
}

// Finish completes the bar.
func (p *PlainProgress) Finish() {
	_ = p.bar.Finish()
}
