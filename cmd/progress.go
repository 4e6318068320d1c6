package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/kiesman99/tilemerge/internal/collector"
)

const progressWidth = 40

// progressPrinter renders merge progress as a single redrawn line
type progressPrinter struct {
	mu  sync.Mutex
	w   io.Writer
	bar progress.Model
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{
		w: w,
		bar: progress.New(
			progress.WithScaledGradient("#FF7CCB", "#FDFF8C"),
			progress.WithWidth(progressWidth),
		),
	}
}

// Update draws one event. It is safe for concurrent use.
func (p *progressPrinter) Update(e collector.ProgressEvent) {
	if e.Total <= 0 {
		return
	}
	percent := float64(e.Done) / float64(e.Total)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r%s %-6s %s\x1b[K", p.bar.ViewAs(percent), e.Stage, filepath.Base(e.Path))
}

// Done ends the progress line
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
}
