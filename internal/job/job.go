// Package job turns command line arguments and manifest entries into tile
// merges: it sorts and classifies the inputs, picks the strategy, and writes
// the merged frame plus, when needed, the separate alpha frame.
package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kiesman99/tilemerge/internal/collector"
	"github.com/kiesman99/tilemerge/pkg/tile"
)

// ErrUsage reports malformed positional arguments
var ErrUsage = errors.New("usage: tilemerge <strategy> [<width> <height>] <outputfile> <inputfile1> [<inputfile2> ...]")

// Job describes one merge
type Job struct {
	Strategy    string   `yaml:"strategy"`
	Width       int      `yaml:"width,omitempty"`
	Height      int      `yaml:"height,omitempty"`
	Order       string   `yaml:"order,omitempty"`
	Output      string   `yaml:"output"`
	Inputs      []string `yaml:"inputs"`
	SplitAlpha  bool     `yaml:"split_alpha,omitempty"`
	AlphaMarker string   `yaml:"alpha_marker,omitempty"`
}

// ParseArgs reads `<strategy> [<width> <height>] <output> <input>...`.
// The optional size is recognized when the two arguments after the strategy
// are both integers; at least one input must follow the output.
func ParseArgs(args []string) (Job, error) {
	if len(args) < 3 {
		return Job{}, ErrUsage
	}

	j := Job{Strategy: args[0]}
	rest := args[1:]

	if len(rest) >= 3 {
		w, errW := strconv.Atoi(rest[0])
		h, errH := strconv.Atoi(rest[1])
		if errW == nil && errH == nil {
			if w <= 0 || h <= 0 {
				return Job{}, fmt.Errorf("width/height must be positive: %d %d", w, h)
			}
			j.Width, j.Height = w, h
			rest = rest[2:]
		}
	}

	if len(rest) < 2 {
		return Job{}, ErrUsage
	}
	j.Output = rest[0]
	j.Inputs = append([]string(nil), rest[1:]...)
	return j, nil
}

// Report is the outcome of one job
type Report struct {
	Output      string
	AlphaOutput string // empty when no alpha frame was written
	Primary     int
	Alpha       int
	Rejected    []string

	// Err is the failure of the primary output, AlphaErr of the alpha output.
	Err      error
	AlphaErr error
}

// Failed reports whether any attempted output failed
func (r *Report) Failed() bool {
	return r.Err != nil || r.AlphaErr != nil
}

// Error joins the output failures
func (r *Report) Error() error {
	return errors.Join(r.Err, r.AlphaErr)
}

// Runner executes jobs against a tile loader and writer
type Runner struct {
	Loader collector.Loader
	Writer collector.Writer

	// Progress receives the progress of every collector; it may be nil.
	Progress func(collector.ProgressEvent)
}

// NewRunner creates a runner working on the local filesystem
func NewRunner() *Runner {
	p := tile.NewProcessor()
	return &Runner{Loader: p, Writer: p}
}

// Run executes j. The returned error reports an invalid job; failures while
// merging or saving are recorded in the report. The alpha frame is written
// when alpha tiles exist and they are not folded into the primary frame,
// that is for Stacking or when SplitAlpha is set. A failing primary output
// does not prevent the alpha output from being attempted.
func (r *Runner) Run(ctx context.Context, j Job) (*Report, error) {
	strategy, err := collector.ParseStrategy(j.Strategy)
	if err != nil {
		return nil, err
	}
	order, err := collector.ParseOrder(j.Order)
	if err != nil {
		return nil, err
	}
	if j.Output == "" {
		return nil, collector.ErrEmptyOutputPath
	}

	primary, alpha := tile.Classify(j.Inputs, j.AlphaMarker)
	report := &Report{Output: j.Output}

	opts := collector.Options{
		Strategy: strategy,
		Order:    order,
		Width:    j.Width,
		Height:   j.Height,
		Loader:   r.Loader,
		Writer:   r.Writer,
		Progress: r.Progress,
	}
	if j.Width > 0 && j.Height > 0 {
		checkMemory(j.Width, j.Height)
	}

	main := collector.New(opts)
	for _, p := range primary {
		if !main.AddPrimary(p) {
			report.Rejected = append(report.Rejected, p)
			collector.Logger().Warn("can't add file", "path", p)
		}
	}
	for _, a := range alpha {
		if !main.AddAlpha(a) {
			report.Rejected = append(report.Rejected, a)
			collector.Logger().Warn("can't add file", "path", a)
		}
	}
	report.Primary = len(main.Primary())
	report.Alpha = len(main.Alpha())

	report.Err = main.FinalizeAndSave(ctx, j.Output)

	if report.Alpha > 0 && (strategy == collector.Stacking || j.SplitAlpha) {
		report.AlphaOutput = tile.AlphaPath(j.Output)
		alphaCollector := collector.New(opts)
		for _, a := range main.Alpha() {
			alphaCollector.AddPrimary(a)
		}
		report.AlphaErr = alphaCollector.FinalizeAndSave(ctx, report.AlphaOutput)
	}
	return report, nil
}
