package job

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Manifest lists independent jobs, typically one per rendered frame
type Manifest struct {
	Concurrency int   `yaml:"concurrency,omitempty"`
	Jobs        []Job `yaml:"jobs"`
}

// LoadManifest reads a YAML manifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest %s has no jobs", path)
	}
	return &m, nil
}

// RunAll runs jobs with at most limit merges in flight. Each job owns its
// collectors, so no buffer is shared between goroutines. One report is
// returned per job, in input order; invalid jobs get a report whose Err
// describes the problem.
func (r *Runner) RunAll(ctx context.Context, jobs []Job, limit int) []*Report {
	if limit <= 0 {
		limit = 1
	}
	reports := make([]*Report, len(jobs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, j := range jobs {
		g.Go(func() error {
			report, err := r.Run(ctx, j)
			if err != nil {
				report = &Report{Output: j.Output, Err: err}
			}
			reports[i] = report
			return nil
		})
	}
	g.Wait()
	return reports
}
