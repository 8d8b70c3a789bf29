package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"tracestat/internal/breakdown"
	"tracestat/internal/trace"
)

// Result is the outcome of one trace file.
type Result struct {
	Path  string
	Table *breakdown.Table
	Stats Stats
	Err   error
}

// RunFile opens path and runs a fresh pipeline over it.
func RunFile(ctx context.Context, path string, opts Options) (Result, error) {
	res := Result{Path: path}
	p, err := New(opts)
	if err != nil {
		return res, err
	}
	res.Table = p.Table()

	f, err := trace.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	p.log.Info("reading trace", "path", path, "compression", f.Compression, "arch", opts.Arch)
	err = p.Run(ctx, trace.NewReader(f, opts.Arch))
	res.Stats = p.Stats()
	if err != nil {
		err = fmt.Errorf("%s: %w", path, err)
	}
	res.Err = err
	return res, err
}

// RunAll runs one pipeline per path, at most jobs at a time, and merges
// their tables in path order. The first failure cancels the remaining
// runs. The merged table and stats cover every run that got that far, so a
// caller may still print them as a partial report.
func RunAll(ctx context.Context, paths []string, jobs int, opts Options) (*breakdown.Table, Stats, error) {
	results := make([]Result, len(paths))
	if opts.Progress != nil {
		opts.Progress = &syncWriter{w: opts.Progress}
	}

	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			var err error
			results[i], err = RunFile(ctx, path, opts)
			return err
		})
	}
	err := g.Wait()

	table := breakdown.NewTable()
	var stats Stats
	for _, r := range results {
		if r.Table != nil {
			table.Merge(r.Table)
		}
		stats.Merge(r.Stats)
	}
	return table, stats, err
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
