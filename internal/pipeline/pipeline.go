// Package pipeline drives a trace through decoding, classification and
// aggregation in a single pass.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"tracestat/internal/arch"
	"tracestat/internal/breakdown"
	"tracestat/internal/classify"
	"tracestat/internal/disasm"
	"tracestat/internal/trace"
)

// DefaultReportEvery is the default periodic report interval, in
// instructions.
const DefaultReportEvery = 100_000_000

// DefaultCacheSize is the default number of cached blocks.
const DefaultCacheSize = 1 << 16

// How many records are processed between context checks.
const cancelCheckInterval = 4096

// Options configures a Pipeline.
type Options struct {
	Arch arch.Arch

	// ReportEvery is the periodic report interval in instructions; 0
	// disables periodic reports.
	ReportEvery uint64
	// Progress receives periodic reports. Nil disables them.
	Progress io.Writer
	// ByteHistogram adds length histograms to periodic reports.
	ByteHistogram bool

	// CacheSize bounds the block cache; 0 disables it.
	CacheSize int

	Logger *slog.Logger

	// Decoder and Classifier default to the ones for Arch.
	Decoder    disasm.Decoder
	Classifier classify.Classifier
}

// Pipeline owns the table of one run. It is not safe for concurrent use;
// run several pipelines and merge their tables instead.
type Pipeline struct {
	opts       Options
	log        *slog.Logger
	decoder    disasm.Decoder
	classifier classify.Classifier
	cache      *blockCache
	table      *breakdown.Table
	stats      Stats
	nextReport uint64
}

// New returns a pipeline with an empty table.
func New(opts Options) (*Pipeline, error) {
	cache, err := newBlockCache(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}
	p := &Pipeline{
		opts:       opts,
		log:        opts.Logger,
		decoder:    opts.Decoder,
		classifier: opts.Classifier,
		cache:      cache,
		table:      breakdown.NewTable(),
		nextReport: opts.ReportEvery,
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.decoder == nil {
		p.decoder = disasm.New(opts.Arch)
	}
	if p.classifier == nil {
		p.classifier = classify.New(opts.Arch)
	}
	if p.decoder.Arch() != p.classifier.Arch() {
		return nil, fmt.Errorf("decoder is %s but classifier is %s", p.decoder.Arch(), p.classifier.Arch())
	}
	return p, nil
}

// Table returns the table folded so far.
func (p *Pipeline) Table() *breakdown.Table { return p.table }

// Stats returns the counters of the run so far.
func (p *Pipeline) Stats() Stats { return p.stats }

// Run consumes r until the end of the stream. Consecutive identical records
// are folded once with their repeat count. Run stops at the first reader or
// classification error; the table then holds everything folded before the
// failing record.
func (p *Pipeline) Run(ctx context.Context, r *trace.Reader) error {
	start := time.Now()
	defer func() { p.stats.Duration += time.Since(start) }()

	var (
		pending    trace.Record
		pendingOff int64
		repeat     uint64
	)
	flush := func() error {
		if repeat == 0 {
			return nil
		}
		err := p.fold(pending, pendingOff, repeat)
		repeat = 0
		return err
	}

	for i := 0; ; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Join(err, flush())
			}
		}

		off := r.Offset()
		rec, err := r.Next()
		if err == io.EOF {
			return flush()
		}
		if err != nil {
			return errors.Join(err, flush())
		}
		p.stats.Records++
		p.stats.Bytes += uint64(rec.Size())

		if repeat > 0 && rec.Address == pending.Address && bytes.Equal(rec.Payload, pending.Payload) {
			repeat++
			p.stats.Coalesced++
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		pending, pendingOff, repeat = rec, off, 1
	}
}

func (p *Pipeline) fold(rec trace.Record, off int64, repeat uint64) error {
	facts, err := p.classify(rec, off)
	if err != nil {
		return err
	}
	if err := p.table.FoldAll(facts, repeat); err != nil {
		return fmt.Errorf("record at offset %#x: %w", off, err)
	}
	p.stats.Instructions += uint64(len(facts)) * repeat
	p.maybeReport()
	return nil
}

// classify decodes and classifies one block, going through the cache.
func (p *Pipeline) classify(rec trace.Record, off int64) ([]classify.Facts, error) {
	key := blockKey{addr: rec.Address, payload: string(rec.Payload)}
	if facts, ok := p.cache.Get(key); ok {
		p.stats.CacheHits++
		return facts, nil
	}
	p.stats.CacheMisses++

	insts, err := p.decoder.Decode(rec.PC(), rec.Payload)
	if err != nil {
		var w *disasm.Warning
		if !errors.As(err, &w) {
			return nil, fmt.Errorf("decode record at offset %#x: %w", off, err)
		}
		p.warn(rec, off, w)
	}

	facts, err := classify.Stream(p.classifier, insts, rec.IsUser())
	if err != nil {
		return nil, fmt.Errorf("record at offset %#x: %w", off, err)
	}
	if rec.Count != 0 && p.opts.Arch == arch.X86_64 && int(rec.Count) != len(insts) {
		p.log.Debug("declared instruction count differs",
			"offset", off, "pc", fmt.Sprintf("%#x", rec.PC()), "declared", rec.Count, "decoded", len(insts))
	}
	p.cache.Add(key, facts)
	return facts, nil
}

func (p *Pipeline) warn(rec trace.Record, off int64, w *disasm.Warning) {
	if errors.Is(w, disasm.ErrEmptyDisassembly) {
		p.stats.EmptyBlocks++
	} else {
		p.stats.Partial++
	}
	p.log.Warn("disassembly failed",
		"kind", w.Kind,
		"offset", off,
		"pc", fmt.Sprintf("%#x", rec.PC()),
		"at", w.Offset,
		"bytes", fmt.Sprintf("% x", w.Bytes))
}

func (p *Pipeline) maybeReport() {
	every := p.opts.ReportEvery
	if every == 0 || p.stats.Instructions < p.nextReport {
		return
	}
	p.nextReport = (p.stats.Instructions/every + 1) * every
	p.stats.Reports++

	p.log.Info("progress",
		"instructions", humanize.Comma(int64(p.stats.Instructions)),
		"records", humanize.Comma(int64(p.stats.Records)),
		"cached", p.cache.Len())
	if p.opts.Progress == nil {
		return
	}
	// One write per report keeps concurrent pipelines from interleaving.
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== %s instructions ===\n", humanize.Comma(int64(p.stats.Instructions)))
	_ = p.table.Report(&buf, p.opts.ByteHistogram)
	if _, err := p.opts.Progress.Write(buf.Bytes()); err != nil {
		p.log.Warn("periodic report failed", "err", err)
	}
}
