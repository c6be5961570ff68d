package batch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/monolithe-geofix/internal/debug"
	"github.com/monolithe-geofix/internal/geocode"
	"github.com/monolithe-geofix/internal/normalize"
	"github.com/monolithe-geofix/internal/observability"
	"github.com/monolithe-geofix/internal/resolver"
	"github.com/monolithe-geofix/internal/store"
)

// CandidateStore supplies the records to sweep and persists coordinates.
type CandidateStore interface {
	FetchCandidates(ctx context.Context) ([]store.AddressRecord, error)
	UpdateCoordinates(ctx context.Context, id string, c geocode.Coordinates) error
}

// AddressResolver turns a raw address into coordinates.
type AddressResolver interface {
	Resolve(ctx context.Context, raw string) resolver.ResolutionResult
}

// Options controls one sweep.
type Options struct {
	// DryRun resolves every record but never writes.
	DryRun bool
	// Limit caps the number of records processed; 0 means all.
	Limit int
	// Progress receives the per-record operator lines; discarded when nil.
	Progress io.Writer
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Debug    bool
}

// Unresolved is a record left without coordinates at the end of a sweep.
type Unresolved struct {
	Record   store.AddressRecord
	Variants normalize.Variants
	Reason   string
}

const (
	ReasonNoCoordinates = "no coordinates"
	ReasonPersistError  = "persist error"
)

// BatchStats tracks batch processing statistics
type BatchStats struct {
	RunID          string
	DryRun         bool
	Total          int
	Fixed          int
	Failed         int
	PersistErrors  int
	ByPass         map[resolver.Pass]int
	Unresolved     []Unresolved
	ProcessingTime time.Duration
	Interrupted    bool
}

// BatchProcessor runs the coordinate sweep, one record at a time.
type BatchProcessor struct {
	store    CandidateStore
	resolver AddressResolver
	opts     Options
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(s CandidateStore, r AddressResolver, opts Options) *BatchProcessor {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &BatchProcessor{store: s, resolver: r, opts: opts}
}

// Run fetches every candidate and resolves them in order. Records that
// resolve have their coordinates written; a failed write is logged and the
// sweep moves on. Run returns an error only when candidates cannot be
// fetched or ctx is cancelled, and in the latter case the partial stats are
// returned too.
func (bp *BatchProcessor) Run(ctx context.Context) (*BatchStats, error) {
	debug.DebugHeader(bp.opts.Debug)
	defer debug.DebugFooter(bp.opts.Debug)

	startTime := time.Now()
	stats := &BatchStats{
		RunID:  uuid.NewString(),
		DryRun: bp.opts.DryRun,
		ByPass: make(map[resolver.Pass]int),
	}
	log := bp.opts.Logger.With(zap.String("run_id", stats.RunID))

	records, err := bp.store.FetchCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	if bp.opts.Limit > 0 && len(records) > bp.opts.Limit {
		records = records[:bp.opts.Limit]
	}
	stats.Total = len(records)

	log.Info("sweep started", zap.Int("candidates", stats.Total), zap.Bool("dry_run", bp.opts.DryRun))
	fmt.Fprintf(bp.opts.Progress, "Found %d providers without coordinates\n\n", stats.Total)
	if stats.Total == 0 {
		fmt.Fprintln(bp.opts.Progress, "Nothing to do.")
	}

	for i, rec := range records {
		if ctx.Err() != nil {
			stats.Interrupted = true
			break
		}
		bp.processRecord(ctx, log, i, rec, stats)
	}

	stats.ProcessingTime = time.Since(startTime)
	bp.opts.Metrics.SweepFinished(time.Now())

	debug.DebugOutput(bp.opts.Debug, "Sweep complete: %d fixed, %d failed, %d persist errors in %v",
		stats.Fixed, stats.Failed, stats.PersistErrors, stats.ProcessingTime)
	log.Info("sweep finished",
		zap.Int("fixed", stats.Fixed),
		zap.Int("failed", stats.Failed),
		zap.Int("persist_errors", stats.PersistErrors),
		zap.Duration("took", stats.ProcessingTime),
	)

	if stats.Interrupted {
		return stats, fmt.Errorf("sweep interrupted after %d of %d records: %w",
			stats.Fixed+stats.Failed+stats.PersistErrors, stats.Total, ctx.Err())
	}
	return stats, nil
}

func (bp *BatchProcessor) processRecord(ctx context.Context, log *zap.Logger, i int, rec store.AddressRecord, stats *BatchStats) {
	out := bp.opts.Progress
	fmt.Fprintf(out, "[%03d/%03d] %-25.25s ", i+1, stats.Total, rec.DisplayName)

	res := bp.resolver.Resolve(ctx, rec.RawAddress)
	if res.Variants.Cleaned != rec.RawAddress {
		fmt.Fprintf(out, "\n  original: %s\n  cleaned:  %s\n  result:   ", rec.RawAddress, res.Variants.Cleaned)
	}

	if !res.Resolved() && ctx.Err() != nil {
		// Not every pass ran, so this is not a failure of the address.
		fmt.Fprintln(out, "INTERRUPTED")
		stats.Interrupted = true
		return
	}

	if !res.Resolved() {
		shown := res.Variants.Cleaned
		if shown == "" {
			shown = "no address"
		}
		fmt.Fprintf(out, "FAILED  (%s)\n", shown)
		stats.Failed++
		stats.Unresolved = append(stats.Unresolved, Unresolved{Record: rec, Variants: res.Variants, Reason: ReasonNoCoordinates})
		bp.opts.Metrics.ObserveRecord("failed")
		debug.DebugOutput(bp.opts.Debug, "Record %s unresolved after %d attempts", rec.ID, len(res.Attempts))
		return
	}

	if !bp.opts.DryRun {
		// Coordinates already paid for upstream are kept even when the
		// sweep is being cancelled.
		if err := bp.store.UpdateCoordinates(context.WithoutCancel(ctx), rec.ID, *res.Coordinates); err != nil {
			fmt.Fprintf(out, "ERROR  %v\n", err)
			log.Error("failed to persist coordinates", zap.String("id", rec.ID), zap.Error(err))
			stats.PersistErrors++
			stats.Unresolved = append(stats.Unresolved, Unresolved{Record: rec, Variants: res.Variants, Reason: ReasonPersistError})
			bp.opts.Metrics.ObserveRecord("persist_error")
			return
		}
	}

	fmt.Fprintf(out, "%-9s %s\n", res.Pass, res.Coordinates)
	stats.Fixed++
	stats.ByPass[res.Pass]++
	bp.opts.Metrics.ObserveRecord("fixed")
}

// WriteSummary prints the end-of-run block, including the unresolved list.
func (s *BatchStats) WriteSummary(w io.Writer) {
	rule := strings.Repeat("-", 40)
	fmt.Fprintf(w, "\n%s\n", rule)
	if s.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was written")
	}
	fmt.Fprintf(w, "Fixed:  %d\n", s.Fixed)
	for _, pass := range resolver.Passes {
		if n := s.ByPass[pass]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", pass, n)
		}
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed: %d  <-- check addresses above\n", s.Failed)
	} else {
		fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	}
	if s.PersistErrors > 0 {
		fmt.Fprintf(w, "Write errors: %d\n", s.PersistErrors)
	}
	if s.Interrupted {
		fmt.Fprintf(w, "Interrupted: %d of %d records not processed\n",
			s.Total-s.Fixed-s.Failed-s.PersistErrors, s.Total)
	}
	fmt.Fprintln(w, rule)

	if len(s.Unresolved) > 0 {
		fmt.Fprintln(w, "\nStill unresolved:")
		for _, u := range s.Unresolved {
			fmt.Fprintf(w, "  %s  %s  (%s: %s)\n", u.Record.ID, u.Record.DisplayName, u.Reason, u.Record.RawAddress)
		}
	}
}
