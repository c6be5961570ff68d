package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/monolithe-geofix/internal/debug"
	"github.com/monolithe-geofix/internal/geocode"
	"github.com/monolithe-geofix/internal/normalize"
	"github.com/monolithe-geofix/internal/observability"
)

// Pass names the query shape used for one lookup attempt.
type Pass string

const (
	PassFull     Pass = "full"
	PassNoNumber Pass = "no-number"
	PassCityOnly Pass = "city-only"
)

// Passes lists the passes in the order they are tried, most precise first.
var Passes = []Pass{PassFull, PassNoNumber, PassCityOnly}

// Attempt records one lookup made while resolving an address.
type Attempt struct {
	Pass    Pass            `json:"pass"`
	Query   string          `json:"query"`
	Outcome geocode.Outcome `json:"outcome"`
	Cached  bool            `json:"cached,omitempty"`
}

// ResolutionResult is the outcome of resolving one raw address. Pass and
// Variant are set only when Coordinates is.
type ResolutionResult struct {
	Coordinates *geocode.Coordinates `json:"coordinates,omitempty"`
	Pass        Pass                 `json:"pass,omitempty"`
	Variant     string               `json:"variant,omitempty"`
	Variants    normalize.Variants   `json:"variants"`
	Attempts    []Attempt            `json:"attempts"`
}

// Resolved reports whether some pass produced coordinates.
func (r ResolutionResult) Resolved() bool {
	return r.Coordinates != nil
}

// Options tunes a Resolver.
type Options struct {
	// MinInterval is the pause taken after every upstream request. Cache
	// hits and skipped passes do not pause.
	MinInterval time.Duration
	// Clock drives the pause; the real clock when nil.
	Clock   clockwork.Clock
	Metrics *observability.Metrics
	Logger  *zap.Logger
	Debug   bool
}

// Resolver tries the full address, then the address without its house
// number, then "postcode city", stopping at the first answer.
type Resolver struct {
	lookup geocode.Lookuper
	opts   Options
	tracer trace.Tracer

	// mu serialises upstream lookups. lastUpstream is when the most recent
	// one returned; no lookup starts within MinInterval of it, even when
	// the caller that made it stopped waiting.
	mu           sync.Mutex
	lastUpstream time.Time
}

// New creates a resolver on top of lookup.
func New(lookup geocode.Lookuper, opts Options) *Resolver {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		lookup: lookup,
		opts:   opts,
		tracer: otel.Tracer(observability.TracerName),
	}
}

// Resolve runs the passes for raw. Passes whose query would be empty, or
// identical to the cleaned address, are skipped without contacting the
// geocoder. Lookup failures only ever mean "no coordinates for this pass".
func (r *Resolver) Resolve(ctx context.Context, raw string) ResolutionResult {
	debug.DebugHeader(r.opts.Debug)
	defer debug.DebugFooter(r.opts.Debug)

	ctx, span := r.tracer.Start(ctx, "resolve")
	defer span.End()

	result := ResolutionResult{Variants: normalize.BuildVariants(raw)}
	debug.DebugOutput(r.opts.Debug, "Variants: cleaned=%q no-number=%q city-only=%q",
		result.Variants.Cleaned, result.Variants.NoNumber, result.Variants.CityOnly)

	for _, pass := range Passes {
		query := queryFor(pass, result.Variants)
		if query == "" {
			debug.DebugOutput(r.opts.Debug, "Pass %s skipped", pass)
			continue
		}
		if ctx.Err() != nil {
			break
		}

		res, ok := r.attempt(ctx, pass, query)
		if !ok {
			break
		}
		result.Attempts = append(result.Attempts, Attempt{
			Pass:    pass,
			Query:   query,
			Outcome: res.Outcome,
			Cached:  res.Cached,
		})

		if res.Found() {
			result.Coordinates = res.Coordinates
			result.Pass = pass
			result.Variant = query
			break
		}
	}

	span.SetAttributes(
		attribute.Bool("geofix.resolved", result.Resolved()),
		attribute.String("geofix.pass", string(result.Pass)),
		attribute.Int("geofix.attempts", len(result.Attempts)),
	)
	return result
}

// attempt looks query up and paces the upstream service. It reports false
// when ctx ended before the lookup could be issued.
func (r *Resolver) attempt(ctx context.Context, pass Pass, query string) (geocode.Result, bool) {
	ctx, span := r.tracer.Start(ctx, "lookup", trace.WithAttributes(
		attribute.String("geofix.pass", string(pass)),
	))
	defer span.End()

	r.mu.Lock()
	if !r.wait(ctx, r.opts.MinInterval-r.opts.Clock.Since(r.lastUpstream)) {
		r.mu.Unlock()
		return geocode.Result{}, false
	}
	start := r.opts.Clock.Now()
	res := r.lookup.Lookup(ctx, query)
	took := r.opts.Clock.Since(start)
	upstream := !res.Cached && res.Outcome != geocode.OutcomeSkipped
	if upstream {
		r.lastUpstream = start.Add(took)
	}
	r.mu.Unlock()

	r.opts.Metrics.ObserveLookup(string(pass), string(res.Outcome), took, res.Cached)
	span.SetAttributes(
		attribute.String("geofix.outcome", string(res.Outcome)),
		attribute.Bool("geofix.cached", res.Cached),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		r.opts.Logger.Debug("lookup failed",
			zap.String("pass", string(pass)),
			zap.String("query", query),
			zap.Error(res.Err),
		)
	}
	debug.DebugOutput(r.opts.Debug, "Pass %s %q -> %s", pass, query, res.Outcome)

	if upstream {
		r.wait(ctx, r.opts.MinInterval)
	}
	return res, true
}

// wait sleeps d on the resolver clock. It returns false if ctx ends first.
func (r *Resolver) wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	t := r.opts.Clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}

func queryFor(pass Pass, v normalize.Variants) string {
	switch pass {
	case PassFull:
		return v.Cleaned
	case PassNoNumber:
		return v.NoNumber
	case PassCityOnly:
		return v.CityOnly
	}
	return ""
}
