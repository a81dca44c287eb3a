// Package syncer keeps a model.Store in step with the analytics API.
//
// A refresh is split into three steps so the terminal UI can run the network
// part off its event loop: Begin allocates a ticket, Fetch performs the two
// requests, Apply swaps the result into the store. Results that arrive out of
// order are resolved by the engine's Ordering.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trackdash/internal/api"
	"trackdash/internal/model"
	"trackdash/internal/util/logx"
)

const (
	DefaultPageSize = 50
	DefaultInterval = 30 * time.Second
)

// Source is the read side of the API.
type Source interface {
	Stats(ctx context.Context) (model.SummaryStats, error)
	Tracks(ctx context.Context, q api.TracksQuery) ([]model.TrackRecord, error)
}

// Ordering decides which of several overlapping refreshes wins.
type Ordering int

const (
	// LatestIssued discards a result when a newer ticket has been issued.
	LatestIssued Ordering = iota
	// LastCompleted applies every result; whichever lands last wins.
	LastCompleted
)

func (o Ordering) String() string {
	if o == LastCompleted {
		return "last-completed"
	}
	return "latest-issued"
}

// ParseOrdering accepts "latest-issued" and "last-completed".
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latest-issued", "latest":
		return LatestIssued, nil
	case "last-completed", "last":
		return LastCompleted, nil
	}
	return LatestIssued, fmt.Errorf("unknown ordering %q (want latest-issued or last-completed)", s)
}

// Ticket identifies one refresh. Seq grows with every Begin.
type Ticket struct {
	Seq   uint64
	Query string
	At    time.Time
}

// Result is a fetched but not yet applied refresh.
type Result struct {
	Ticket  Ticket
	Summary model.SummaryStats
	Records []model.TrackRecord
	Took    time.Duration
}

// Counters is a snapshot of engine activity for the status line.
type Counters struct {
	Issued   uint64
	Applied  uint64
	Dropped  uint64
	Failed   uint64
	LastSeq  uint64
	LastSync time.Time
	LastErr  error
}

type Options struct {
	PageSize int
	Ordering Ordering
	Now      func() time.Time
}

type Engine struct {
	src   Source
	store *model.Store
	opt   Options

	mu       sync.Mutex
	issued   uint64
	counters Counters
	subs     []func(Result)
}

func New(src Source, store *model.Store, opt Options) *Engine {
	if opt.PageSize <= 0 {
		opt.PageSize = DefaultPageSize
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Engine{src: src, store: store, opt: opt}
}

func (e *Engine) Store() *model.Store { return e.store }

func (e *Engine) Ordering() Ordering { return e.opt.Ordering }

// Subscribe registers fn to run after every applied result.
func (e *Engine) Subscribe(fn func(Result)) {
	e.mu.Lock()
	e.subs = append(e.subs, fn)
	e.mu.Unlock()
}

// Begin issues a new ticket for query.
func (e *Engine) Begin(query string) Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.issued++
	e.counters.Issued++
	return Ticket{Seq: e.issued, Query: strings.TrimSpace(query), At: e.opt.Now()}
}

func (e *Engine) listQuery(q string) api.TracksQuery {
	if q != "" {
		return api.TracksQuery{Q: q}
	}
	return api.TracksQuery{Limit: e.opt.PageSize}
}

// Fetch requests summary and list concurrently. If either fails the whole
// refresh is abandoned.
func (e *Engine) Fetch(ctx context.Context, t Ticket) (Result, error) {
	res := Result{Ticket: t}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := e.src.Stats(gctx)
		if err != nil {
			return fmt.Errorf("fetch summary: %w", err)
		}
		res.Summary = s
		return nil
	})
	g.Go(func() error {
		recs, err := e.src.Tracks(gctx, e.listQuery(t.Query))
		if err != nil {
			return fmt.Errorf("fetch tracks: %w", err)
		}
		res.Records = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		e.mu.Lock()
		e.counters.Failed++
		e.counters.LastErr = err
		e.mu.Unlock()
		logx.Warnf("sync #%d: %v", t.Seq, err)
		return Result{Ticket: t}, fmt.Errorf("refresh #%d: %w", t.Seq, err)
	}
	res.Took = time.Since(start)
	return res, nil
}

// Apply swaps r into the store and notifies subscribers. It returns false
// when the ordering policy discards r.
func (e *Engine) Apply(r Result) bool {
	e.mu.Lock()
	if e.stale(r.Ticket.Seq) {
		e.counters.Dropped++
		e.mu.Unlock()
		logx.Debugf("sync #%d: dropped, latest issued is #%d", r.Ticket.Seq, e.latest())
		return false
	}
	e.store.Replace(r.Summary, r.Records)
	e.counters.Applied++
	e.counters.LastSeq = r.Ticket.Seq
	e.counters.LastSync = e.opt.Now()
	e.counters.LastErr = nil
	subs := append([]func(Result){}, e.subs...)
	e.mu.Unlock()
	logx.Debugf("sync #%d: applied %d records in %s", r.Ticket.Seq, len(r.Records), r.Took.Round(time.Millisecond))
	for _, fn := range subs {
		fn(r)
	}
	return true
}

func (e *Engine) stale(seq uint64) bool {
	if e.opt.Ordering == LastCompleted {
		return false
	}
	return seq < e.issued
}

func (e *Engine) latest() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.issued
}

// Refresh runs a complete cycle synchronously. A result superseded while in
// flight is not an error.
func (e *Engine) Refresh(ctx context.Context, query string) error {
	r, err := e.Fetch(ctx, e.Begin(query))
	if err != nil {
		return err
	}
	e.Apply(r)
	return nil
}

// Stats returns a copy of the activity counters.
func (e *Engine) Stats() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

// Arrivals returns a subscriber that calls fn with the track IDs an
// unfiltered refresh shows for the first time. The first such refresh only
// seeds the set; searches are ignored since they narrow the list.
func Arrivals(fn func(ids []string)) func(Result) {
	var seen map[string]struct{}
	return func(r Result) {
		if r.Ticket.Query != "" {
			return
		}
		var fresh []string
		first := seen == nil
		if first {
			seen = make(map[string]struct{}, len(r.Records))
		}
		for _, rec := range r.Records {
			if _, ok := seen[rec.TrackID]; ok {
				continue
			}
			seen[rec.TrackID] = struct{}{}
			fresh = append(fresh, rec.TrackID)
		}
		if !first && len(fresh) > 0 {
			fn(fresh)
		}
	}
}
