// Package verification re-checks records whose blockchain_tx_id is still
// "pending" until the backend assigns a transaction id.
package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medchain/medchain-server/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval between polling rounds
const DefaultInterval = 5 * time.Second

// Clock abstracts the timer so tests can drive ticks by hand.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is backed by time.After.
func RealClock() Clock { return realClock{} }

// Fetcher re-reads the verification state of one record.
type Fetcher func(ctx context.Context, id string) (models.Verification, error)

// Resolution reports a record that left the pending state.
type Resolution struct {
	ID           string
	Verification models.Verification
}

// Options configures a Poller
type Options struct {
	Interval    time.Duration
	Clock       Clock
	Concurrency int
	OnResolve   func([]Resolution)
	Logger      *zap.SugaredLogger
}

// Poller tracks a pending set. While the set is non-empty a single loop
// goroutine re-fetches every pending id once per interval; it exits as soon
// as the set drains and is restarted by Track.
type Poller struct {
	fetch       Fetcher
	interval    time.Duration
	clock       Clock
	concurrency int
	onResolve   func([]Resolution)
	logger      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]struct{}
	running bool
	closed  bool
}

// NewPoller creates an idle poller bound to parent; cancelling parent has
// the same effect as Close.
func NewPoller(parent context.Context, fetch Fetcher, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Poller{
		fetch:       fetch,
		interval:    opts.Interval,
		clock:       opts.Clock,
		concurrency: opts.Concurrency,
		onResolve:   opts.OnResolve,
		logger:      opts.Logger,
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[string]struct{}),
	}
}

// Track adds ids to the pending set and starts the loop if it is idle.
func (p *Poller) Track(ids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.ctx.Err() != nil {
		return
	}
	for _, id := range ids {
		if id != "" {
			p.pending[id] = struct{}{}
		}
	}
	if len(p.pending) > 0 && !p.running {
		p.running = true
		go p.loop()
	}
}

// Pending returns the tracked ids in sorted order.
func (p *Poller) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Running reports whether the loop goroutine is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Close stops the loop. No callbacks are delivered afterwards.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
}

// Tick runs one polling round immediately and delivers its resolutions.
func (p *Poller) Tick(ctx context.Context) []Resolution {
	resolved := p.poll(ctx)
	p.deliver(resolved)
	return resolved
}

func (p *Poller) loop() {
	for {
		select {
		case <-p.ctx.Done():
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return
		case <-p.clock.After(p.interval):
		}

		resolved := p.poll(p.ctx)

		p.mu.Lock()
		stop := len(p.pending) == 0 || p.closed
		if stop {
			p.running = false
		}
		p.mu.Unlock()

		p.deliver(resolved)
		if stop {
			p.logger.Debugw("Verification poller idle")
			return
		}
	}
}

// poll fetches every pending id concurrently, then applies all removals
// under one lock so observers never see a half-applied round. A failed
// fetch leaves the id pending.
func (p *Poller) poll(ctx context.Context) []Resolution {
	ids := p.Pending()
	if len(ids) == 0 {
		return nil
	}

	results := make([]models.Verification, len(ids))
	fetched := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			v, err := p.fetch(gctx, id)
			if err != nil {
				p.logger.Debugw("Verification re-fetch failed", "id", id, "error", err)
				return nil
			}
			results[i] = v
			fetched[i] = true
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	resolved := make([]Resolution, 0)
	for i, id := range ids {
		if !fetched[i] || results[i].IsPending() {
			continue
		}
		if _, ok := p.pending[id]; !ok {
			continue
		}
		delete(p.pending, id)
		resolved = append(resolved, Resolution{ID: id, Verification: results[i]})
	}
	return resolved
}

func (p *Poller) deliver(resolved []Resolution) {
	if len(resolved) == 0 || p.onResolve == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	p.onResolve(resolved)
}
