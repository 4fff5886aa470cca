// Package poller drives the periodic fetch cycle and owns the dashboard state
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/stats"
)

// ErrUnreachable is reported when every read of a cycle failed
var ErrUnreachable = errors.New("backend unreachable")

// Source is the subset of the backend client the poller reads from
type Source interface {
	FetchStatus(ctx context.Context) (*models.DeviceStatus, error)
	FetchLatest(ctx context.Context) (*models.Reading, error)
	FetchRange(ctx context.Context, start, end time.Time, limit int) ([]models.Reading, error)
}

// Phase is the state of the fetch cycle
type Phase string

// Phases. Success and error are held until the next cycle starts.
const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Snapshot is the read-only dashboard state published after each cycle
type Snapshot struct {
	Phase             Phase                `json:"phase"`
	Connectivity      models.Connectivity  `json:"connectivity"`
	Latest            *models.Reading      `json:"latest"`
	Series            []models.Reading     `json:"series"`
	Stats             models.Stats         `json:"stats"`
	Status            *models.DeviceStatus `json:"status"`
	Range             models.TimeRange     `json:"range"`
	LastUpdated       time.Time            `json:"lastUpdated"`
	ConsecutiveErrors int                  `json:"consecutiveErrors"`
	Duration          time.Duration        `json:"duration"`
	Error             string               `json:"error,omitempty"`

	err error
}

// Err returns the cycle error, if any
func (s Snapshot) Err() error {
	return s.err
}

// Listener receives every completed snapshot on the poller goroutine.
// Listeners must not block.
type Listener func(Snapshot)

// Options configures a Poller
type Options struct {
	Interval      time.Duration
	Range         models.TimeRange
	StatusTimeout time.Duration
	LatestTimeout time.Duration
	RangeTimeout  time.Duration
	Now           func() time.Time
}

// DefaultOptions returns the timings used by the dashboard
func DefaultOptions() Options {
	return Options{
		Interval:      15 * time.Second,
		Range:         models.MustTimeRange(models.DefaultTimeRange),
		StatusTimeout: 5 * time.Second,
		LatestTimeout: 5 * time.Second,
		RangeTimeout:  10 * time.Second,
		Now:           time.Now,
	}
}

type request struct {
	rng   *models.TimeRange
	reply chan Snapshot
}

// Poller runs fetch cycles against a Source
type Poller struct {
	source Source
	opts   Options

	mu        sync.RWMutex
	snap      Snapshot
	listeners []Listener
	interval  time.Duration

	requests  chan request
	intervals chan time.Duration
	done      chan struct{}
	running   bool
}

// New creates a poller; call Run to start it
func New(source Source, opts Options) *Poller {
	defaults := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.Range.Key == "" {
		opts.Range = defaults.Range
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = defaults.StatusTimeout
	}
	if opts.LatestTimeout <= 0 {
		opts.LatestTimeout = defaults.LatestTimeout
	}
	if opts.RangeTimeout <= 0 {
		opts.RangeTimeout = defaults.RangeTimeout
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	return &Poller{
		source:   source,
		opts:     opts,
		interval: opts.Interval,
		snap: Snapshot{
			Phase:        PhaseIdle,
			Connectivity: models.ConnectivityUnknown,
			Stats:        stats.Aggregate(nil, nil),
			Range:        opts.Range,
		},
		requests:  make(chan request),
		intervals: make(chan time.Duration),
		done:      make(chan struct{}),
	}
}

// OnUpdate registers a listener for completed cycles
func (p *Poller) OnUpdate(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Snapshot returns the current state
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Interval returns the current timer period
func (p *Poller) Interval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.interval
}

// Run executes an initial cycle and then one per interval until ctx is cancelled.
// The timer is re-armed only after a cycle completes, so cycles never overlap.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller already running")
	}
	p.running = true
	p.mu.Unlock()
	defer close(p.done)

	p.cycle(ctx)

	timer := time.NewTimer(p.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			p.cycle(ctx)
			timer.Reset(p.Interval())

		case req := <-p.requests:
			if req.rng != nil {
				p.switchRange(*req.rng)
				timer.Stop()
				req.reply <- p.cycle(ctx)
				timer.Reset(p.Interval())
				continue
			}
			req.reply <- p.cycle(ctx)

		case d := <-p.intervals:
			p.mu.Lock()
			p.interval = d
			p.mu.Unlock()
			timer.Reset(d)
		}
	}
}

// Refresh runs an extra cycle immediately and returns its snapshot.
// Manual refreshes are never merged with timer cycles.
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	return p.submit(ctx, request{})
}

// SetRange switches the history window, drops the old series and refetches
func (p *Poller) SetRange(ctx context.Context, rng models.TimeRange) (Snapshot, error) {
	return p.submit(ctx, request{rng: &rng})
}

// SetInterval changes the timer period, restarting the countdown
func (p *Poller) SetInterval(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("invalid interval %s", d)
	}
	select {
	case p.intervals <- d:
		return nil
	case <-p.done:
		return errors.New("poller stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) submit(ctx context.Context, req request) (Snapshot, error) {
	req.reply = make(chan Snapshot, 1)

	select {
	case p.requests <- req:
	case <-p.done:
		return Snapshot{}, errors.New("poller stopped")
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (p *Poller) switchRange(rng models.TimeRange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snap.Range = rng
	p.snap.Series = nil
	p.snap.Stats = stats.Aggregate(nil, nil)
}

type fetchResult struct {
	status    *models.DeviceStatus
	statusErr error
	latest    *models.Reading
	latestErr error
	series    []models.Reading
	rangeErr  error
}

// fetch issues the three reads concurrently, each under its own timeout
func (p *Poller) fetch(ctx context.Context, rng models.TimeRange) fetchResult {
	var (
		res fetchResult
		wg  sync.WaitGroup
	)
	start, end := rng.Span(p.opts.Now())

	wg.Add(3)
	go func() {
		defer wg.Done()
		c, cancel := context.WithTimeout(ctx, p.opts.StatusTimeout)
		defer cancel()
		res.status, res.statusErr = p.source.FetchStatus(c)
	}()
	go func() {
		defer wg.Done()
		c, cancel := context.WithTimeout(ctx, p.opts.LatestTimeout)
		defer cancel()
		res.latest, res.latestErr = p.source.FetchLatest(c)
	}()
	go func() {
		defer wg.Done()
		c, cancel := context.WithTimeout(ctx, p.opts.RangeTimeout)
		defer cancel()
		res.series, res.rangeErr = p.source.FetchRange(c, start, end, rng.Limit)
	}()
	wg.Wait()

	return res
}

func (p *Poller) cycle(ctx context.Context) Snapshot {
	p.mu.Lock()
	p.snap.Phase = PhaseLoading
	rng := p.snap.Range
	p.mu.Unlock()

	started := time.Now()
	res := p.fetch(ctx, rng)

	if res.statusErr != nil {
		log.Printf("WARN: status fetch failed: %v", res.statusErr)
	}
	if res.rangeErr != nil {
		log.Printf("WARN: range fetch failed: %v", res.rangeErr)
	}
	res.status = models.StatusOrDisconnected(res.status, res.statusErr)
	res.series = models.SeriesOrEmpty(res.series, res.rangeErr)
	if res.latestErr != nil {
		log.Printf("WARN: latest fetch failed: %v", res.latestErr)
	}

	latest := mergeLatest(res.latest, res.latestErr, res.series)

	connectivity := models.ConnectivityDisconnected
	if res.status.Connected {
		connectivity = models.ConnectivityConnected
	}

	p.mu.Lock()
	snap := p.snap
	snap.Connectivity = connectivity
	snap.Latest = latest
	snap.Series = res.series
	snap.Stats = stats.Aggregate(res.series, latest)
	snap.Status = res.status
	snap.Duration = time.Since(started)

	if res.statusErr != nil && res.latestErr != nil && res.rangeErr != nil {
		snap.err = fmt.Errorf("%w: %w", ErrUnreachable, errors.Join(res.statusErr, res.latestErr, res.rangeErr))
		snap.Error = snap.err.Error()
		snap.Phase = PhaseError
		snap.ConsecutiveErrors++
	} else {
		snap.err = nil
		snap.Error = ""
		snap.Phase = PhaseSuccess
		snap.ConsecutiveErrors = 0
		snap.LastUpdated = p.opts.Now()
	}

	p.snap = snap
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	if snap.Phase == PhaseError {
		log.Printf("ERROR: fetch cycle failed (attempt %d): %v", snap.ConsecutiveErrors, snap.err)
	}

	for _, l := range listeners {
		l(snap)
	}
	return snap
}

// mergeLatest prefers the dedicated latest reading, then the newest series
// element, then the placeholder
func mergeLatest(latest *models.Reading, err error, series []models.Reading) *models.Reading {
	if err == nil && latest != nil && !latest.IsPlaceholder() {
		return latest
	}
	if len(series) > 0 {
		first := series[0]
		return &first
	}
	return models.ReadingOrPlaceholder(latest, err)
}
