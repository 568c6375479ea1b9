// Package poller drives the capture cycle: it fetches snapshots on a
// fixed interval, derives the display figures, and fans the result out to
// registered listeners. It keeps the last good reading so consumers can
// keep showing data through short outages.
package poller

import (
	"context"
	"sync"
	"time"

	"linesign/catalog"
	"linesign/logging"
	"linesign/metrics"
	"linesign/snapshot"
)

// defaultFailureLimit is how many consecutive failed polls are tolerated
// before the retained reading is flagged stale.
const defaultFailureLimit = 3

// Update is one poll result, successful or not, paired with the reading
// consumers should display.
type Update struct {
	Snapshot      snapshot.ProductionSnapshot
	Product       catalog.ProductType
	ProductKnown  bool
	RemainPallets int
	RemainMinutes float64
	Stale         bool  // Reading is retained from before the current outage
	Err           error // Failure of the poll that produced this update, nil on success
}

// Status is a point-in-time view of the poller for health reporting.
type Status struct {
	Mode      string    `json:"mode"`
	LastPoll  time.Time `json:"last_poll"`
	LastError string    `json:"last_error,omitempty"`
	Failures  int       `json:"consecutive_failures"`
	HasData   bool      `json:"has_data"`
	Stale     bool      `json:"stale"`
}

// Poller owns the capture loop for one line.
type Poller struct {
	source       snapshot.Source
	catalog      *catalog.Catalog
	interval     time.Duration
	failureLimit int

	mu        sync.RWMutex
	last      Update
	hasData   bool
	failures  int
	lastPoll  time.Time
	lastError error
	listeners []func(Update)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a poller over the given source and product catalog.
func New(source snapshot.Source, cat *catalog.Catalog, interval time.Duration) *Poller {
	return &Poller{
		source:       source,
		catalog:      cat,
		interval:     interval,
		failureLimit: defaultFailureLimit,
	}
}

// OnUpdate registers a listener invoked after every poll. Listeners run
// on the poll goroutine; registration is safe while the loop is running.
func (p *Poller) OnUpdate(fn func(Update)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Prime seeds the retained reading, marked stale, so a restart can show
// the last published figures before the first live poll lands.
func (p *Poller) Prime(snap snapshot.ProductionSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasData {
		return
	}
	p.last = p.derive(snap)
	p.last.Stale = true
	p.hasData = true
}

// Start launches the poll loop. An immediate first poll runs before the
// ticker cadence begins.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.pollLoop(ctx)
}

// Stop halts the loop and waits for it to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	p.PollOnce()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce()
		}
	}
}

// PollOnce runs a single capture cycle and notifies listeners.
func (p *Poller) PollOnce() Update {
	snap, err := p.source.Fetch()
	now := time.Now()

	p.mu.Lock()
	p.lastPoll = now
	if err != nil {
		p.failures++
		p.lastError = err
		logging.DebugLog("poller", "poll failed (%d consecutive): %v", p.failures, err)
		if p.failures == p.failureLimit {
			logging.Error("poller: %d consecutive failures, marking data stale", p.failures)
		}
		update := p.last
		update.Stale = update.Stale || (p.hasData && p.failures >= p.failureLimit)
		update.Err = err
		p.last = update
		listeners := p.listeners
		p.mu.Unlock()
		for _, fn := range listeners {
			fn(update)
		}
		return update
	}

	p.failures = 0
	p.lastError = nil
	update := p.derive(snap)
	p.last = update
	p.hasData = true
	listeners := p.listeners
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(update)
	}
	return update
}

// derive resolves the product and computes the remaining-work figures. An
// unknown product code keeps the raw counters usable without product
// detail.
func (p *Poller) derive(snap snapshot.ProductionSnapshot) Update {
	update := Update{Snapshot: snap}

	pt, err := p.catalog.Lookup(snap.ProductType)
	if err != nil {
		logging.DebugLog("poller", "product lookup: %v", err)
		return update
	}
	update.Product = pt
	update.ProductKnown = true

	if pallets, err := metrics.RemainingPallets(snap.Plan, snap.Actual, pt.PalletCapacity); err == nil {
		update.RemainPallets = pallets
	}
	if minutes, err := metrics.RemainingMinutes(snap.Plan, snap.Actual, pt.RatePerMinute); err == nil {
		update.RemainMinutes = minutes
	}
	return update
}

// Last returns the retained reading, if any.
func (p *Poller) Last() (Update, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.hasData
}

// Status reports the poller's health.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{
		Mode:     p.source.Mode(),
		LastPoll: p.lastPoll,
		Failures: p.failures,
		HasData:  p.hasData,
		Stale:    p.hasData && p.failures >= p.failureLimit,
	}
	if p.lastError != nil {
		s.LastError = p.lastError.Error()
	}
	return s
}
