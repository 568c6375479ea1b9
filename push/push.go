// Package push fans poll updates out to the configured publishers. A slow
// or failing publisher never blocks the poll loop or the other outputs.
package push

import (
	"sync"

	"linesign/logging"
	"linesign/poller"
)

// Publisher is one outbound channel for production updates.
type Publisher interface {
	Name() string
	Start() error
	Stop()
	Publish(update poller.Update) error
}

// Manager owns the publisher set and distributes updates to all of them.
type Manager struct {
	mu         sync.RWMutex
	publishers []Publisher
	queue      chan poller.Update
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewManager builds an empty manager.
func NewManager() *Manager {
	return &Manager{
		queue: make(chan poller.Update, 64),
		done:  make(chan struct{}),
	}
}

// Add registers a publisher. Call before Start.
func (m *Manager) Add(p Publisher) {
	m.mu.Lock()
	m.publishers = append(m.publishers, p)
	m.mu.Unlock()
}

// Start connects all publishers and begins the dispatch loop. A publisher
// that fails to start is logged and skipped; the rest keep running.
func (m *Manager) Start() {
	m.mu.Lock()
	alive := m.publishers[:0]
	for _, p := range m.publishers {
		if err := p.Start(); err != nil {
			logging.Error("push: publisher %s failed to start: %v", p.Name(), err)
			continue
		}
		alive = append(alive, p)
	}
	m.publishers = alive
	m.mu.Unlock()

	m.wg.Add(1)
	go m.dispatchLoop()
}

// Stop drains the queue, stops the dispatch loop, and shuts publishers
// down.
func (m *Manager) Stop() {
	close(m.done)
	m.wg.Wait()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.publishers {
		p.Stop()
	}
}

// Offer enqueues an update for dispatch. When the queue is full the oldest
// pending update is discarded; signage only ever needs the latest figures.
func (m *Manager) Offer(update poller.Update) {
	for {
		select {
		case m.queue <- update:
			return
		default:
		}
		select {
		case <-m.queue:
		default:
		}
	}
}

func (m *Manager) dispatchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case update := <-m.queue:
			m.publish(update)
		}
	}
}

func (m *Manager) publish(update poller.Update) {
	m.mu.RLock()
	publishers := m.publishers
	m.mu.RUnlock()

	for _, p := range publishers {
		if err := p.Publish(update); err != nil {
			logging.DebugLog("push", "publish to %s failed: %v", p.Name(), err)
		}
	}
}

// Count returns the number of live publishers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.publishers)
}
