// Package valkey publishes production updates to a Valkey/Redis server.
// The current figures live under a stable key, so a restarting process can
// warm-start from the last published reading.
package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"linesign/config"
	"linesign/logging"
	"linesign/poller"
	"linesign/push"
	"linesign/snapshot"
)

// joinKey joins key segments with colons, trimming leading/trailing colons
// from each segment to avoid empty key parts.
func joinKey(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// Publisher stores production updates in a Valkey server.
type Publisher struct {
	config    config.ValkeyConfig
	namespace string
	line      string

	client  *redis.Client
	running bool
	mu      sync.RWMutex
}

// NewPublisher creates a publisher for one server.
func NewPublisher(cfg config.ValkeyConfig, namespace, line string) *Publisher {
	return &Publisher{config: cfg, namespace: namespace, line: line}
}

// Name returns the publisher's configured name.
func (p *Publisher) Name() string {
	return p.config.Name
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Address returns the server address as a URL.
func (p *Publisher) Address() string {
	scheme := "redis"
	if p.config.UseTLS {
		scheme = "rediss"
	}
	return fmt.Sprintf("%s://%s", scheme, p.config.Address)
}

// ProductionKey returns the key the current figures are stored under.
func (p *Publisher) ProductionKey() string {
	return joinKey(p.namespace, p.line, "production")
}

// ChangesChannel returns the Pub/Sub channel notified on changes.
func (p *Publisher) ChangesChannel() string {
	return joinKey(p.namespace, p.line, "changes")
}

// Start connects to the server.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := &redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if p.config.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	logging.DebugLog("valkey", "connecting to %s (DB %d)", p.config.Address, p.config.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to %s: %w", p.config.Address, err)
	}
	logging.DebugLog("valkey", "connected to %s", p.config.Address)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		client.Close()
		return nil
	}
	p.client = client
	p.running = true
	return nil
}

// Stop disconnects from the server.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		client.Close()
	}
}

// Publish stores the update under the production key and, when enabled,
// notifies subscribers on the changes channel.
func (p *Publisher) Publish(update poller.Update) error {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(push.NewProductionMessage(p.line, update))
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Set(ctx, p.ProductionKey(), data, p.config.KeyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	if p.config.PublishChanges {
		client.Publish(ctx, p.ChangesChannel(), data)
	}
	return nil
}

// LoadLastGood fetches the last stored reading, if the key still exists.
// Used to warm-start the display after a restart.
func (p *Publisher) LoadLastGood() (snapshot.ProductionSnapshot, bool) {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return snapshot.ProductionSnapshot{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := client.Get(ctx, p.ProductionKey()).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.DebugLog("valkey", "warm start read failed: %v", err)
		}
		return snapshot.ProductionSnapshot{}, false
	}

	var msg push.ProductionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.DebugLog("valkey", "warm start decode failed: %v", err)
		return snapshot.ProductionSnapshot{}, false
	}

	snap := snapshot.ProductionSnapshot{
		Plan:        msg.Plan,
		Actual:      msg.Actual,
		ProductType: msg.ProductType,
		InOperating: msg.InOperating,
	}
	if ts, err := time.Parse(time.RFC3339, msg.CapturedAt); err == nil {
		snap.CapturedAt = ts
		snap.PLCTime = ts
	}
	return snap, true
}
