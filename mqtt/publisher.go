// Package mqtt publishes production updates to an MQTT broker. Messages
// are retained so late-joining displays get the current figures
// immediately.
package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"linesign/config"
	"linesign/logging"
	"linesign/poller"
	"linesign/push"
)

// HealthMessage is the JSON structure published on the health topic.
type HealthMessage struct {
	Line      string `json:"line"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Publisher handles the connection to a single MQTT broker.
type Publisher struct {
	config    config.MQTTConfig
	namespace string
	line      string

	client  pahomqtt.Client
	running bool
	mu      sync.RWMutex

	// Last published payload, to suppress republishing unchanged figures.
	lastPayload []byte
	lastMu      sync.Mutex
}

// NewPublisher creates a publisher for a single broker.
func NewPublisher(cfg config.MQTTConfig, namespace, line string) *Publisher {
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

// Address returns the broker URL.
func (p *Publisher) Address() string {
	if p.config.UseTLS {
		return fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port)
	}
	return fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port)
}

// Start connects to the broker.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.Address())
	if p.config.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	logging.DebugLog("mqtt", "connecting to broker %s", p.Address())

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	if token.Error() != nil {
		return token.Error()
	}
	logging.DebugLog("mqtt", "connected to broker %s", p.Address())

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	p.mu.Unlock()

	// Force a full republish after reconnecting.
	p.lastMu.Lock()
	p.lastPayload = nil
	p.lastMu.Unlock()

	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running || p.client == nil {
		p.mu.Unlock()
		return
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	client.Disconnect(500)
}

// ProductionTopic returns the topic the retained production message is
// published on.
func (p *Publisher) ProductionTopic() string {
	return fmt.Sprintf("%s/%s/production", p.namespace, p.line)
}

// HealthTopic returns the health message topic.
func (p *Publisher) HealthTopic() string {
	return fmt.Sprintf("%s/%s/health", p.namespace, p.line)
}

// Publish sends a production update. Unchanged payloads are suppressed;
// the retained message already carries them.
func (p *Publisher) Publish(update poller.Update) error {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return fmt.Errorf("not connected")
	}

	if err := p.publishHealth(client, update); err != nil {
		logging.DebugLog("mqtt", "health publish failed: %v", err)
	}

	payload, err := json.Marshal(push.NewProductionMessage(p.line, update))
	if err != nil {
		return err
	}

	p.lastMu.Lock()
	unchanged := string(payload) == string(p.lastPayload)
	p.lastMu.Unlock()
	if unchanged {
		return nil
	}

	token := client.Publish(p.ProductionTopic(), 1, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if token.Error() != nil {
		return token.Error()
	}

	p.lastMu.Lock()
	p.lastPayload = payload
	p.lastMu.Unlock()
	return nil
}

func (p *Publisher) publishHealth(client pahomqtt.Client, update poller.Update) error {
	msg := HealthMessage{
		Line:      p.line,
		OK:        update.Err == nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if update.Err != nil {
		msg.Error = update.Err.Error()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	token := client.Publish(p.HealthTopic(), 0, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}
