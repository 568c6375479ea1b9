// Package kafka publishes production updates to a Kafka cluster.
package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"linesign/config"
	"linesign/logging"
	"linesign/poller"
	"linesign/push"
)

// SASL mechanism names accepted in configuration.
const (
	SASLPlain       = "PLAIN"
	SASLSCRAMSHA256 = "SCRAM-SHA-256"
	SASLSCRAMSHA512 = "SCRAM-SHA-512"
)

// ConnectionStatus represents the state of a Kafka connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Producer publishes production updates to one cluster, keyed by line so
// each line's messages stay ordered within a partition.
type Producer struct {
	config    config.KafkaConfig
	namespace string
	line      string

	mu           sync.Mutex
	status       ConnectionStatus
	lastErr      error
	writer       *kafkago.Writer
	messagesSent int64
	lastSendTime time.Time
}

// NewProducer creates a producer for one cluster.
func NewProducer(cfg config.KafkaConfig, namespace, line string) *Producer {
	return &Producer{
		config:    cfg,
		namespace: namespace,
		line:      line,
		status:    StatusDisconnected,
	}
}

// Name returns the producer's configured name.
func (p *Producer) Name() string {
	return p.config.Name
}

// GetStatus returns the current connection status.
func (p *Producer) GetStatus() ConnectionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// GetStats returns message counters.
func (p *Producer) GetStats() (sent int64, lastSend time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messagesSent, p.lastSendTime
}

// Topic returns the destination topic.
func (p *Producer) Topic() string {
	if p.config.Topic != "" {
		return p.config.Topic
	}
	return p.namespace + ".production"
}

// Start verifies connectivity to the cluster and prepares the writer.
func (p *Producer) Start() error {
	p.mu.Lock()
	p.status = StatusConnecting
	p.lastErr = nil
	brokers := p.config.Brokers
	p.mu.Unlock()

	if len(brokers) == 0 {
		p.setError(fmt.Errorf("no brokers configured"))
		return fmt.Errorf("no brokers configured")
	}

	logging.DebugLog("kafka", "connecting to brokers %v", brokers)

	dialer := p.createDialer()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		p.setError(fmt.Errorf("failed to connect: %w", err))
		logging.DebugLog("kafka", "connect failed: %v", err)
		return fmt.Errorf("failed to connect: %w", err)
	}
	conn.Close()

	p.mu.Lock()
	p.writer = p.createWriter()
	p.status = StatusConnected
	p.mu.Unlock()

	logging.DebugLog("kafka", "connected, producing to topic %s", p.Topic())
	return nil
}

// Stop closes the writer.
func (p *Producer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		p.writer.Close()
		p.writer = nil
	}
	p.status = StatusDisconnected
	p.lastErr = nil
}

// Publish sends one production update, keyed by line name.
func (p *Producer) Publish(update poller.Update) error {
	p.mu.Lock()
	writer := p.writer
	status := p.status
	p.mu.Unlock()

	if status != StatusConnected || writer == nil {
		return fmt.Errorf("kafka cluster %q not connected", p.config.Name)
	}

	payload, err := json.Marshal(push.NewProductionMessage(p.line, update))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(p.line),
		Value: payload,
		Time:  time.Now(),
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.setError(err)
		return fmt.Errorf("kafka produce failed: %w", err)
	}

	p.mu.Lock()
	p.messagesSent++
	p.lastSendTime = time.Now()
	p.lastErr = nil
	p.mu.Unlock()
	return nil
}

func (p *Producer) setError(err error) {
	p.mu.Lock()
	p.status = StatusError
	p.lastErr = err
	p.mu.Unlock()
}

func (p *Producer) createWriter() *kafkago.Writer {
	maxAttempts := p.config.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &kafkago.Writer{
		Addr:      kafkago.TCP(p.config.Brokers...),
		Topic:     p.Topic(),
		Balancer:  &kafkago.LeastBytes{},
		Transport: p.createTransport(),

		RequiredAcks: kafkago.RequiredAcks(p.config.RequiredAcks),
		Async:        false,
		MaxAttempts:  maxAttempts,

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,

		AllowAutoTopicCreation: true,
	}
}

func (p *Producer) createDialer() *kafkago.Dialer {
	dialer := &kafkago.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if p.config.UseTLS {
		dialer.TLS = p.tlsConfig()
	}
	if mechanism := p.saslMechanism(); mechanism != nil {
		dialer.SASLMechanism = mechanism
	}
	return dialer
}

func (p *Producer) createTransport() *kafkago.Transport {
	transport := &kafkago.Transport{
		DialTimeout: 10 * time.Second,
	}
	if p.config.UseTLS {
		transport.TLS = p.tlsConfig()
	}
	if mechanism := p.saslMechanism(); mechanism != nil {
		transport.SASL = mechanism
	}
	return transport
}

func (p *Producer) tlsConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: p.config.TLSSkipVerify,
	}
}

func (p *Producer) saslMechanism() sasl.Mechanism {
	if p.config.Username == "" {
		return nil
	}
	switch p.config.SASLMechanism {
	case SASLPlain:
		return plain.Mechanism{
			Username: p.config.Username,
			Password: p.config.Password,
		}
	case SASLSCRAMSHA256:
		mechanism, _ := scram.Mechanism(scram.SHA256, p.config.Username, p.config.Password)
		return mechanism
	case SASLSCRAMSHA512:
		mechanism, _ := scram.Mechanism(scram.SHA512, p.config.Username, p.config.Password)
		return mechanism
	default:
		return nil
	}
}
