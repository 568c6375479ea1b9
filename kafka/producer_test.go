package kafka

import (
	"testing"

	"linesign/config"
	"linesign/poller"
)

func TestTopicDefaultsToNamespace(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Name: "cluster"}, "linesign", "A1")
	if got := p.Topic(); got != "linesign.production" {
		t.Errorf("Topic = %q", got)
	}

	p = NewProducer(config.KafkaConfig{Name: "cluster", Topic: "plant.counters"}, "linesign", "A1")
	if got := p.Topic(); got != "plant.counters" {
		t.Errorf("explicit Topic = %q", got)
	}
}

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "Disconnected"},
		{StatusConnecting, "Connecting"},
		{StatusConnected, "Connected"},
		{StatusError, "Error"},
		{ConnectionStatus(99), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestPublishNotConnected(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Name: "cluster", Brokers: []string{"localhost:9092"}}, "ns", "A1")
	if err := p.Publish(poller.Update{}); err == nil {
		t.Error("Publish succeeded while disconnected")
	}
	if p.GetStatus() != StatusDisconnected {
		t.Errorf("status = %v", p.GetStatus())
	}
}

func TestSASLMechanism(t *testing.T) {
	base := config.KafkaConfig{Name: "cluster", Username: "u", Password: "p"}

	for _, mech := range []string{SASLPlain, SASLSCRAMSHA256, SASLSCRAMSHA512} {
		cfg := base
		cfg.SASLMechanism = mech
		p := NewProducer(cfg, "ns", "A1")
		if p.saslMechanism() == nil {
			t.Errorf("mechanism %s: got nil", mech)
		}
	}

	// No username means no SASL regardless of mechanism.
	cfg := config.KafkaConfig{Name: "cluster", SASLMechanism: SASLPlain}
	if NewProducer(cfg, "ns", "A1").saslMechanism() != nil {
		t.Error("mechanism without username: got non-nil")
	}
}
