package mqtt

import (
	"testing"

	"linesign/config"
	"linesign/poller"
)

func TestTopics(t *testing.T) {
	p := NewPublisher(config.MQTTConfig{Name: "plant"}, "linesign", "A1")
	if got := p.ProductionTopic(); got != "linesign/A1/production" {
		t.Errorf("ProductionTopic = %q", got)
	}
	if got := p.HealthTopic(); got != "linesign/A1/health" {
		t.Errorf("HealthTopic = %q", got)
	}
}

func TestAddress(t *testing.T) {
	p := NewPublisher(config.MQTTConfig{Broker: "mqtt.local", Port: 1883}, "ns", "A1")
	if got := p.Address(); got != "tcp://mqtt.local:1883" {
		t.Errorf("Address = %q", got)
	}
	p = NewPublisher(config.MQTTConfig{Broker: "mqtt.local", Port: 8883, UseTLS: true}, "ns", "A1")
	if got := p.Address(); got != "ssl://mqtt.local:8883" {
		t.Errorf("TLS Address = %q", got)
	}
}

func TestPublishNotConnected(t *testing.T) {
	p := NewPublisher(config.MQTTConfig{Name: "plant"}, "ns", "A1")
	if err := p.Publish(poller.Update{}); err == nil {
		t.Error("Publish succeeded while disconnected")
	}
}
