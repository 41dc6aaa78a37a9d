package mqtt

import (
	"fmt"
	"sync"
)

// Message is a payload captured by MockPublisher.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Messages   []Message
	FailTopics map[string]bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailTopics: make(map[string]bool)}
}

// Publish records the message or returns an error if configured to fail.
func (m *MockPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("publish failed")
	}
	cp := append([]byte(nil), payload...)
	m.Messages = append(m.Messages, Message{Topic: topic, QoS: qos, Retained: retained, Payload: cp})
	return nil
}

// Published returns the messages sent to topic in publish order.
func (m *MockPublisher) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.Messages {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// Last returns the most recent message on topic.
func (m *MockPublisher) Last(topic string) (Message, bool) {
	msgs := m.Published(topic)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}
