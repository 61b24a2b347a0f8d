package events

import (
	"context"
	"sync"
)

// Message is a notification captured by MemoryPublisher.
type Message struct {
	Topic   string
	Payload []byte
}

// MemoryPublisher keeps every notification in memory. Err, when set, is
// returned from Publish instead of recording.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.messages = append(p.messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

// Messages returns a copy of everything published so far.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// Topics returns the topics published so far, in order.
func (p *MemoryPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	topics := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		topics = append(topics, m.Topic)
	}
	return topics
}

func (p *MemoryPublisher) Close() error {
	return nil
}
