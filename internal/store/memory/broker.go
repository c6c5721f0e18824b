package memory

import (
	"context"
	"sync"
)

// Broker is the in-process event broker used by single-node deployments.
// Publishing never blocks: slow subscribers drop events (flag events are
// best-effort, the audit log is the durable record).
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan []byte
	next int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]chan []byte)}
}

func (b *Broker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 64)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan []byte)
	}
	b.subs[channel][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], id)
			b.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cleanup()
	}()

	return ch, cleanup, nil
}
