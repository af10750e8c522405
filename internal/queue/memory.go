package queue

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process Broker used in tests and by the dev worker's
// unit tests. It is shared: MemoryConnector hands out the same instance for
// every Connect, so concurrent dispatch calls see one set of queues, the same
// way concurrent callers share broker-side queues in production.
type MemoryBroker struct {
	mu       sync.Mutex
	queues   map[string][][]byte
	declared map[string]int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues:   make(map[string][][]byte),
		declared: make(map[string]int),
	}
}

func (b *MemoryBroker) Declare(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.declared[name]++
	if _, ok := b.queues[name]; !ok {
		b.queues[name] = nil
	}
	return nil
}

func (b *MemoryBroker) Publish(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := append([]byte(nil), body...)
	b.queues[queue] = append(b.queues[queue], msg)
	return nil
}

func (b *MemoryBroker) Get(ctx context.Context, queue string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.queues[queue]
	if len(msgs) == 0 {
		return nil, false, nil
	}
	head := msgs[0]
	b.queues[queue] = msgs[1:]
	return head, true, nil
}

// Close is a no-op: the broker outlives individual dispatch calls.
func (b *MemoryBroker) Close() error { return nil }

// DeclareCount reports how often a queue was declared.
func (b *MemoryBroker) DeclareCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.declared[name]
}

// Len reports the number of pending messages in a queue.
func (b *MemoryBroker) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue])
}

// MemoryConnector returns the same MemoryBroker from every Connect call.
type MemoryConnector struct {
	Broker *MemoryBroker
}

func NewMemoryConnector() *MemoryConnector {
	return &MemoryConnector{Broker: NewMemoryBroker()}
}

func (c *MemoryConnector) Connect(ctx context.Context) (Broker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Broker, nil
}
