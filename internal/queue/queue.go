// Package queue abstracts the durable two-queue message channel used by the
// dispatch subsystem. A Connector opens fresh broker connections; a Broker
// exposes named durable queues with persistent publish and non-blocking,
// ack-on-fetch consumption.
package queue

import "context"

// Broker is a live connection to a message broker.
type Broker interface {
	// Declare creates the named queue as durable. Declaring an existing queue
	// with matching properties is a no-op.
	Declare(ctx context.Context, name string) error
	// Publish enqueues a message with persistent delivery mode.
	Publish(ctx context.Context, queue string, body []byte) error
	// Get fetches and acknowledges a single message if one is available.
	// ok is false when the queue is empty.
	Get(ctx context.Context, queue string) (body []byte, ok bool, err error)
	Close() error
}

// Connector opens broker connections. Dispatch calls acquire a fresh
// connection per in-flight job and release it on every exit path.
type Connector interface {
	Connect(ctx context.Context) (Broker, error)
}
