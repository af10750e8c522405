package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"charchat/internal/queue"
)

// demux is the corrected correlation strategy: a single consumer drains one
// response queue and hands each result to the waiter registered for its id.
// Results that arrive before their waiter registers, or after it gave up, are
// retained for up to the wait budget instead of being dropped.
type demux struct {
	connector queue.Connector
	queueName string
	interval  time.Duration
	retain    time.Duration
	logger    zerolog.Logger

	mu        sync.Mutex
	waiters   map[string]chan resultEnvelope
	unclaimed map[string]heldResult

	stopOnce sync.Once
	done     chan struct{}
}

type heldResult struct {
	env resultEnvelope
	at  time.Time
}

func newDemux(connector queue.Connector, queueName string, interval, retain time.Duration, logger zerolog.Logger) *demux {
	return &demux{
		connector: connector,
		queueName: queueName,
		interval:  interval,
		retain:    retain,
		logger:    logger,
		waiters:   make(map[string]chan resultEnvelope),
		unclaimed: make(map[string]heldResult),
		done:      make(chan struct{}),
	}
}

func (d *demux) start() { go d.run() }

func (d *demux) stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

// register returns the channel the jobID's result will be delivered on. If
// the result already arrived it is delivered immediately.
func (d *demux) register(jobID string) <-chan resultEnvelope {
	ch := make(chan resultEnvelope, 1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if held, ok := d.unclaimed[jobID]; ok {
		delete(d.unclaimed, jobID)
		ch <- held.env
		return ch
	}
	d.waiters[jobID] = ch
	return ch
}

func (d *demux) cancel(jobID string) {
	d.mu.Lock()
	delete(d.waiters, jobID)
	d.mu.Unlock()
}

func (d *demux) run() {
	ctx := context.Background()
	for {
		select {
		case <-d.done:
			return
		default:
		}

		br, err := d.connector.Connect(ctx)
		if err != nil {
			d.logger.Error().Err(err).Str("queue", d.queueName).Msg("dispatch: demux connect failed, retrying")
			if !d.sleep() {
				return
			}
			continue
		}
		if err := br.Declare(ctx, d.queueName); err != nil {
			d.logger.Error().Err(err).Str("queue", d.queueName).Msg("dispatch: demux declare failed, retrying")
			_ = br.Close()
			if !d.sleep() {
				return
			}
			continue
		}

		d.consume(ctx, br)
		_ = br.Close()

		select {
		case <-d.done:
			return
		default:
		}
	}
}

// consume drains the queue until a fetch error or shutdown.
func (d *demux) consume(ctx context.Context, br queue.Broker) {
	for {
		select {
		case <-d.done:
			return
		default:
		}

		body, ok, err := br.Get(ctx, d.queueName)
		if err != nil {
			d.logger.Error().Err(err).Str("queue", d.queueName).Msg("dispatch: demux fetch failed, reconnecting")
			return
		}
		if !ok {
			d.prune()
			if !d.sleep() {
				return
			}
			continue
		}

		var env resultEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			d.logger.Warn().Err(err).Str("queue", d.queueName).Msg("dispatch: demux dropping undecodable result")
			continue
		}
		d.route(env)
	}
}

func (d *demux) route(env resultEnvelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.waiters[env.ID]; ok {
		delete(d.waiters, env.ID)
		ch <- env
		return
	}
	d.unclaimed[env.ID] = heldResult{env: env, at: time.Now()}
}

// prune evicts unclaimed results older than the retention window.
func (d *demux) prune() {
	cutoff := time.Now().Add(-d.retain)
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, held := range d.unclaimed {
		if held.at.Before(cutoff) {
			delete(d.unclaimed, id)
			d.logger.Warn().Str("job_id", id).Msg("dispatch: evicting unclaimed result")
		}
	}
}

// sleep waits one poll interval; it reports false when shutdown was requested.
func (d *demux) sleep() bool {
	timer := time.NewTimer(d.interval)
	defer timer.Stop()
	select {
	case <-d.done:
		return false
	case <-timer.C:
		return true
	}
}
