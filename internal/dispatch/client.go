// Package dispatch implements the image/TTS job dispatch core: a synchronous
// facade that publishes a job onto a durable request queue and waits for the
// result carrying the same correlation id on a response queue.
//
// Two correlation strategies are provided. ModePoll reproduces the historical
// behavior: each call polls the shared response queue and consumes-and-drops
// any message whose id belongs to another job, so concurrent callers compete
// for results and can starve each other. ModeDemux runs one consumer per
// response queue that routes every message to the waiter registered for its
// id, which removes that hazard.
package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"charchat/internal/queue"
	"charchat/internal/storage"
)

// Mode selects the correlation strategy.
type Mode string

const (
	ModePoll  Mode = "poll"
	ModeDemux Mode = "demux"
)

const (
	defaultMaxWait      = 600 * time.Second
	defaultPollInterval = time.Second
)

// Config configures a dispatch Client. Queue names, wait budget and poll
// interval are all caller-supplied; nothing is read from the environment.
type Config struct {
	Connector queue.Connector

	ImageRequestQueue  string
	ImageResponseQueue string
	TTSRequestQueue    string
	TTSResponseQueue   string

	// MaxWait and PollInterval define the wait budget. The budget is spent in
	// discrete poll iterations (MaxWait / PollInterval), matching the original
	// iteration-counted loop rather than a wall-clock deadline.
	MaxWait      time.Duration
	PollInterval time.Duration

	Mode   Mode
	Logger zerolog.Logger

	// Store receives TTS audio artifacts, keyed by job id.
	Store *storage.FileStore

	// OnCorrelationMiss is invoked whenever a polling correlator consumes and
	// drops a message addressed to another job.
	OnCorrelationMiss func(wantID, gotID string)
}

// Client is the synchronous dispatch facade.
type Client struct {
	cfg        Config
	iterations int
	misses     atomic.Uint64

	imageOnce  sync.Once
	ttsOnce    sync.Once
	imageDemux *demux
	ttsDemux   *demux
}

// New validates the configuration and builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Connector == nil {
		return nil, fmt.Errorf("dispatch: connector is required")
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Mode == "" {
		cfg.Mode = ModePoll
	}
	if cfg.Mode != ModePoll && cfg.Mode != ModeDemux {
		return nil, fmt.Errorf("dispatch: unknown mode %q", cfg.Mode)
	}
	if cfg.ImageRequestQueue == "" {
		cfg.ImageRequestQueue = "image_generation_requests"
	}
	if cfg.ImageResponseQueue == "" {
		cfg.ImageResponseQueue = "image_generation_responses"
	}
	if cfg.TTSRequestQueue == "" {
		cfg.TTSRequestQueue = "tts_generation_requests"
	}
	if cfg.TTSResponseQueue == "" {
		cfg.TTSResponseQueue = "tts_generation_responses"
	}

	iterations := int(cfg.MaxWait / cfg.PollInterval)
	if iterations < 1 {
		iterations = 1
	}
	return &Client{cfg: cfg, iterations: iterations}, nil
}

// CorrelationMisses reports how many foreign results polling correlators have
// consumed and dropped since the client was created.
func (c *Client) CorrelationMisses() uint64 { return c.misses.Load() }

// Close stops any demux consumers. Safe to call regardless of mode.
func (c *Client) Close() {
	if c.imageDemux != nil {
		c.imageDemux.stop()
	}
	if c.ttsDemux != nil {
		c.ttsDemux.stop()
	}
}

// GenerateImage publishes an image job and blocks until its result arrives or
// the wait budget is spent.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	req.applyDefaults()
	env, err := c.roundTrip(ctx, c.cfg.ImageRequestQueue, c.cfg.ImageResponseQueue, c.imageRouter,
		func(id string) any { return imageJob{ID: id, ImageRequest: req} })
	if err != nil {
		return nil, err
	}
	if env.failed() {
		return nil, &UpstreamError{JobID: env.ID, Message: env.Error}
	}
	data, err := base64.StdEncoding.DecodeString(env.Image)
	if err != nil {
		return nil, fmt.Errorf("dispatch: decode image payload for job %s: %w", env.ID, err)
	}
	return &ImageResult{JobID: env.ID, Data: data}, nil
}

// GenerateTTS publishes a TTS job, blocks for its result, and persists the
// decoded audio under a storage key containing the job id.
func (c *Client) GenerateTTS(ctx context.Context, req TTSRequest) (*TTSResult, error) {
	req.applyDefaults()
	env, err := c.roundTrip(ctx, c.cfg.TTSRequestQueue, c.cfg.TTSResponseQueue, c.ttsRouter,
		func(id string) any { return ttsJob{ID: id, TTSRequest: req} })
	if err != nil {
		return nil, err
	}
	if env.failed() {
		return nil, &UpstreamError{JobID: env.ID, Message: env.Error}
	}
	audio, err := base64.StdEncoding.DecodeString(env.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("dispatch: decode audio payload for job %s: %w", env.ID, err)
	}
	result := &TTSResult{JobID: env.ID, Audio: audio}
	if c.cfg.Store != nil {
		key := fmt.Sprintf("tts/%s.wav", env.ID)
		if _, err := c.cfg.Store.Write(ctx, key, audio); err != nil {
			return nil, fmt.Errorf("dispatch: persist audio for job %s: %w", env.ID, err)
		}
		path, err := c.cfg.Store.Path(key)
		if err != nil {
			return nil, err
		}
		result.Path = path
	}
	return result, nil
}

func (c *Client) imageRouter() *demux {
	c.imageOnce.Do(func() {
		c.imageDemux = newDemux(c.cfg.Connector, c.cfg.ImageResponseQueue, c.cfg.PollInterval, c.cfg.MaxWait, c.cfg.Logger)
		c.imageDemux.start()
	})
	return c.imageDemux
}

func (c *Client) ttsRouter() *demux {
	c.ttsOnce.Do(func() {
		c.ttsDemux = newDemux(c.cfg.Connector, c.cfg.TTSResponseQueue, c.cfg.PollInterval, c.cfg.MaxWait, c.cfg.Logger)
		c.ttsDemux.start()
	})
	return c.ttsDemux
}

// roundTrip runs one dispatch call end to end: SUBMITTED -> WAITING ->
// matched or timed out. The broker connection is acquired fresh per call and
// released on every exit path.
func (c *Client) roundTrip(ctx context.Context, reqQueue, respQueue string, router func() *demux, buildJob func(id string) any) (resultEnvelope, error) {
	jobID := uuid.NewString()

	var waiter <-chan resultEnvelope
	if c.cfg.Mode == ModeDemux {
		d := router()
		waiter = d.register(jobID)
		defer d.cancel(jobID)
	}

	br, err := c.cfg.Connector.Connect(ctx)
	if err != nil {
		return resultEnvelope{}, &ConnectionError{Err: err}
	}
	defer br.Close()

	for _, q := range []string{reqQueue, respQueue} {
		if err := br.Declare(ctx, q); err != nil {
			return resultEnvelope{}, &ConnectionError{Err: err}
		}
	}

	body, err := json.Marshal(buildJob(jobID))
	if err != nil {
		return resultEnvelope{}, fmt.Errorf("dispatch: encode job %s: %w", jobID, err)
	}
	if err := br.Publish(ctx, reqQueue, body); err != nil {
		return resultEnvelope{}, &TransportError{Op: "publish", Err: err}
	}
	c.cfg.Logger.Info().Str("job_id", jobID).Str("queue", reqQueue).Msg("dispatch: job submitted")

	if c.cfg.Mode == ModeDemux {
		return c.awaitDemux(ctx, jobID, waiter)
	}
	return c.awaitPoll(ctx, br, respQueue, jobID)
}

// awaitPoll is the iteration-counted polling correlator. Messages whose id
// does not match are consumed and dropped; that loses results belonging to
// concurrent callers sharing the response queue.
func (c *Client) awaitPoll(ctx context.Context, br queue.Broker, respQueue, jobID string) (resultEnvelope, error) {
	for i := 0; i < c.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return resultEnvelope{}, err
		}
		body, ok, err := br.Get(ctx, respQueue)
		if err != nil {
			return resultEnvelope{}, &TransportError{Op: "fetch", Err: err}
		}
		if ok {
			var env resultEnvelope
			if err := json.Unmarshal(body, &env); err != nil {
				c.cfg.Logger.Warn().Err(err).Str("queue", respQueue).Msg("dispatch: dropping undecodable result")
				continue
			}
			if env.ID == jobID {
				return env, nil
			}
			c.recordMiss(jobID, env.ID)
			continue
		}
		select {
		case <-ctx.Done():
			return resultEnvelope{}, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
	return resultEnvelope{}, fmt.Errorf("job %s: %w", jobID, ErrTimeout)
}

func (c *Client) awaitDemux(ctx context.Context, jobID string, waiter <-chan resultEnvelope) (resultEnvelope, error) {
	timer := time.NewTimer(c.cfg.MaxWait)
	defer timer.Stop()
	select {
	case env := <-waiter:
		return env, nil
	case <-timer.C:
		return resultEnvelope{}, fmt.Errorf("job %s: %w", jobID, ErrTimeout)
	case <-ctx.Done():
		return resultEnvelope{}, ctx.Err()
	}
}

func (c *Client) recordMiss(wantID, gotID string) {
	c.misses.Add(1)
	c.cfg.Logger.Warn().
		Str("want_id", wantID).
		Str("got_id", gotID).
		Msg("dispatch: discarded result for another job")
	if c.cfg.OnCorrelationMiss != nil {
		c.cfg.OnCorrelationMiss(wantID, gotID)
	}
}
