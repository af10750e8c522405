package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charchat/internal/queue"
	"charchat/internal/storage"
)

func newTestClient(t *testing.T, mode Mode, maxWait, interval time.Duration, store *storage.FileStore) (*Client, *queue.MemoryConnector) {
	t.Helper()
	conn := queue.NewMemoryConnector()
	c, err := New(Config{
		Connector:    conn,
		MaxWait:      maxWait,
		PollInterval: interval,
		Mode:         mode,
		Logger:       zerolog.Nop(),
		Store:        store,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, conn
}

// serveNext answers the next job on reqQueue with the envelope built by
// respond, running until a request shows up or the deadline passes.
func serveNext(t *testing.T, b *queue.MemoryBroker, reqQueue, respQueue string, respond func(id string) resultEnvelope) {
	t.Helper()
	go func() {
		ctx := context.Background()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			body, ok, err := b.Get(ctx, reqQueue)
			if err != nil {
				return
			}
			if !ok {
				time.Sleep(2 * time.Millisecond)
				continue
			}
			var job struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(body, &job); err != nil {
				return
			}
			env, err := json.Marshal(respond(job.ID))
			if err != nil {
				return
			}
			_ = b.Publish(ctx, respQueue, env)
			return
		}
	}()
}

func publishResult(t *testing.T, b *queue.MemoryBroker, queueName string, env resultEnvelope) {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), queueName, body))
}

func TestGenerateImageReturnsMatchingResult(t *testing.T) {
	c, conn := newTestClient(t, ModePoll, time.Second, 10*time.Millisecond, nil)

	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	serveNext(t, conn.Broker, c.cfg.ImageRequestQueue, c.cfg.ImageResponseQueue, func(id string) resultEnvelope {
		return resultEnvelope{ID: id, Status: statusSuccess, Image: payload}
	})

	res, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a red fox"})
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), res.Data)
	assert.NotEmpty(t, res.JobID)
	assert.Zero(t, c.CorrelationMisses())
}

func TestGenerateImageAcceptsLegacyResultShape(t *testing.T) {
	c, conn := newTestClient(t, ModePoll, time.Second, 10*time.Millisecond, nil)

	payload := base64.StdEncoding.EncodeToString([]byte("legacy"))
	serveNext(t, conn.Broker, c.cfg.ImageRequestQueue, c.cfg.ImageResponseQueue, func(id string) resultEnvelope {
		// no status field, as emitted by older image workers
		return resultEnvelope{ID: id, Image: payload}
	})

	res, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy"), res.Data)
}

func TestGenerateImageAppliesRequestDefaults(t *testing.T) {
	c, conn := newTestClient(t, ModePoll, time.Second, 10*time.Millisecond, nil)

	captured := make(chan imageJob, 1)
	go func() {
		ctx := context.Background()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			body, ok, _ := conn.Broker.Get(ctx, c.cfg.ImageRequestQueue)
			if !ok {
				time.Sleep(2 * time.Millisecond)
				continue
			}
			var job imageJob
			if json.Unmarshal(body, &job) == nil {
				captured <- job
				env, _ := json.Marshal(resultEnvelope{ID: job.ID, Status: statusSuccess, Image: ""})
				_ = conn.Broker.Publish(ctx, c.cfg.ImageResponseQueue, env)
			}
			return
		}
	}()

	_, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "castle"})
	require.NoError(t, err)

	job := <-captured
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "castle", job.Prompt)
	assert.Equal(t, 512, job.Width)
	assert.Equal(t, 512, job.Height)
	assert.Equal(t, 12.0, job.GuidanceScale)
	assert.Equal(t, 60, job.NumInferenceSteps)
	assert.Contains(t, job.NegativePrompt, "lowres")
}

// Timeout after the iteration budget, within one poll interval of tolerance.
func TestGenerateImageTimesOutAfterBudget(t *testing.T) {
	interval := 50 * time.Millisecond
	c, _ := newTestClient(t, ModePoll, 2*interval, interval, nil)

	start := time.Now()
	_, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "never answered", Width: 512, Height: 512})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 2*interval)
	assert.Less(t, elapsed, 5*interval)
}

func TestUpstreamFailureSurfacesWorkerError(t *testing.T) {
	c, conn := newTestClient(t, ModePoll, time.Second, 10*time.Millisecond, nil)

	serveNext(t, conn.Broker, c.cfg.TTSRequestQueue, c.cfg.TTSResponseQueue, func(id string) resultEnvelope {
		return resultEnvelope{ID: id, Status: statusFailure, Error: "speaker model not loaded"}
	})

	_, err := c.GenerateTTS(context.Background(), TTSRequest{Text: "hi", Language: "en"})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "speaker model not loaded", upstream.Message)
	assert.Equal(t, "speaker model not loaded", err.Error())
}

func TestGenerateTTSPersistsAudioKeyedByJobID(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	c, conn := newTestClient(t, ModePoll, time.Second, 10*time.Millisecond, store)

	wav := []byte("RIFF....WAVEfmt hello")
	encoded := base64.StdEncoding.EncodeToString(wav)
	serveNext(t, conn.Broker, c.cfg.TTSRequestQueue, c.cfg.TTSResponseQueue, func(id string) resultEnvelope {
		return resultEnvelope{ID: id, Status: statusSuccess, AudioBase64: encoded}
	})

	res, err := c.GenerateTTS(context.Background(), TTSRequest{Text: "hello", Speaker: "paimon", Language: "en", Speed: 1.0})
	require.NoError(t, err)
	assert.Equal(t, wav, res.Audio)
	require.True(t, strings.Contains(res.Path, res.JobID), "artifact path %q must contain job id %q", res.Path, res.JobID)

	onDisk, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, wav, onDisk)
}

// The polling correlator consumes and drops results addressed to other jobs:
// job A's loop eats job B's result, and B subsequently times out even though
// its worker succeeded.
func TestPollCorrelatorStarvesConcurrentJob(t *testing.T) {
	c, conn := newTestClient(t, ModePoll, 100*time.Millisecond, 10*time.Millisecond, nil)
	ctx := context.Background()
	respQueue := "starvation-responses"

	// B's result is enqueued ahead of A's.
	publishResult(t, conn.Broker, respQueue, resultEnvelope{ID: "job-B", Status: statusSuccess, Image: "Qg=="})
	publishResult(t, conn.Broker, respQueue, resultEnvelope{ID: "job-A", Status: statusSuccess, Image: "QQ=="})

	br, err := conn.Connect(ctx)
	require.NoError(t, err)

	// A polls first: it discards B's result, then finds its own.
	envA, err := c.awaitPoll(ctx, br, respQueue, "job-A")
	require.NoError(t, err)
	assert.Equal(t, "job-A", envA.ID)
	assert.Equal(t, uint64(1), c.CorrelationMisses(), "B's result must have been consumed and dropped")
	assert.Zero(t, conn.Broker.Len(respQueue), "queue must be empty after A drained it")

	// B's correlator can no longer find its result and times out.
	_, err = c.awaitPoll(ctx, br, respQueue, "job-B")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPollCorrelatorMissHookObservesDiscards(t *testing.T) {
	conn := queue.NewMemoryConnector()
	type miss struct{ want, got string }
	var (
		mu     sync.Mutex
		misses []miss
	)
	c, err := New(Config{
		Connector:    conn,
		MaxWait:      100 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		Logger:       zerolog.Nop(),
		OnCorrelationMiss: func(want, got string) {
			mu.Lock()
			misses = append(misses, miss{want, got})
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	ctx := context.Background()
	publishResult(t, conn.Broker, "q", resultEnvelope{ID: "other", Status: statusSuccess})
	publishResult(t, conn.Broker, "q", resultEnvelope{ID: "mine", Status: statusSuccess})

	br, err := conn.Connect(ctx)
	require.NoError(t, err)
	_, err = c.awaitPoll(ctx, br, "q", "mine")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, misses, 1)
	assert.Equal(t, miss{"mine", "other"}, misses[0])
}

func TestAwaitPollHonorsContextCancellation(t *testing.T) {
	c, conn := newTestClient(t, ModePoll, time.Hour, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	br, err := conn.Connect(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.awaitPoll(ctx, br, "empty", "job-X")
		done <- err
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("correlator did not stop after cancellation")
	}
}

type failingConnector struct{ err error }

func (f failingConnector) Connect(ctx context.Context) (queue.Broker, error) { return nil, f.err }

func TestConnectFailureIsConnectionError(t *testing.T) {
	c, err := New(Config{
		Connector:    failingConnector{err: errors.New("broker unreachable")},
		MaxWait:      50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = c.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
}

// In demux mode both concurrent callers get their results even when they
// arrive in the opposite order of submission.
func TestDemuxDeliversOutOfOrderResultsToBothWaiters(t *testing.T) {
	c, conn := newTestClient(t, ModeDemux, 2*time.Second, 5*time.Millisecond, nil)
	ctx := context.Background()

	// Answer the first two TTS jobs in reverse arrival order.
	go func() {
		b := conn.Broker
		var ids []string
		deadline := time.Now().Add(5 * time.Second)
		for len(ids) < 2 && time.Now().Before(deadline) {
			body, ok, _ := b.Get(ctx, c.cfg.TTSRequestQueue)
			if !ok {
				time.Sleep(2 * time.Millisecond)
				continue
			}
			var job struct {
				ID string `json:"id"`
			}
			if json.Unmarshal(body, &job) == nil {
				ids = append(ids, job.ID)
			}
		}
		if len(ids) < 2 {
			return
		}
		for i := len(ids) - 1; i >= 0; i-- {
			env, _ := json.Marshal(resultEnvelope{
				ID:          ids[i],
				Status:      statusSuccess,
				AudioBase64: base64.StdEncoding.EncodeToString([]byte(ids[i])),
			})
			_ = b.Publish(ctx, c.cfg.TTSResponseQueue, env)
		}
	}()

	var wg sync.WaitGroup
	results := make([]*TTSResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GenerateTTS(ctx, TTSRequest{Text: "hi", Language: "en"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		// Each waiter received the audio encoded from its own job id.
		assert.Equal(t, []byte(results[i].JobID), results[i].Audio)
	}
	assert.Zero(t, c.CorrelationMisses(), "demux mode must not drop results")
}

func TestDemuxRetainsEarlyResultForLateWaiter(t *testing.T) {
	conn := queue.NewMemoryConnector()
	d := newDemux(conn, "resp", 5*time.Millisecond, time.Second, zerolog.Nop())
	d.route(resultEnvelope{ID: "early", Status: statusSuccess})

	ch := d.register("early")
	select {
	case env := <-ch:
		assert.Equal(t, "early", env.ID)
	default:
		t.Fatal("retained result was not delivered to a late waiter")
	}
}

func TestNewRejectsMissingConnector(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(Config{Connector: queue.NewMemoryConnector(), Mode: Mode("fanout")})
	require.Error(t, err)
}
