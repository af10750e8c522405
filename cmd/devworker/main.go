// devworker is a loopback worker for local development. It consumes the
// generation request queues and publishes synthetic results, so the full
// dispatch path can be exercised without the GPU workers.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"charchat/internal/infra"
	"charchat/internal/queue"
)

const idlePause = 500 * time.Millisecond

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "devworker").Logger()

	var connector queue.Connector
	switch cfg.QueueDriver {
	case "redis":
		connector = queue.NewRedisConnector(queue.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		connector = queue.NewAMQPConnector(queue.AMQPConfig{
			Host:     cfg.BrokerHost,
			Port:     cfg.BrokerPort,
			User:     cfg.BrokerUser,
			Password: cfg.BrokerPassword,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := &worker{cfg: cfg, log: logger}
	for ctx.Err() == nil {
		if err := w.run(ctx, connector); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("worker loop failed, reconnecting")
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
	}
	logger.Info().Msg("devworker stopped")
}

type worker struct {
	cfg *infra.Config
	log zerolog.Logger
}

func (w *worker) run(ctx context.Context, connector queue.Connector) error {
	br, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer br.Close()

	queues := []string{
		w.cfg.ImageRequestQueue, w.cfg.ImageResponseQueue,
		w.cfg.TTSRequestQueue, w.cfg.TTSResponseQueue,
	}
	for _, q := range queues {
		if err := br.Declare(ctx, q); err != nil {
			return err
		}
	}
	w.log.Info().Msg("devworker consuming request queues")

	for ctx.Err() == nil {
		busy := false

		if body, ok, err := br.Get(ctx, w.cfg.ImageRequestQueue); err != nil {
			return err
		} else if ok {
			busy = true
			w.publish(ctx, br, w.cfg.ImageResponseQueue, w.imageResult(body))
		}

		if body, ok, err := br.Get(ctx, w.cfg.TTSRequestQueue); err != nil {
			return err
		} else if ok {
			busy = true
			w.publish(ctx, br, w.cfg.TTSResponseQueue, w.ttsResult(body))
		}

		if !busy {
			select {
			case <-ctx.Done():
			case <-time.After(idlePause):
			}
		}
	}
	return ctx.Err()
}

func (w *worker) publish(ctx context.Context, br queue.Broker, q string, result map[string]string) {
	if result == nil {
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		w.log.Error().Err(err).Msg("encode result")
		return
	}
	if err := br.Publish(ctx, q, body); err != nil {
		w.log.Error().Err(err).Str("queue", q).Msg("publish result")
		return
	}
	w.log.Info().Str("job_id", result["id"]).Str("queue", q).Msg("result published")
}

func (w *worker) imageResult(body []byte) map[string]string {
	var job struct {
		ID     string `json:"id"`
		Prompt string `json:"prompt"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	if err := json.Unmarshal(body, &job); err != nil || job.ID == "" {
		w.log.Warn().Err(err).Msg("dropping undecodable image job")
		return nil
	}
	if job.Prompt == "" {
		return map[string]string{"id": job.ID, "status": "failure", "error": "prompt is empty"}
	}
	return map[string]string{
		"id":     job.ID,
		"status": "success",
		"image":  base64.StdEncoding.EncodeToString(placeholderPNG(job.Prompt, job.Width, job.Height)),
	}
}

func (w *worker) ttsResult(body []byte) map[string]string {
	var job struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &job); err != nil || job.ID == "" {
		w.log.Warn().Err(err).Msg("dropping undecodable tts job")
		return nil
	}
	if job.Text == "" {
		return map[string]string{"id": job.ID, "status": "failure", "error": "text is empty"}
	}
	return map[string]string{
		"id":           job.ID,
		"status":       "success",
		"audio_base64": base64.StdEncoding.EncodeToString(silentWAV(len(job.Text))),
	}
}

// placeholderPNG renders a solid color derived from the prompt, sized like
// the requested image.
func placeholderPNG(prompt string, width, height int) []byte {
	if width <= 0 {
		width = 512
	}
	if height <= 0 {
		height = 512
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// silentWAV builds a valid 16-bit mono PCM file with a silence length
// proportional to the text length.
func silentWAV(textLen int) []byte {
	const sampleRate = 22050
	samples := sampleRate / 10 * (1 + textLen/20)

	var buf bytes.Buffer
	dataSize := uint32(samples * 2)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
