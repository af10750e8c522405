package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"charchat/internal/dispatch"
)

func TestImageGenerate_ReturnsBase64Image(t *testing.T) {
	raw := []byte("png-bytes")
	gen := &stubGenerator{image: &dispatch.ImageResult{JobID: "job-1", Data: raw}}
	app := &App{Log: zerolog.Nop(), Gen: gen}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/generate-image/", strings.NewReader(`{"prompt":"castle"}`))
	app.ImageGenerate(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status: got %d, want 200, body %s", rr.Code, rr.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["image"] != base64.StdEncoding.EncodeToString(raw) {
		t.Fatalf("unexpected image payload: %q", body["image"])
	}
	if gen.imageReq.Prompt != "castle" {
		t.Fatalf("prompt not forwarded: %#v", gen.imageReq)
	}
}

func TestImageGenerate_MissingPromptRejected(t *testing.T) {
	app := &App{Log: zerolog.Nop(), Gen: &stubGenerator{}}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/generate-image/", strings.NewReader(`{}`))
	app.ImageGenerate(rr, req)

	if rr.Code != 400 {
		t.Fatalf("unexpected status: got %d, want 400", rr.Code)
	}
}

func TestImageGenerate_TimeoutMapsTo504(t *testing.T) {
	gen := &stubGenerator{imageErr: fmt.Errorf("job abc: %w", dispatch.ErrTimeout)}
	app := &App{Log: zerolog.Nop(), Gen: gen}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/generate-image/", strings.NewReader(`{"prompt":"castle"}`))
	app.ImageGenerate(rr, req)

	if rr.Code != 504 {
		t.Fatalf("unexpected status: got %d, want 504", rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["code"] != "gateway_timeout" {
		t.Fatalf("unexpected error code: %q", body["code"])
	}
}

func TestTTSGenerate_WorkerErrorTextIsReturned(t *testing.T) {
	gen := &stubGenerator{ttsErr: &dispatch.UpstreamError{JobID: "job-9", Message: "speaker model not loaded"}}
	app := &App{Log: zerolog.Nop(), Gen: gen}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/generate-tts/", strings.NewReader(`{"text":"hello"}`))
	app.TTSGenerate(rr, req)

	if rr.Code != 500 {
		t.Fatalf("unexpected status: got %d, want 500", rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["message"] != "speaker model not loaded" {
		t.Fatalf("worker error text not preserved: %q", body["message"])
	}
}

func TestTTSGenerate_StreamsWavAttachment(t *testing.T) {
	audio := []byte("RIFF....WAVE")
	gen := &stubGenerator{tts: &dispatch.TTSResult{JobID: "job-2", Audio: audio, Path: "/tmp/tts/job-2.wav"}}
	app := &App{Log: zerolog.Nop(), Gen: gen}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/generate-tts/", strings.NewReader(`{"text":"hello","language":"ko"}`))
	app.TTSGenerate(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status: got %d, want 200, body %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "audio/wav" {
		t.Fatalf("unexpected content type: %q", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", got)
	}
	if rr.Body.String() != string(audio) {
		t.Fatalf("audio bytes not streamed verbatim")
	}
}

type stubGenerator struct {
	image    *dispatch.ImageResult
	imageErr error
	imageReq dispatch.ImageRequest

	tts    *dispatch.TTSResult
	ttsErr error
	ttsReq dispatch.TTSRequest
}

func (s *stubGenerator) GenerateImage(_ context.Context, req dispatch.ImageRequest) (*dispatch.ImageResult, error) {
	s.imageReq = req
	if s.imageErr != nil {
		return nil, s.imageErr
	}
	return s.image, nil
}

func (s *stubGenerator) GenerateTTS(_ context.Context, req dispatch.TTSRequest) (*dispatch.TTSResult, error) {
	s.ttsReq = req
	if s.ttsErr != nil {
		return nil, s.ttsErr
	}
	return s.tts, nil
}
