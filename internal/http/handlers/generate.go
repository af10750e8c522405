package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"

	"charchat/internal/dispatch"
)

// ImageGenerate publishes an image job and blocks until the worker answers
// or the wait budget runs out.
func (a *App) ImageGenerate(w http.ResponseWriter, r *http.Request) {
	var req dispatch.ImageRequest
	if !a.decode(r, &req) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}

	res, err := a.Gen.GenerateImage(r.Context(), req)
	if err != nil {
		a.generateError(w, err, "image generation")
		return
	}
	a.json(w, http.StatusOK, map[string]string{
		"image": base64.StdEncoding.EncodeToString(res.Data),
	})
}

// TTSGenerate publishes a speech job and streams the synthesized audio back
// as a wav attachment.
func (a *App) TTSGenerate(w http.ResponseWriter, r *http.Request) {
	var req dispatch.TTSRequest
	if !a.decode(r, &req) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Text == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "text required")
		return
	}

	res, err := a.Gen.GenerateTTS(r.Context(), req)
	if err != nil {
		a.generateError(w, err, "tts generation")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="output_audio.wav"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
}

func (a *App) generateError(w http.ResponseWriter, err error, op string) {
	var upstream *dispatch.UpstreamError
	switch {
	case errors.Is(err, dispatch.ErrTimeout):
		a.error(w, http.StatusGatewayTimeout, "gateway_timeout", "generation timed out")
	case errors.As(err, &upstream):
		a.error(w, http.StatusInternalServerError, "worker_error", upstream.Message)
	default:
		a.Log.Error().Err(err).Msg(op)
		a.error(w, http.StatusInternalServerError, "internal", "generation failed")
	}
}
