package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"charchat/internal/domain"
)

func (a *App) VoicesList(w http.ResponseWriter, r *http.Request) {
	voices, err := a.Catalog.Voices(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("list voices")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load voices")
		return
	}
	out := make([]map[string]string, 0, len(voices))
	for _, v := range voices {
		out = append(out, map[string]string{
			"voice_idx":     v.VoiceIdx,
			"voice_speaker": v.Speaker,
		})
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) FieldsList(w http.ResponseWriter, r *http.Request) {
	fields, err := a.Catalog.Fields(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("list fields")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load fields")
		return
	}
	out := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]any{
			"field_idx":      f.FieldIdx,
			"field_category": f.Category,
		})
	}
	a.json(w, http.StatusOK, out)
}

// TTSModel returns the voice model bound to a room's character.
func (a *App) TTSModel(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	detail, err := a.Rooms.GetDetail(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "chat room not found")
			return
		}
		a.Log.Error().Err(err).Msg("load room for tts model")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load tts model")
		return
	}
	voice, err := a.Catalog.VoiceForRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "voice model not found")
			return
		}
		a.Log.Error().Err(err).Msg("load voice for room")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load tts model")
		return
	}
	a.json(w, http.StatusOK, map[string]string{
		"character_name": detail.Character.Name,
		"voice_path":     voice.Path,
		"voice_speaker":  voice.Speaker,
	})
}
