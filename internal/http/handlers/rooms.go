package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"charchat/internal/domain"
)

type createRoomRequest struct {
	UserIdx          int     `json:"user_idx"`
	CharacterID      int     `json:"character_id"`
	UserUniqueName   *string `json:"user_unique_name"`
	UserIntroduction *string `json:"user_introduction"`
}

type roomResponse struct {
	RoomID           string    `json:"room_id"`
	UserIdx          int       `json:"user_idx"`
	CharacterIdx     int       `json:"character_idx"`
	CharPromptID     int       `json:"char_prompt_id"`
	CreatedAt        time.Time `json:"created_at"`
	UserUniqueName   *string   `json:"user_unique_name"`
	UserIntroduction *string   `json:"user_introduction"`
}

// RoomsCreate binds a new room to the character's latest prompt sheet, so
// later edits to the character never change existing conversations.
func (a *App) RoomsCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !a.decode(r, &req) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	detail, err := a.Characters.GetDetail(r.Context(), req.CharacterID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "character not found")
			return
		}
		a.Log.Error().Err(err).Msg("load character for room")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create chat room")
		return
	}

	room := domain.ChatRoom{
		ChatID:           uuid.NewString(),
		UserIdx:          req.UserIdx,
		PromptID:         detail.Prompt.PromptID,
		Favorability:     0,
		UserUniqueName:   req.UserUniqueName,
		UserIntroduction: req.UserIntroduction,
	}
	if err := a.Rooms.Create(r.Context(), &room); err != nil {
		a.Log.Error().Err(err).Msg("create chat room")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create chat room")
		return
	}
	a.json(w, http.StatusCreated, roomResponse{
		RoomID:           room.ChatID,
		UserIdx:          room.UserIdx,
		CharacterIdx:     detail.CharIdx,
		CharPromptID:     room.PromptID,
		CreatedAt:        room.CreatedAt,
		UserUniqueName:   room.UserUniqueName,
		UserIntroduction: room.UserIntroduction,
	})
}

func (a *App) RoomsList(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.Rooms.List(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("list chat rooms")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list chat rooms")
		return
	}
	out := make([]map[string]any, 0, len(rooms))
	for _, d := range rooms {
		out = append(out, map[string]any{
			"room_id":                d.Room.ChatID,
			"character_name":         d.Character.Name,
			"char_description":       d.Character.Description,
			"character_appearance":   d.Prompt.Appearance,
			"character_personality":  d.Prompt.Personality,
			"character_background":   d.Prompt.Background,
			"character_speech_style": d.Prompt.SpeechStyle,
			"room_created_at":        d.Room.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) RoomCharacter(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	detail, err := a.Rooms.GetDetail(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "chat room not found")
			return
		}
		a.Log.Error().Err(err).Msg("load room character")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load room character")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"room_id":                detail.Room.ChatID,
		"favorability":           detail.Room.Favorability,
		"user_unique_name":       detail.Room.UserUniqueName,
		"user_introduction":      detail.Room.UserIntroduction,
		"char_idx":               detail.Character.CharIdx,
		"character_name":         detail.Character.Name,
		"char_description":       detail.Character.Description,
		"nicknames":              detail.Character.Nicknames,
		"character_appearance":   detail.Prompt.Appearance,
		"character_personality":  detail.Prompt.Personality,
		"character_background":   detail.Prompt.Background,
		"character_speech_style": detail.Prompt.SpeechStyle,
	})
}
