package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"charchat/internal/domain"
	"charchat/internal/llm"
)

const chatHistoryDepth = 10

type sendMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func (a *App) ChatLogsList(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	logs, err := a.ChatLogs.ListByRoom(r.Context(), roomID)
	if err != nil {
		a.Log.Error().Err(err).Msg("list chat logs")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load chat logs")
		return
	}
	out := make([]map[string]any, 0, len(logs))
	for _, l := range logs {
		out = append(out, map[string]any{
			"session_id": l.SessionID,
			"log":        l.Log,
			"start_time": l.StartTime,
			"end_time":   l.EndTime,
		})
	}
	a.json(w, http.StatusOK, out)
}

// ChatSend stores the user's line, asks the dialogue service for the
// character's reply, persists it and returns both sides of the exchange.
func (a *App) ChatSend(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	var req sendMessageRequest
	if !a.decode(r, &req) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Content == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "content required")
		return
	}

	detail, err := a.Rooms.GetDetail(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "chat room not found")
			return
		}
		a.Log.Error().Err(err).Msg("load chat room")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load chat room")
		return
	}

	now := time.Now()
	userLine := domain.ChatLog{
		SessionID: uuid.NewString(),
		ChatID:    roomID,
		Log:       domain.FormatLogLine(now, "user", req.Content) + "\n",
		StartTime: now,
		EndTime:   now,
	}
	if err := a.ChatLogs.Append(r.Context(), &userLine); err != nil {
		a.Log.Error().Err(err).Msg("store user message")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store message")
		return
	}

	recent, err := a.ChatLogs.Recent(r.Context(), roomID, chatHistoryDepth)
	if err != nil {
		a.Log.Error().Err(err).Msg("load chat history")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load chat history")
		return
	}

	resp, err := a.LLM.Generate(r.Context(), llm.ChatRequest{
		UserMessage:          req.Content,
		CharacterName:        detail.Character.Name,
		Favorability:         detail.Room.Favorability,
		CharacterAppearance:  detail.Prompt.Appearance,
		CharacterPersonality: detail.Prompt.Personality,
		CharacterBackground:  detail.Prompt.Background,
		CharacterSpeechStyle: detail.Prompt.SpeechStyle,
		ExampleDialogues:     detail.Prompt.ExampleDialogues,
		ChatHistory:          domain.TranscriptHistory(recent),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.error(w, http.StatusGatewayTimeout, "gateway_timeout", "dialogue service timed out")
			return
		}
		a.Log.Error().Err(err).Msg("dialogue generation")
		a.error(w, http.StatusInternalServerError, "internal", "dialogue generation failed")
		return
	}

	if err := a.Rooms.UpdateFavorability(r.Context(), roomID, resp.Favorability); err != nil {
		a.Log.Error().Err(err).Msg("update favorability")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update chat room")
		return
	}

	botAt := time.Now()
	botLine := domain.ChatLog{
		SessionID: uuid.NewString(),
		ChatID:    roomID,
		Log:       domain.FormatLogLine(botAt, "chatbot", resp.Text),
		StartTime: botAt,
		EndTime:   botAt,
	}
	if err := a.ChatLogs.Append(r.Context(), &botLine); err != nil {
		a.Log.Error().Err(err).Msg("store bot message")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store message")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"user":                 req.Content,
		"bot":                  resp.Text,
		"emotion":              resp.Emotion,
		"updated_favorability": resp.Favorability,
	})
}
