package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"charchat/internal/dispatch"
	"charchat/internal/domain"
	"charchat/internal/llm"
)

// CharacterStore is the character persistence surface the handlers need.
type CharacterStore interface {
	Create(ctx context.Context, ch *domain.Character, prompt *domain.CharacterPrompt) error
	ListActive(ctx context.Context) ([]domain.CharacterDetail, error)
	GetDetail(ctx context.Context, charIdx int) (*domain.CharacterDetail, error)
	Deactivate(ctx context.Context, charIdx int) error
}

// RoomStore persists chat rooms.
type RoomStore interface {
	Create(ctx context.Context, room *domain.ChatRoom) error
	List(ctx context.Context) ([]domain.RoomDetail, error)
	GetDetail(ctx context.Context, chatID string) (*domain.RoomDetail, error)
	UpdateFavorability(ctx context.Context, chatID string, favorability int) error
}

// ChatLogStore persists chat transcripts.
type ChatLogStore interface {
	Append(ctx context.Context, log *domain.ChatLog) error
	ListByRoom(ctx context.Context, chatID string) ([]domain.ChatLog, error)
	Recent(ctx context.Context, chatID string, limit int) ([]domain.ChatLog, error)
}

// CatalogStore serves the voice and field catalogs.
type CatalogStore interface {
	Voices(ctx context.Context) ([]domain.Voice, error)
	VoiceForRoom(ctx context.Context, chatID string) (*domain.Voice, error)
	Fields(ctx context.Context) ([]domain.Field, error)
}

// Generator submits generation jobs and waits for their results.
type Generator interface {
	GenerateImage(ctx context.Context, req dispatch.ImageRequest) (*dispatch.ImageResult, error)
	GenerateTTS(ctx context.Context, req dispatch.TTSRequest) (*dispatch.TTSResult, error)
}

// App wires the HTTP handlers to their collaborators.
type App struct {
	Log        zerolog.Logger
	Characters CharacterStore
	Rooms      RoomStore
	ChatLogs   ChatLogStore
	Catalog    CatalogStore
	LLM        llm.ChatService
	Gen        Generator
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"code": code, "message": message})
}

func (a *App) decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}
