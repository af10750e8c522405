package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"charchat/internal/domain"
)

func TestTTSModel_ReturnsVoiceBoundToRoom(t *testing.T) {
	rooms := &stubRooms{detail: &domain.RoomDetail{
		Room:      domain.ChatRoom{ChatID: "room-1"},
		Character: domain.Character{Name: "Aria"},
	}}
	catalog := &stubCatalog{voice: &domain.Voice{VoiceIdx: "v1", Path: "/models/aria.pth", Speaker: "aria"}}
	app := &App{Log: zerolog.Nop(), Rooms: rooms, Catalog: catalog}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/ttsmodel/room-1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("room_id", "room-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	app.TTSModel(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status: got %d, want 200, body %s", rr.Code, rr.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["character_name"] != "Aria" || body["voice_path"] != "/models/aria.pth" || body["voice_speaker"] != "aria" {
		t.Fatalf("unexpected payload: %#v", body)
	}
}

func TestVoicesList_OmitsModelPaths(t *testing.T) {
	catalog := &stubCatalog{voices: []domain.Voice{
		{VoiceIdx: "v1", Path: "/models/aria.pth", Speaker: "aria"},
	}}
	app := &App{Log: zerolog.Nop(), Catalog: catalog}

	rr := httptest.NewRecorder()
	app.VoicesList(rr, httptest.NewRequest("GET", "/api/voices/", nil))

	if rr.Code != 200 {
		t.Fatalf("unexpected status: got %d, want 200", rr.Code)
	}
	var items []map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0]["voice_speaker"] != "aria" {
		t.Fatalf("unexpected voices: %#v", items)
	}
	if _, ok := items[0]["voice_path"]; ok {
		t.Fatal("voice catalog should not expose model paths")
	}
}

type stubCatalog struct {
	voices []domain.Voice
	voice  *domain.Voice
	fields []domain.Field
	err    error
}

func (s *stubCatalog) Voices(context.Context) ([]domain.Voice, error) {
	return s.voices, s.err
}

func (s *stubCatalog) VoiceForRoom(context.Context, string) (*domain.Voice, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.voice == nil {
		return nil, domain.ErrNotFound
	}
	return s.voice, nil
}

func (s *stubCatalog) Fields(context.Context) ([]domain.Field, error) {
	return s.fields, s.err
}
