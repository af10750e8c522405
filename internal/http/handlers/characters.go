package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"charchat/internal/domain"
)

type createCharacterRequest struct {
	UserIdx              string            `json:"user_idx"`
	FieldIdx             string            `json:"field_idx"`
	VoiceIdx             string            `json:"voice_idx"`
	Name                 string            `json:"char_name"`
	Description          string            `json:"char_description"`
	Nicknames            map[string]string `json:"nicknames"`
	CharacterAppearance  string            `json:"character_appearance"`
	CharacterPersonality string            `json:"character_personality"`
	CharacterBackground  string            `json:"character_background"`
	CharacterSpeechStyle string            `json:"character_speech_style"`
	ExampleDialogues     []json.RawMessage `json:"example_dialogues"`
}

type characterResponse struct {
	CharIdx              int               `json:"char_idx"`
	FieldIdx             string            `json:"field_idx"`
	VoiceIdx             string            `json:"voice_idx"`
	Name                 string            `json:"char_name"`
	Description          string            `json:"char_description"`
	Nicknames            map[string]string `json:"nicknames"`
	Follows              int               `json:"follows"`
	CreatedAt            time.Time         `json:"created_at"`
	CharacterAppearance  string            `json:"character_appearance"`
	CharacterPersonality string            `json:"character_personality"`
	CharacterBackground  string            `json:"character_background"`
	CharacterSpeechStyle string            `json:"character_speech_style"`
	ExampleDialogues     []string          `json:"example_dialogues"`
}

func toCharacterResponse(d domain.CharacterDetail) characterResponse {
	return characterResponse{
		CharIdx:              d.CharIdx,
		FieldIdx:             d.FieldIdx,
		VoiceIdx:             d.VoiceIdx,
		Name:                 d.Name,
		Description:          d.Description,
		Nicknames:            d.Nicknames,
		Follows:              d.Follows,
		CreatedAt:            d.CreatedAt,
		CharacterAppearance:  d.Prompt.Appearance,
		CharacterPersonality: d.Prompt.Personality,
		CharacterBackground:  d.Prompt.Background,
		CharacterSpeechStyle: d.Prompt.SpeechStyle,
		ExampleDialogues:     d.Prompt.ExampleDialogues,
	}
}

func (a *App) CharactersCreate(w http.ResponseWriter, r *http.Request) {
	var req createCharacterRequest
	if !a.decode(r, &req) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Name == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "char_name required")
		return
	}
	nicknames := req.Nicknames
	if len(nicknames) == 0 {
		nicknames = domain.DefaultNicknames()
	}
	dialogues := make([]string, 0, len(req.ExampleDialogues))
	for _, d := range req.ExampleDialogues {
		dialogues = append(dialogues, string(d))
	}

	ch := domain.Character{
		UserIdx:     req.UserIdx,
		FieldIdx:    req.FieldIdx,
		VoiceIdx:    req.VoiceIdx,
		Name:        req.Name,
		Description: req.Description,
		Nicknames:   nicknames,
		IsActive:    true,
	}
	prompt := domain.CharacterPrompt{
		Appearance:       req.CharacterAppearance,
		Personality:      req.CharacterPersonality,
		Background:       req.CharacterBackground,
		SpeechStyle:      req.CharacterSpeechStyle,
		ExampleDialogues: dialogues,
	}
	if err := a.Characters.Create(r.Context(), &ch, &prompt); err != nil {
		a.Log.Error().Err(err).Msg("create character")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create character")
		return
	}
	a.json(w, http.StatusCreated, toCharacterResponse(domain.CharacterDetail{Character: ch, Prompt: prompt}))
}

func (a *App) CharactersList(w http.ResponseWriter, r *http.Request) {
	details, err := a.Characters.ListActive(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("list characters")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list characters")
		return
	}
	out := make([]characterResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toCharacterResponse(d))
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) CharactersDelete(w http.ResponseWriter, r *http.Request) {
	charIdx, err := strconv.Atoi(chi.URLParam(r, "char_idx"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "char_idx must be an integer")
		return
	}
	if err := a.Characters.Deactivate(r.Context(), charIdx); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "character not found")
			return
		}
		a.Log.Error().Err(err).Msg("deactivate character")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete character")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "character deactivated"})
}
