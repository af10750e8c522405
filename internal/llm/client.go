// Package llm talks to the external dialogue-generation service. The service
// owns the prompt/response contract; this client only moves JSON.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatService is the dialogue-generation contract consumed by the HTTP layer.
type ChatService interface {
	Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest mirrors the payload the generation service expects.
type ChatRequest struct {
	UserMessage          string   `json:"user_message"`
	CharacterName        string   `json:"character_name"`
	Favorability         int      `json:"favorability"`
	CharacterAppearance  string   `json:"character_appearance"`
	CharacterPersonality string   `json:"character_personality"`
	CharacterBackground  string   `json:"character_background"`
	CharacterSpeechStyle string   `json:"character_speech_style"`
	ExampleDialogues     []string `json:"example_dialogues,omitempty"`
	ChatHistory          string   `json:"chat_history"`
}

// ChatResponse is the generated reply plus the updated character state.
type ChatResponse struct {
	Text         string `json:"text"`
	Emotion      string `json:"emotion"`
	Favorability int    `json:"favorability"`
}

// Client is an HTTP client for the generation service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Generate posts the chat context and returns the generated reply.
func (c *Client) Generate(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/generate", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("llm: status %d: %s", resp.StatusCode, string(body))
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	return &out, nil
}

var _ ChatService = (*Client)(nil)
