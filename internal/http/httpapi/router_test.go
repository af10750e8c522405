package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"charchat/internal/http/handlers"
	"charchat/internal/infra"
)

func TestRouterServesHealthz(t *testing.T) {
	cfg := &infra.Config{RateLimitPerMin: 5}
	router := NewRouter(cfg, zerolog.Nop(), &handlers.App{Log: zerolog.Nop()})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/healthz", nil))

	if rr.Code != 200 {
		t.Fatalf("unexpected status: got %d, want 200", rr.Code)
	}
}

func TestRouterRejectsUnknownRoute(t *testing.T) {
	cfg := &infra.Config{RateLimitPerMin: 5}
	router := NewRouter(cfg, zerolog.Nop(), &handlers.App{Log: zerolog.Nop()})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/nope", nil))

	if rr.Code != 404 {
		t.Fatalf("unexpected status: got %d, want 404", rr.Code)
	}
}
