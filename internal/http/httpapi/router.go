package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"charchat/internal/http/handlers"
	"charchat/internal/infra"
	"charchat/internal/middleware"
)

func NewRouter(cfg *infra.Config, log infra.Logger, app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(log),
		chimw.Recoverer,
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/characters", func(r chi.Router) {
			r.Post("/", app.CharactersCreate)
			r.Get("/", app.CharactersList)
			r.Delete("/{char_idx}", app.CharactersDelete)
		})
		r.Route("/chat-room", func(r chi.Router) {
			r.Post("/", app.RoomsCreate)
			r.Get("/", app.RoomsList)
			r.Get("/{room_id}/character", app.RoomCharacter)
		})
		r.Route("/chat", func(r chi.Router) {
			r.Get("/{room_id}", app.ChatLogsList)
			r.Post("/{room_id}", app.ChatSend)
		})
		r.Get("/voices/", app.VoicesList)
		r.Get("/fields/", app.FieldsList)
		r.Get("/ttsmodel/{room_id}", app.TTSModel)
	})

	// Generation endpoints hold a connection open for the full wait budget,
	// so they get their own rate limit bucket.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Post("/generate-image/", app.ImageGenerate)
		r.Post("/generate-tts/", app.TTSGenerate)
	})

	return r
}
