package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/nikhilbhutani/linguakit/internal/api/handlers"
	"github.com/nikhilbhutani/linguakit/internal/api/middleware"
	"github.com/nikhilbhutani/linguakit/internal/config"
	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
)

// Deps are the services the router exposes.
type Deps struct {
	Translator handlers.Translator
	Speech     handlers.SpeechService
	// Output serves the most recent synthesized audio.
	Output http.Handler
	// Formats are the accepted upload formats, parsed from
	// cfg.STT.AcceptedFormat.
	Formats audio.Formats
	Checks  map[string]handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.Server.Origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health endpoints
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	upload := handlers.UploadPolicy{
		Enabled:  rt.cfg.UploadEnabled(),
		Formats:  rt.deps.Formats,
		MaxBytes: rt.cfg.STT.MaxUploadBytes,
	}

	translateH := handlers.NewTranslateHandler(rt.deps.Translator)
	speechH := handlers.NewSpeechHandler(rt.deps.Speech, rt.deps.Output, upload)
	ui := handlers.NewUIHandler(rt.deps.Translator, rt.deps.Speech, upload, rt.cfg.STT.CaptureSeconds)

	r.Group(func(r chi.Router) {
		if rt.cfg.Server.RateLimit > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.Server.RateLimit, time.Minute))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/languages", translateH.Languages)
			r.Post("/translate", translateH.Translate)

			r.Route("/speech", func(r chi.Router) {
				r.Post("/synthesize", speechH.Synthesize)
				r.Get("/output", speechH.Output)
				r.Post("/recognize", speechH.Recognize)
				r.Post("/record", speechH.Record)
			})
		})

		r.Get("/", ui.Index)
		r.Route("/ui", func(r chi.Router) {
			r.Post("/translate", ui.Translate)
			r.Post("/speak", ui.Speak)
			r.Post("/recognize", ui.Recognize)
			r.Post("/record", ui.Record)
		})
	})

	return r
}
