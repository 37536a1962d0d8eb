package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/mw"
)

func init() { Register(registerSession) }

func registerSession(r chi.Router, d deps.Deps) {
	send := mw.RateLimit(mw.RateLimitConfig{
		Burst:        d.SendBurst,
		RefillPerMin: d.SendRefillPerMin,
		MaxEntries:   1024,
		TrustProxy:   d.TrustProxy,
	})

	r.With(guarded(d)...).Route("/api", func(r chi.Router) {
		r.Get("/session", handlers.Session(d))
		r.With(send).Post("/submit", handlers.Submit(d))
		r.With(send).Post("/messages", handlers.Send(d))

		r.Route("/tabs", func(r chi.Router) {
			r.Get("/", handlers.Tabs(d))
			r.Post("/", handlers.NewTab(d))
			r.Get("/{id}", handlers.GetTab(d))
			r.Patch("/{id}", handlers.PatchTab(d))
			r.Delete("/{id}", handlers.DeleteTab(d))
			r.Post("/{id}/restore", handlers.RestoreTab(d))
			r.Post("/{id}/cancel", handlers.CancelTab(d))
			r.Get("/{id}/messages/{msgID}", handlers.GetMessage(d))
			for _, action := range []string{"back", "forward", "reload", "close"} {
				r.Post("/{id}/"+action, handlers.Step(d, action))
			}
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", handlers.Groups(d))
			r.Post("/", handlers.CreateGroup(d))
			r.Patch("/{id}", handlers.RenameGroup(d))
			r.Delete("/{id}", handlers.DeleteGroup(d))
		})

		r.Get("/settings", handlers.Settings(d))
		r.Patch("/settings", handlers.UpdateSettings(d))

		r.Get("/downloads", handlers.Downloads(d))
		r.Delete("/downloads/{id}", handlers.DeleteDownload(d))
	})
}
