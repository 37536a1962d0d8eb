package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/handlers"
)

func init() { Register(registerProfiles) }

func registerProfiles(r chi.Router, d deps.Deps) {
	r.With(guarded(d)...).Route("/api/profiles", func(r chi.Router) {
		r.Get("/", handlers.Profiles(d))
		r.Post("/", handlers.CreateProfile(d))
		r.Patch("/{id}", handlers.UpdateProfile(d))
		r.Delete("/{id}", handlers.DeleteProfile(d))
		r.Post("/{id}/activate", handlers.ActivateProfile(d))
		r.Put("/{id}/extensions/{extID}", handlers.ToggleExtension(d, true))
		r.Delete("/{id}/extensions/{extID}", handlers.ToggleExtension(d, false))
	})

	r.With(guarded(d)...).Route("/api/extensions", func(r chi.Router) {
		r.Get("/", handlers.Extensions(d))
		r.Post("/", handlers.SaveExtension(d))
		r.Put("/{id}", handlers.SaveExtension(d))
		r.Delete("/{id}", handlers.DeleteExtension(d))
	})
}
