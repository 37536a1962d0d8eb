package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/handlers"
)

func init() { Register(registerReload) }

func registerReload(r chi.Router, d deps.Deps) {
	r.With(guarded(d)...).Post("/reload", handlers.Reload(d))
}
