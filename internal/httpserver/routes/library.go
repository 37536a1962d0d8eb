package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/handlers"
)

func init() { Register(registerLibrary) }

func registerLibrary(r chi.Router, d deps.Deps) {
	r.With(guarded(d)...).Route("/api/library", func(r chi.Router) {
		r.Get("/history", handlers.History(d))
		r.Delete("/history", handlers.ClearHistory(d))
		r.Delete("/history/{id}", handlers.DeleteHistoryItem(d))

		r.Get("/bookmarks", handlers.Bookmarks(d))
		r.Post("/bookmarks", handlers.AddBookmark(d))
		r.Delete("/bookmarks/{id}", handlers.DeleteBookmark(d))
	})
}
