// Package server implements the practice API over chi: the song library,
// measure-group listings, the next-measure recommendation, the practice log,
// and raw notation files under /data.
package server

import (
	"github.com/go-chi/chi/v5"

	"etude/internal/store"
)

// NewRouter creates a chi router with all routes mounted. dataDir is the
// root the /data endpoint serves notation files from.
func NewRouter(st *store.Store, dataDir string) chi.Router {
	h := NewHandler(st)
	dh := NewDataHandler(dataDir)

	r := chi.NewRouter()
	r.Use(AccessLog)

	r.Route("/api", func(r chi.Router) {
		r.Get("/songs", h.ListSongs)
		r.Post("/songs", h.CreateSong)
		r.Get("/songs/{id}/next-measure", h.NextMeasure)
		r.Get("/measure-groups", h.ListMeasureGroups)
		r.Post("/practice", h.SubmitPractice)
		r.Get("/practice-sessions", h.ListSessions)
		r.Delete("/practice-sessions", h.ClearSessions)
	})

	// Raw notation files for the renderer.
	r.Get("/data/*", dh.ServeFile)

	return r
}
