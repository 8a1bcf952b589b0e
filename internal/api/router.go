package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/schemaview/internal/explorer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *explorer.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Schema catalog.
	r.Get("/schemas", h.ListSchemas)
	r.Post("/schemas", h.CreateSchema)
	r.Get("/schemas/*", h.GetSchema)
	r.Put("/schemas/*", h.UpdateSchema)
	r.Delete("/schemas/*", h.DeleteSchema)

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	// Tree sessions.
	r.Route("/trees", func(r chi.Router) {
		r.Post("/", h.OpenTree)
		r.Get("/{id}", h.GetTree)
		r.Delete("/{id}", h.CloseTree)
		r.Patch("/{id}/nodes/{node}", h.SetExpanded)
		r.Post("/{id}/nodes/{node}/unwrap", h.Unwrap)
		r.Get("/{id}/nodes/{node}/properties", h.Properties)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
