package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/starford/schemaview/internal/explorer"
)

// Handler holds API route handlers.
type Handler struct {
	svc *explorer.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *explorer.Service) *Handler {
	return &Handler{svc: svc}
}

// schemaPath extracts the schema path from the URL (everything after /api/schemas/).
// Supports encoded slashes from OpenAPI clients (e.g. shapes%2Fpoint.json).
func schemaPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListSchemas handles GET /api/schemas.
//
//	@Summary		List catalog schemas with pagination
//	@Tags			schemas
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(path, title, updated)
//	@Success		200		{object}	SchemaListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas [get]
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListSchemas(r.Context(), limit, offset, q.Get("sort"))
	if err != nil {
		writeError(w, "list schemas", err)
		return
	}
	writeJSON(w, http.StatusOK, SchemaListResponse{Schemas: items, Total: total})
}

// GetSchema handles GET /api/schemas/*.
//
//	@Summary		Get a single schema by path
//	@Tags			schemas
//	@Produce		json
//	@Param			path	path		string	true	"Schema path"
//	@Success		200		{object}	SchemaDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{path} [get]
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	path := schemaPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := h.svc.GetSchema(r.Context(), path)
	if err != nil {
		writeError(w, "get schema", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateSchema handles POST /api/schemas.
//
//	@Summary		Create a new schema file
//	@Tags			schemas
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSchemaRequest	true	"Schema to create"
//	@Success		201		{object}	SchemaDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas [post]
func (h *Handler) CreateSchema(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	detail, err := h.svc.CreateSchema(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, "create schema", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// UpdateSchema handles PUT /api/schemas/*.
//
//	@Summary		Replace a schema with optimistic concurrency
//	@Tags			schemas
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Schema path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateSchemaRequest	true	"Updated content"
//	@Success		200		{object}	SchemaDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{path} [put]
func (h *Handler) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := schemaPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	var req UpdateSchemaRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	detail, err := h.svc.UpdateSchema(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		writeError(w, "update schema", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DeleteSchema handles DELETE /api/schemas/*.
//
//	@Summary		Delete a schema file
//	@Tags			schemas
//	@Param			path	path	string	true	"Schema path"
//	@Success		204		"Schema deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{path} [delete]
func (h *Handler) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	path := schemaPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteSchema(r.Context(), path); err != nil {
		writeError(w, "delete schema", err, slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across schema titles, descriptions and property names
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	resp := SearchResponse{Results: make([]SearchResult, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, SearchResult{Path: res.Path, Title: res.Title, Snippet: res.Snippet})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the schema reference graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	resp := GraphResponse{
		Nodes: make([]GraphNode, 0, len(nodes)),
		Links: make([]GraphLink, 0, len(links)),
	}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, GraphNode{ID: n.Path, Title: n.Title})
	}
	for _, l := range links {
		resp.Links = append(resp.Links, GraphLink{Source: l.Source, Target: l.Target})
	}
	writeJSON(w, http.StatusOK, resp)
}
