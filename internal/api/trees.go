package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

// nodeParam parses the {node} URL segment. "root" yields nil.
func nodeParam(r *http.Request) (*int, bool) {
	raw := chi.URLParam(r, "node")
	if raw == "root" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, false
	}
	return &n, true
}

// OpenTree handles POST /api/trees.
//
//	@Summary		Open a lazily populated tree over a schema
//	@Tags			trees
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenTreeRequest	true	"Schema path and tree options"
//	@Success		201		{object}	explorer.TreeView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees [post]
func (h *Handler) OpenTree(w http.ResponseWriter, r *http.Request) {
	var req OpenTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	view, err := h.svc.OpenTree(r.Context(), req.Path, req.options())
	if err != nil {
		writeError(w, "open tree", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetTree handles GET /api/trees/{id}.
//
//	@Summary		Get the visible rows of a tree session
//	@Tags			trees
//	@Produce		json
//	@Param			id	path		string	true	"Tree session id"
//	@Success		200	{object}	explorer.TreeView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{id} [get]
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.svc.GetTree(r.Context(), id)
	if err != nil {
		writeError(w, "get tree", err, slog.String("tree", id))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CloseTree handles DELETE /api/trees/{id}.
//
//	@Summary		Close a tree session
//	@Tags			trees
//	@Param			id	path	string	true	"Tree session id"
//	@Success		204	"Tree closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{id} [delete]
func (h *Handler) CloseTree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.CloseTree(r.Context(), id); err != nil {
		writeError(w, "close tree", err, slog.String("tree", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unwrap handles POST /api/trees/{id}/nodes/{node}/unwrap.
//
//	@Summary		Expand one node, following its reference if it has one
//	@Tags			trees
//	@Produce		json
//	@Param			id		path		string	true	"Tree session id"
//	@Param			node	path		int		true	"Node id"
//	@Success		200		{object}	explorer.UnwrapView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{id}/nodes/{node}/unwrap [post]
func (h *Handler) Unwrap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, ok := nodeParam(r)
	if !ok || node == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("node must be a node id"))
		return
	}
	view, err := h.svc.Unwrap(r.Context(), id, *node)
	if err != nil {
		writeError(w, "unwrap", err, slog.String("tree", id), slog.Int("node", *node))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetExpanded handles PATCH /api/trees/{id}/nodes/{node}.
//
//	@Summary		Collapse or expand an already populated node
//	@Tags			trees
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Tree session id"
//	@Param			node	path		int					true	"Node id"
//	@Param			body	body		SetExpandedRequest	true	"Expansion flag"
//	@Success		200		{object}	explorer.TreeView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{id}/nodes/{node} [patch]
func (h *Handler) SetExpanded(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, ok := nodeParam(r)
	if !ok || node == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("node must be a node id"))
		return
	}
	var req SetExpandedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	view, err := h.svc.SetExpanded(r.Context(), id, *node, req.Expanded)
	if err != nil {
		writeError(w, "set expanded", err, slog.String("tree", id), slog.Int("node", *node))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Properties handles GET /api/trees/{id}/nodes/{node}/properties.
//
//	@Summary		List the properties of a node under the session's property limit
//	@Tags			trees
//	@Produce		json
//	@Param			id		path		string	true	"Tree session id"
//	@Param			node	path		string	true	"Node id, or \"root\" for the top-level properties"
//	@Success		200		{object}	explorer.PropertiesView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{id}/nodes/{node}/properties [get]
func (h *Handler) Properties(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, ok := nodeParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("node must be a node id or \"root\""))
		return
	}
	view, err := h.svc.Properties(r.Context(), id, node)
	if err != nil {
		writeError(w, "properties", err, slog.String("tree", id))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
