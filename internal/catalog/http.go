// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/respond"
)

// Handler exposes read-only catalog inspection.
type Handler struct {
	registry *Registry
}

// NewHandler constructs a new [Handler].
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes returns a [chi.Router] with the catalog routes. Access control is
// applied by the caller when mounting.
//
// # Endpoints
//   - GET /       : Lists every entry, inactive ones included.
//   - GET /{code} : Returns one entry, inactive or not.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.list)
	router.Get("/{code}", handler.get)

	return router
}

/*
List returns the whole operation catalog.

GET /api/v1/catalog

Response:
  - 200: []Entry
  - 401: Unauthorized
  - 403: Forbidden: caller is not an administrator
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	entries, err := handler.registry.List(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if entries == nil {
		entries = []Entry{}
	}
	respond.OK(writer, entries)
}

/*
Get returns one catalog entry by its exact code.

GET /api/v1/catalog/{code}

Response:
  - 200: Entry
  - 401: Unauthorized
  - 403: Forbidden: caller is not an administrator
  - 404: No entry with that code
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	entry, err := handler.registry.Lookup(request.Context(), chi.URLParam(request, "code"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, entry)
}
