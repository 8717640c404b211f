// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/ctxutil"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/middleware"
	requestutil "github.com/JorgeMataSaucedo/ProcBridge/internal/platform/request"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/respond"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/validate"
)

// Widths of the caller columns in the execution log.
const (
	maxCallerIDLength      = 100
	maxCallerNameLength    = 200
	maxClientAppLength     = 100
	maxCorrelationIDLength = 100
)

// Handler exposes [Engine.Invoke] over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a new [Handler].
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes returns a [chi.Router] with the invocation endpoints.
//
// # Endpoints
//   - POST /execute : Invokes a catalog operation.
//   - POST /invoke  : Alias of /execute.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/execute", handler.invoke)
	router.Post("/invoke", handler.invoke)

	return router
}

// invokeRequest is the wire form of [Request].
type invokeRequest struct {
	OperationCode string          `json:"operationCode"`
	Payload       json.RawMessage `json:"payload"`
	Meta          CallerMeta      `json:"meta"`
}

/*
Invoke runs one catalog operation.

POST /api/v1/execute

Description: Resolves the operation, checks the caller against its policy,
runs the routine and returns every captured table. Invocation failures are
reported inside the envelope with HTTP 200; only requests that cannot be
understood at all are rejected with 400.

Request:
  - Body: invokeRequest (OperationCode, Payload, Meta)
  - Header: Authorization (optional bearer token)
  - Header: X-App-Name, X-Correlation-ID (optional defaults for Meta)

Response:
  - 200: Result
  - 400: ValidationError: Malformed JSON, empty operation code or an
    oversized meta field
*/
func (handler *Handler) invoke(writer http.ResponseWriter, request *http.Request) {
	var input invokeRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if strings.TrimSpace(input.OperationCode) == "" {
		respond.Error(writer, request, apperr.ValidationError("operation code is required"))
		return
	}

	meta := callerMeta(request, input.Meta)
	if err := validateMeta(meta); err != nil {
		respond.Error(writer, request, err)
		return
	}

	invocation := Request{
		OperationCode: input.OperationCode,
		Meta:          meta,
	}
	if trimmed := bytes.TrimSpace(input.Payload); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		invocation.Payload = input.Payload
	}
	if claims := requestutil.Claims(request); claims != nil {
		invocation.Caller = &catalog.Caller{IdentityID: claims.UserID, Roles: claims.Roles}
	}

	respond.JSON(writer, http.StatusOK, handler.engine.Invoke(request.Context(), invocation))
}

// callerMeta fills meta from the verified token and request headers. A
// verified identity always replaces caller-supplied id and name.
func callerMeta(request *http.Request, meta CallerMeta) CallerMeta {
	ctx := request.Context()

	if claims := requestutil.Claims(request); claims != nil {
		meta.CallerID = claims.UserID
		meta.CallerName = claims.Name
	}

	if meta.ClientApp == "" {
		meta.ClientApp = request.Header.Get(constants.HeaderXAppName)
	}

	if meta.CorrelationID == "" {
		meta.CorrelationID = request.Header.Get(constants.HeaderXCorrelationID)
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = ctxutil.GetRequestID(ctx)
	}

	meta.SourceAddress = ctxutil.GetClientIP(ctx)
	if meta.SourceAddress == "" {
		meta.SourceAddress = middleware.RealIP(request)
	}

	return meta
}

// validateMeta bounds the caller-supplied audit fields to their column widths.
func validateMeta(meta CallerMeta) error {
	validator := &validate.Validator{}
	validator.MaxLen("meta.callerId", meta.CallerID, maxCallerIDLength).
		MaxLen("meta.callerName", meta.CallerName, maxCallerNameLength).
		MaxLen("meta.clientApp", meta.ClientApp, maxClientAppLength).
		MaxLen("meta.correlationId", meta.CorrelationID, maxCorrelationIDLength)
	return validator.Err()
}
