// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package requestutil reads what handlers need from an incoming request: the
JSON body, the verified claims and the raw bearer token.
*/
package requestutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/ctxutil"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/validate"
)

/*
DecodeJSON reads at most [constants.MaxPayloadBytes] of the request body and
decodes one JSON document into target.

Returns:
  - error: a VALIDATION_ERROR naming the size limit when the body is too
    large, validate.ErrInvalidJSON for any other decoding failure
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	body := http.MaxBytesReader(writer, request.Body, constants.MaxPayloadBytes)

	if err := json.NewDecoder(body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.ValidationError("request body is too large")
		}
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Claims extracts the verified claims from the request context.

Returns nil if the request is not authenticated.
*/
func Claims(request *http.Request) *sec.AuthClaims {
	return ctxutil.GetAuthUser(request.Context())
}

/*
BearerToken returns the raw token of an 'Authorization: Bearer' header, or "".
The scheme compares case-insensitively.
*/
func BearerToken(request *http.Request) string {
	scheme, token, found := strings.Cut(request.Header.Get(constants.HeaderAuthorization), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
