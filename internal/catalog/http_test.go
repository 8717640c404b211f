// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
)

/*
TestHandler verifies the listing and single-entry routes.
*/
func TestHandler(t *testing.T) {
	retired := getUser
	retired.Code = "OLD_REPORT"
	retired.Active = false
	router := catalog.NewHandler(catalog.NewRegistry(newMemStore(getUser, retired))).Routes()

	serve := func(path string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		return recorder
	}

	t.Run("list", func(t *testing.T) {
		recorder := serve("/")
		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Data []catalog.Entry `json:"data"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		require.Len(t, body.Data, 2)
		assert.Equal(t, "GET_USER", body.Data[0].Code)
	})

	t.Run("get inactive", func(t *testing.T) {
		recorder := serve("/OLD_REPORT")
		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Data catalog.Entry `json:"data"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "OLD_REPORT", body.Data.Code)
		assert.False(t, body.Data.Active)
		assert.Equal(t, []string{"support"}, body.Data.AllowedRoles)
	})

	t.Run("get unknown", func(t *testing.T) {
		recorder := serve("/get_user")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "NOT_FOUND")
	})
}
