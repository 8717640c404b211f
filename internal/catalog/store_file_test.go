// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
)

const catalogYAML = `
operations:
  - code: PING
    target: procbridge.ping
    description: Round trip
  - code: GET_USER
    target: app.sp_get_user
    requiresIdentity: true
    allowedRoles: [support, " Admin ", SUPPORT]
  - code: OLD_REPORT
    target: report_v1
    active: false
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCatalog(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

/*
TestParseFile verifies defaults and role normalization.
*/
func TestParseFile(t *testing.T) {
	entries, err := catalog.ParseFile([]byte(catalogYAML))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// 1. Active defaults to true
	assert.True(t, entries[0].Active)
	assert.False(t, entries[0].RequiresIdentity)

	// 2. Roles are trimmed and deduplicated
	assert.Equal(t, []string{"support", "Admin"}, entries[1].AllowedRoles)

	// 3. Explicit inactive
	assert.False(t, entries[2].Active)
}

/*
TestParseFile_Rejections verifies that a bad document is refused as a whole.
*/
func TestParseFile_Rejections(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "operations:\n  - code: A\n    target: a\n    timeout: 5\n",
		"missing target": "operations:\n  - code: A\n",
		"unsafe target":  "operations:\n  - code: A\n    target: \"a; drop table x\"\n",
		"duplicate code": "operations:\n  - code: A\n    target: a\n  - code: A\n    target: b\n",
		"not yaml":       "operations: [\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.ParseFile([]byte(body))
			assert.Error(t, err)
		})
	}
}

/*
TestFileStore_Lookup verifies FindByCode and the ordered listing.
*/
func TestFileStore_Lookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeCatalog(t, path, catalogYAML)

	store, err := catalog.NewFileStore(path, discardLogger())
	require.NoError(t, err)

	// 1. Exact code
	entry, err := store.FindByCode(context.Background(), "GET_USER")
	require.NoError(t, err)
	assert.Equal(t, "app.sp_get_user", entry.TargetName)

	// 2. Codes are case-sensitive
	_, err = store.FindByCode(context.Background(), "get_user")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	// 3. Listing is sorted by code
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"GET_USER", "OLD_REPORT", "PING"},
		[]string{entries[0].Code, entries[1].Code, entries[2].Code})
}

/*
TestFileStore_InitialLoadMustSucceed verifies that a broken file fails startup.
*/
func TestFileStore_InitialLoadMustSucceed(t *testing.T) {
	dir := t.TempDir()

	_, err := catalog.NewFileStore(filepath.Join(dir, "missing.yaml"), discardLogger())
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	writeCatalog(t, broken, "operations:\n  - code: A\n")
	_, err = catalog.NewFileStore(broken, discardLogger())
	assert.Error(t, err)
}

/*
TestFileStore_Watch verifies that edits are picked up and that a malformed
edit keeps the previous snapshot.
*/
func TestFileStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeCatalog(t, path, catalogYAML)

	store, err := catalog.NewFileStore(path, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Let the watcher register before editing.
	time.Sleep(100 * time.Millisecond)

	// 1. Valid edit: PING becomes inactive
	writeCatalog(t, path, "operations:\n  - code: PING\n    target: procbridge.ping\n    active: false\n")
	require.Eventually(t, func() bool {
		entry, err := store.FindByCode(context.Background(), "PING")
		return err == nil && !entry.Active
	}, 5*time.Second, 50*time.Millisecond)

	// 2. Malformed edit: snapshot is kept
	writeCatalog(t, path, "operations: [\n")
	time.Sleep(time.Second)

	entry, err := store.FindByCode(context.Background(), "PING")
	require.NoError(t, err)
	assert.False(t, entry.Active)
}
