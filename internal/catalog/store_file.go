// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
)

// reloadSettle is how long the file must stay quiet before it is re-read.
// Editors write in several steps (truncate, write, rename).
const reloadSettle = 300 * time.Millisecond

// fileDocument is the YAML layout of a catalog file.
//
//	operations:
//	  - code: GET_USER
//	    target: app.sp_get_user
//	    requiresIdentity: true
//	    allowedRoles: [support, admin]
type fileDocument struct {
	Operations []fileOperation `yaml:"operations"`
}

type fileOperation struct {
	Code             string   `yaml:"code"`
	Target           string   `yaml:"target"`
	Description      string   `yaml:"description"`
	RequiresIdentity bool     `yaml:"requiresIdentity"`
	AllowedRoles     []string `yaml:"allowedRoles"`
	Transactional    bool     `yaml:"transactional"`
	Active           *bool    `yaml:"active"`
}

// FileStore serves the catalog from a YAML file and swaps in a new snapshot
// whenever the file changes. A file that fails to parse or validate never
// replaces a good snapshot.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	codes   []string
}

// NewFileStore loads path once. The initial load must succeed.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	store := &FileStore{path: path, logger: logger}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// FindByCode looks up one entry by its exact code.
func (store *FileStore) FindByCode(_ context.Context, code string) (*Entry, error) {
	store.mu.RLock()
	entry, ok := store.entries[code]
	store.mu.RUnlock()

	if !ok {
		return nil, apperr.NotFoundMsg(fmt.Sprintf("operation '%s' not found in catalog", code))
	}
	return &entry, nil
}

// List returns every entry ordered by code.
func (store *FileStore) List(_ context.Context) ([]Entry, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	entries := make([]Entry, 0, len(store.codes))
	for _, code := range store.codes {
		entries = append(entries, store.entries[code])
	}
	return entries, nil
}

// Reload re-reads the file and swaps the snapshot on success.
func (store *FileStore) Reload() error {
	data, err := os.ReadFile(store.path)
	if err != nil {
		return fmt.Errorf("catalog_file_read_failed: %w", err)
	}

	entries, err := ParseFile(data)
	if err != nil {
		return fmt.Errorf("catalog_file_parse_failed: %w", err)
	}

	snapshot := make(map[string]Entry, len(entries))
	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		snapshot[entry.Code] = entry
		codes = append(codes, entry.Code)
	}
	sort.Strings(codes)

	store.mu.Lock()
	store.entries = snapshot
	store.codes = codes
	store.mu.Unlock()

	return nil
}

// ParseFile decodes and validates a catalog document. Unknown keys, invalid
// entries and duplicate codes are errors; active defaults to true.
func ParseFile(data []byte) ([]Entry, error) {
	var document fileDocument

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&document); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var (
		entries = make([]Entry, 0, len(document.Operations))
		seen    = make(map[string]struct{}, len(document.Operations))
		errs    []error
	)

	for i, op := range document.Operations {
		entry := Entry{
			Code:             op.Code,
			TargetName:       op.Target,
			Description:      op.Description,
			RequiresIdentity: op.RequiresIdentity,
			AllowedRoles:     sec.NormalizeRoles(op.AllowedRoles),
			Transactional:    op.Transactional,
			Active:           op.Active == nil || *op.Active,
		}

		if err := entry.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("operations[%d] %q: %w", i, op.Code, describe(err)))
			continue
		}
		if _, dup := seen[entry.Code]; dup {
			errs = append(errs, fmt.Errorf("operations[%d]: duplicate code %q", i, entry.Code))
			continue
		}
		seen[entry.Code] = struct{}{}
		entries = append(entries, entry)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return entries, nil
}

// describe flattens validation details into one line for logs and the CLI.
func describe(err error) error {
	ae := apperr.As(err)
	if ae == nil || len(ae.Details) == 0 {
		return err
	}

	var buf bytes.Buffer
	for i, detail := range ae.Details {
		if i > 0 {
			buf.WriteString("; ")
		}
		fmt.Fprintf(&buf, "%s: %s", detail.Field, detail.Message)
	}
	return errors.New(buf.String())
}

// # Hot Reload

// Watch reloads the catalog whenever the file changes, until ctx is done.
// The parent directory is watched so that atomic replace-by-rename is seen.
func (store *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog_watch_failed: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(store.path)); err != nil {
		return fmt.Errorf("catalog_watch_failed: %w", err)
	}

	target := filepath.Clean(store.path)
	ticker := time.NewTicker(reloadSettle / 2)
	defer ticker.Stop()

	var pendingSince time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pendingSince = time.Now()
			}

		case <-ticker.C:
			if pendingSince.IsZero() || time.Since(pendingSince) < reloadSettle {
				continue
			}
			pendingSince = time.Time{}

			if err := store.Reload(); err != nil {
				store.logger.Error("catalog_reload_failed", slog.String("path", store.path), slog.Any("error", err))
				continue
			}
			store.logger.Info("catalog_reloaded", slog.String("path", store.path), slog.Int("operations", store.count()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			store.logger.Warn("catalog_watch_error", slog.Any("error", err))
		}
	}
}

func (store *FileStore) count() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.codes)
}
