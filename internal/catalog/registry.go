// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
)

// Registry resolves operation codes against a [Store].
type Registry struct {
	store Store
}

// NewRegistry creates a Registry over store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Resolve returns the active entry for code.
//
// # Errors
//   - VALIDATION_ERROR: code is empty after trimming.
//   - NOT_FOUND: no such entry, or the entry is inactive.
func (registry *Registry) Resolve(ctx context.Context, code string) (*Entry, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.ValidationError("operation code is required")
	}

	entry, err := registry.store.FindByCode(ctx, code)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.NotFoundMsg(fmt.Sprintf("operation '%s' not found in catalog", code))
		}
		return nil, err
	}

	if !entry.Active {
		return nil, apperr.NotFoundMsg(fmt.Sprintf("operation '%s' is inactive", code))
	}

	return entry, nil
}

// Lookup returns the entry for code whether or not it is active. It serves
// operators inspecting the catalog; dispatch goes through [Registry.Resolve].
func (registry *Registry) Lookup(ctx context.Context, code string) (*Entry, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.ValidationError("operation code is required")
	}

	entry, err := registry.store.FindByCode(ctx, code)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.NotFoundMsg(fmt.Sprintf("operation '%s' not found in catalog", code))
		}
		return nil, err
	}
	return entry, nil
}

// List returns the whole catalog, inactive entries included.
func (registry *Registry) List(ctx context.Context) ([]Entry, error) {
	return registry.store.List(ctx)
}
