// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog

import "context"

// Store is read-only access to the operation catalog. Administration of the
// catalog happens outside the engine.
type Store interface {
	// FindByCode returns the entry for code, active or not, or
	// [apperr.NotFound] when there is none.
	FindByCode(ctx context.Context, code string) (*Entry, error)

	// List returns every entry ordered by code.
	List(ctx context.Context) ([]Entry, error)
}
