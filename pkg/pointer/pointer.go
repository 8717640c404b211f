// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

// Package pointer maps zero values to nil for nullable SQL parameters.
package pointer

// NonZero returns a pointer to v, or nil when v is the zero value. Optional
// audit columns are written as NULL rather than as empty strings.
func NonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
