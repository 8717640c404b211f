// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package catalog resolves operation codes to executable routines and decides
who may invoke them.

# Components

  - [Entry]: one catalogued operation with its authorization policy.
  - [Store]: read-only access to the catalog ([PostgresStore], [FileStore],
    and the [CachedStore] decorator).
  - [Registry]: code resolution with the caller-facing error messages.
  - [Authorize]: the policy check, independent of any storage.
*/
package catalog

import (
	"strings"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/validate"
)

// Entry is one operation the engine is allowed to dispatch.
type Entry struct {
	Code             string   `json:"code"`
	TargetName       string   `json:"targetName"`
	Description      string   `json:"description"`
	RequiresIdentity bool     `json:"requiresIdentity"`
	AllowedRoles     []string `json:"allowedRoles"`
	Transactional    bool     `json:"transactional"`
	Active           bool     `json:"active"`
}

// Validate checks the fields a dispatchable entry needs.
func (entry *Entry) Validate() error {
	v := &validate.Validator{}
	v.Required("code", entry.Code).
		MaxLen("code", entry.Code, 100).
		Required("targetName", entry.TargetName).
		QualifiedName("targetName", entry.TargetName)
	return v.Err()
}

// ParseRoles splits the stored comma-separated role list. Entries are
// trimmed, empties dropped and case-insensitive duplicates removed.
func ParseRoles(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return sec.NormalizeRoles(strings.Split(raw, ","))
}

// JoinRoles is the inverse of [ParseRoles].
func JoinRoles(roles []string) string {
	return strings.Join(sec.NormalizeRoles(roles), ",")
}
