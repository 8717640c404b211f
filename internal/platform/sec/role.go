// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package sec

import (
	"strings"

	"golang.org/x/text/cases"
)

// # Role Names

// RoleAdmin is the role seeded for the bootstrap operator account.
const RoleAdmin = "admin"

// # Role Comparison

// FoldRole returns the case-folded form of a role name. Two role names are
// the same role when their folded forms are equal.
//
// A [cases.Caser] is stateful, so a fresh one is built per call.
func FoldRole(role string) string {
	return cases.Fold().String(strings.TrimSpace(role))
}

// NormalizeRoles trims every entry, drops empties and removes case-insensitive
// duplicates while keeping the first spelling seen.
func NormalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		key := FoldRole(role)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, role)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// HasAnyRole reports whether held intersects allowed, ignoring case.
// An empty allowed set admits everyone.
func HasAnyRole(held, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}

	want := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		want[FoldRole(role)] = struct{}{}
	}
	for _, role := range held {
		if _, ok := want[FoldRole(role)]; ok {
			return true
		}
	}
	return false
}
