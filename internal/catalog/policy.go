// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog

import (
	"context"
	"fmt"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
)

// Decision is the outcome of [Authorize].
type Decision int

const (
	Allowed Decision = iota
	MissingIdentity
	RoleDenied
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case MissingIdentity:
		return "missing_identity"
	case RoleDenied:
		return "role_denied"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Caller is the verified identity behind an invocation. A nil *Caller is an
// anonymous invocation.
type Caller struct {
	IdentityID string
	Roles      []string
}

// RoleChecker answers role-membership questions from the identity store.
type RoleChecker interface {
	ValidateRoles(ctx context.Context, identityID string, allowed []string) (bool, error)
}

// Authorize applies entry's policy to caller.
//
// Operations that do not require an identity are open to everyone. Otherwise
// the caller must be identified, and when the entry names roles the caller
// must hold at least one of them (case-insensitive). With a nil checker the
// roles carried by caller are used.
func Authorize(ctx context.Context, entry *Entry, caller *Caller, checker RoleChecker) (Decision, error) {
	if !entry.RequiresIdentity {
		return Allowed, nil
	}
	if caller == nil || caller.IdentityID == "" {
		return MissingIdentity, nil
	}
	if len(entry.AllowedRoles) == 0 {
		return Allowed, nil
	}

	var (
		ok  bool
		err error
	)
	if checker != nil {
		ok, err = checker.ValidateRoles(ctx, caller.IdentityID, entry.AllowedRoles)
		if err != nil {
			return RoleDenied, fmt.Errorf("catalog_role_check_failed: %w", err)
		}
	} else {
		ok = sec.HasAnyRole(caller.Roles, entry.AllowedRoles)
	}

	if !ok {
		return RoleDenied, nil
	}
	return Allowed, nil
}

// Err converts a refusal into the caller-facing error. Allowed yields nil.
func (d Decision) Err(code string) error {
	switch d {
	case MissingIdentity:
		return apperr.AuthRequired(fmt.Sprintf("operation '%s' requires an authenticated caller", code))
	case RoleDenied:
		return apperr.Forbidden(fmt.Sprintf("caller lacks a role allowed to run '%s'", code))
	default:
		return nil
	}
}
