package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opentrusty/accessctl/internal/observability/logger"
)

// Evaluator decides whether a caller holds a permission on a target
// resource. Every check before the group membership lookup is local and
// cheap; the one potentially remote call is deferred until nothing else has
// produced a decision, and happens at most once per evaluation.
//
// Evaluations share no mutable state, so an Evaluator is safe for concurrent
// use.
type Evaluator struct {
	finder ACLFinder
	groups GroupResolver
}

// NewEvaluator creates a permission evaluator.
func NewEvaluator(finder ACLFinder, groups GroupResolver) *Evaluator {
	return &Evaluator{finder: finder, groups: groups}
}

// HasPermission determines whether the caller holds the permission on the
// target. Deny outcomes (unknown target, absent ACL, absent entry, no
// matching grant) return (false, nil). Collaborator failures return a
// non-nil error so callers can distinguish "policy says no" from "could not
// evaluate"; a deny is never synthesized from a failure.
func (e *Evaluator) HasPermission(
	ctx context.Context,
	auth Authentication,
	targetID, targetType, permission string,
) (bool, error) {
	if targetID == "" || targetType == "" || permission == "" {
		return false, nil
	}

	a, err := e.finder.FindACL(ctx, targetID, targetType)
	if err != nil {
		if errors.Is(err, ErrACLNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: find acl for %s/%s: %w", ErrLookupFailed, targetType, targetID, err)
	}
	if a == nil {
		return false, nil
	}

	// Owner bypass, independent of any entry.
	if auth != nil && auth.Name() != "" && auth.Name() == a.Owner() {
		return true, nil
	}

	entry, ok := a.Entry(permission)
	if !ok {
		return false, nil
	}
	if entry.Guest {
		return true, nil
	}
	if auth == nil || auth.Name() == "" {
		return false, nil
	}
	if entry.HasUser(auth.Name()) {
		return true, nil
	}
	if entry.HasAnyRole(auth.Authorities()) {
		return true, nil
	}

	// Last resort: the group membership lookup, the only potentially remote
	// check. Skipped entirely when the entry grants no groups.
	if len(entry.Groups) == 0 {
		return false, nil
	}
	membership, err := e.groups.ResolveMembership(ctx, auth)
	if err != nil {
		return false, fmt.Errorf("%w: resolve group membership: %w", ErrLookupFailed, err)
	}
	slog.DebugContext(ctx, "resolved group membership",
		logger.Principal(auth.Name()),
		logger.GroupCount(len(membership)),
	)
	return entry.HasAnyGroup(membership), nil
}

// HasAnyPermission reports whether the caller holds at least one of the
// permissions. An empty permission list denies.
func (e *Evaluator) HasAnyPermission(
	ctx context.Context,
	auth Authentication,
	targetID, targetType string,
	permissions ...string,
) (bool, error) {
	for _, permission := range permissions {
		allowed, err := e.HasPermission(ctx, auth, targetID, targetType, permission)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the caller holds every one of the
// permissions. An empty permission list denies.
func (e *Evaluator) HasAllPermissions(
	ctx context.Context,
	auth Authentication,
	targetID, targetType string,
	permissions ...string,
) (bool, error) {
	if len(permissions) == 0 {
		return false, nil
	}
	for _, permission := range permissions {
		allowed, err := e.HasPermission(ctx, auth, targetID, targetType, permission)
		if err != nil {
			return false, err
		}
		if !allowed {
			return false, nil
		}
	}
	return true, nil
}

// HasPermissionOn evaluates against a domain object that exposes its own
// identity.
func (e *Evaluator) HasPermissionOn(
	ctx context.Context,
	auth Authentication,
	obj Identifiable,
	targetType, permission string,
) (bool, error) {
	if obj == nil {
		return false, nil
	}
	return e.HasPermission(ctx, auth, obj.ID(), targetType, permission)
}

// IsOwner reports whether the caller owns the target's ACL. Lookup failures
// propagate; an absent ACL is not owned by anyone.
func (e *Evaluator) IsOwner(ctx context.Context, auth Authentication, targetID, targetType string) (bool, error) {
	if auth == nil || auth.Name() == "" || targetID == "" || targetType == "" {
		return false, nil
	}
	a, err := e.finder.FindACL(ctx, targetID, targetType)
	if err != nil {
		if errors.Is(err, ErrACLNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: find acl for %s/%s: %w", ErrLookupFailed, targetType, targetID, err)
	}
	return a != nil && a.Owner() == auth.Name(), nil
}
