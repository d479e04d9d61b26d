package authz

import (
	"context"
	"errors"

	"github.com/opentrusty/accessctl/internal/acl"
)

// Domain errors
var (
	// ErrACLNotFound is the not-found outcome of an ACL lookup. The
	// evaluator maps it to a deny decision, not a failure.
	ErrACLNotFound = errors.New("access control list not found")

	// ErrLookupFailed marks a collaborator failure during evaluation. It is
	// surfaced to the caller, never coerced to a deny decision.
	ErrLookupFailed = errors.New("authorization lookup failed")
)

// Authentication is the read-only view of a caller's identity the evaluator
// consumes. A nil Authentication or an empty Name means an anonymous caller.
type Authentication interface {
	// Name returns the principal name, empty when anonymous.
	Name() string
	// Authorities returns the authority names the caller holds.
	Authorities() []string
}

// TokenAuthentication is an Authentication backed by claims of a bearer
// token.
type TokenAuthentication struct {
	Subject string
	Roles   []string
	// Raw is the compact token the caller presented, forwarded to
	// downstream resolvers.
	Raw string
}

func (t *TokenAuthentication) Name() string {
	if t == nil {
		return ""
	}
	return t.Subject
}

func (t *TokenAuthentication) Authorities() []string {
	if t == nil {
		return nil
	}
	return t.Roles
}

// Token returns the compact bearer token.
func (t *TokenAuthentication) Token() string {
	if t == nil {
		return ""
	}
	return t.Raw
}

// Identifiable is the capability a resource type implements so callers can
// evaluate permissions against a domain object without reflection.
type Identifiable interface {
	ID() string
}

// Reference identifies the protected resource an ACL belongs to.
type Reference struct {
	ID   string
	Type string
}

// ACLFinder resolves the ACL protecting a target. Implementations return
// ErrACLNotFound (possibly wrapped) when no ACL exists for the target.
type ACLFinder interface {
	FindACL(ctx context.Context, targetID, targetType string) (*acl.ACL, error)
}

// ACLRepository extends lookup with the management operations the HTTP
// surface needs.
type ACLRepository interface {
	ACLFinder
	SaveACL(ctx context.Context, targetID, targetType string, rec *acl.Record) error
	DeleteACL(ctx context.Context, targetID, targetType string) error
	ListByOwner(ctx context.Context, owner string) ([]Reference, error)
}

// GroupResolver supplies the set of group names the calling principal
// currently belongs to. It may be backed by a remote call; the evaluator
// invokes it at most once per evaluation, and only when every cheaper check
// has failed to reach a decision.
type GroupResolver interface {
	ResolveMembership(ctx context.Context, auth Authentication) ([]string, error)
}
