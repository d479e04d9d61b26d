// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/opentrusty/accessctl/internal/acl"
	"github.com/opentrusty/accessctl/internal/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockACLFinder implements authz.ACLFinder for testing, counting calls.
type MockACLFinder struct {
	acls  map[string]*acl.ACL
	err   error
	calls int
}

func NewMockACLFinder() *MockACLFinder {
	return &MockACLFinder{acls: make(map[string]*acl.ACL)}
}

func (m *MockACLFinder) Put(targetID, targetType string, a *acl.ACL) {
	m.acls[targetType+"/"+targetID] = a
}

func (m *MockACLFinder) FindACL(ctx context.Context, targetID, targetType string) (*acl.ACL, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.acls[targetType+"/"+targetID]
	if !ok {
		return nil, authz.ErrACLNotFound
	}
	return a, nil
}

// MockGroupResolver implements authz.GroupResolver for testing, counting
// calls so tests can pin the at-most-once property.
type MockGroupResolver struct {
	groups map[string][]string
	err    error
	calls  int
}

func NewMockGroupResolver() *MockGroupResolver {
	return &MockGroupResolver{groups: make(map[string][]string)}
}

func (m *MockGroupResolver) ResolveMembership(ctx context.Context, auth authz.Authentication) ([]string, error) {
	m.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.groups[auth.Name()], nil
}

func auth(name string, authorities ...string) *authz.TokenAuthentication {
	return &authz.TokenAuthentication{Subject: name, Roles: authorities}
}

func buildACL(owner string, configure func(*acl.Builder)) *acl.ACL {
	b := acl.NewBuilder().Owner(owner)
	if configure != nil {
		configure(b)
	}
	return b.BuildACL()
}

func TestEvaluator_GuestAllowsAnonymous(t *testing.T) {
	finder := NewMockACLFinder()
	resolver := NewMockGroupResolver()
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.Guest(true, acl.PermissionRead)
	}))

	e := authz.NewEvaluator(finder, resolver)

	allowed, err := e.HasPermission(context.Background(), nil, "t", "doc", "read")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, resolver.calls)
}

func TestEvaluator_DirectUserGrant(t *testing.T) {
	finder := NewMockACLFinder()
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddUser("bob", acl.PermissionWrite)
	}))

	e := authz.NewEvaluator(finder, NewMockGroupResolver())

	allowed, err := e.HasPermission(context.Background(), auth("bob"), "t", "doc", "write")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = e.HasPermission(context.Background(), auth("carol"), "t", "doc", "write")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluator_RoleGrant(t *testing.T) {
	finder := NewMockACLFinder()
	resolver := NewMockGroupResolver()
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddRole("ROLE_ADMIN", acl.PermissionDelete)
	}))

	e := authz.NewEvaluator(finder, resolver)

	allowed, err := e.HasPermission(context.Background(), auth("dave", "ROLE_ADMIN"), "t", "doc", "delete")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, resolver.calls, "a role grant must short-circuit before the group lookup")
}

func TestEvaluator_GroupGrantResolvesAtMostOnce(t *testing.T) {
	finder := NewMockACLFinder()
	resolver := NewMockGroupResolver()
	resolver.groups["erin"] = []string{"eng", "ops"}
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddGroup("eng", acl.PermissionAdministration)
	}))

	e := authz.NewEvaluator(finder, resolver)

	allowed, err := e.HasPermission(context.Background(), auth("erin"), "t", "doc", "administration")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, resolver.calls)

	resolver.groups["erin"] = []string{"ops"}
	allowed, err = e.HasPermission(context.Background(), auth("erin"), "t", "doc", "administration")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, resolver.calls, "one resolver call per evaluation")
}

func TestEvaluator_SkipsResolverWhenEntryGrantsNoGroups(t *testing.T) {
	finder := NewMockACLFinder()
	resolver := NewMockGroupResolver()
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddUser("bob", acl.PermissionWrite)
	}))

	e := authz.NewEvaluator(finder, resolver)

	allowed, err := e.HasPermission(context.Background(), auth("carol"), "t", "doc", "write")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, resolver.calls)
}

func TestEvaluator_OwnerBypass(t *testing.T) {
	finder := NewMockACLFinder()
	finder.Put("t", "doc", buildACL("alice", nil))

	e := authz.NewEvaluator(finder, NewMockGroupResolver())

	for _, permission := range acl.Permissions {
		allowed, err := e.HasPermission(context.Background(), auth("alice"), "t", "doc", permission)
		require.NoError(t, err)
		assert.True(t, allowed, "owner holds %s without any entry grant", permission)
	}
}

func TestEvaluator_AnonymousDeniedWithoutGuest(t *testing.T) {
	finder := NewMockACLFinder()
	resolver := NewMockGroupResolver()
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddGroup("eng", acl.PermissionRead)
	}))

	e := authz.NewEvaluator(finder, resolver)

	allowed, err := e.HasPermission(context.Background(), nil, "t", "doc", "read")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, resolver.calls, "anonymous callers never trigger the group lookup")
}

func TestEvaluator_UnknownTargetDenies(t *testing.T) {
	e := authz.NewEvaluator(NewMockACLFinder(), NewMockGroupResolver())

	allowed, err := e.HasPermission(context.Background(), auth("bob"), "missing", "doc", "read")
	require.NoError(t, err, "an absent ACL is a deny, not a failure")
	assert.False(t, allowed)
}

func TestEvaluator_EmptyInputsDeny(t *testing.T) {
	finder := NewMockACLFinder()
	e := authz.NewEvaluator(finder, NewMockGroupResolver())

	for _, args := range [][3]string{
		{"", "doc", "read"},
		{"t", "", "read"},
		{"t", "doc", ""},
	} {
		allowed, err := e.HasPermission(context.Background(), auth("bob"), args[0], args[1], args[2])
		require.NoError(t, err)
		assert.False(t, allowed)
	}
	assert.Zero(t, finder.calls)
}

func TestEvaluator_LookupFailureIsNotADeny(t *testing.T) {
	finder := NewMockACLFinder()
	finder.err = errors.New("connection refused")

	e := authz.NewEvaluator(finder, NewMockGroupResolver())

	_, err := e.HasPermission(context.Background(), auth("bob"), "t", "doc", "read")
	require.Error(t, err)
	assert.ErrorIs(t, err, authz.ErrLookupFailed)
}

func TestEvaluator_ResolverFailurePropagates(t *testing.T) {
	finder := NewMockACLFinder()
	resolver := NewMockGroupResolver()
	resolver.err = errors.New("group service unavailable")
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddGroup("eng", acl.PermissionRead)
	}))

	e := authz.NewEvaluator(finder, resolver)

	_, err := e.HasPermission(context.Background(), auth("erin"), "t", "doc", "read")
	require.Error(t, err)
	assert.ErrorIs(t, err, authz.ErrLookupFailed)
}

func TestEvaluator_CancellationPropagatesThroughResolver(t *testing.T) {
	finder := NewMockACLFinder()
	resolver := NewMockGroupResolver()
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddGroup("eng", acl.PermissionRead)
	}))

	e := authz.NewEvaluator(finder, resolver)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.HasPermission(ctx, auth("erin"), "t", "doc", "read")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluator_HasAnyAndAllPermissions(t *testing.T) {
	finder := NewMockACLFinder()
	finder.Put("t", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddUser("bob", acl.PermissionRead, acl.PermissionWrite)
	}))

	e := authz.NewEvaluator(finder, NewMockGroupResolver())
	ctx := context.Background()

	allowed, err := e.HasAnyPermission(ctx, auth("bob"), "t", "doc", "delete", "read")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = e.HasAllPermissions(ctx, auth("bob"), "t", "doc", "read", "write")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = e.HasAllPermissions(ctx, auth("bob"), "t", "doc", "read", "delete")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = e.HasAllPermissions(ctx, auth("bob"), "t", "doc")
	require.NoError(t, err)
	assert.False(t, allowed, "empty permission list denies")
}

type document struct{ id string }

func (d document) ID() string { return d.id }

func TestEvaluator_HasPermissionOn(t *testing.T) {
	finder := NewMockACLFinder()
	finder.Put("doc-1", "doc", buildACL("alice", func(b *acl.Builder) {
		b.AddUser("bob", acl.PermissionRead)
	}))

	e := authz.NewEvaluator(finder, NewMockGroupResolver())

	allowed, err := e.HasPermissionOn(context.Background(), auth("bob"), document{id: "doc-1"}, "doc", "read")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = e.HasPermissionOn(context.Background(), auth("bob"), nil, "doc", "read")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluator_IsOwner(t *testing.T) {
	finder := NewMockACLFinder()
	finder.Put("t", "doc", buildACL("alice", nil))

	e := authz.NewEvaluator(finder, NewMockGroupResolver())
	ctx := context.Background()

	owner, err := e.IsOwner(ctx, auth("alice"), "t", "doc")
	require.NoError(t, err)
	assert.True(t, owner)

	owner, err = e.IsOwner(ctx, auth("bob"), "t", "doc")
	require.NoError(t, err)
	assert.False(t, owner)

	owner, err = e.IsOwner(ctx, nil, "t", "doc")
	require.NoError(t, err)
	assert.False(t, owner)

	owner, err = e.IsOwner(ctx, auth("alice"), "missing", "doc")
	require.NoError(t, err)
	assert.False(t, owner)
}
