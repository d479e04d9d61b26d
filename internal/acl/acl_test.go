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

package acl_test

import (
	"testing"

	"github.com/opentrusty/accessctl/internal/acl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry_Normalizes(t *testing.T) {
	e := acl.NewEntry(false,
		[]string{"bob", "", "alice", "bob", "  "},
		[]string{"ROLE_USER"},
		nil,
	)

	assert.Equal(t, []string{"alice", "bob"}, e.Users)
	assert.Equal(t, []string{"ROLE_USER"}, e.Roles)
	assert.Empty(t, e.Groups)
}

func TestEntry_Equal_IgnoresOrderAndCase(t *testing.T) {
	a := acl.NewEntry(true, []string{"bob", "alice"}, []string{"ROLE_USER"}, []string{"eng"})
	b := acl.NewEntry(true, []string{"Alice", "BOB"}, []string{"role_user"}, []string{"ENG"})
	c := acl.NewEntry(false, []string{"alice", "bob"}, []string{"ROLE_USER"}, []string{"eng"})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "guest flag must participate in equality")
	assert.False(t, a.Equal(acl.NewEntry(true, []string{"alice"}, []string{"ROLE_USER"}, []string{"eng"})))
}

func TestEntry_Clone_IsIndependent(t *testing.T) {
	original := acl.NewEntry(false, []string{"alice"}, []string{"ROLE_USER"}, []string{"eng"})
	clone := original.Clone()

	clone.Users[0] = "mallory"
	clone.Guest = true

	assert.Equal(t, []string{"alice"}, original.Users)
	assert.False(t, original.Guest)

	var nilEntry *acl.Entry
	assert.NotNil(t, nilEntry.Clone())
}

func TestNewACL_CompletesFixedPermissionSet(t *testing.T) {
	a := acl.NewACL("alice", map[string]*acl.Entry{
		"READ":    acl.NewEntry(true, nil, nil, nil),
		"unknown": acl.NewEntry(true, nil, nil, nil),
	})

	assert.Equal(t, "alice", a.Owner())
	assert.Len(t, a.Entries(), len(acl.Permissions))

	read, ok := a.Entry("Read")
	require.True(t, ok)
	assert.True(t, read.Guest, "permission keys are matched case-insensitively")

	for _, permission := range acl.Permissions {
		e, ok := a.Entry(permission)
		require.True(t, ok, "entry for %s must exist", permission)
		require.NotNil(t, e)
	}

	_, ok = a.Entries()["unknown"]
	assert.False(t, ok, "unknown permission names are dropped")
}

func TestACL_HasPermission(t *testing.T) {
	a := acl.NewACL("alice", map[string]*acl.Entry{
		acl.PermissionRead:           acl.NewEntry(true, nil, nil, nil),
		acl.PermissionWrite:          acl.NewEntry(false, []string{"bob"}, nil, nil),
		acl.PermissionDelete:         acl.NewEntry(false, nil, []string{"ROLE_ADMIN"}, nil),
		acl.PermissionAdministration: acl.NewEntry(false, nil, nil, []string{"eng"}),
	})

	tests := []struct {
		name       string
		user       string
		roles      []string
		groups     []string
		permission string
		want       bool
	}{
		{"owner bypass", "alice", nil, nil, acl.PermissionWrite, true},
		{"guest allows anonymous", "", nil, nil, acl.PermissionRead, true},
		{"direct user grant", "bob", nil, nil, acl.PermissionWrite, true},
		{"user without grant", "carol", nil, nil, acl.PermissionWrite, false},
		{"role grant", "dave", []string{"ROLE_ADMIN"}, nil, acl.PermissionDelete, true},
		{"group grant", "erin", nil, []string{"eng", "ops"}, acl.PermissionAdministration, true},
		{"group miss", "erin", nil, []string{"ops"}, acl.PermissionAdministration, false},
		{"empty permission", "alice", nil, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.HasPermission(tt.user, tt.roles, tt.groups, tt.permission))
		})
	}
}

func TestACL_HasAnyAndAllPermissions(t *testing.T) {
	a := acl.NewACL("alice", map[string]*acl.Entry{
		acl.PermissionRead:  acl.NewEntry(false, []string{"bob"}, nil, nil),
		acl.PermissionWrite: acl.NewEntry(false, []string{"bob"}, nil, nil),
	})

	assert.True(t, a.HasAnyPermission("bob", nil, nil, acl.PermissionDelete, acl.PermissionRead))
	assert.False(t, a.HasAnyPermission("bob", nil, nil, acl.PermissionDelete))
	assert.True(t, a.HasAllPermissions("bob", nil, nil, acl.PermissionRead, acl.PermissionWrite))
	assert.False(t, a.HasAllPermissions("bob", nil, nil, acl.PermissionRead, acl.PermissionDelete))
	assert.False(t, a.HasAllPermissions("bob", nil, nil), "empty permission list denies")
}

func TestACL_Equal(t *testing.T) {
	build := func(owner string) *acl.ACL {
		return acl.NewACL(owner, map[string]*acl.Entry{
			acl.PermissionRead: acl.NewEntry(false, []string{"bob", "alice"}, nil, nil),
		})
	}

	a := build("alice")
	b := acl.NewACL("alice", map[string]*acl.Entry{
		"READ": acl.NewEntry(false, []string{"Alice", "BOB"}, nil, nil),
	})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(build("carol")))
}
