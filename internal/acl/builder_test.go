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

func TestBuilder_AddAndRemove(t *testing.T) {
	a := acl.NewBuilder().
		Owner("alice").
		AddUser("bob", acl.PermissionRead, acl.PermissionWrite).
		AddRole("ROLE_AUDITOR", acl.PermissionRead).
		AddGroup("eng", acl.PermissionWrite).
		RemoveUser("bob", acl.PermissionWrite).
		BuildACL()

	assert.Equal(t, "alice", a.Owner())

	read, _ := a.Entry(acl.PermissionRead)
	assert.True(t, read.HasUser("bob"))
	assert.True(t, read.HasRole("ROLE_AUDITOR"))

	write, _ := a.Entry(acl.PermissionWrite)
	assert.False(t, write.HasUser("bob"))
	assert.True(t, write.HasGroup("eng"))
}

func TestBuilder_GuestFalseOnlyClearsExisting(t *testing.T) {
	b := acl.NewBuilder().Guest(false, acl.PermissionRead)
	rec := b.BuildRecord()
	assert.Empty(t, rec.Entries, "clearing guest must not create an entry")

	a := acl.NewBuilder().
		Guest(true, acl.PermissionRead).
		Guest(false, acl.PermissionRead).
		BuildACL()
	read, _ := a.Entry(acl.PermissionRead)
	assert.False(t, read.Guest)
}

func TestBuilder_DefaultsDoNotAliasSlots(t *testing.T) {
	template := acl.NewEntry(false, []string{"bob"}, nil, nil)

	a := acl.NewBuilder().
		Defaults(template, acl.PermissionRead, acl.PermissionWrite).
		AddUser("carol", acl.PermissionRead).
		BuildACL()

	read, _ := a.Entry(acl.PermissionRead)
	write, _ := a.Entry(acl.PermissionWrite)

	assert.True(t, read.HasUser("carol"))
	assert.False(t, write.HasUser("carol"), "mutating one slot must not leak into another")
	assert.True(t, write.HasUser("bob"))
	assert.Equal(t, []string{"bob"}, template.Users, "the template itself stays untouched")
}

func TestBuilder_DefaultsSkipExistingEntries(t *testing.T) {
	template := acl.NewEntry(true, nil, nil, nil)

	a := acl.NewBuilder().
		AddUser("bob", acl.PermissionRead).
		Defaults(template, acl.PermissionRead, acl.PermissionWrite).
		BuildACL()

	read, _ := a.Entry(acl.PermissionRead)
	assert.False(t, read.Guest, "an existing entry is not overwritten by the default")

	write, _ := a.Entry(acl.PermissionWrite)
	assert.True(t, write.Guest)
}

func TestBuilder_AdminAccess(t *testing.T) {
	adminRoles := []string{"ROLE_ADMIN"}

	a := acl.NewBuilder().
		EnsureAdminAccess(adminRoles).
		BuildACL()
	admin, _ := a.Entry(acl.PermissionAdministration)
	assert.True(t, admin.HasRole("ROLE_ADMIN"), "defaults to the administration permission")

	b := acl.NewBuilder().
		EnsureAdminAccess(adminRoles, acl.PermissionRead).
		RemoveAdminAccess(adminRoles, acl.PermissionRead).
		BuildACL()
	read, _ := b.Entry(acl.PermissionRead)
	assert.False(t, read.HasRole("ROLE_ADMIN"))
}

func TestBuilder_FromRecordRoundTrip(t *testing.T) {
	rec := &acl.Record{
		Owner: "alice",
		Entries: []acl.RecordEntry{
			{Permission: "Read", Guest: true},
			{Permission: "write", Users: []string{"bob"}},
			{Permission: "  ", Users: []string{"ignored"}},
		},
	}

	a := acl.NewBuilder().FromRecord(rec).BuildACL()

	read, _ := a.Entry(acl.PermissionRead)
	assert.True(t, read.Guest)
	write, _ := a.Entry(acl.PermissionWrite)
	assert.True(t, write.HasUser("bob"))

	out := acl.NewBuilder().From(a).BuildRecord()
	assert.Equal(t, "alice", out.Owner)
	assert.Len(t, out.Entries, len(acl.Permissions))
}

func TestBuild_RequiresFactory(t *testing.T) {
	b := acl.NewBuilder().Owner("alice")

	_, err := acl.Build[*acl.ACL](b, nil)
	require.Error(t, err)

	a, err := acl.Build(b, acl.NewACL)
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Owner())
}

func TestRecordFactory_SortsEntriesByPermission(t *testing.T) {
	rec := acl.RecordFactory("alice", map[string]*acl.Entry{
		acl.PermissionWrite:  acl.NewEntry(false, nil, nil, nil),
		acl.PermissionRead:   acl.NewEntry(false, nil, nil, nil),
		acl.PermissionCreate: acl.NewEntry(false, nil, nil, nil),
	})

	require.Len(t, rec.Entries, 3)
	assert.Equal(t, "create", rec.Entries[0].Permission)
	assert.Equal(t, "read", rec.Entries[1].Permission)
	assert.Equal(t, "write", rec.Entries[2].Permission)
}
