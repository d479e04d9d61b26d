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

// Package acl holds the access-control data model: access control entries,
// access control lists over the fixed permission set, the builder and the
// mapper between wire/storage records and concrete ACL representations.
package acl

import (
	"sort"
	"strings"
)

// The fixed, closed set of permission names. Permission names outside this
// set are ignored on ACL construction.
const (
	PermissionAdministration = "administration"
	PermissionCreate         = "create"
	PermissionDelete         = "delete"
	PermissionRead           = "read"
	PermissionWrite          = "write"
)

// Permissions lists the fixed permission set.
var Permissions = []string{
	PermissionAdministration,
	PermissionCreate,
	PermissionDelete,
	PermissionRead,
	PermissionWrite,
}

// AdminRole is the default administrator authority injected by the mapper
// when admin access switching is enabled.
const AdminRole = "ROLE_ADMIN"

// IsValidPermission reports whether the name is one of the fixed permissions.
func IsValidPermission(permission string) bool {
	p := strings.ToLower(permission)
	for _, known := range Permissions {
		if p == known {
			return true
		}
	}
	return false
}

// Entry is an access control entry: the grant record for one permission.
// Once attached to an ACL it is treated as read-only.
type Entry struct {
	// Guest grants the permission to every caller, authenticated or not.
	Guest bool
	// Users holds principal names granted the permission directly.
	Users []string
	// Roles holds authority names; any held authority grants.
	Roles []string
	// Groups holds group names; any resolved membership grants.
	Groups []string
}

// NewEntry builds a normalized entry: blank members dropped, duplicates
// removed, members sorted.
func NewEntry(guest bool, users, roles, groups []string) *Entry {
	return &Entry{
		Guest:  guest,
		Users:  normalizeSet(users),
		Roles:  normalizeSet(roles),
		Groups: normalizeSet(groups),
	}
}

// Clone returns an independent deep copy of the entry. Mutating the copy's
// sets never aliases the original.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return NewEntry(false, nil, nil, nil)
	}
	return &Entry{
		Guest:  e.Guest,
		Users:  append([]string(nil), e.Users...),
		Roles:  append([]string(nil), e.Roles...),
		Groups: append([]string(nil), e.Groups...),
	}
}

// HasUser reports whether the principal name is granted directly.
func (e *Entry) HasUser(user string) bool { return contains(e.Users, user) }

// HasRole reports whether the authority name is granted.
func (e *Entry) HasRole(role string) bool { return contains(e.Roles, role) }

// HasGroup reports whether the group name is granted.
func (e *Entry) HasGroup(group string) bool { return contains(e.Groups, group) }

// HasAnyRole reports whether any of the held authorities is granted.
func (e *Entry) HasAnyRole(roles []string) bool {
	for _, r := range roles {
		if e.HasRole(r) {
			return true
		}
	}
	return false
}

// HasAnyGroup reports whether any of the resolved groups is granted.
func (e *Entry) HasAnyGroup(groups []string) bool {
	for _, g := range groups {
		if e.HasGroup(g) {
			return true
		}
	}
	return false
}

// Equal compares the guest flag and the normalized contents of the three
// member sets. Comparison is case-insensitive and order-independent, so two
// entries with the same effective membership are equal regardless of
// insertion order.
func (e *Entry) Equal(o *Entry) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Guest == o.Guest &&
		setsEqualFold(e.Users, o.Users) &&
		setsEqualFold(e.Roles, o.Roles) &&
		setsEqualFold(e.Groups, o.Groups)
}

// ACL is an access control list: an owner plus a complete entry map over the
// fixed permission set. The owner has implicit access to every permission and
// is never itself recorded in the entries. ACLs are read-only after
// construction; replace whole entries by building a new ACL.
type ACL struct {
	owner   string
	entries map[string]*Entry
}

// Accessor is the capability an ACL representation exposes to the mapper and
// the evaluator. Concrete storage or wire types stay opaque behind it.
type Accessor interface {
	Owner() string
	Entries() map[string]*Entry
}

// NewACL builds an ACL from the owner and the given entries. Permission keys
// are lower-cased, names outside the fixed permission set are ignored, and
// every fixed permission missing from the input receives an empty non-guest
// entry, so the map is never partial. Entries are deep-copied on the way in.
func NewACL(owner string, entries map[string]*Entry) *ACL {
	m := make(map[string]*Entry, len(Permissions))
	for permission, entry := range entries {
		p := strings.ToLower(permission)
		if !IsValidPermission(p) {
			continue
		}
		m[p] = NewEntry(entry.Guest, entry.Users, entry.Roles, entry.Groups)
	}
	for _, permission := range Permissions {
		if _, ok := m[permission]; !ok {
			m[permission] = NewEntry(false, nil, nil, nil)
		}
	}
	return &ACL{owner: owner, entries: m}
}

// Owner returns the owning principal name.
func (a *ACL) Owner() string { return a.owner }

// Entries returns the entry map. Callers must treat it as read-only.
func (a *ACL) Entries() map[string]*Entry { return a.entries }

// Entry returns the entry for the permission, case-insensitively.
func (a *ACL) Entry(permission string) (*Entry, bool) {
	e, ok := a.entries[strings.ToLower(permission)]
	return e, ok
}

// HasPermission determines whether the given user with the given roles and
// groups holds the permission: owner bypass, then guest, then direct user
// grant, then role grant, then group grant.
func (a *ACL) HasPermission(user string, roles, groups []string, permission string) bool {
	if a == nil || permission == "" {
		return false
	}
	if user != "" && user == a.owner {
		return true
	}
	entry, ok := a.Entry(permission)
	if !ok {
		return false
	}
	if entry.Guest {
		return true
	}
	if user != "" && entry.HasUser(user) {
		return true
	}
	if entry.HasAnyRole(roles) {
		return true
	}
	return entry.HasAnyGroup(groups)
}

// HasAnyPermission reports whether at least one of the permissions is held.
func (a *ACL) HasAnyPermission(user string, roles, groups []string, permissions ...string) bool {
	for _, permission := range permissions {
		if a.HasPermission(user, roles, groups, permission) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every one of the permissions is held.
// An empty permission list yields false.
func (a *ACL) HasAllPermissions(user string, roles, groups []string, permissions ...string) bool {
	if len(permissions) == 0 {
		return false
	}
	for _, permission := range permissions {
		if !a.HasPermission(user, roles, groups, permission) {
			return false
		}
	}
	return true
}

// Equal compares owners and entry maps, entry by entry.
func (a *ACL) Equal(o *ACL) bool {
	if a == nil || o == nil {
		return a == o
	}
	if a.owner != o.owner {
		return false
	}
	for _, permission := range Permissions {
		if !a.entries[permission].Equal(o.entries[permission]) {
			return false
		}
	}
	return true
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func setsEqualFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	fold := func(values []string) []string {
		out := make([]string, len(values))
		for i, v := range values {
			out[i] = strings.ToLower(v)
		}
		sort.Strings(out)
		return out
	}
	fa, fb := fold(a), fold(b)
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}
