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

package acl

import (
	"fmt"
	"strings"
)

// Factory is the constructor capability for a caller's concrete ACL
// representation. The entry map passed to it is freshly allocated per call.
type Factory[T any] func(owner string, entries map[string]*Entry) T

// Builder assembles an access control list entry by entry. The zero value is
// not usable; start with NewBuilder. Permission names are lower-cased, blank
// permissions and blank member names are ignored.
type Builder struct {
	owner   string
	entries map[string]*mutableEntry
}

type mutableEntry struct {
	guest  bool
	users  map[string]struct{}
	roles  map[string]struct{}
	groups map[string]struct{}
}

func newMutableEntry() *mutableEntry {
	return &mutableEntry{
		users:  make(map[string]struct{}),
		roles:  make(map[string]struct{}),
		groups: make(map[string]struct{}),
	}
}

// NewBuilder creates an empty access control list builder.
func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]*mutableEntry)}
}

// Reset clears the builder.
func (b *Builder) Reset() *Builder {
	b.owner = ""
	b.entries = make(map[string]*mutableEntry)
	return b
}

// From merges the owner and entries of an existing ACL representation.
func (b *Builder) From(src Accessor) *Builder {
	if src == nil {
		return b
	}
	b.owner = src.Owner()
	for permission, entry := range src.Entries() {
		if strings.TrimSpace(permission) == "" || entry == nil {
			continue
		}
		p := strings.ToLower(permission)
		b.Guest(entry.Guest, p)
		for _, user := range entry.Users {
			b.AddUser(user, p)
		}
		for _, role := range entry.Roles {
			b.AddRole(role, p)
		}
		for _, group := range entry.Groups {
			b.AddGroup(group, p)
		}
	}
	return b
}

// FromRecord merges the owner and entries of a wire/storage record.
func (b *Builder) FromRecord(rec *Record) *Builder {
	if rec == nil {
		return b
	}
	b.owner = rec.Owner
	for _, entry := range rec.Entries {
		if strings.TrimSpace(entry.Permission) == "" {
			continue
		}
		p := strings.ToLower(entry.Permission)
		b.Guest(entry.Guest, p)
		for _, user := range entry.Users {
			b.AddUser(user, p)
		}
		for _, role := range entry.Roles {
			b.AddRole(role, p)
		}
		for _, group := range entry.Groups {
			b.AddGroup(group, p)
		}
	}
	return b
}

// Owner sets the owning principal name.
func (b *Builder) Owner(owner string) *Builder {
	b.owner = owner
	return b
}

// Defaults ensures the given permissions have an entry, filling absent slots
// with an independent copy of the template. A nil template fills with empty
// non-guest entries. Copies are deep so later mutation of one slot never
// aliases another.
func (b *Builder) Defaults(template *Entry, permissions ...string) *Builder {
	for _, permission := range permissions {
		if strings.TrimSpace(permission) == "" {
			continue
		}
		p := strings.ToLower(permission)
		if _, ok := b.entries[p]; ok {
			continue
		}
		entry := newMutableEntry()
		if template != nil {
			entry.guest = template.Guest
			for _, user := range template.Users {
				entry.users[user] = struct{}{}
			}
			for _, role := range template.Roles {
				entry.roles[role] = struct{}{}
			}
			for _, group := range template.Groups {
				entry.groups[group] = struct{}{}
			}
		}
		b.entries[p] = entry
	}
	return b
}

// Guest marks the permissions as open to every caller. Setting guest to
// false only clears the flag on entries that already exist.
func (b *Builder) Guest(guest bool, permissions ...string) *Builder {
	for _, permission := range permissions {
		if strings.TrimSpace(permission) == "" {
			continue
		}
		p := strings.ToLower(permission)
		if guest {
			b.entry(p).guest = true
		} else if e, ok := b.entries[p]; ok {
			e.guest = false
		}
	}
	return b
}

// AddUser grants the permissions to the principal name.
func (b *Builder) AddUser(user string, permissions ...string) *Builder {
	return b.add(user, permissions, func(e *mutableEntry) map[string]struct{} { return e.users })
}

// AddRole grants the permissions to the authority name.
func (b *Builder) AddRole(role string, permissions ...string) *Builder {
	return b.add(role, permissions, func(e *mutableEntry) map[string]struct{} { return e.roles })
}

// AddGroup grants the permissions to the group name.
func (b *Builder) AddGroup(group string, permissions ...string) *Builder {
	return b.add(group, permissions, func(e *mutableEntry) map[string]struct{} { return e.groups })
}

// RemoveUser revokes the principal's direct grant for the permissions.
func (b *Builder) RemoveUser(user string, permissions ...string) *Builder {
	return b.remove(user, permissions, func(e *mutableEntry) map[string]struct{} { return e.users })
}

// RemoveRole revokes the authority's grant for the permissions.
func (b *Builder) RemoveRole(role string, permissions ...string) *Builder {
	return b.remove(role, permissions, func(e *mutableEntry) map[string]struct{} { return e.roles })
}

// RemoveGroup revokes the group's grant for the permissions.
func (b *Builder) RemoveGroup(group string, permissions ...string) *Builder {
	return b.remove(group, permissions, func(e *mutableEntry) map[string]struct{} { return e.groups })
}

// EnsureAdminAccess grants the admin roles on the given permissions, the
// administration permission when none are given.
func (b *Builder) EnsureAdminAccess(adminRoles []string, permissions ...string) *Builder {
	if len(permissions) == 0 {
		permissions = []string{PermissionAdministration}
	}
	for _, role := range adminRoles {
		b.AddRole(role, permissions...)
	}
	return b
}

// RemoveAdminAccess revokes the admin roles on the given permissions, the
// administration permission when none are given.
func (b *Builder) RemoveAdminAccess(adminRoles []string, permissions ...string) *Builder {
	if len(permissions) == 0 {
		permissions = []string{PermissionAdministration}
	}
	for _, role := range adminRoles {
		b.RemoveRole(role, permissions...)
	}
	return b
}

// BuildACL builds the generic domain ACL.
func (b *Builder) BuildACL() *ACL {
	return NewACL(b.owner, b.snapshot())
}

// BuildRecord builds the wire/storage record.
func (b *Builder) BuildRecord() *Record {
	return RecordFactory(b.owner, b.snapshot())
}

// Build constructs the caller's concrete ACL representation via the factory.
func Build[T any](b *Builder, factory Factory[T]) (T, error) {
	var zero T
	if factory == nil {
		return zero, fmt.Errorf("acl: factory must not be nil")
	}
	return factory(b.owner, b.snapshot()), nil
}

func (b *Builder) entry(permission string) *mutableEntry {
	e, ok := b.entries[permission]
	if !ok {
		e = newMutableEntry()
		b.entries[permission] = e
	}
	return e
}

func (b *Builder) add(name string, permissions []string, set func(*mutableEntry) map[string]struct{}) *Builder {
	if strings.TrimSpace(name) == "" {
		return b
	}
	for _, permission := range permissions {
		if strings.TrimSpace(permission) == "" {
			continue
		}
		set(b.entry(strings.ToLower(permission)))[name] = struct{}{}
	}
	return b
}

func (b *Builder) remove(name string, permissions []string, set func(*mutableEntry) map[string]struct{}) *Builder {
	if strings.TrimSpace(name) == "" {
		return b
	}
	for _, permission := range permissions {
		if e, ok := b.entries[strings.ToLower(permission)]; ok {
			delete(set(e), name)
		}
	}
	return b
}

func (b *Builder) snapshot() map[string]*Entry {
	entries := make(map[string]*Entry, len(b.entries))
	for permission, e := range b.entries {
		entries[permission] = NewEntry(e.guest, keys(e.users), keys(e.roles), keys(e.groups))
	}
	return entries
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
