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

import "fmt"

// MapperConfig configures a Mapper.
type MapperConfig struct {
	// DefaultPermissions are fanned out on every mapped ACL: each listed
	// permission missing from the source receives an independent copy of
	// DefaultEntry. Defaults to the full fixed permission set.
	DefaultPermissions []string

	// DefaultEntry is the template for fanned-out entries. Nil means an
	// empty non-guest entry.
	DefaultEntry *Entry

	// SwitchAdminAccess injects AdminRoles into the administration entry
	// when mapping into the concrete representation, and strips them again
	// when mapping out to the wire record.
	SwitchAdminAccess bool

	// ReturnNull makes mapping an absent source yield the zero value (nil
	// for pointer representations) instead of a default ACL.
	ReturnNull bool

	// AdminRoles are the administrator authority names used by admin access
	// switching. Defaults to ROLE_ADMIN.
	AdminRoles []string
}

// Mapper translates between wire/storage records and a concrete ACL
// representation T, applying default-permission fan-out, the administrator
// override and the null-vs-empty return policy. Mapping is pure and
// side-effect free; a Mapper is safe for concurrent use.
type Mapper[T any] struct {
	factory            Factory[T]
	defaultPermissions []string
	defaultEntry       *Entry
	switchAdminAccess  bool
	returnNull         bool
	adminRoles         []string
}

// NewMapper creates a mapper over the factory. The factory is a wiring
// precondition: a nil factory fails here, not per call.
func NewMapper[T any](factory Factory[T], cfg MapperConfig) (*Mapper[T], error) {
	if factory == nil {
		return nil, fmt.Errorf("acl: mapper requires a factory")
	}
	defaults := cfg.DefaultPermissions
	if defaults == nil {
		defaults = Permissions
	}
	adminRoles := cfg.AdminRoles
	if len(adminRoles) == 0 {
		adminRoles = []string{AdminRole}
	}
	return &Mapper[T]{
		factory:            factory,
		defaultPermissions: append([]string(nil), defaults...),
		defaultEntry:       cfg.DefaultEntry.Clone(),
		switchAdminAccess:  cfg.SwitchAdminAccess,
		returnNull:         cfg.ReturnNull,
		adminRoles:         append([]string(nil), adminRoles...),
	}, nil
}

// AdminRoles returns the configured administrator authority names.
func (m *Mapper[T]) AdminRoles() []string {
	return append([]string(nil), m.adminRoles...)
}

// Map translates a wire/storage record into the concrete representation,
// fanning out default permissions and, when admin access switching is on,
// granting the admin roles on the administration entry. A nil record yields
// the zero value under the return-null policy, a default ACL otherwise.
func (m *Mapper[T]) Map(rec *Record) T {
	if rec == nil && m.returnNull {
		var zero T
		return zero
	}
	b := NewBuilder().
		FromRecord(rec).
		Defaults(m.defaultEntry, m.defaultPermissions...)
	if m.switchAdminAccess {
		b.EnsureAdminAccess(m.adminRoles)
	}
	out, _ := Build(b, m.factory)
	return out
}

// MapToRecord translates a concrete representation into the wire record,
// stripping the admin roles again when admin access switching is on. A nil
// source yields nil under the return-null policy, a default record
// otherwise.
func (m *Mapper[T]) MapToRecord(src Accessor) *Record {
	if isNil(src) {
		if m.returnNull {
			return nil
		}
		src = nil
	}
	b := NewBuilder().
		From(src).
		Defaults(m.defaultEntry, m.defaultPermissions...)
	if m.switchAdminAccess {
		b.RemoveAdminAccess(m.adminRoles)
	}
	return b.BuildRecord()
}

// DefaultACL builds the concrete representation of a fresh ACL for the
// owner, granting the owner the default permissions directly.
func (m *Mapper[T]) DefaultACL(owner string) T {
	b := NewBuilder().
		Owner(owner).
		AddUser(owner, m.defaultPermissions...).
		Defaults(m.defaultEntry, m.defaultPermissions...)
	if m.switchAdminAccess {
		b.EnsureAdminAccess(m.adminRoles)
	}
	out, _ := Build(b, m.factory)
	return out
}

// DefaultRecord builds the wire record of a fresh ACL for the owner.
func (m *Mapper[T]) DefaultRecord(owner string) *Record {
	return NewBuilder().
		Owner(owner).
		AddUser(owner, m.defaultPermissions...).
		Defaults(m.defaultEntry, m.defaultPermissions...).
		BuildRecord()
}

// isNil reports whether the accessor is nil, including a typed nil pointer
// behind the interface.
func isNil(src Accessor) bool {
	if src == nil {
		return true
	}
	if a, ok := src.(*ACL); ok {
		return a == nil
	}
	return false
}
