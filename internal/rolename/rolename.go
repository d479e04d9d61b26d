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

// Package rolename encodes and decodes synthetic authority names that embed
// a user name or an (entity type, entity id) pair. These names represent
// ad-hoc per-resource roles (owner-of, manager-of, friends-of, custom-of)
// without a dedicated grant table.
package rolename

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Role name prefixes. The four prefixes are pairwise non-overlapping by
// construction: none is a prefix of another. Prefix-only matching (e.g.
// IsCustomRoleName with a blank user) relies on this.
const (
	CustomRolePrefix  = "ROLE_CUSTOM_OF_"
	FriendsRolePrefix = "ROLE_FRIENDS_OF_"
	OwnerRolePrefix   = "ROLE_OWNER_OF_"
	ManagerRolePrefix = "ROLE_MANAGER_OF_"
)

// Role kind bitmask values. Callers use these to declare which role kinds a
// resource type supports; the evaluator itself does not consume them.
const (
	NormalRoleMask  = 1 << 0
	FriendsRoleMask = 1 << 1
	CustomRoleMask  = 1 << 2
	OwnerRoleMask   = 1 << 3
	ManagerRoleMask = 1 << 4
)

// maxCustomRoleNameLen bounds generated custom role names so they fit into
// common authority columns.
const maxCustomRoleNameLen = 130

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// IsNormalRoleName reports whether the name is a plain ROLE_ authority that
// does not carry any of the synthetic prefixes.
func IsNormalRoleName(roleName string) bool {
	return strings.HasPrefix(roleName, "ROLE_") &&
		!strings.HasPrefix(roleName, CustomRolePrefix) &&
		!strings.HasPrefix(roleName, FriendsRolePrefix) &&
		!strings.HasPrefix(roleName, OwnerRolePrefix) &&
		!strings.HasPrefix(roleName, ManagerRolePrefix)
}

// IsCustomRoleName reports whether the name is a custom role name. With a
// blank user the check is prefix-only; otherwise the fully qualified prefix
// for that user must match.
func IsCustomRoleName(roleName, userName string) bool {
	if strings.TrimSpace(userName) == "" {
		return strings.HasPrefix(roleName, CustomRolePrefix)
	}
	prefix, err := CustomRoleNamePrefix(userName)
	if err != nil {
		return false
	}
	return strings.HasPrefix(roleName, prefix)
}

// CustomRoleNamePrefix returns the custom role name prefix for the user.
func CustomRoleNamePrefix(userName string) (string, error) {
	if strings.TrimSpace(userName) == "" {
		return "", fmt.Errorf("%w: user name must be present", ErrInvalidArgument)
	}
	return CustomRolePrefix + userName + "_", nil
}

// GenerateCustomRoleName builds a custom role name for the user with a
// random suffix: ROLE_CUSTOM_OF_{user}_{suffix}. The suffix is sized so the
// whole name stays within the length bound and never contains the '_'
// separator, keeping the last-underscore parse unambiguous.
func GenerateCustomRoleName(userName string) (string, error) {
	prefix, err := CustomRoleNamePrefix(userName)
	if err != nil {
		return "", err
	}
	suffixLen := maxCustomRoleNameLen - (len(CustomRolePrefix) + len(userName) + 1)
	if suffixLen < 0 {
		suffixLen = 0
	}
	return prefix + randomSuffix(suffixLen), nil
}

// UserFromCustomRoleName extracts the user name from a generated custom role
// name, the substring between the prefix and the last '_'. It returns an
// empty string (not an error) when the name is not a custom role name or when
// the boundary '_' is not strictly beyond the prefix, which guards a bare
// prefix with no generated suffix against misparsing.
func UserFromCustomRoleName(roleName string) string {
	idx := strings.LastIndexByte(roleName, '_')
	if IsCustomRoleName(roleName, "") && idx > len(CustomRolePrefix) {
		return roleName[len(CustomRolePrefix):idx]
	}
	return ""
}

// IsFriendsRoleName reports whether the name is a friends role name.
func IsFriendsRoleName(roleName string) bool {
	return strings.HasPrefix(roleName, FriendsRolePrefix)
}

// FriendsRoleName returns the friends role name for the user.
func FriendsRoleName(userName string) (string, error) {
	if strings.TrimSpace(userName) == "" {
		return "", fmt.Errorf("%w: user name must be present", ErrInvalidArgument)
	}
	return FriendsRolePrefix + userName, nil
}

// UserFromFriendsRoleName extracts the user name from a friends role name,
// or returns an empty string when the name is not a friends role name.
func UserFromFriendsRoleName(roleName string) string {
	if !IsFriendsRoleName(roleName) {
		return ""
	}
	return roleName[len(FriendsRolePrefix):]
}

// OwnerRoleNamePrefix returns the owner role name prefix for the entity
// type. The entity type segment is always upper-cased.
func OwnerRoleNamePrefix(entityType string) (string, error) {
	if strings.TrimSpace(entityType) == "" {
		return "", fmt.Errorf("%w: entity type must be present", ErrInvalidArgument)
	}
	return OwnerRolePrefix + strings.ToUpper(entityType) + "_", nil
}

// IsOwnerRoleName reports whether the name is an owner role name. With a
// blank entity type the check is prefix-only.
func IsOwnerRoleName(roleName, entityType string) bool {
	if strings.TrimSpace(entityType) == "" {
		return strings.HasPrefix(roleName, OwnerRolePrefix)
	}
	prefix, err := OwnerRoleNamePrefix(entityType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(roleName, prefix)
}

// OwnerRoleName returns the owner role name for the entity:
// ROLE_OWNER_OF_{ENTITY_TYPE}_{entityId}. The entity id may be empty but the
// entity type must be present.
func OwnerRoleName(entityType, entityID string) (string, error) {
	prefix, err := OwnerRoleNamePrefix(entityType)
	if err != nil {
		return "", err
	}
	return prefix + entityID, nil
}

// EntityIDFromOwnerRoleName extracts the entity id from an owner role name,
// or returns an empty string when the name does not match the entity type's
// owner prefix.
func EntityIDFromOwnerRoleName(roleName, entityType string) string {
	prefix, err := OwnerRoleNamePrefix(entityType)
	if err != nil || !strings.HasPrefix(roleName, prefix) {
		return ""
	}
	return roleName[len(prefix):]
}

// ManagerRoleNamePrefix returns the manager role name prefix for the entity
// type. The entity type segment is always upper-cased.
func ManagerRoleNamePrefix(entityType string) (string, error) {
	if strings.TrimSpace(entityType) == "" {
		return "", fmt.Errorf("%w: entity type must be present", ErrInvalidArgument)
	}
	return ManagerRolePrefix + strings.ToUpper(entityType) + "_", nil
}

// IsManagerRoleName reports whether the name is a manager role name. With a
// blank entity type the check is prefix-only.
func IsManagerRoleName(roleName, entityType string) bool {
	if strings.TrimSpace(entityType) == "" {
		return strings.HasPrefix(roleName, ManagerRolePrefix)
	}
	prefix, err := ManagerRoleNamePrefix(entityType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(roleName, prefix)
}

// ManagerRoleName returns the manager role name for the entity:
// ROLE_MANAGER_OF_{ENTITY_TYPE}_{entityId}. Both the entity type and the
// entity id must be present.
func ManagerRoleName(entityType, entityID string) (string, error) {
	prefix, err := ManagerRoleNamePrefix(entityType)
	if err != nil {
		return "", err
	}
	if entityID == "" {
		return "", fmt.Errorf("%w: entity id must be present", ErrInvalidArgument)
	}
	return prefix + entityID, nil
}

// EntityIDFromManagerRoleName extracts the entity id from a manager role
// name, or returns an empty string when the name does not match the entity
// type's manager prefix.
func EntityIDFromManagerRoleName(roleName, entityType string) string {
	prefix, err := ManagerRoleNamePrefix(entityType)
	if err != nil || !strings.HasPrefix(roleName, prefix) {
		return ""
	}
	return roleName[len(prefix):]
}

// randomSuffix returns n cryptographically random characters drawn from the
// suffix alphabet. The alphabet contains no '_'.
func randomSuffix(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform source is broken.
		panic(fmt.Sprintf("rolename: random source unavailable: %v", err))
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(out)
}
