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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/accessctl/internal/acl"
	"github.com/opentrusty/accessctl/internal/authz"
)

// ACLRepository implements authz.ACLRepository on PostgreSQL. Entries are
// stored as the jsonb form of the wire record; loaded records pass through
// the mapper so default fan-out and the admin-access switch apply on every
// read path, not only on writes.
type ACLRepository struct {
	db     *DB
	mapper *acl.Mapper[*acl.ACL]
}

// NewACLRepository creates a new ACL repository
func NewACLRepository(db *DB, mapper *acl.Mapper[*acl.ACL]) *ACLRepository {
	return &ACLRepository{db: db, mapper: mapper}
}

// FindACL retrieves the ACL protecting (targetID, targetType). Returns
// authz.ErrACLNotFound when no row exists.
func (r *ACLRepository) FindACL(ctx context.Context, targetID, targetType string) (*acl.ACL, error) {
	var owner string
	var entriesJSON []byte

	err := r.db.pool.QueryRow(ctx, `
		SELECT owner, entries
		FROM access_controls
		WHERE target_id = $1 AND target_type = $2
	`, targetID, targetType).Scan(&owner, &entriesJSON)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrACLNotFound
		}
		return nil, fmt.Errorf("failed to find acl: %w", err)
	}

	var entries []acl.RecordEntry
	if err := json.Unmarshal(entriesJSON, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode acl entries: %w", err)
	}

	return r.mapper.Map(&acl.Record{Owner: owner, Entries: entries}), nil
}

// SaveACL inserts or replaces the ACL for (targetID, targetType), bumping
// the row version on replacement.
func (r *ACLRepository) SaveACL(ctx context.Context, targetID, targetType string, rec *acl.Record) error {
	if rec == nil {
		return fmt.Errorf("acl record must not be nil")
	}
	entriesJSON, err := json.Marshal(rec.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode acl entries: %w", err)
	}

	now := time.Now()
	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO access_controls (
			id, target_id, target_type, owner, entries, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
		ON CONFLICT (target_id, target_type) DO UPDATE SET
			owner      = EXCLUDED.owner,
			entries    = EXCLUDED.entries,
			version    = access_controls.version + 1,
			updated_at = EXCLUDED.updated_at
	`, uuid.NewString(), targetID, targetType, rec.Owner, entriesJSON, now)

	if err != nil {
		return fmt.Errorf("failed to save acl: %w", err)
	}
	return nil
}

// DeleteACL removes the ACL for (targetID, targetType). Deleting an absent
// ACL returns authz.ErrACLNotFound.
func (r *ACLRepository) DeleteACL(ctx context.Context, targetID, targetType string) error {
	tag, err := r.db.pool.Exec(ctx, `
		DELETE FROM access_controls
		WHERE target_id = $1 AND target_type = $2
	`, targetID, targetType)

	if err != nil {
		return fmt.Errorf("failed to delete acl: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrACLNotFound
	}
	return nil
}

// ListByOwner retrieves references to every resource owned by the principal.
func (r *ACLRepository) ListByOwner(ctx context.Context, owner string) ([]authz.Reference, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT target_id, target_type
		FROM access_controls
		WHERE owner = $1
		ORDER BY target_type, target_id
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list acls by owner: %w", err)
	}
	defer rows.Close()

	var refs []authz.Reference
	for rows.Next() {
		var ref authz.Reference
		if err := rows.Scan(&ref.ID, &ref.Type); err != nil {
			return nil, fmt.Errorf("failed to scan acl reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate acl references: %w", err)
	}
	return refs, nil
}
