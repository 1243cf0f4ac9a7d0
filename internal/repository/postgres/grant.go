package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"guild-dashboard/internal/domain/grant"
)

// GrantRepository is the durable credential store. Each write touches a
// single row keyed by user id; concurrent writes resolve last-write-wins.
type GrantRepository struct {
	db *DB
}

func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

func (r *GrantRepository) HasGrant(ctx context.Context, userID string) (bool, error) {
	query := `SELECT is_admin FROM access_grants WHERE user_id = $1`

	var isAdmin bool
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, storeError(err, errFailedLookupGrant)
	}

	return isAdmin, nil
}

// Grant marks the user as admin, refreshing granted_at and granted_by.
func (r *GrantRepository) Grant(ctx context.Context, input grant.CreateGrantInput) error {
	query := `
		INSERT INTO access_grants (user_id, is_admin, granted_by, granted_at)
		VALUES ($1, TRUE, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET is_admin = TRUE, granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at
	`

	var grantedBy *string
	if input.GrantedBy != "" {
		grantedBy = &input.GrantedBy
	}

	if _, err := r.db.Pool.Exec(ctx, query, input.UserID, grantedBy); err != nil {
		return storeError(err, errFailedUpsertGrant)
	}
	return nil
}

// Revoke deletes the grant. Revoking a missing grant succeeds.
func (r *GrantRepository) Revoke(ctx context.Context, userID string) error {
	query := `DELETE FROM access_grants WHERE user_id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, userID); err != nil {
		return storeError(err, errFailedDeleteGrant)
	}
	return nil
}

func (r *GrantRepository) List(ctx context.Context) ([]*grant.Grant, error) {
	query := `
		SELECT user_id, is_admin, granted_by, granted_at
		FROM access_grants
		ORDER BY granted_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, storeError(err, errFailedListGrants)
	}
	defer rows.Close()

	grants := []*grant.Grant{}
	for rows.Next() {
		g := &grant.Grant{}
		if err := rows.Scan(&g.UserID, &g.IsAdmin, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, errFailedScanGrant(err)
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, errIterateGrants(err)
	}

	return grants, nil
}
