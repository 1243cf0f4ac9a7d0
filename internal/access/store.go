package access

import (
	"context"

	"guild-dashboard/internal/domain/grant"
)

// GrantStore is the durable access-grant list. Grant and Revoke are
// idempotent single-row writes; concurrent writes resolve last-write-wins.
type GrantStore interface {
	HasGrant(ctx context.Context, userID string) (bool, error)
	Grant(ctx context.Context, input grant.CreateGrantInput) error
	Revoke(ctx context.Context, userID string) error
}

// GrantLister is implemented by stores that can enumerate grants.
type GrantLister interface {
	List(ctx context.Context) ([]*grant.Grant, error)
}
