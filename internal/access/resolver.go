package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"guild-dashboard/internal/domain/grant"
	apperrors "guild-dashboard/pkg/errors"
)

var errListGrantsNotSupported = errors.New("grant store does not support listing")

const (
	msgOnlyOwnerManages = "only the guild owner can manage access"
	msgCannotTargetSelf = "the guild owner already has access"
	msgGrantedSynced    = "access granted and role assigned"
	msgGrantedUnsynced  = "access granted; the role could not be assigned and will be synced on next login"
	msgRevokedSynced    = "access revoked and role removed"
	msgRevokedUnsynced  = "access revoked; the role could not be removed from the guild"
	errGrantWriteFmt    = "grant access for %s: %w"
	errRevokeWriteFmt   = "revoke access for %s: %w"
)

// ChangeResult describes a grant or revoke. Stored is the success criterion;
// RoleSynced=false is a partial success, not an error.
type ChangeResult struct {
	UserID     string `json:"userId"`
	Stored     bool   `json:"stored"`
	RoleSynced bool   `json:"roleSynced"`
	Message    string `json:"message"`
}

// Resolver merges the live oracle and the durable grant store into one
// access decision. Resolve never fails.
type Resolver struct {
	oracle   Oracle
	store    GrantStore
	cache    DecisionCache
	healer   Healer
	logger   *slog.Logger
	recorder Recorder

	// generations counts invalidations per user. A decision is only cached
	// when no invalidation happened while it was being computed.
	mu          sync.Mutex
	generations map[string]uint64
}

type Option func(*Resolver)

func WithCache(c DecisionCache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

func WithHealer(h Healer) Option {
	return func(r *Resolver) {
		if h != nil {
			r.healer = h
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewResolver builds a Resolver. Without WithHealer, self-heal runs on a
// RoleSync over the same oracle.
func NewResolver(oracle Oracle, store GrantStore, opts ...Option) *Resolver {
	r := &Resolver{
		oracle:      oracle,
		store:       store,
		cache:       NopDecisionCache{},
		logger:      slog.Default(),
		recorder:    nopRecorder{},
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.healer == nil {
		r.healer = NewRoleSync(oracle, store, WithSyncLogger(r.logger), WithSyncRecorder(r.recorder))
	}
	r.logger = r.logger.With("component", "resolver")
	return r
}

func (r *Resolver) Resolve(ctx context.Context, userID string) Decision {
	if d, ok := r.cache.Get(userID); ok {
		r.recorder.Resolution(d.Role, d.SourceAvailable, true)
		return d
	}

	gen := r.generation(userID)
	d := r.resolve(ctx, userID)
	if d.SourceAvailable {
		r.cacheIfCurrent(userID, gen, d)
	}
	r.recorder.Resolution(d.Role, d.SourceAvailable, false)
	return d
}

func (r *Resolver) resolve(ctx context.Context, userID string) Decision {
	m := r.oracle.Describe(ctx, userID)
	if m.Available {
		if m.OwnerMatch {
			return ownerDecision()
		}
		if m.HasRole {
			return adminDecision(true)
		}
	}

	granted, err := r.store.HasGrant(ctx, userID)
	if err != nil {
		r.recorder.StoreFailure()
		r.logger.Error("grant lookup failed, treating as no grant", "user_id", userID, "error", err)
		granted = false
	}

	if !granted {
		return deniedDecision(m.Available)
	}

	if m.Available {
		r.healer.Schedule(ctx, userID)
	}
	return adminDecision(m.Available)
}

// GrantAccess stores a grant for targetID and then tries to assign the live role.
func (r *Resolver) GrantAccess(ctx context.Context, actor Principal, targetID string) (ChangeResult, error) {
	if !actor.IsOwner() {
		return ChangeResult{}, apperrors.Forbidden(msgOnlyOwnerManages)
	}
	if actor.ID == targetID {
		return ChangeResult{}, apperrors.BadRequest(msgCannotTargetSelf)
	}

	unlock := r.healer.Lock(targetID)
	defer unlock()

	if err := r.store.Grant(ctx, grant.CreateGrantInput{UserID: targetID, GrantedBy: actor.ID}); err != nil {
		return ChangeResult{}, fmt.Errorf(errGrantWriteFmt, targetID, err)
	}
	r.invalidate(targetID)

	result := ChangeResult{UserID: targetID, Stored: true, RoleSynced: true, Message: msgGrantedSynced}
	if err := r.oracle.GrantRole(ctx, targetID); err != nil {
		r.logger.Warn("role assignment after grant failed", "user_id", targetID, "actor_id", actor.ID, "error", err)
		result.RoleSynced = false
		result.Message = msgGrantedUnsynced
	}
	return result, nil
}

// RevokeAccess deletes the grant for targetID and then tries to remove the live role.
func (r *Resolver) RevokeAccess(ctx context.Context, actor Principal, targetID string) (ChangeResult, error) {
	if !actor.IsOwner() {
		return ChangeResult{}, apperrors.Forbidden(msgOnlyOwnerManages)
	}
	if actor.ID == targetID {
		return ChangeResult{}, apperrors.BadRequest(msgCannotTargetSelf)
	}

	unlock := r.healer.Lock(targetID)
	defer unlock()

	if err := r.store.Revoke(ctx, targetID); err != nil {
		return ChangeResult{}, fmt.Errorf(errRevokeWriteFmt, targetID, err)
	}
	r.invalidate(targetID)

	result := ChangeResult{UserID: targetID, Stored: true, RoleSynced: true, Message: msgRevokedSynced}
	if err := r.oracle.RevokeRole(ctx, targetID); err != nil {
		r.logger.Warn("role removal after revoke failed", "user_id", targetID, "actor_id", actor.ID, "error", err)
		result.RoleSynced = false
		result.Message = msgRevokedUnsynced
	}
	// Drop decisions cached while the live role was still present.
	r.invalidate(targetID)
	return result, nil
}

// ListGrants returns all stored grants when the store supports it.
func (r *Resolver) ListGrants(ctx context.Context) ([]*grant.Grant, error) {
	lister, ok := r.store.(GrantLister)
	if !ok {
		return nil, errListGrantsNotSupported
	}
	return lister.List(ctx)
}

func (r *Resolver) generation(userID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[userID]
}

func (r *Resolver) cacheIfCurrent(userID string, gen uint64, d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[userID] == gen {
		r.cache.Set(userID, d)
	}
}

func (r *Resolver) invalidate(userID string) {
	r.mu.Lock()
	r.generations[userID]++
	r.mu.Unlock()
	r.cache.Invalidate(userID)
}
