package access

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrGrantWithdrawn reports a self-heal skipped because the grant was revoked
// after the heal was scheduled.
var ErrGrantWithdrawn = errors.New("grant withdrawn before role sync")

// SyncResult is the outcome of one self-heal attempt.
type SyncResult struct {
	UserID string
	Err    error
}

// Healer pushes a durable grant back into the live role state. Lock
// serializes grant and revoke writes for a user with that user's heals.
type Healer interface {
	Schedule(ctx context.Context, userID string)
	Lock(userID string) (unlock func())
}

// RoleSync runs self-heal role grants in the background. Each task is detached
// from the caller's cancellation so a finished request does not abort it.
// Before granting the role a task re-reads the store under the user's lock,
// so a revoke that landed after scheduling is never undone.
type RoleSync struct {
	oracle   Oracle
	store    GrantStore
	locks    *userLocks
	logger   *slog.Logger
	recorder Recorder
	observer func(SyncResult)
	wg       sync.WaitGroup
}

type RoleSyncOption func(*RoleSync)

// WithObserver registers a callback invoked once per finished task.
func WithObserver(fn func(SyncResult)) RoleSyncOption {
	return func(s *RoleSync) {
		s.observer = fn
	}
}

func WithSyncLogger(logger *slog.Logger) RoleSyncOption {
	return func(s *RoleSync) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSyncRecorder(r Recorder) RoleSyncOption {
	return func(s *RoleSync) {
		if r != nil {
			s.recorder = r
		}
	}
}

func NewRoleSync(oracle Oracle, store GrantStore, opts ...RoleSyncOption) *RoleSync {
	s := &RoleSync{
		oracle:   oracle,
		store:    store,
		locks:    newUserLocks(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "rolesync")
	return s
}

func (s *RoleSync) Lock(userID string) func() {
	return s.locks.lock(userID)
}

func (s *RoleSync) Schedule(ctx context.Context, userID string) {
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := s.heal(ctx, userID)
		switch {
		case errors.Is(err, ErrGrantWithdrawn):
			s.logger.Info("self-heal skipped, grant withdrawn", "user_id", userID)
		case err != nil:
			s.logger.Warn("self-heal role grant failed", "user_id", userID, "error", err)
			s.recorder.SelfHeal(false)
		default:
			s.logger.Info("self-heal role granted", "user_id", userID)
			s.recorder.SelfHeal(true)
		}

		if s.observer != nil {
			s.observer(SyncResult{UserID: userID, Err: err})
		}
	}()
}

func (s *RoleSync) heal(ctx context.Context, userID string) error {
	unlock := s.Lock(userID)
	defer unlock()

	granted, err := s.store.HasGrant(ctx, userID)
	if err != nil {
		return err
	}
	if !granted {
		return ErrGrantWithdrawn
	}
	return s.oracle.GrantRole(ctx, userID)
}

// Wait blocks until every scheduled task has finished.
func (s *RoleSync) Wait() {
	s.wg.Wait()
}
