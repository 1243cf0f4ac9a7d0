package access

import (
	"context"
	"log/slog"

	apperrors "guild-dashboard/pkg/errors"
)

// Member is a guild member as seen by the chat platform.
type Member interface {
	HasRole(roleID string) bool
}

// Guilds is the narrow capability the oracle needs from the chat platform
// client. Every method may fail; the oracle treats failures as soft.
type Guilds interface {
	// IsAvailable reports whether the client currently has a view of the guild.
	IsAvailable(ctx context.Context) bool
	IsOwner(ctx context.Context, userID string) (bool, error)
	// FetchMember returns nil, nil when the user is not a member.
	FetchMember(ctx context.Context, userID string) (Member, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

// Membership is what the live source knows about one user. Available=false
// means the source had no view of the guild, which is not the same as "no role".
type Membership struct {
	OwnerMatch bool
	HasRole    bool
	Available  bool
}

// Oracle answers live membership questions and applies best-effort role writes.
type Oracle interface {
	Describe(ctx context.Context, userID string) Membership
	Available(ctx context.Context) bool
	GrantRole(ctx context.Context, userID string) error
	RevokeRole(ctx context.Context, userID string) error
}

// GuildOracle is the Oracle for one guild and its privileged role.
type GuildOracle struct {
	guilds Guilds
	roleID string
	logger *slog.Logger
}

func NewGuildOracle(guilds Guilds, roleID string, logger *slog.Logger) *GuildOracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuildOracle{
		guilds: guilds,
		roleID: roleID,
		logger: logger.With("component", "oracle"),
	}
}

func (o *GuildOracle) RoleID() string {
	return o.roleID
}

func (o *GuildOracle) Available(ctx context.Context) bool {
	return o.guilds.IsAvailable(ctx)
}

func (o *GuildOracle) Describe(ctx context.Context, userID string) Membership {
	if !o.guilds.IsAvailable(ctx) {
		return Membership{Available: false}
	}

	owner, err := o.guilds.IsOwner(ctx, userID)
	if err != nil {
		o.logger.Warn("owner lookup failed", "user_id", userID, "error", err)
	}
	if owner {
		return Membership{OwnerMatch: true, Available: true}
	}

	member, err := o.guilds.FetchMember(ctx, userID)
	if err != nil {
		o.logger.Warn("member lookup failed", "user_id", userID, "error", err)
		return Membership{Available: true}
	}
	if member == nil {
		return Membership{Available: true}
	}

	return Membership{HasRole: member.HasRole(o.roleID), Available: true}
}

func (o *GuildOracle) GrantRole(ctx context.Context, userID string) error {
	if !o.guilds.IsAvailable(ctx) {
		return apperrors.ErrOracleUnavailable
	}
	return o.guilds.AddRole(ctx, userID, o.roleID)
}

func (o *GuildOracle) RevokeRole(ctx context.Context, userID string) error {
	if !o.guilds.IsAvailable(ctx) {
		return apperrors.ErrOracleUnavailable
	}
	return o.guilds.RemoveRole(ctx, userID, o.roleID)
}
