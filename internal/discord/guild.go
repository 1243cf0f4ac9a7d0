package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"guild-dashboard/internal/access"
)

const (
	botAuthPrefix            = "Bot "
	availabilityPollInterval = 250 * time.Millisecond

	errCreateSessionFmt = "failed to create discord session: %w"
	errOpenSessionFmt   = "failed to open discord gateway: %w"
	errFetchMemberFmt   = "failed to fetch member %s: %w"
	errAddRoleFmt       = "failed to add role to %s: %w"
	errRemoveRoleFmt    = "failed to remove role from %s: %w"
)

// Guild adapts a discordgo session to access.Guilds for one guild. Reads go
// to the gateway state first and fall back to REST.
type Guild struct {
	session *discordgo.Session
	guildID string
}

// Open connects the bot to the gateway with the intents the state cache needs.
func Open(botToken, guildID string) (*Guild, error) {
	s, err := discordgo.New(botAuthPrefix + botToken)
	if err != nil {
		return nil, fmt.Errorf(errCreateSessionFmt, err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	s.StateEnabled = true

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf(errOpenSessionFmt, err)
	}

	return NewGuild(s, guildID), nil
}

func NewGuild(s *discordgo.Session, guildID string) *Guild {
	return &Guild{session: s, guildID: guildID}
}

func (g *Guild) Close() error {
	return g.session.Close()
}

func (g *Guild) ID() string {
	return g.guildID
}

func (g *Guild) IsAvailable(context.Context) bool {
	guild, err := g.session.State.Guild(g.guildID)
	if err != nil {
		return false
	}
	return !guild.Unavailable
}

// WaitAvailable blocks until the gateway has delivered the guild or ctx ends.
// Operator commands use it so role writes are not skipped right after Open.
func (g *Guild) WaitAvailable(ctx context.Context) bool {
	ticker := time.NewTicker(availabilityPollInterval)
	defer ticker.Stop()

	for {
		if g.IsAvailable(ctx) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (g *Guild) IsOwner(_ context.Context, userID string) (bool, error) {
	guild, err := g.session.State.Guild(g.guildID)
	if err != nil {
		return false, err
	}

	g.session.State.RLock()
	defer g.session.State.RUnlock()
	return guild.OwnerID != "" && guild.OwnerID == userID, nil
}

func (g *Guild) FetchMember(ctx context.Context, userID string) (access.Member, error) {
	if m, err := g.session.State.Member(g.guildID, userID); err == nil {
		g.session.State.RLock()
		defer g.session.State.RUnlock()
		return newMember(m), nil
	}

	m, err := g.session.GuildMember(g.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf(errFetchMemberFmt, userID, err)
	}

	m.GuildID = g.guildID
	fetched := newMember(m)
	_ = g.session.State.MemberAdd(m)
	return fetched, nil
}

func (g *Guild) AddRole(ctx context.Context, userID, roleID string) error {
	if err := g.session.GuildMemberRoleAdd(g.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf(errAddRoleFmt, userID, err)
	}
	return nil
}

func (g *Guild) RemoveRole(ctx context.Context, userID, roleID string) error {
	if err := g.session.GuildMemberRoleRemove(g.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf(errRemoveRoleFmt, userID, err)
	}
	return nil
}

// MemberSummary is the public view of a guild member returned by search.
type MemberSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// SearchMembers matches the query against the cached members' username,
// global name and nickname by case-insensitive prefix.
func (g *Guild) SearchMembers(_ context.Context, query string, limit int) []MemberSummary {
	guild, err := g.session.State.Guild(g.guildID)
	if err != nil {
		return []MemberSummary{}
	}

	q := strings.ToLower(strings.TrimSpace(query))

	g.session.State.RLock()
	defer g.session.State.RUnlock()

	out := make([]MemberSummary, 0, limit)
	for _, m := range guild.Members {
		if m.User == nil || m.User.Bot {
			continue
		}
		if !matchesPrefix(q, m.User.Username, m.User.GlobalName, m.Nick) {
			continue
		}
		out = append(out, MemberSummary{ID: m.User.ID, DisplayName: displayName(m)})
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// member is a snapshot of a member's roles. State members are updated in place
// by the gateway, so the roles are copied while the state lock is held.
type member struct {
	roles []string
}

func newMember(m *discordgo.Member) member {
	return member{roles: append([]string(nil), m.Roles...)}
}

func (m member) HasRole(roleID string) bool {
	for _, r := range m.roles {
		if r == roleID {
			return true
		}
	}
	return false
}

func displayName(m *discordgo.Member) string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User.GlobalName != "":
		return m.User.GlobalName
	default:
		return m.User.Username
	}
}

func matchesPrefix(q string, names ...string) bool {
	for _, n := range names {
		if n != "" && strings.HasPrefix(strings.ToLower(n), q) {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
