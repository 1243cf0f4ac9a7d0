// Package accesstest provides in-memory Guilds and GrantStore fakes for tests.
package accesstest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/domain/grant"
)

var ErrInjected = errors.New("injected failure")

type member struct {
	roles map[string]bool
}

func (m *member) HasRole(roleID string) bool {
	return m.roles[roleID]
}

// Guilds is a fake guild with one owner and a member/role table.
type Guilds struct {
	mu        sync.Mutex
	available bool
	ownerID   string
	members   map[string]map[string]bool

	// FetchErr, when set, is returned by every FetchMember call.
	FetchErr error
	// RoleErr, when set, is returned by AddRole and RemoveRole.
	RoleErr error

	AddCalls    []string
	RemoveCalls []string
}

func NewGuilds(ownerID string) *Guilds {
	return &Guilds{
		available: true,
		ownerID:   ownerID,
		members:   make(map[string]map[string]bool),
	}
}

func (g *Guilds) SetAvailable(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.available = v
}

// AddMember registers userID with the given roles.
func (g *Guilds) AddMember(userID string, roles ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := make(map[string]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	g.members[userID] = set
}

func (g *Guilds) HasRole(userID, roleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.members[userID][roleID]
}

func (g *Guilds) AddCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.AddCalls)
}

func (g *Guilds) IsAvailable(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

func (g *Guilds) IsOwner(_ context.Context, userID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ownerID != "" && g.ownerID == userID, nil
}

func (g *Guilds) FetchMember(_ context.Context, userID string) (access.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}
	roles, ok := g.members[userID]
	if !ok {
		return nil, nil
	}
	copied := make(map[string]bool, len(roles))
	for k, v := range roles {
		copied[k] = v
	}
	return &member{roles: copied}, nil
}

func (g *Guilds) AddRole(_ context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AddCalls = append(g.AddCalls, userID)
	if g.RoleErr != nil {
		return g.RoleErr
	}
	if _, ok := g.members[userID]; !ok {
		g.members[userID] = make(map[string]bool)
	}
	g.members[userID][roleID] = true
	return nil
}

func (g *Guilds) RemoveRole(_ context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RemoveCalls = append(g.RemoveCalls, userID)
	if g.RoleErr != nil {
		return g.RoleErr
	}
	delete(g.members[userID], roleID)
	return nil
}

// Store is an in-memory GrantStore and GrantLister.
type Store struct {
	mu     sync.Mutex
	grants map[string]*grant.Grant

	// Err, when set, is returned by every call.
	Err error
}

func NewStore() *Store {
	return &Store{grants: make(map[string]*grant.Grant)}
}

func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

func (s *Store) Has(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.grants[userID]
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func (s *Store) HasGrant(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	g, ok := s.grants[userID]
	return ok && g.IsAdmin, nil
}

func (s *Store) Grant(_ context.Context, input grant.CreateGrantInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	var grantedBy *string
	if input.GrantedBy != "" {
		by := input.GrantedBy
		grantedBy = &by
	}
	s.grants[input.UserID] = &grant.Grant{
		UserID:    input.UserID,
		IsAdmin:   true,
		GrantedBy: grantedBy,
		GrantedAt: time.Now().UTC(),
	}
	return nil
}

func (s *Store) Revoke(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.grants, userID)
	return nil
}

func (s *Store) List(context.Context) ([]*grant.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*grant.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
