package access

import "fmt"

// Role is the dashboard role of a principal.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"

	errUnknownRoleFmt = "unknown role: %q"
)

// HasAccess reports whether the role may use privileged dashboard operations.
func (r Role) HasAccess() bool {
	return r == RoleOwner || r == RoleAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf(errUnknownRoleFmt, s)
	}
	return r, nil
}

// Principal is the identity handlers receive once a request has been authorized.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"username"`
	AvatarRef   string `json:"avatar,omitempty"`
	HasAccess   bool   `json:"hasAccess"`
	Role        Role   `json:"role"`
}

func (p Principal) IsOwner() bool {
	return p.Role == RoleOwner
}

// Decision is the outcome of a single resolution. SourceAvailable is false
// when the live membership source could not be consulted.
type Decision struct {
	HasAccess       bool `json:"hasAccess"`
	Role            Role `json:"role"`
	SourceAvailable bool `json:"sourceAvailable"`
}

// Apply returns p with its access fields replaced by the decision.
func (d Decision) Apply(p Principal) Principal {
	p.HasAccess = d.HasAccess
	p.Role = d.Role
	return p
}

func ownerDecision() Decision {
	return Decision{HasAccess: true, Role: RoleOwner, SourceAvailable: true}
}

func adminDecision(sourceAvailable bool) Decision {
	return Decision{HasAccess: true, Role: RoleAdmin, SourceAvailable: sourceAvailable}
}

func deniedDecision(sourceAvailable bool) Decision {
	return Decision{HasAccess: false, Role: RoleUser, SourceAvailable: sourceAvailable}
}
