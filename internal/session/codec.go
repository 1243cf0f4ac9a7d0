package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"guild-dashboard/internal/access"
	apperrors "guild-dashboard/pkg/errors"
)

const (
	DefaultTTL = 7 * 24 * time.Hour

	msgUnexpectedSigningMethod = "unexpected signing method: %v"
	msgInvalidTokenClaims      = "invalid token claims"
	msgMissingSubject          = "token has no subject"
	msgUnknownRoleClaim        = "token carries unknown role %q"
	msgSignTokenFailed         = "failed to sign session token: %w"
)

// Claims is the principal snapshot carried by a session token. The access
// fields are a cache of the last resolution and may lag the live sources.
type Claims struct {
	Username  string      `json:"username"`
	Avatar    string      `json:"avatar,omitempty"`
	HasAccess bool        `json:"has_access"`
	Role      access.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() access.Principal {
	return access.Principal{
		ID:          c.Subject,
		DisplayName: c.Username,
		AvatarRef:   c.Avatar,
		HasAccess:   c.HasAccess,
		Role:        c.Role,
	}
}

// Drifted reports whether the token's access fields disagree with d.
func (c *Claims) Drifted(d access.Decision) bool {
	return c.HasAccess != d.HasAccess || c.Role != d.Role
}

// Codec issues and verifies HS256 session tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) Issue(p access.Principal) (string, error) {
	now := c.now()
	claims := Claims{
		Username:  p.DisplayName,
		Avatar:    p.AvatarRef,
		HasAccess: p.HasAccess,
		Role:      p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf(msgSignTokenFailed, err)
	}
	return signed, nil
}

// Verify parses a token. Every failure wraps apperrors.ErrInvalidToken.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf(msgUnexpectedSigningMethod, token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.InvalidToken(fmt.Errorf(msgInvalidTokenClaims))
	}
	if claims.Subject == "" {
		return nil, apperrors.InvalidToken(fmt.Errorf(msgMissingSubject))
	}
	if !claims.Role.Valid() {
		return nil, apperrors.InvalidToken(fmt.Errorf(msgUnknownRoleClaim, claims.Role))
	}

	return claims, nil
}

// RefreshIfDrifted issues a new token carrying d when the claims disagree
// with it. Identity fields are kept from the claims.
func (c *Codec) RefreshIfDrifted(claims *Claims, d access.Decision) (string, bool, error) {
	if !claims.Drifted(d) {
		return "", false, nil
	}

	token, err := c.Issue(d.Apply(claims.Principal()))
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}
