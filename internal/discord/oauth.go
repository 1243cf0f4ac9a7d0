package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/oauth2"
)

const (
	authURL         = "https://discord.com/oauth2/authorize"
	tokenURL        = "https://discord.com/api/oauth2/token"
	scopeIdentify   = "identify"
	bearerPrefix    = "Bearer "
	currentUserPath = "@me"

	errExchangeCodeFmt    = "failed to exchange authorization code: %w"
	errFetchIdentityFmt   = "failed to fetch user identity: %w"
	errIdentitySessionFmt = "failed to create identity session: %w"
)

// Identity is the logged-in user as reported by the platform.
type Identity struct {
	ID       string
	Username string
	Avatar   string
}

// OAuth runs the authorization-code login against the platform.
type OAuth struct {
	config *oauth2.Config
}

func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{scopeIdentify},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

// Identify exchanges the code and reads the current user.
func (o *OAuth) Identify(ctx context.Context, code string) (*Identity, error) {
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf(errExchangeCodeFmt, err)
	}

	s, err := discordgo.New(bearerPrefix + tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf(errIdentitySessionFmt, err)
	}

	u, err := s.User(currentUserPath, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf(errFetchIdentityFmt, err)
	}

	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return &Identity{ID: u.ID, Username: name, Avatar: u.AvatarURL("")}, nil
}
