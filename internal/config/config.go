package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envPort                  = "PORT"
	envServerReadTimeout     = "SERVER_READ_TIMEOUT"
	envServerWriteTimeout    = "SERVER_WRITE_TIMEOUT"
	envServerShutdownTimeout = "SERVER_SHUTDOWN_TIMEOUT"
	envDBHost                = "DB_HOST"
	envDBPort                = "DB_PORT"
	envDBName                = "DB_NAME"
	envDBUser                = "DB_USER"
	envDBPassword            = "DB_PASSWORD"
	envDBSSLMode             = "DB_SSL_MODE"
	envDBMaxConns            = "DB_MAX_CONNS"
	envDBMinConns            = "DB_MIN_CONNS"
	envSessionSecret         = "SESSION_SECRET"
	envSessionTTL            = "SESSION_TTL"
	envCookieSecure          = "COOKIE_SECURE"
	envCookieDomain          = "COOKIE_DOMAIN"
	envDiscordBotToken       = "DISCORD_BOT_TOKEN"
	envDiscordClientID       = "DISCORD_CLIENT_ID"
	envDiscordClientSecret   = "DISCORD_CLIENT_SECRET"
	envDiscordRedirectURL    = "DISCORD_REDIRECT_URL"
	envGuildID               = "GUILD_ID"
	envAdminRoleID           = "ADMIN_ROLE_ID"
	envAPISecret             = "API_SECRET"
	envDashboardURL          = "DASHBOARD_URL"
	envPublicPathPrefixes    = "PUBLIC_PATH_PREFIXES"
	envAccessCacheTTL        = "ACCESS_CACHE_TTL"
	envAccessCacheSize       = "ACCESS_CACHE_SIZE"
)

const (
	defaultServerPort          = "8080"
	defaultServerReadTimeout   = 10 * time.Second
	defaultServerWriteTimeout  = 10 * time.Second
	defaultServerShutdown      = 10 * time.Second
	defaultDBHost              = "localhost"
	defaultDBPort              = 5432
	defaultDBName              = "dashboard"
	defaultDBUser              = "dashboard_app"
	defaultDBSSLMode           = "disable"
	defaultDBMaxConns          = 10
	defaultDBMinConns          = 2
	defaultSessionTTL          = 7 * 24 * time.Hour
	defaultDashboardURL        = "http://localhost:3000"
	defaultPublicPathPrefixes  = "/api/auth/,/api/health,/api/search/"
	defaultAccessCacheTTL      = 30 * time.Second
	defaultAccessCacheSize     = 1024
	minSessionSecretLength     = 32
	minUniqueCharsInSecret     = 16
	minRepeatedCharThreshold   = 4
	maxRepeatedChars           = 2
	errPortRequiredFmt         = "PORT must be set"
	errDBPasswordRequiredFmt   = "DB_PASSWORD must be set"
	errSessionSecretMinLenFmt  = "SESSION_SECRET must be at least %d characters"
	errSessionSecretEntropyFmt = "SESSION_SECRET has insufficient entropy (appears non-random). Use a cryptographically secure random string."
	errSessionTTLFmt           = "SESSION_TTL must be positive"
	errGuildIDRequiredFmt      = "GUILD_ID must be set"
	errAdminRoleRequiredFmt    = "ADMIN_ROLE_ID must be set"
	errBotTokenRequiredFmt     = "DISCORD_BOT_TOKEN must be set"
	errOAuthIncompleteFmt      = "DISCORD_CLIENT_ID, DISCORD_CLIENT_SECRET and DISCORD_REDIRECT_URL must be set together"
	errInvalidConfigurationFmt = "invalid configuration: %w"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Discord  DiscordConfig
	Access   AccessConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	DashboardURL    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieSecure bool
	CookieDomain string
}

type DiscordConfig struct {
	BotToken     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// DefaultAdminRoleID is the privileged role used when ADMIN_ROLE_ID is unset.
// Role ids are per guild, so it is empty unless a deployment builds one in:
//
//	go build -ldflags "-X guild-dashboard/internal/config.DefaultAdminRoleID=<id>"
var DefaultAdminRoleID = ""

// AccessConfig is everything the access core reads from its environment.
// AdminRoleID is the default privileged role; ADMIN_ROLE_ID overrides it.
type AccessConfig struct {
	GuildID            string
	AdminRoleID        string
	APISecret          string
	PublicPathPrefixes []string
	CacheTTL           time.Duration
	CacheSize          int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv(envPort, defaultServerPort),
			ReadTimeout:     getDurationEnv(envServerReadTimeout, defaultServerReadTimeout),
			WriteTimeout:    getDurationEnv(envServerWriteTimeout, defaultServerWriteTimeout),
			ShutdownTimeout: getDurationEnv(envServerShutdownTimeout, defaultServerShutdown),
			DashboardURL:    getEnv(envDashboardURL, defaultDashboardURL),
		},
		Database: DatabaseConfig{
			Host:     getEnv(envDBHost, defaultDBHost),
			Port:     getIntEnv(envDBPort, defaultDBPort),
			Database: getEnv(envDBName, defaultDBName),
			User:     getEnv(envDBUser, defaultDBUser),
			Password: os.Getenv(envDBPassword),
			SSLMode:  getEnv(envDBSSLMode, defaultDBSSLMode),
			MaxConns: getIntEnv(envDBMaxConns, defaultDBMaxConns),
			MinConns: getIntEnv(envDBMinConns, defaultDBMinConns),
		},
		Session: SessionConfig{
			Secret:       os.Getenv(envSessionSecret),
			TTL:          getDurationEnv(envSessionTTL, defaultSessionTTL),
			CookieSecure: getBoolEnv(envCookieSecure, true),
			CookieDomain: os.Getenv(envCookieDomain),
		},
		Discord: DiscordConfig{
			BotToken:     os.Getenv(envDiscordBotToken),
			ClientID:     os.Getenv(envDiscordClientID),
			ClientSecret: os.Getenv(envDiscordClientSecret),
			RedirectURL:  os.Getenv(envDiscordRedirectURL),
		},
		Access: AccessConfig{
			GuildID:            os.Getenv(envGuildID),
			AdminRoleID:        getEnv(envAdminRoleID, DefaultAdminRoleID),
			APISecret:          os.Getenv(envAPISecret),
			PublicPathPrefixes: getListEnv(envPublicPathPrefixes, defaultPublicPathPrefixes),
			CacheTTL:           getDurationEnv(envAccessCacheTTL, defaultAccessCacheTTL),
			CacheSize:          getIntEnv(envAccessCacheSize, defaultAccessCacheSize),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}

	return cfg, nil
}

// LoadDatabase reads only the database section. Used by operator commands
// that never talk to the chat platform.
func LoadDatabase() (*DatabaseConfig, error) {
	db := &DatabaseConfig{
		Host:     getEnv(envDBHost, defaultDBHost),
		Port:     getIntEnv(envDBPort, defaultDBPort),
		Database: getEnv(envDBName, defaultDBName),
		User:     getEnv(envDBUser, defaultDBUser),
		Password: os.Getenv(envDBPassword),
		SSLMode:  getEnv(envDBSSLMode, defaultDBSSLMode),
		MaxConns: getIntEnv(envDBMaxConns, defaultDBMaxConns),
		MinConns: getIntEnv(envDBMinConns, defaultDBMinConns),
	}

	if db.Password == "" {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, fmt.Errorf(errDBPasswordRequiredFmt))
	}

	return db, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf(errPortRequiredFmt)
	}

	if c.Database.Password == "" {
		return fmt.Errorf(errDBPasswordRequiredFmt)
	}

	if len(c.Session.Secret) < minSessionSecretLength {
		return fmt.Errorf(errSessionSecretMinLenFmt, minSessionSecretLength)
	}

	if !hasMinimumEntropy(c.Session.Secret) {
		return fmt.Errorf(errSessionSecretEntropyFmt)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf(errSessionTTLFmt)
	}

	if c.Access.GuildID == "" {
		return fmt.Errorf(errGuildIDRequiredFmt)
	}

	if c.Access.AdminRoleID == "" {
		return fmt.Errorf(errAdminRoleRequiredFmt)
	}

	if c.Discord.BotToken == "" {
		return fmt.Errorf(errBotTokenRequiredFmt)
	}

	oauthSet := 0
	for _, v := range []string{c.Discord.ClientID, c.Discord.ClientSecret, c.Discord.RedirectURL} {
		if v != "" {
			oauthSet++
		}
	}
	if oauthSet != 0 && oauthSet != 3 {
		return fmt.Errorf(errOAuthIncompleteFmt)
	}

	return nil
}

// OAuthEnabled reports whether the browser login flow can be served.
func (c *DiscordConfig) OAuthEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

func hasMinimumEntropy(secret string) bool {
	if len(secret) < minSessionSecretLength {
		return false
	}

	charCounts := make(map[rune]int)
	for _, char := range secret {
		charCounts[char]++
	}

	uniqueChars := len(charCounts)
	if uniqueChars < minUniqueCharsInSecret {
		return false
	}

	repeatedChars := 0
	for _, count := range charCounts {
		if count > len(secret)/minRepeatedCharThreshold {
			repeatedChars++
		}
	}

	return repeatedChars <= maxRepeatedChars
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}
