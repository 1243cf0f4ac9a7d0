package auth

const (
	ContextKeyPrincipal = "principal"
	ContextKeyAuthType  = "auth_type"

	jsonKeyError     = "error"
	jsonKeyRequestID = "request_id"

	headerAuthorization = "Authorization"
	headerAPIKey        = "X-API-Key"
	headerAccessToken   = "X-Access-Token"

	bearerScheme    = "bearer"
	authHeaderParts = 2

	ServicePrincipalID   = "service"
	servicePrincipalName = "automation"
)

const (
	msgMissingAuthorization   = "authentication required"
	msgInvalidOrExpiredToken  = "invalid or expired session"
	msgAccessDenied           = "you do not have access to the dashboard"
	msgOwnerOnly              = "only the guild owner can perform this action"
	msgAuthNotConfigured      = "authentication is not configured on this server"
	msgUserNotAuthenticated   = "user not authenticated"
	msgInvalidPrincipalCtx    = "invalid principal in context"
	msgSessionRefreshFailed   = "failed to refresh session token: %v"
	msgDegradedSessionHonored = "membership source unavailable, honoring session claim for %s"
)

type AuthType string

const (
	AuthTypeService  AuthType = "service"
	AuthTypeSession  AuthType = "session"
	AuthTypeDegraded AuthType = "session_degraded"
)

// Gate outcomes reported to the Recorder.
const (
	OutcomePublic        = "public"
	OutcomeService       = "service"
	OutcomeGranted       = "granted"
	OutcomeDegraded      = "degraded"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeForbidden     = "forbidden"
	OutcomeMisconfigured = "misconfigured"
)
