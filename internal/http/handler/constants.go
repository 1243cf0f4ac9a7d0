package handler

import "time"

const (
	jsonKeyError     = "error"
	jsonKeyMessage   = "message"
	jsonKeyRequestID = "request_id"

	paramUserID = "user_id"
	queryQ      = "q"
	queryCode   = "code"
	queryState  = "state"
	queryLimit  = "limit"

	oauthStateCookie  = "oauth_state"
	oauthStateTTL     = 10 * time.Minute
	searchResultLimit = 25
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

const (
	msgContentTypeJSONRequired = "content type must be application/json"
	msgInvalidRequestBody      = "invalid request body"
	msgLoginNotConfigured      = "login is not configured on this server"
	msgStateMismatch           = "login state mismatch, please try again"
	msgMissingCode             = "missing authorization code"
	msgLoginFailed             = "login failed"
	msgIssueSessionFailed      = "failed to create session"
	msgNotLoggedIn             = "not logged in"
	msgInvalidSession          = "invalid or expired session"
	msgLoggedOut               = "logged out"
	msgListGrantsFailed        = "failed to list access grants"
	msgUpdateAccessFailed      = "failed to update access"
	msgAuditQueryFailed        = "failed to read audit log"
	msgInvalidLimit            = "limit must be a positive integer"
	msgSearchUnavailable       = "member search is unavailable"
)
