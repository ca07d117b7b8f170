package core

import "context"

// DenyReason classifies the outcome of an authentication attempt for
// diagnostic logging and auditing. End users always see a uniform
// failure message regardless of the reason.
type DenyReason string

const (
	ReasonOk                   DenyReason = "ok"
	ReasonInvalidCredentials   DenyReason = "invalid_credentials"
	ReasonNotInGroup           DenyReason = "not_in_group"
	ReasonDirectoryUnavailable DenyReason = "directory_unavailable"
)

// AuthzResult holds the outcome of an authentication attempt.
// Allowed is true only when the credential bind succeeded and the
// resolved identity is a member of the configured authorization group.
type AuthzResult struct {
	Allowed  bool
	Reason   DenyReason
	Username string
	UserDN   string // resolved distinguished name, empty on deny
}

// Authenticator is the interface that directory-backed authentication
// backends must implement. Implementations must fail closed: any
// ambiguous or failed verification yields Allowed=false. The supplied
// password must never be logged.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (AuthzResult, error)
	Name() string
}
