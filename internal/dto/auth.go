package dto

import "fmt"

// AuthStatus is the outcome of an authentication attempt as reported to the
// Verder Helpen core.
type AuthStatus string

const (
	// StatusSuccess is spelled "succes" on the wire; the platform protocol
	// fixed that spelling long ago and every component matches it.
	StatusSuccess AuthStatus = "succes"
	StatusFailed  AuthStatus = "failed"
)

// AuthResult is the payload a plugin reports back to the core once an
// authentication session finishes. It travels as the claims of a signed and
// encrypted JWT, never as plain JSON.
type AuthResult struct {
	Status     AuthStatus        `json:"status"`
	Attributes map[string]string `json:"attributes,omitempty"`
	SessionURL string            `json:"session_url,omitempty"`
}

// StartAuthRequest is the core's request to begin an authentication session.
type StartAuthRequest struct {
	Attributes   []string `json:"attributes" validate:"required,min=1"`
	Continuation string   `json:"continuation" validate:"required"`
	AttrURL      *string  `json:"attr_url,omitempty" validate:"omitempty,url"`
}

// StartAuthResponse carries the URL the user's browser should be sent to.
type StartAuthResponse struct {
	ClientURL string `json:"client_url"`
}

// SessionActivity describes a user-activity notification the core pushes to
// the plugin's session_url while a session is alive.
type SessionActivity string

const (
	ActivityRefresh SessionActivity = "refresh"
	ActivityLogout  SessionActivity = "logout"
)

// ParseSessionActivity validates a raw activity value from the wire.
func ParseSessionActivity(raw string) (SessionActivity, error) {
	switch SessionActivity(raw) {
	case ActivityRefresh, ActivityLogout:
		return SessionActivity(raw), nil
	default:
		return "", fmt.Errorf("unsupported session activity: %q", raw)
	}
}
