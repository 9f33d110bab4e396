package domain

import "strings"

// Identity is the owner of a cart, a profile and a conversation context.
// An authenticated user id always takes precedence over a session id.
type Identity struct {
	UserID    string
	SessionID string
}

// Authenticated reports whether the identity belongs to a logged-in user.
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// IsZero reports whether neither a user nor a session is known.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(i.UserID) == "" && strings.TrimSpace(i.SessionID) == ""
}

// Key returns the single storage key the identity resolves to.
func (i Identity) Key() string {
	if i.Authenticated() {
		return "USER#" + strings.TrimSpace(i.UserID)
	}
	if s := strings.TrimSpace(i.SessionID); s != "" {
		return "SESSION#" + s
	}
	return ""
}
