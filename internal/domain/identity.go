// Package domain defines the data model shared across the chat engine.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is the (userId, sessionId) pair scoping all chat state.
type Identity struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// NewSessionID mints a session id bound to the given user id.
// The prefix binding is what SessionBoundTo checks.
func NewSessionID(userID string) string {
	return fmt.Sprintf("%s-session-%d-%s", userID, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// SessionBoundTo reports whether a session id is bound to a user id.
// A session id not bound to the active user must be discarded, never loaded.
func SessionBoundTo(sessionID, userID string) bool {
	if sessionID == "" || userID == "" {
		return false
	}
	return strings.HasPrefix(sessionID, userID)
}

// Principal is the locally persisted authenticated user blob,
// as returned by the commerce backend's login endpoint.
type Principal struct {
	Token    string `json:"token"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"` // ADMIN | BUSINESS | CUSTOMER
}

// ChatUserID derives the chat-service user id for this principal.
// The underscore format matches what the backend keys history by.
func (p Principal) ChatUserID() string {
	return fmt.Sprintf("user_%d", p.UserID)
}
