// Package identity resolves the durable (userId, sessionId) identity pair
// from the local pointer store.
package identity

import (
	"errors"
	"fmt"

	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/soyeahso/shopchat/internal/logging"
	"github.com/soyeahso/shopchat/internal/store"
)

// ErrUnauthenticated means no persisted principal exists. Not recoverable
// in place; the caller must send the user to login.
var ErrUnauthenticated = errors.New("no authenticated user; run `shopchat login` first")

// Resolver derives the chat identity from persisted credentials. It is the
// single writer of the pointer store: session switches, new conversations
// and wipes all go through it.
type Resolver struct {
	store store.PointerStore
	log   *logging.Logger
}

// NewResolver creates an identity resolver over the given store.
func NewResolver(ps store.PointerStore, log *logging.Logger) *Resolver {
	return &Resolver{store: ps, log: log.Sub("identity")}
}

// Resolve derives the stable user id and the persisted session pointer.
// A pointer stored for a different user is wiped before proceeding, so a
// new login never sees the previous user's session, even transiently.
// The returned SessionID is empty when no valid pointer exists; callers
// either adopt a server-side session or mint one via NewSession.
func (r *Resolver) Resolve() (domain.Identity, error) {
	p, ok := r.store.Principal()
	if !ok {
		return domain.Identity{}, ErrUnauthenticated
	}

	userID := p.ChatUserID()

	savedUser, savedSession := r.store.Pointers()
	if savedUser != "" && savedUser != userID {
		r.log.Warn().Str("stored", savedUser).Str("resolved", userID).
			Msg("stored pointers belong to a different user, wiping")
		if err := r.store.Clear(); err != nil {
			return domain.Identity{}, fmt.Errorf("wiping stale pointers: %w", err)
		}
		savedSession = ""
	}

	if savedSession != "" && !domain.SessionBoundTo(savedSession, userID) {
		// Untrusted pointer: discard rather than load.
		r.log.Warn().Str("sessionId", savedSession).Msg("session pointer not bound to user, discarding")
		if err := r.store.Clear(); err != nil {
			return domain.Identity{}, fmt.Errorf("wiping unbound pointer: %w", err)
		}
		savedSession = ""
	}

	return domain.Identity{UserID: userID, SessionID: savedSession}, nil
}

// Token returns the stored bearer credential, or "" when absent.
func (r *Resolver) Token() string {
	p, ok := r.store.Principal()
	if !ok {
		return ""
	}
	return p.Token
}

// NewSession mints a fresh session id bound to the current user and
// persists it as the active pointer.
func (r *Resolver) NewSession() (domain.Identity, error) {
	p, ok := r.store.Principal()
	if !ok {
		return domain.Identity{}, ErrUnauthenticated
	}

	userID := p.ChatUserID()
	sessionID := domain.NewSessionID(userID)
	if err := r.store.SetPointers(userID, sessionID); err != nil {
		return domain.Identity{}, fmt.Errorf("persisting session pointer: %w", err)
	}

	r.log.Info().Str("sessionId", sessionID).Msg("minted new session")
	return domain.Identity{UserID: userID, SessionID: sessionID}, nil
}

// AdoptSession persists an existing session id as the active pointer.
// The id must be bound to the current user.
func (r *Resolver) AdoptSession(sessionID string) (domain.Identity, error) {
	p, ok := r.store.Principal()
	if !ok {
		return domain.Identity{}, ErrUnauthenticated
	}

	userID := p.ChatUserID()
	if !domain.SessionBoundTo(sessionID, userID) {
		return domain.Identity{}, fmt.Errorf("session %q is not bound to %q", sessionID, userID)
	}

	if err := r.store.SetPointers(userID, sessionID); err != nil {
		return domain.Identity{}, fmt.Errorf("persisting session pointer: %w", err)
	}
	return domain.Identity{UserID: userID, SessionID: sessionID}, nil
}

// Wipe clears the persisted chat pointers (explicit "clear history").
func (r *Resolver) Wipe() error {
	return r.store.Clear()
}
