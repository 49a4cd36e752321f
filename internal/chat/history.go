package chat

import (
	"context"

	"github.com/soyeahso/shopchat/internal/api"
	"github.com/soyeahso/shopchat/internal/domain"
)

// Bootstrap resolves the local identity and loads the active session: the
// persisted pointer when one exists, otherwise the most recent prior session
// from the server, otherwise a fresh conversation.
func (c *Controller) Bootstrap(ctx context.Context) error {
	id, err := c.ids.Resolve()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()

	if id.SessionID != "" {
		c.loadSession(ctx, id.SessionID)
		c.RefreshSessions(ctx)
		return nil
	}
	return c.autoSelect(ctx)
}

// autoSelect picks the most recent prior session from the server history,
// or mints a fresh one when the user has none.
func (c *Controller) autoSelect(ctx context.Context) error {
	userID := c.Identity().UserID

	hist, err := c.api.UserHistory(ctx, userID)
	if err != nil {
		if api.IsAuthError(err) {
			c.log.Warn().Msg("history authorization failed, starting fresh")
		} else {
			c.log.Error().Err(err).Msg("loading user history failed, starting fresh")
		}
		return c.NewConversation()
	}

	if hist.UserID != "" && hist.UserID != userID {
		// Server answered for somebody else. Render nothing from it.
		c.log.Error().Str("echoed", hist.UserID).Msg("user mismatch in history response")
		return c.NewConversation()
	}

	c.mu.Lock()
	c.sessions = hist.Sessions
	c.mu.Unlock()

	if len(hist.Sessions) > 0 {
		latest := hist.Sessions[0].SessionID
		if domain.SessionBoundTo(latest, userID) {
			return c.SwitchSession(ctx, latest)
		}
		c.log.Warn().Str("sessionId", latest).Msg("most recent session not bound to user, discarding")
	}
	return c.NewConversation()
}

// SwitchSession makes sessionID the active session and loads its messages.
// A session id not bound to the current user is discarded and a fresh
// conversation is started instead.
func (c *Controller) SwitchSession(ctx context.Context, sessionID string) error {
	userID := c.Identity().UserID
	if !domain.SessionBoundTo(sessionID, userID) {
		c.log.Warn().Str("sessionId", sessionID).Msg("refusing to load session not bound to user")
		return c.NewConversation()
	}

	id, err := c.ids.AdoptSession(sessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.identity = id
	c.epoch++
	c.messages = nil
	c.actions = nil
	c.suggestions = nil
	c.mu.Unlock()

	c.loadSession(ctx, sessionID)
	return nil
}

// loadSession fetches and applies one session's history. The result is
// dropped if the active session changed while the request was in flight.
func (c *Controller) loadSession(ctx context.Context, sessionID string) {
	c.mu.Lock()
	myEpoch := c.epoch
	userID := c.identity.UserID
	c.mu.Unlock()

	msgs, err := c.api.SessionHistory(ctx, userID, sessionID)
	if err != nil {
		if api.IsAuthError(err) {
			c.log.Warn().Str("sessionId", sessionID).Msg("history authorization failed, minting fresh session")
		} else {
			c.log.Error().Err(err).Str("sessionId", sessionID).Msg("loading session failed, minting fresh session")
		}
		c.supersede(myEpoch, func() { _ = c.NewConversation() })
		return
	}

	// Defense in depth: any identity echoed in the body must match ours.
	for _, m := range msgs {
		if m.UserID != "" && m.UserID != userID {
			c.log.Error().Str("echoed", m.UserID).Msg("user mismatch in session history, discarding")
			c.supersede(myEpoch, func() { _ = c.NewConversation() })
			return
		}
	}

	c.mu.Lock()
	if c.epoch == myEpoch {
		c.messages = msgs
	} else {
		c.log.Debug().Str("sessionId", sessionID).Msg("dropping history for superseded session")
	}
	c.mu.Unlock()
}

// supersede runs fn only if the session has not changed since myEpoch.
func (c *Controller) supersede(myEpoch uint64, fn func()) {
	c.mu.Lock()
	stale := c.epoch != myEpoch
	c.mu.Unlock()
	if !stale {
		fn()
	}
}

// NewConversation mints a fresh session and resets the transcript.
func (c *Controller) NewConversation() error {
	id, err := c.ids.NewSession()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
	c.epoch++
	c.messages = nil
	c.actions = nil
	c.suggestions = nil
	if c.opt.Greeting != "" {
		c.messages = append(c.messages, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   c.opt.Greeting,
			Timestamp: now(),
		})
	}
	return nil
}

// RefreshSessions reloads the sidebar session list. Best-effort: failures
// leave the previous list in place, identity mismatches clear it.
func (c *Controller) RefreshSessions(ctx context.Context) {
	userID := c.Identity().UserID

	hist, err := c.api.UserHistory(ctx, userID)
	if err != nil {
		c.log.Warn().Err(err).Msg("refreshing session list failed")
		if api.IsAuthError(err) {
			c.mu.Lock()
			c.sessions = nil
			c.mu.Unlock()
		}
		return
	}
	if hist.UserID != "" && hist.UserID != userID {
		c.mu.Lock()
		c.sessions = nil
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.sessions = hist.Sessions
	c.mu.Unlock()
}

// ClearAllHistory deletes all server-side history for the user, wipes the
// local pointers and starts a fresh conversation.
func (c *Controller) ClearAllHistory(ctx context.Context) error {
	userID := c.Identity().UserID

	if err := c.api.ClearHistory(ctx, userID); err != nil {
		return err
	}
	if err := c.ids.Wipe(); err != nil {
		return err
	}

	c.mu.Lock()
	c.sessions = nil
	c.mu.Unlock()

	return c.NewConversation()
}
