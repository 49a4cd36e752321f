package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/soyeahso/shopchat/internal/domain"
)

// historyURL builds a user history URL with the explicit auth_user_id
// parameter the backend double-checks against the caller.
func (c *Client) historyURL(userID, sessionID string) string {
	u := fmt.Sprintf("%s/user/%s/history", c.chatBase, url.PathEscape(userID))
	if sessionID != "" {
		u += "/" + url.PathEscape(sessionID)
	}
	return u + "?auth_user_id=" + url.QueryEscape(userID)
}

// SessionHistory fetches one session's messages.
func (c *Client) SessionHistory(ctx context.Context, userID, sessionID string) ([]domain.Message, error) {
	req, err := c.newRequest(ctx, "GET", c.historyURL(userID, sessionID), nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// UserHistory fetches all sessions for a user, most recent first.
func (c *Client) UserHistory(ctx context.Context, userID string) (*domain.UserHistory, error) {
	req, err := c.newRequest(ctx, "GET", c.historyURL(userID, ""), nil)
	if err != nil {
		return nil, err
	}

	var out domain.UserHistory
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearHistory deletes all chat history for a user.
func (c *Client) ClearHistory(ctx context.Context, userID string) error {
	req, err := c.newRequest(ctx, "DELETE", c.historyURL(userID, ""), nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}
