// Package chat owns the active conversation: the ordered message list, the
// pending action set, and the exchange of turns with the chat service.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/shopchat/internal/api"
	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/soyeahso/shopchat/internal/identity"
	"github.com/soyeahso/shopchat/internal/logging"
)

var (
	// ErrEmptyMessage rejects blank input before any network call.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy means an exchange is already in flight for this session.
	ErrBusy = errors.New("an exchange is already in flight")
)

// errorReply is the fixed assistant-role text appended when a turn fails.
const errorReply = "Xin lỗi, đã xảy ra lỗi. Vui lòng thử lại."

// Options configures a Controller.
type Options struct {
	// Model is carried on streaming requests.
	Model string

	// Greeting, when non-empty, seeds a brand-new conversation.
	Greeting string
}

// Controller is the message exchange controller. All methods are safe for
// use from a single goroutine driving the UI plus the stream goroutines the
// controller itself spawns.
type Controller struct {
	api *api.Client
	ids *identity.Resolver
	opt Options
	log *logging.Logger

	mu          sync.Mutex
	identity    domain.Identity
	messages    []domain.Message
	actions     []domain.Action
	suggestions []string
	sessions    []domain.Session
	sending     bool

	// epoch increments on every active-session change. In-flight work
	// captures the epoch at issue time and drops its result if the
	// session has moved on since.
	epoch uint64
}

// NewController creates a controller bound to a resolver and backend client.
func NewController(client *api.Client, ids *identity.Resolver, opt Options, log *logging.Logger) *Controller {
	return &Controller{
		api: client,
		ids: ids,
		opt: opt,
		log: log.Sub("chat"),
	}
}

// Identity returns the active (userId, sessionId) pair.
func (c *Controller) Identity() domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Messages returns a copy of the active session's transcript.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// PendingActions returns the current action set.
func (c *Controller) PendingActions() []domain.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// Suggestions returns the current suggestion chips.
func (c *Controller) Suggestions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.suggestions))
	copy(out, c.suggestions)
	return out
}

// Sessions returns the sidebar session list, most recent first.
func (c *Controller) Sessions() []domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// ConsumeAction removes one action from the pending set so a stale button
// cannot be re-invoked. Returns false if it was already gone.
func (c *Controller) ConsumeAction(action domain.Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range c.actions {
		if a == action {
			c.actions = append(c.actions[:i], c.actions[i+1:]...)
			return true
		}
	}
	return false
}

// ClearActions drops the whole pending action set.
func (c *Controller) ClearActions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = nil
	c.suggestions = nil
}

// AppendAssistant appends a local assistant-role message (confirmations
// from action execution and checkout).
func (c *Controller) AppendAssistant(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: now(),
	})
}

// Send performs one non-streaming turn. The optimistic user message is
// appended before the request and never rolled back; failures surface as a
// fixed assistant-role error message.
func (c *Controller) Send(ctx context.Context, text string) error {
	req, myEpoch, err := c.beginTurn(text)
	if err != nil {
		return err
	}
	defer c.endTurn()

	resp, err := c.api.Chat(ctx, *req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != myEpoch {
		c.log.Debug().Msg("dropping chat response for superseded session")
		return nil
	}

	if err != nil {
		c.log.Error().Err(err).Msg("chat turn failed")
		c.appendErrorLocked()
		return nil
	}

	c.messages = append(c.messages, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   resp.Message,
		Model:     resp.Model,
		Timestamp: resp.Timestamp,
		UserID:    c.identity.UserID,
		Products:  resp.Products,
	})
	// Replaced wholesale, never merged with the previous turn's set.
	c.actions = resp.Actions
	c.suggestions = resp.Suggestions
	return nil
}

// SendStream performs one streaming turn. A placeholder assistant message is
// appended before the first chunk; onDelta observes each chunk in arrival
// order. When the stream fails before producing content, the turn falls back
// to the non-streaming endpoint.
func (c *Controller) SendStream(ctx context.Context, text string, onDelta func(string)) error {
	req, myEpoch, err := c.beginTurn(text)
	if err != nil {
		return err
	}
	defer c.endTurn()
	if onDelta == nil {
		onDelta = func(string) {}
	}

	events, err := c.api.ChatStream(ctx, *req)
	if err != nil {
		c.fallback(ctx, *req, myEpoch, -1)
		return nil
	}

	// Stable append target for incoming chunks.
	c.mu.Lock()
	placeholder := len(c.messages)
	c.messages = append(c.messages, domain.Message{
		Role:      domain.RoleAssistant,
		Model:     req.Model,
		Timestamp: now(),
		UserID:    c.identity.UserID,
	})
	c.mu.Unlock()

	var streamed bool
	for ev := range events {
		switch ev.Type {
		case api.EventStart:
			c.updatePlaceholder(myEpoch, placeholder, func(m *domain.Message) {
				if ev.Model != "" {
					m.Model = ev.Model
				}
			})
		case api.EventChunk:
			if ev.Text == "" {
				continue
			}
			streamed = true
			onDelta(ev.Text)
			c.updatePlaceholder(myEpoch, placeholder, func(m *domain.Message) {
				m.Content += ev.Text
			})
		case api.EventError:
			c.log.Warn().Str("error", ev.Error).Msg("stream error")
			drain(events)
			if !streamed {
				c.fallback(ctx, *req, myEpoch, placeholder)
				return nil
			}
			c.updatePlaceholder(myEpoch, placeholder, func(m *domain.Message) {
				m.Content = errorReply
			})
			c.ClearActions()
			return nil
		}
	}

	if !streamed {
		c.fallback(ctx, *req, myEpoch, placeholder)
	}
	return nil
}

// beginTurn validates input, takes the in-flight lock and appends the
// optimistic user message.
func (c *Controller) beginTurn(text string) (*api.ChatRequest, uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending {
		return nil, 0, ErrBusy
	}
	c.sending = true

	// A new user turn invalidates the previous turn's action set.
	c.actions = nil
	c.suggestions = nil

	c.messages = append(c.messages, domain.Message{
		Role:      domain.RoleUser,
		Content:   text,
		Model:     c.opt.Model,
		Timestamp: now(),
		UserID:    c.identity.UserID,
	})

	return &api.ChatRequest{
		Message:   text,
		Model:     c.opt.Model,
		SessionID: c.identity.SessionID,
		UserID:    c.identity.UserID,
	}, c.epoch, nil
}

func (c *Controller) endTurn() {
	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()
}

// fallback retries a failed stream turn on the non-streaming endpoint.
// placeholder is the index of the already-appended assistant message, or -1
// when none exists yet.
func (c *Controller) fallback(ctx context.Context, req api.ChatRequest, myEpoch uint64, placeholder int) {
	resp, err := c.api.Chat(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != myEpoch {
		return
	}

	if placeholder < 0 {
		c.messages = append(c.messages, domain.Message{Role: domain.RoleAssistant, Timestamp: now()})
		placeholder = len(c.messages) - 1
	}

	if err != nil {
		c.log.Error().Err(err).Msg("stream fallback failed")
		c.messages[placeholder].Content = errorReply
		c.actions = nil
		c.suggestions = nil
		return
	}

	c.messages[placeholder].Content = resp.Message
	c.messages[placeholder].Model = resp.Model
	if resp.Timestamp != "" {
		c.messages[placeholder].Timestamp = resp.Timestamp
	}
	c.messages[placeholder].Products = resp.Products
	c.actions = resp.Actions
	c.suggestions = resp.Suggestions
}

// drain discards the remainder of a stream so its producer goroutine can
// exit and release the response body.
func drain(events <-chan api.StreamEvent) {
	go func() {
		for range events {
		}
	}()
}

func (c *Controller) updatePlaceholder(myEpoch uint64, idx int, fn func(*domain.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != myEpoch || idx >= len(c.messages) {
		return
	}
	fn(&c.messages[idx])
}

// appendErrorLocked appends the fixed error reply and clears pending
// actions. Caller holds the lock.
func (c *Controller) appendErrorLocked() {
	c.messages = append(c.messages, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   errorReply,
		Model:     c.opt.Model,
		Timestamp: now(),
	})
	c.actions = nil
	c.suggestions = nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
