package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyReply(userID string, sessions ...map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user_id":        userID,
			"sessions":       sessions,
			"total_sessions": len(sessions),
		})
	}
}

func sessionReply(messages ...map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"messages": messages})
	}
}

func TestBootstrap_ReusesPersistedPointer(t *testing.T) {
	env := newTestEnv(t, Options{Greeting: "Chào mừng!"})
	require.NoError(t, env.store.SetPointers("user_42", "user_42-session-100"))

	env.mux.HandleFunc("/user/user_42/history/user_42-session-100", sessionReply(
		map[string]any{"role": "user", "content": "cũ", "user_id": "user_42"},
		map[string]any{"role": "assistant", "content": "trả lời cũ"},
	))
	env.mux.HandleFunc("/user/user_42/history", historyReply("user_42",
		map[string]any{"session_id": "user_42-session-100", "message_count": 2},
	))

	require.NoError(t, env.ctrl.Bootstrap(context.Background()))

	assert.Equal(t, "user_42-session-100", env.ctrl.Identity().SessionID)
	msgs := env.ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "cũ", msgs[0].Content)
	require.Len(t, env.ctrl.Sessions(), 1)
}

func TestBootstrap_AutoSelectsMostRecentSession(t *testing.T) {
	env := newTestEnv(t, Options{Greeting: "Chào mừng!"})

	env.mux.HandleFunc("/user/user_42/history", historyReply("user_42",
		map[string]any{"session_id": "user_42-session-300", "message_count": 4},
		map[string]any{"session_id": "user_42-session-200", "message_count": 2},
	))
	env.mux.HandleFunc("/user/user_42/history/user_42-session-300", sessionReply(
		map[string]any{"role": "user", "content": "mới nhất"},
	))

	require.NoError(t, env.ctrl.Bootstrap(context.Background()))

	assert.Equal(t, "user_42-session-300", env.ctrl.Identity().SessionID)
	msgs := env.ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "mới nhất", msgs[0].Content)

	// The adopted session becomes the persisted pointer.
	_, sid := env.store.Pointers()
	assert.Equal(t, "user_42-session-300", sid)
}

func TestBootstrap_NoPriorSessionsStartsFresh(t *testing.T) {
	env := newTestEnv(t, Options{Greeting: "Chào mừng!"})
	env.mux.HandleFunc("/user/user_42/history", historyReply("user_42"))

	require.NoError(t, env.ctrl.Bootstrap(context.Background()))

	id := env.ctrl.Identity()
	assert.NotEmpty(t, id.SessionID)
	msgs := env.ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Chào mừng!", msgs[0].Content)
}

func TestBootstrap_AuthErrorMintsFreshSession(t *testing.T) {
	env := newTestEnv(t, Options{Greeting: "Chào mừng!"})
	env.mux.HandleFunc("/user/user_42/history", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	require.NoError(t, env.ctrl.Bootstrap(context.Background()))

	id := env.ctrl.Identity()
	assert.NotEmpty(t, id.SessionID)
	assert.NotEqual(t, "user_42-session-300", id.SessionID)
	msgs := env.ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Chào mừng!", msgs[0].Content)
}

func TestBootstrap_EchoedUserMismatchDiscardsHistory(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.mux.HandleFunc("/user/user_42/history", historyReply("user_99",
		map[string]any{"session_id": "user_99-session-1", "message_count": 3},
	))

	require.NoError(t, env.ctrl.Bootstrap(context.Background()))

	assert.Empty(t, env.ctrl.Messages())
	assert.Empty(t, env.ctrl.Sessions())
	assert.NotEmpty(t, env.ctrl.Identity().SessionID)
}

func TestBootstrap_StalePointerFromAnotherUser(t *testing.T) {
	// A pointer left behind by a previous account must never leak its
	// conversation into the new account's view.
	env := newTestEnv(t, Options{})
	require.NoError(t, env.store.SetPointers("user_7", "user_7-session-1"))
	env.mux.HandleFunc("/user/user_42/history", historyReply("user_42"))

	require.NoError(t, env.ctrl.Bootstrap(context.Background()))

	id := env.ctrl.Identity()
	assert.Equal(t, "user_42", id.UserID)
	assert.NotEqual(t, "user_7-session-1", id.SessionID)
}

func TestSwitchSession_Loads(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.adopt(t, "user_42-session-1")
	env.mux.HandleFunc("/user/user_42/history/user_42-session-2", sessionReply(
		map[string]any{"role": "user", "content": "phiên hai"},
	))

	require.NoError(t, env.ctrl.SwitchSession(context.Background(), "user_42-session-2"))

	assert.Equal(t, "user_42-session-2", env.ctrl.Identity().SessionID)
	msgs := env.ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "phiên hai", msgs[0].Content)
}

func TestSwitchSession_RejectsUnboundSession(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.adopt(t, "user_42-session-1")

	require.NoError(t, env.ctrl.SwitchSession(context.Background(), "user_99-session-5"))

	id := env.ctrl.Identity()
	assert.NotEqual(t, "user_99-session-5", id.SessionID)
	assert.Contains(t, id.SessionID, "user_42-session-")
}

func TestSwitchSession_ClearsPendingActions(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.adopt(t, "user_42-session-1")
	env.mux.HandleFunc("/user/user_42/history/user_42-session-2", sessionReply())

	env.ctrl.mu.Lock()
	env.ctrl.actions = []domain.Action{{Type: domain.ActionViewCart, Label: "Xem giỏ"}}
	env.ctrl.suggestions = []string{"còn hàng không?"}
	env.ctrl.mu.Unlock()

	require.NoError(t, env.ctrl.SwitchSession(context.Background(), "user_42-session-2"))

	assert.Empty(t, env.ctrl.PendingActions())
	assert.Empty(t, env.ctrl.Suggestions())
}

func TestLoadSession_LateResponseForSupersededSessionIsDropped(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})

	env := newTestEnv(t, Options{})
	env.adopt(t, "user_42-session-1")
	env.mux.HandleFunc("/user/user_42/history/user_42-session-a", func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		sessionReply(map[string]any{"role": "user", "content": "nội dung phiên A"})(w, r)
	})
	env.mux.HandleFunc("/user/user_42/history/user_42-session-b", sessionReply(
		map[string]any{"role": "user", "content": "nội dung phiên B"},
	))

	done := make(chan error, 1)
	go func() { done <- env.ctrl.SwitchSession(context.Background(), "user_42-session-a") }()
	<-arrived

	// The user moves on while A's history is still in flight.
	require.NoError(t, env.ctrl.SwitchSession(context.Background(), "user_42-session-b"))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, "user_42-session-b", env.ctrl.Identity().SessionID)
	msgs := env.ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "nội dung phiên B", msgs[0].Content)
}

func TestLoadSession_MessageEchoMismatchDiscards(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.adopt(t, "user_42-session-1")
	env.mux.HandleFunc("/user/user_42/history/user_42-session-2", sessionReply(
		map[string]any{"role": "user", "content": "của người khác", "user_id": "user_99"},
	))

	require.NoError(t, env.ctrl.SwitchSession(context.Background(), "user_42-session-2"))

	for _, m := range env.ctrl.Messages() {
		assert.NotEqual(t, "của người khác", m.Content)
	}
	assert.NotEqual(t, "user_42-session-2", env.ctrl.Identity().SessionID)
}

func TestClearAllHistory(t *testing.T) {
	deleted := false
	env := newTestEnv(t, Options{Greeting: "Chào mừng!"})
	env.adopt(t, "user_42-session-1")
	env.mux.HandleFunc("/user/user_42/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = true
			w.WriteHeader(http.StatusOK)
			return
		}
		historyReply("user_42")(w, r)
	})

	env.ctrl.AppendAssistant("sắp bị xoá")
	require.NoError(t, env.ctrl.ClearAllHistory(context.Background()))

	assert.True(t, deleted)
	assert.Empty(t, env.ctrl.Sessions())
	msgs := env.ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Chào mừng!", msgs[0].Content)
	assert.NotEqual(t, "user_42-session-1", env.ctrl.Identity().SessionID)
}

func TestNewConversation_BumpsEpochAndSeedsGreeting(t *testing.T) {
	env := newTestEnv(t, Options{Greeting: "Chào mừng!"})
	env.adopt(t, "user_42-session-1")
	env.ctrl.AppendAssistant("cũ")

	before := env.ctrl.Identity().SessionID
	require.NoError(t, env.ctrl.NewConversation())

	assert.NotEqual(t, before, env.ctrl.Identity().SessionID)
	msgs := env.ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Chào mừng!", msgs[0].Content)
}
