package domain

// Message roles. The transcript only ever renders these two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation. Appends are final; only the
// in-progress assistant message grows during streaming.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	Timestamp string    `json:"timestamp"` // ISO-8601
	UserID    string    `json:"user_id,omitempty"`
	Products  []Product `json:"products,omitempty"`
}

// Session is an ordered, append-only list of messages under one session id.
type Session struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages,omitempty"`
}

// Title returns a short label for the session list, derived from the
// first user message when available.
func (s Session) Title() string {
	for _, m := range s.Messages {
		if m.Role == RoleUser && m.Content != "" {
			runes := []rune(m.Content)
			if len(runes) > 30 {
				return string(runes[:30]) + "..."
			}
			return m.Content
		}
	}
	return s.SessionID
}

// UserHistory is the full session list the backend returns for one user.
type UserHistory struct {
	UserID        string    `json:"user_id"`
	Sessions      []Session `json:"sessions"`
	TotalSessions int       `json:"total_sessions"`
	TotalMessages int       `json:"total_messages"`
}
