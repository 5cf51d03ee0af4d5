package core

const (
	AppName      = "knowbot"
	AppUserAgent = "knowbot/0.1"
	AppRepoURL   = "https://github.com/sandevgo/knowbot"
	AppVersion   = "0.1.0"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultSessionID is used when a transport receives no session identifier.
const DefaultSessionID = "default"

// Message is the role/content pair exchanged with a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StoredMessage is one row of the message log. Timestamp is unix milliseconds.
type StoredMessage struct {
	ID        int64  `json:"-"`
	SessionID string `json:"-"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

func (m StoredMessage) AsMessage() Message {
	return Message{Role: m.Role, Content: m.Content}
}

// Note is a fact kept in the knowledge base. UpdatedAt is reserved for an
// update path that does not exist yet; it always equals CreatedAt today.
type Note struct {
	ID        int64  `json:"id"`
	SessionID string `json:"sessionId"`
	Topic     string `json:"topic"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// SessionState is the small mutable record kept per session. It is always
// written as a whole.
type SessionState struct {
	Initialized       bool   `json:"initialized"`
	MessageCount      int    `json:"messageCount"`
	LastInteraction   int64  `json:"lastInteraction,omitempty"`
	LastScheduledTask *int64 `json:"lastScheduledTask,omitempty"`
}

func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
