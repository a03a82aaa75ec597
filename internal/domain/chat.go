package domain

import "time"

// Role attributes a message to one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DefaultTitle is the title sent with a create request before the user has
// renamed the session.
const DefaultTitle = "New Chat"

// Message is one turn in a session transcript.
//
// Pending marks a client-originated message that has not yet been confirmed
// by a server snapshot; Failed marks a pending message whose send request
// failed. Both are client-local and never appear on the wire.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Pending   bool
	Failed    bool
}

// Session is a titled, ordered transcript of messages. The server is the
// source of truth: reconciliation replaces the whole value, never merges.
type Session struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers never alias store-owned memory.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return &out
}
