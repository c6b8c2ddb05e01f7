package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRole identifies the author of a conversation turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ConversationTurn is one message in a session's history, ordered by timestamp.
type ConversationTurn struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationRecord is one row of the append-only conversation log.
// Response and Context are stored base64-encoded to survive the
// delimiter-sensitive ingestion path of the backing store.
type ConversationRecord struct {
	SessionID      string    `json:"session_id"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Question       string    `json:"question"`
	Response       string    `json:"response"`
	Context        string    `json:"context"`
}

// HistoryEntry pairs a stored question with its decoded result, for the
// session history endpoint.
type HistoryEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Question  string          `json:"question"`
	Response  *AnalysisResult `json:"response"`
}
