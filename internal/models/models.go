package models

import (
	"time"
)

// Roles a transcript message can carry. Order in the transcript is
// semantically meaningful: it is replayed verbatim to the model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session modes.
const (
	ModeDocument = "document" // stateless Q&A against an uploaded document
	ModeChat     = "chat"     // append-only conversation transcript
)

// Message is one role-tagged entry in a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DocumentContext is the normalized text derived from one uploaded file.
// It is never stored inside the transcript; it is interpolated into a
// single outbound user message at send time.
type DocumentContext struct {
	FileName  string    `json:"file_name"`
	Text      string    `json:"-"`
	Chars     int       `json:"chars"`
	Truncated bool      `json:"truncated"` // exceeds the prompt budget and will be cut at send time
	CreatedAt time.Time `json:"created_at"`
}

// Session owns all conversation state for one connection. It is created,
// fetched and disposed explicitly through the ConversationService; nothing
// about it outlives the process.
type Session struct {
	ID         string           `json:"session_id"`
	Mode       string           `json:"mode"`
	APIKey     string           `json:"-"` // held in memory only, never persisted or logged
	Transcript []Message        `json:"transcript"`
	Document   *DocumentContext `json:"document,omitempty"`
	// LastError holds the most recent turn failure for display. In chat mode
	// the same text is also appended to the transcript as the assistant turn.
	LastError string    `json:"last_error,omitempty"`
	Busy      bool      `json:"-"` // a turn is in flight; new input is rejected
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
