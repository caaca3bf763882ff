// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// FEEDBACK TYPE
// =============================================================================

// Feedback is the user's rating of an assistant message. The zero value means
// no rating and is persisted as an absent field.
type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)

// Valid reports whether f is one of the known feedback values.
func (f Feedback) Valid() bool {
	return f == FeedbackNone || f == FeedbackLike || f == FeedbackDislike
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat.
type Message struct {
	ID        string   `json:"id"`
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"` // Unix milliseconds
	Model     string   `json:"model,omitempty"`
	Feedback  Feedback `json:"feedback,omitempty"`
}

// NewMessage creates a message with a fresh time-ordered id.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: NowMillis(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an empty assistant message attributed to modelID.
func NewAssistantMessage(modelID string) Message {
	msg := NewMessage(RoleAssistant, "")
	msg.Model = modelID
	return msg
}

// Time returns the message timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// IsUser reports whether the message was written by the user.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant reports whether the message was produced by the model.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// =============================================================================
// IDS AND CLOCK
// =============================================================================

// NewMessageID returns a UUIDv7: time-ordered, so ids minted later sort later
// even within the same millisecond.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewChatID returns a random, URL-safe chat id.
func NewChatID() string {
	return uuid.NewString()
}

// NewFolderID returns a random folder id.
func NewFolderID() string {
	return uuid.NewString()
}

// NowMillis returns the current time in Unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
