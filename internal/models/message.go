package models

import (
	"time"

	"gorm.io/datatypes"
)

// MessageType classifies a transcript entry.
type MessageType string

const (
	MessageUser     MessageType = "user"
	MessageSystem   MessageType = "system"
	MessageStep     MessageType = "step"
	MessageResearch MessageType = "research"
	MessageApproval MessageType = "approval"
	MessageIdea     MessageType = "idea"
)

// Message is an immutable transcript entry. Messages are ordered by Sequence
// within a session, and Timestamp is strictly increasing along that order.
type Message struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string         `gorm:"size:64;not null;uniqueIndex:idx_message_session_seq" json:"session_id"`
	Sequence  int            `gorm:"not null;uniqueIndex:idx_message_session_seq" json:"sequence"`
	Type      MessageType    `gorm:"size:16;not null" json:"type"`
	Content   string         `gorm:"type:text" json:"content"`
	Platform  string         `gorm:"size:64" json:"platform,omitempty"`
	Ideas     []string       `gorm:"serializer:json;type:text" json:"ideas,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	Timestamp time.Time      `gorm:"not null" json:"timestamp"`
}
