package models

import "time"

// CompletionLog records one text-generation call for debugging.
type CompletionLog struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	SessionID     string `gorm:"size:64;index"`
	Stage         string `gorm:"size:32"`
	Model         string `gorm:"size:64"`
	SystemChars   int
	PromptChars   int
	ResponseChars int
	LatencyMs     int
	Error         string `gorm:"size:512"`
	CreatedAt     time.Time
}
