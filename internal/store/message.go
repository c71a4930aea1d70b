package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/trendyard/internal/models"
	"gorm.io/gorm"
)

// AppendMessage adds msg to the end of its session's transcript. It assigns
// the next sequence number and moves the timestamp past the previous
// message's when needed.
func AppendMessage(db *gorm.DB, msg *models.Message) error {
	if msg.SessionID == "" {
		return fmt.Errorf("store: message session id is required")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	var last models.Message
	err := db.Where("session_id = ?", msg.SessionID).Order("sequence DESC").Limit(1).Take(&last).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		msg.Sequence = 1
	case err != nil:
		return fmt.Errorf("store: append message %s: %w", msg.SessionID, err)
	default:
		msg.Sequence = last.Sequence + 1
		msg.Timestamp = models.After(last.Timestamp, msg.Timestamp)
	}

	msg.ID = 0
	if err := db.Create(msg).Error; err != nil {
		return fmt.Errorf("store: append message %s: %w", msg.SessionID, err)
	}
	return nil
}

// ListMessages returns a session's transcript in order.
func ListMessages(db *gorm.DB, sessionID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := db.Where("session_id = ?", sessionID).Order("sequence ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: list messages %s: %w", sessionID, err)
	}
	return msgs, nil
}

// DeleteMessages removes a session's whole transcript and reports how many
// messages were deleted.
func DeleteMessages(db *gorm.DB, sessionID string) (int64, error) {
	result := db.Where("session_id = ?", sessionID).Delete(&models.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("store: delete messages %s: %w", sessionID, result.Error)
	}
	return result.RowsAffected, nil
}
