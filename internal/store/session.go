// Package store persists sessions and their message transcripts.
//
// Functions take a *gorm.DB so callers can pass a transaction.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/trendyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSessionNotFound is returned when no session has the requested id.
var ErrSessionNotFound = errors.New("store: session not found")

// CreateOrReplaceSession writes s, replacing any existing session with the
// same id. The original creation time is kept on replace.
func CreateOrReplaceSession(db *gorm.DB, s *models.Session) error {
	if s.SessionID == "" {
		return fmt.Errorf("store: session id is required")
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(s).Error; err != nil {
		return fmt.Errorf("store: create session %s: %w", s.SessionID, err)
	}
	return nil
}

// GetSession loads a session by id.
func GetSession(db *gorm.DB, id string) (*models.Session, error) {
	var s models.Session
	err := db.Where("session_id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", id, err)
	}
	return &s, nil
}

// SaveSession writes every field of an existing session.
func SaveSession(db *gorm.DB, s *models.Session) error {
	result := db.Model(&models.Session{}).Where("session_id = ?", s.SessionID).
		Select("*").Omit("created_at").Updates(s)
	if result.Error != nil {
		return fmt.Errorf("store: save session %s: %w", s.SessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.SessionID)
	}
	return nil
}

// ResetSession clears research, sources, topics and ideas and returns the
// session to researching. A non-empty query replaces the stored one.
func ResetSession(db *gorm.DB, id, query string, now time.Time) (*models.Session, error) {
	s, err := GetSession(db, id)
	if err != nil {
		return nil, err
	}
	if query != "" {
		s.Query = query
	}
	s.Research = ""
	s.Sources = nil
	s.TrendingTopics = nil
	s.Ideas = nil
	s.Status = models.StatusResearching
	s.UpdatedAt = models.After(s.UpdatedAt, now)
	if err := SaveSession(db, s); err != nil {
		return nil, err
	}
	return s, nil
}
