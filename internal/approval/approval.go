// Package approval stores the research artifact each session is waiting on.
//
// There is one record per session. Save replaces it wholesale; decisions
// flip flags on it without deleting it, so re-reading after approval is
// safe.
package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/trendyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a session has no pending approval.
var ErrNotFound = errors.New("approval: not found")

// replaceColumns are overwritten when a session's record already exists.
var replaceColumns = []string{
	"research",
	"research_report",
	"sources",
	"trending_topics",
	"enriched_trends",
	"confidence_scores",
	"scope",
	"platforms",
	"original_query",
	"persona",
	"mode",
	"approved",
	"needs_refinement",
	"created_at",
}

// Save writes rec as the session's pending approval, replacing any prior
// record. The decision flags are cleared.
func Save(db *gorm.DB, rec *models.PendingApproval) error {
	if rec.SessionID == "" {
		return fmt.Errorf("approval: session id is required")
	}
	rec.Approved = false
	rec.NeedsRefinement = false
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns(replaceColumns),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("approval: save %s: %w", rec.SessionID, err)
	}
	return nil
}

// Get loads the pending approval for a session.
func Get(db *gorm.DB, sessionID string) (*models.PendingApproval, error) {
	var rec models.PendingApproval
	err := db.Where("session_id = ?", sessionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("approval: get %s: %w", sessionID, err)
	}
	return &rec, nil
}

// MarkApproved records that the research was approved.
func MarkApproved(db *gorm.DB, sessionID string) error {
	return mark(db, sessionID, map[string]any{"approved": true, "needs_refinement": false})
}

// MarkNeedsRefinement records that a refinement was requested.
func MarkNeedsRefinement(db *gorm.DB, sessionID string) error {
	return mark(db, sessionID, map[string]any{"needs_refinement": true})
}

func mark(db *gorm.DB, sessionID string, fields map[string]any) error {
	result := db.Model(&models.PendingApproval{}).Where("session_id = ?", sessionID).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("approval: update %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

// ExpireOlderThan deletes unapproved records created before cutoff and
// returns how many were removed.
func ExpireOlderThan(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("approved = ? AND created_at < ?", false, cutoff).Delete(&models.PendingApproval{})
	if result.Error != nil {
		return 0, fmt.Errorf("approval: expire before %s: %w", cutoff.Format(time.RFC3339), result.Error)
	}
	return result.RowsAffected, nil
}
