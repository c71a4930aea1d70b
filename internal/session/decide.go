package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/trendyard/internal/approval"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/store"
	"github.com/zulandar/trendyard/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Action is a human decision on a pending approval.
type Action string

const (
	ActionApprove Action = "approve"
	ActionRefine  Action = "refine"
	ActionRestart Action = "restart"
)

// ParseAction validates a decision name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionApprove, ActionRefine, ActionRestart:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q (approve, refine, restart)", ErrInvalidArgument, s)
}

// DecideRequest applies a decision to the session's pending approval. Text
// is the refinement for refine and the optional new query for restart.
type DecideRequest struct {
	SessionID string
	Action    Action
	Text      string
}

// Decide applies a decision and runs the resulting stage of the workflow.
// A session without an approval record yields ErrNotFound and nothing is
// changed.
func (s *Service) Decide(ctx context.Context, req DecideRequest, sink Sink) error {
	action, err := ParseAction(string(req.Action))
	if err != nil {
		return err
	}
	if action == ActionRefine && strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: refine needs refinement text", ErrInvalidArgument)
	}

	rec, err := approval.Get(s.db.WithContext(ctx), req.SessionID)
	if errors.Is(err, approval.ErrNotFound) {
		return fmt.Errorf("%w: no pending approval for %s", ErrNotFound, req.SessionID)
	}
	if err != nil {
		return err
	}

	s.log.Info("decision received",
		zap.String("session_id", req.SessionID),
		zap.String("action", string(action)),
	)

	switch action {
	case ActionApprove:
		return s.approve(ctx, rec, sink)
	case ActionRefine:
		return s.refine(ctx, rec, req.Text, sink)
	default:
		return s.restart(ctx, rec, req.Text, sink)
	}
}

func (s *Service) approve(ctx context.Context, rec *models.PendingApproval, sink Sink) error {
	if err := s.markGenerating(rec.SessionID); err != nil {
		return err
	}

	r := s.newRun(rec.SessionID, rec.OriginalQuery, rec.Platforms, rec.Persona, rec.Mode, sink)
	r.scope = rec.Scope
	_, err := s.engine.ContinueAfterApproval(ctx, workflow.ContinueRequest{
		SessionID: rec.SessionID,
		Query:     rec.OriginalQuery,
		Research:  rec.Research,
		Platforms: rec.Platforms,
		Persona:   rec.Persona,
	}, r.emit)
	return s.finish(rec.SessionID, err)
}

// markGenerating records the approval and moves the session to generating
// before any idea is produced.
func (s *Service) markGenerating(id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := approval.MarkApproved(tx, id); err != nil {
			return err
		}
		sess, err := store.GetSession(tx, id)
		if err != nil {
			return err
		}
		now := models.After(sess.UpdatedAt, s.now())
		if sess.Status.Rank() < models.StatusGenerating.Rank() {
			sess.Status = models.StatusGenerating
		}
		sess.UpdatedAt = now
		if err := store.SaveSession(tx, sess); err != nil {
			return err
		}
		return store.AppendMessage(tx, &models.Message{
			SessionID: id,
			Type:      models.MessageSystem,
			Content:   "Research approved. Generating ideas...",
			Timestamp: now,
		})
	})
	if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, approval.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func (s *Service) refine(ctx context.Context, rec *models.PendingApproval, text string, sink Sink) error {
	text = strings.TrimSpace(text)
	if err := approval.MarkNeedsRefinement(s.db, rec.SessionID); err != nil {
		return err
	}
	query := workflow.RefinedQuery(rec.OriginalQuery, text)

	fresh := models.Session{
		SessionID: rec.SessionID,
		Query:     query,
		Platforms: rec.Platforms,
		Persona:   rec.Persona,
		Mode:      rec.Mode,
	}
	if err := s.openSession(fresh, false, &models.Message{
		SessionID: rec.SessionID,
		Type:      models.MessageUser,
		Content:   text,
	}); err != nil {
		return err
	}

	// The stored original query stays put so refinements never stack.
	r := s.newRun(rec.SessionID, rec.OriginalQuery, rec.Platforms, rec.Persona, rec.Mode, sink)
	_, err := s.engine.Run(ctx, workflow.Request{
		Query:        query,
		Platforms:    rec.Platforms,
		SessionID:    rec.SessionID,
		Persona:      rec.Persona,
		Mode:         rec.Mode,
		IsRefinement: true,
	}, r.emit)
	return s.finish(rec.SessionID, err)
}

func (s *Service) restart(ctx context.Context, rec *models.PendingApproval, text string, sink Sink) error {
	query := strings.TrimSpace(text)
	if query == "" {
		query = rec.OriginalQuery
	}

	fresh := models.Session{
		SessionID: rec.SessionID,
		Query:     query,
		Platforms: rec.Platforms,
		Persona:   rec.Persona,
		Mode:      rec.Mode,
	}
	if err := s.openSession(fresh, true, userMessage(rec.SessionID, query, rec.Platforms, rec.Persona, rec.Mode)); err != nil {
		return err
	}

	r := s.newRun(rec.SessionID, query, rec.Platforms, rec.Persona, rec.Mode, sink)
	_, err := s.engine.Run(ctx, workflow.Request{
		Query:        query,
		Platforms:    rec.Platforms,
		SessionID:    rec.SessionID,
		Persona:      rec.Persona,
		Mode:         rec.Mode,
		IsRefinement: true,
	}, r.emit)
	return s.finish(rec.SessionID, err)
}
