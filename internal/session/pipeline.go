package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/trendyard/internal/approval"
	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/notify"
	"github.com/zulandar/trendyard/internal/projector"
	"github.com/zulandar/trendyard/internal/store"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// run carries the per-run context the pipeline needs to build approval
// records.
type run struct {
	svc           *Service
	sessionID     string
	originalQuery string
	platforms     []string
	persona       models.Persona
	mode          models.Mode
	scope         models.Scope
	sink          Sink
}

func (s *Service) newRun(id, originalQuery string, platforms []string, persona models.Persona, mode models.Mode, sink Sink) *run {
	if sink == nil {
		sink = func(event.Event) error { return nil }
	}
	scope := models.DefaultScope()
	return &run{
		svc:           s,
		sessionID:     id,
		originalQuery: originalQuery,
		platforms:     platforms,
		persona:       persona,
		mode:          mode,
		scope:         scope,
		sink:          sink,
	}
}

// emit persists ev, then forwards it to the sink. An event reaches the sink
// only after its projection and any approval record are committed.
func (r *run) emit(ev event.Event) error {
	if plan, ok := ev.(event.ResearchPlanComplete); ok {
		r.scope = plan.Scope
	}
	if err := r.project(ev); err != nil {
		return err
	}

	switch e := ev.(type) {
	case event.ApprovalRequired:
		r.notify(notify.ApprovalNeeded(r.sessionID, r.originalQuery, e.TrendingTopics))
	case event.Complete:
		r.notify(notify.IdeasReady(r.sessionID, e.Ideas))
	}

	return r.sink(ev)
}

// project applies ev to the stored session in one transaction.
func (r *run) project(ev event.Event) error {
	s := r.svc
	unlock := s.locks.lock(r.sessionID)
	defer unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sess, err := store.GetSession(tx, r.sessionID)
		if err != nil {
			return err
		}
		res := projector.Apply(*sess, ev, s.now())
		if res.Changed {
			if err := store.SaveSession(tx, &res.Session); err != nil {
				return err
			}
		}
		if res.Message != nil {
			if err := store.AppendMessage(tx, res.Message); err != nil {
				return err
			}
		}
		if e, ok := ev.(event.ApprovalRequired); ok {
			if err := approval.Save(tx, r.record(e.ResearchPayload)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, r.sessionID)
	}
	if err != nil {
		return fmt.Errorf("session: project %s: %w", ev.Type(), err)
	}
	return nil
}

func (r *run) record(p event.ResearchPayload) *models.PendingApproval {
	return &models.PendingApproval{
		SessionID:        r.sessionID,
		Research:         p.Research,
		ResearchReport:   p.ResearchReport,
		Sources:          p.Sources,
		TrendingTopics:   p.TrendingTopics,
		EnrichedTrends:   datatypes.NewJSONType(p.EnrichedTrends),
		ConfidenceScores: datatypes.NewJSONType(p.ConfidenceScores),
		Scope:            r.scope,
		Platforms:        r.platforms,
		OriginalQuery:    r.originalQuery,
		Persona:          r.persona,
		Mode:             r.mode,
		CreatedAt:        r.svc.now(),
	}
}

// notify delivers n best-effort. Failures are logged and never stop the run.
func (r *run) notify(n notify.Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := r.svc.notifier.Notify(ctx, n); err != nil {
		r.svc.log.Warn("notification failed",
			zap.String("session_id", r.sessionID),
			zap.String("title", n.Title),
			zap.Error(err),
		)
	}
}
