// Package session is the entry point for running workflows against durable
// sessions.
//
// A Service starts runs, applies approval decisions, and pushes every event a
// run emits through one pipeline: project into the session and transcript,
// checkpoint the approval record, notify, then hand the event to the caller.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/trendyard/internal/approval"
	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/logging"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/notify"
	"github.com/zulandar/trendyard/internal/store"
	"github.com/zulandar/trendyard/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Caller-visible failures. Everything else is an internal error.
var (
	ErrNotFound        = errors.New("session: not found")
	ErrInvalidArgument = errors.New("session: invalid argument")
)

// notifyTimeout bounds a single notification delivery.
const notifyTimeout = 10 * time.Second

// Runner executes workflow runs. *workflow.Engine implements it.
type Runner interface {
	Run(ctx context.Context, req workflow.Request, emit workflow.Emitter) (*workflow.State, error)
	ContinueAfterApproval(ctx context.Context, req workflow.ContinueRequest, emit workflow.Emitter) (*workflow.State, error)
}

// Sink receives each event after it has been persisted. A non-nil error
// stops the run.
type Sink func(event.Event) error

// Opts configures a Service.
type Opts struct {
	DB       *gorm.DB
	Engine   Runner
	Notifier notify.Notifier
	Now      func() time.Time
	Logger   *zap.Logger
}

// Service runs workflows for sessions.
type Service struct {
	db       *gorm.DB
	engine   Runner
	notifier notify.Notifier
	now      func() time.Time
	log      *zap.Logger
	locks    keyedMutex
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, errors.New("session: db is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("session: engine is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db:       opts.DB,
		engine:   opts.Engine,
		notifier: opts.Notifier,
		now:      opts.Now,
		log:      logging.OrNop(opts.Logger),
	}, nil
}

// StartRequest starts a new run for a session.
type StartRequest struct {
	SessionID string
	Query     string
	Platforms []string
	Persona   models.Persona
	Mode      models.Mode
}

// StartRun creates or overwrites the session and runs the workflow up to the
// approval checkpoint.
func (s *Service) StartRun(ctx context.Context, req StartRequest, sink Sink) error {
	if strings.TrimSpace(req.SessionID) == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query is required", ErrInvalidArgument)
	}
	platforms := models.NormalizePlatforms(req.Platforms)
	if len(platforms) == 0 {
		return fmt.Errorf("%w: at least one platform is required", ErrInvalidArgument)
	}
	if !req.Persona.Valid() {
		return fmt.Errorf("%w: unknown persona %q", ErrInvalidArgument, req.Persona)
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeDeep
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, req.Mode)
	}

	fresh := models.Session{
		SessionID: req.SessionID,
		Query:     req.Query,
		Platforms: platforms,
		Persona:   req.Persona,
		Mode:      mode,
	}
	if err := s.openSession(fresh, false, userMessage(req.SessionID, req.Query, platforms, req.Persona, mode)); err != nil {
		return err
	}

	r := s.newRun(req.SessionID, req.Query, platforms, req.Persona, mode, sink)
	_, err := s.engine.Run(ctx, workflow.Request{
		Query:     req.Query,
		Platforms: platforms,
		SessionID: req.SessionID,
		Persona:   req.Persona,
		Mode:      mode,
	}, r.emit)
	return s.finish(req.SessionID, err)
}

// Get returns a session and its transcript.
func (s *Service) Get(ctx context.Context, id string) (*models.Session, []models.Message, error) {
	db := s.db.WithContext(ctx)
	sess, err := store.GetSession(db, id)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}
	msgs, err := store.ListMessages(db, id)
	if err != nil {
		return nil, nil, err
	}
	return sess, msgs, nil
}

// PendingApproval returns the approval record a session is waiting on.
func (s *Service) PendingApproval(ctx context.Context, id string) (*models.PendingApproval, error) {
	rec, err := approval.Get(s.db.WithContext(ctx), id)
	if errors.Is(err, approval.ErrNotFound) {
		return nil, fmt.Errorf("%w: no pending approval for %s", ErrNotFound, id)
	}
	return rec, err
}

// Reset clears a session's results and transcript and returns it to
// researching. A non-empty query replaces the stored one.
func (s *Service) Reset(ctx context.Context, id, query string) (*models.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	var out *models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := store.ResetSession(tx, id, query, s.now())
		if err != nil {
			return err
		}
		if _, err := store.DeleteMessages(tx, id); err != nil {
			return err
		}
		out = sess
		return nil
	})
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("session reset", zap.String("session_id", id))
	return out, nil
}

// openSession writes fresh as the session's new state, keeping the creation
// time of an existing record, and appends the opening messages.
func (s *Service) openSession(fresh models.Session, clearTranscript bool, msgs ...*models.Message) error {
	unlock := s.locks.lock(fresh.SessionID)
	defer unlock()

	now := s.now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		fresh.Status = models.StatusResearching
		fresh.CreatedAt = now
		fresh.UpdatedAt = now
		existing, err := store.GetSession(tx, fresh.SessionID)
		switch {
		case err == nil:
			fresh.CreatedAt = existing.CreatedAt
			fresh.UpdatedAt = models.After(existing.UpdatedAt, now)
		case !errors.Is(err, store.ErrSessionNotFound):
			return err
		}
		if err := store.CreateOrReplaceSession(tx, &fresh); err != nil {
			return err
		}
		if clearTranscript {
			if _, err := store.DeleteMessages(tx, fresh.SessionID); err != nil {
				return err
			}
		}
		for _, m := range msgs {
			m.Timestamp = now
			if err := store.AppendMessage(tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// finish logs the end of a run and maps engine errors.
func (s *Service) finish(id string, err error) error {
	if err == nil {
		s.log.Info("run finished", zap.String("session_id", id))
		return nil
	}
	if errors.Is(err, workflow.ErrEmptyQuery) {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	s.log.Warn("run stopped", zap.String("session_id", id), zap.Error(err))
	return err
}

func userMessage(id, content string, platforms []string, persona models.Persona, mode models.Mode) *models.Message {
	meta, _ := json.Marshal(map[string]any{
		"platforms": platforms,
		"persona":   persona,
		"mode":      mode,
	})
	return &models.Message{
		SessionID: id,
		Type:      models.MessageUser,
		Content:   content,
		Metadata:  datatypes.JSON(meta),
	}
}

// keyedMutex serializes writers per session id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
