package synthesis

import (
	"context"
	"time"

	"github.com/zulandar/trendyard/internal/logging"
	"github.com/zulandar/trendyard/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type traceKey struct{}

type trace struct {
	sessionID string
	stage     string
}

// WithSession tags ctx with the session a completion belongs to.
func WithSession(ctx context.Context, sessionID string) context.Context {
	t := traceFrom(ctx)
	t.sessionID = sessionID
	return context.WithValue(ctx, traceKey{}, t)
}

// WithStage tags ctx with the synthesis task issuing a completion.
func WithStage(ctx context.Context, stage string) context.Context {
	t := traceFrom(ctx)
	t.stage = stage
	return context.WithValue(ctx, traceKey{}, t)
}

func traceFrom(ctx context.Context) trace {
	t, _ := ctx.Value(traceKey{}).(trace)
	return t
}

// modeler is implemented by completers that know their model name.
type modeler interface {
	Model() string
}

// RecordingCompleter writes a CompletionLog row for every call it forwards.
type RecordingCompleter struct {
	next Completer
	db   *gorm.DB
	now  func() time.Time
	log  *zap.Logger
}

// NewRecordingCompleter wraps next. Recording failures are logged and never
// affect the completion result.
func NewRecordingCompleter(next Completer, db *gorm.DB, logger *zap.Logger) *RecordingCompleter {
	return &RecordingCompleter{next: next, db: db, now: time.Now, log: logging.OrNop(logger)}
}

// Model reports the wrapped completer's model name when it has one.
func (r *RecordingCompleter) Model() string {
	if m, ok := r.next.(modeler); ok {
		return m.Model()
	}
	return ""
}

// Complete forwards to the wrapped completer and records the call.
func (r *RecordingCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	start := r.now()
	text, err := r.next.Complete(ctx, system, user)

	t := traceFrom(ctx)
	entry := models.CompletionLog{
		SessionID:     t.sessionID,
		Stage:         t.stage,
		Model:         r.Model(),
		SystemChars:   len(system),
		PromptChars:   len(user),
		ResponseChars: len(text),
		LatencyMs:     int(r.now().Sub(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = truncate(err.Error(), 512)
	}
	if dbErr := r.db.WithContext(context.WithoutCancel(ctx)).Create(&entry).Error; dbErr != nil {
		r.log.Warn("record completion", zap.String("session_id", t.sessionID), zap.Error(dbErr))
	}
	return text, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
