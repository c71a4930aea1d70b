// Package synthesis turns free-form model output into structured research
// artifacts: scope, trend enrichment, confidence, reports and ideas.
//
// Every operation that calls the model has a deterministic fallback, so none
// of them return errors for bad model output.
package synthesis

import (
	"context"
	"errors"
	"time"

	"github.com/zulandar/trendyard/internal/logging"
	"go.uber.org/zap"
)

// Completer is the opaque text-generation capability.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Opts configures an Engine.
type Opts struct {
	LLM         Completer
	Now         func() time.Time
	CallTimeout time.Duration
	Logger      *zap.Logger
}

// Engine wraps a Completer with structured extraction.
type Engine struct {
	llm     Completer
	now     func() time.Time
	timeout time.Duration
	log     *zap.Logger
}

// New creates an Engine. A nil Now defaults to time.Now.
func New(opts Opts) (*Engine, error) {
	if opts.LLM == nil {
		return nil, errors.New("synthesis: llm is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		llm:     opts.LLM,
		now:     opts.Now,
		timeout: opts.CallTimeout,
		log:     logging.OrNop(opts.Logger),
	}, nil
}

// Now returns the engine's notion of the current time.
func (e *Engine) Now() time.Time { return e.now() }

// complete calls the model under the per-call timeout. Callers treat any
// error, including a timeout, as a parse failure.
func (e *Engine) complete(ctx context.Context, task, system, user string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	text, err := e.llm.Complete(WithStage(ctx, task), system, user)
	if err != nil {
		e.log.Warn("completion failed, using fallback",
			zap.String("task", task),
			zap.Error(err),
		)
		return "", err
	}
	return text, nil
}
