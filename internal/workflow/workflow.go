// Package workflow runs the research, approval checkpoint and idea
// generation pipeline for one session.
//
// A run is a sequence of stages. Each stage is a function of the accumulated
// State that returns the updated State and the events it produced; the
// engine emits a step event before each stage and forwards the stage's
// events in order. Deep runs stop at the approval checkpoint; a later
// continuation resumes directly at idea generation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/logging"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/source"
	"github.com/zulandar/trendyard/internal/synthesis"
	"go.uber.org/zap"
)

// Defaults for the optional Opts limits.
const (
	DefaultEnrichLimit   = 15
	DefaultReportLimit   = 10
	DefaultSourceTimeout = 30 * time.Second
)

// ErrEmptyQuery is returned when a run is requested without a query.
var ErrEmptyQuery = errors.New("workflow: query is required")

// RefinementPrefix separates the original query from refinement text.
const RefinementPrefix = "\nRefinement: "

// Emitter receives events in emission order. A non-nil error stops the run.
type Emitter func(event.Event) error

// Opts configures an Engine.
type Opts struct {
	Synth         *synthesis.Engine
	Sources       source.Set
	EnrichLimit   int
	ReportLimit   int
	SourceTimeout time.Duration
	Logger        *zap.Logger
}

// Engine executes workflow runs. It holds no per-run state and is safe for
// concurrent use by runs of different sessions.
type Engine struct {
	synth         *synthesis.Engine
	sources       source.Set
	enrichLimit   int
	reportLimit   int
	sourceTimeout time.Duration
	log           *zap.Logger
}

// New creates an Engine.
func New(opts Opts) (*Engine, error) {
	if opts.Synth == nil {
		return nil, errors.New("workflow: synthesis engine is required")
	}
	if opts.EnrichLimit <= 0 {
		opts.EnrichLimit = DefaultEnrichLimit
	}
	if opts.ReportLimit <= 0 {
		opts.ReportLimit = DefaultReportLimit
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	return &Engine{
		synth:         opts.Synth,
		sources:       opts.Sources,
		enrichLimit:   opts.EnrichLimit,
		reportLimit:   opts.ReportLimit,
		sourceTimeout: opts.SourceTimeout,
		log:           logging.OrNop(opts.Logger),
	}, nil
}

// Request starts a run from the beginning.
type Request struct {
	Query        string
	Platforms    []string
	SessionID    string
	Persona      models.Persona
	Mode         models.Mode
	IsRefinement bool
}

// ContinueRequest resumes a run after approval. Research is the only
// required input; nothing before idea generation is re-run.
type ContinueRequest struct {
	SessionID string
	Query     string
	Research  string
	Platforms []string
	Persona   models.Persona
}

// RefinedQuery appends a refinement clause to the original query.
func RefinedQuery(original, refinement string) string {
	return original + RefinementPrefix + refinement
}

// Run executes a run from the first stage. It returns at the approval
// checkpoint with the accumulated State.
func (e *Engine) Run(ctx context.Context, req Request, emit Emitter) (*State, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeDeep
	}
	st := State{
		SessionID:    req.SessionID,
		Query:        req.Query,
		Platforms:    models.NormalizePlatforms(req.Platforms),
		Persona:      req.Persona,
		Mode:         mode,
		IsRefinement: req.IsRefinement,
	}

	stages := e.deepStages()
	if mode == models.ModeFast {
		stages = e.fastStages()
	}

	e.log.Info("workflow run started",
		zap.String("session_id", st.SessionID),
		zap.String("mode", string(mode)),
		zap.Bool("refinement", st.IsRefinement),
		zap.Int("platforms", len(st.Platforms)),
	)
	return e.execute(synthesis.WithSession(ctx, st.SessionID), st, stages, emit)
}

// ContinueAfterApproval generates ideas from approved research. It emits one
// idea_stream per platform followed by complete, with no step event.
func (e *Engine) ContinueAfterApproval(ctx context.Context, req ContinueRequest, emit Emitter) (*State, error) {
	st := State{
		SessionID: req.SessionID,
		Query:     req.Query,
		Platforms: models.NormalizePlatforms(req.Platforms),
		Persona:   req.Persona,
		Research:  req.Research,
		Approved:  true,
	}
	e.log.Info("workflow continuation started",
		zap.String("session_id", st.SessionID),
		zap.Int("platforms", len(st.Platforms)),
	)
	ideas := stage{id: event.StageGenerateIdeas, run: e.generateIdeas, silent: true}
	return e.execute(synthesis.WithSession(ctx, st.SessionID), st, []stage{ideas}, emit)
}

// stage is one step of a run.
type stage struct {
	id      string
	message string
	run     func(context.Context, State) (State, []event.Event)
	// checkpoint stops the run when approval is pending after this stage.
	checkpoint bool
	// silent suppresses the leading step event.
	silent bool
}

func (e *Engine) deepStages() []stage {
	return []stage{
		{id: event.StageResearchPlan, message: "Planning research scope...", run: e.researchPlan},
		{id: event.StageTrendRetrieval, message: "Retrieving trend candidates...", run: e.trendRetrieval},
		{id: event.StageResearchReport, message: "Writing research report...", run: e.researchReport, checkpoint: true},
		{id: event.StageGenerateIdeas, message: "Generating ideas...", run: e.generateIdeas},
	}
}

func (e *Engine) fastStages() []stage {
	return []stage{
		{id: event.StageFastResearch, message: "Researching trends...", run: e.fastResearch, checkpoint: true},
		{id: event.StageGenerateIdeas, message: "Generating ideas...", run: e.generateIdeas},
	}
}

func (e *Engine) execute(ctx context.Context, st State, stages []stage, emit Emitter) (*State, error) {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return &st, fmt.Errorf("workflow: %s: %w", s.id, err)
		}
		if !s.silent {
			if err := emit(event.Step{Step: s.id, Message: s.message}); err != nil {
				return &st, fmt.Errorf("workflow: emit step %s: %w", s.id, err)
			}
		}

		started := time.Now()
		next, events := s.run(ctx, st)
		st = next
		for _, ev := range events {
			if err := emit(ev); err != nil {
				return &st, fmt.Errorf("workflow: emit %s: %w", ev.Type(), err)
			}
		}
		e.log.Debug("stage finished",
			zap.String("session_id", st.SessionID),
			zap.String("stage", s.id),
			zap.Int("events", len(events)),
			zap.Duration("elapsed", time.Since(started)),
		)

		if s.checkpoint && st.NeedsApproval && !st.Approved {
			e.log.Info("workflow awaiting approval", zap.String("session_id", st.SessionID))
			return &st, nil
		}
	}
	return &st, nil
}
