package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/trendyard/internal/approval"
	"github.com/zulandar/trendyard/internal/db"
	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/llm"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/notify"
	"github.com/zulandar/trendyard/internal/source"
	"github.com/zulandar/trendyard/internal/store"
	"github.com/zulandar/trendyard/internal/synthesis"
	"github.com/zulandar/trendyard/internal/workflow"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gdb
}

func testEngine(t *testing.T) *workflow.Engine {
	t.Helper()
	synth, err := synthesis.New(synthesis.Opts{LLM: llm.NewMock(), Now: clock})
	require.NoError(t, err)
	eng, err := workflow.New(workflow.Opts{
		Synth: synth,
		Sources: source.Set{
			WebSearch: source.NewWebSearch(source.WebSearchOpts{Now: clock}),
			Community: source.NewCommunity(source.CommunityOpts{Now: clock}),
		},
	})
	require.NoError(t, err)
	return eng
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notice
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	for i, n := range r.got {
		out[i] = n.Title
	}
	return out
}

type sinkRecorder struct {
	events []event.Event
}

func (s *sinkRecorder) sink(ev event.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *sinkRecorder) types() []event.Type {
	out := make([]event.Type, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type()
	}
	return out
}

func newService(t *testing.T, gdb *gorm.DB, runner Runner, n notify.Notifier) *Service {
	t.Helper()
	svc, err := New(Opts{DB: gdb, Engine: runner, Notifier: n, Now: clock})
	require.NoError(t, err)
	return svc
}

func startLaunchRun(t *testing.T, svc *Service) *sinkRecorder {
	t.Helper()
	rec := &sinkRecorder{}
	err := svc.StartRun(context.Background(), StartRequest{
		SessionID: "s1",
		Query:     "Launch of an AI notebook app",
		Platforms: []string{"LinkedIn", "X"},
		Mode:      models.ModeDeep,
	}, rec.sink)
	require.NoError(t, err)
	return rec
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Opts{Engine: testEngine(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is required")

	_, err = New(Opts{DB: testDB(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine is required")
}

func TestStartRun_DeepWithoutCredentials(t *testing.T) {
	gdb := testDB(t)
	notes := &recordingNotifier{}
	svc := newService(t, gdb, testEngine(t), notes)

	rec := startLaunchRun(t, svc)

	assert.Equal(t, []event.Type{
		event.TypeStep,
		event.TypeResearchPlanComplete,
		event.TypeStep,
		event.TypeTrendCandidate,
		event.TypeTrendCandidate,
		event.TypeTrendRetrievalComplete,
		event.TypeStep,
		event.TypeResearchComplete,
		event.TypeApprovalRequired,
	}, rec.types())

	sess, msgs, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingApproval, sess.Status)
	assert.NotEmpty(t, sess.TrendingTopics)
	assert.NotEmpty(t, sess.Research)
	assert.Equal(t, []string{"LinkedIn", "X"}, sess.Platforms)

	// user, three steps, retrieval summary, research, approval
	types := make([]models.MessageType, len(msgs))
	for i, m := range msgs {
		types[i] = m.Type
	}
	assert.Equal(t, []models.MessageType{
		models.MessageUser,
		models.MessageStep,
		models.MessageStep,
		models.MessageStep,
		models.MessageStep,
		models.MessageResearch,
		models.MessageApproval,
	}, types)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp), "timestamps strictly increase at %d", i)
	}

	rec2, err := approval.Get(gdb, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Launch of an AI notebook app", rec2.OriginalQuery)
	assert.Equal(t, "technology", rec2.Scope.Domain)
	assert.Equal(t, models.ModeDeep, rec2.Mode)
	assert.False(t, rec2.Approved)
	assert.Equal(t, sess.Research, rec2.Research)

	assert.Equal(t, []string{"Research ready for review"}, notes.titles())
}

func TestStartRun_FastMode(t *testing.T) {
	svc := newService(t, testDB(t), testEngine(t), nil)
	rec := &sinkRecorder{}
	err := svc.StartRun(context.Background(), StartRequest{
		SessionID: "f1",
		Query:     "AI notebooks",
		Platforms: []string{"LinkedIn"},
		Mode:      models.ModeFast,
	}, rec.sink)
	require.NoError(t, err)
	assert.Equal(t, []event.Type{event.TypeStep, event.TypeResearchComplete, event.TypeApprovalRequired}, rec.types())

	pending, err := svc.PendingApproval(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultScope(), pending.Scope)
	assert.Equal(t, models.ModeFast, pending.Mode)
}

func TestStartRun_InvalidArguments(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb, testEngine(t), nil)

	tests := []struct {
		name string
		req  StartRequest
	}{
		{"empty session", StartRequest{Query: "q", Platforms: []string{"X"}}},
		{"empty query", StartRequest{SessionID: "s", Query: "  ", Platforms: []string{"X"}}},
		{"no platforms", StartRequest{SessionID: "s", Query: "q", Platforms: []string{" "}}},
		{"bad persona", StartRequest{SessionID: "s", Query: "q", Platforms: []string{"X"}, Persona: "pirate"}},
		{"bad mode", StartRequest{SessionID: "s", Query: "q", Platforms: []string{"X"}, Mode: "slow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.StartRun(context.Background(), tt.req, nil)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	_, err := store.GetSession(gdb, "s")
	assert.ErrorIs(t, err, store.ErrSessionNotFound, "rejected requests create nothing")
}

func TestDecide_Approve(t *testing.T) {
	gdb := testDB(t)
	notes := &recordingNotifier{}
	svc := newService(t, gdb, testEngine(t), notes)
	startLaunchRun(t, svc)

	rec := &sinkRecorder{}
	err := svc.Decide(context.Background(), DecideRequest{SessionID: "s1", Action: ActionApprove}, rec.sink)
	require.NoError(t, err)

	assert.Equal(t, []event.Type{event.TypeIdeaStream, event.TypeIdeaStream, event.TypeComplete}, rec.types())
	assert.Equal(t, "LinkedIn", rec.events[0].(event.IdeaStream).Platform)
	assert.Equal(t, "X", rec.events[1].(event.IdeaStream).Platform)

	sess, msgs, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, sess.Status)
	require.Len(t, sess.Ideas, 2)
	for _, platform := range []string{"LinkedIn", "X"} {
		ideas := sess.Ideas[platform]
		assert.NotEmpty(t, ideas, platform)
		assert.LessOrEqual(t, len(ideas), synthesis.IdeasPerPlatform, platform)
		for _, idea := range ideas {
			assert.Greater(t, len(idea), synthesis.MinIdeaLength)
			assert.NotContains(t, idea, "```")
		}
	}
	last := msgs[len(msgs)-1]
	assert.Equal(t, models.MessageSystem, last.Type)

	pending, err := approval.Get(gdb, "s1")
	require.NoError(t, err)
	assert.True(t, pending.Approved, "approval record is kept and flagged")

	assert.Equal(t, []string{"Research ready for review", "Ideas ready"}, notes.titles())
}

func TestDecide_ApproveIsRepeatable(t *testing.T) {
	svc := newService(t, testDB(t), testEngine(t), nil)
	startLaunchRun(t, svc)

	for i := 0; i < 2; i++ {
		err := svc.Decide(context.Background(), DecideRequest{SessionID: "s1", Action: ActionApprove}, nil)
		require.NoError(t, err, "approve #%d", i+1)
	}
	sess, _, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, sess.Status)
	assert.Len(t, sess.Ideas, 2)
}

// queryRunner records the requests it receives and delegates to the real
// engine.
type queryRunner struct {
	Runner
	runs  []workflow.Request
	onRun func()
}

func (q *queryRunner) Run(ctx context.Context, req workflow.Request, emit workflow.Emitter) (*workflow.State, error) {
	q.runs = append(q.runs, req)
	if q.onRun != nil {
		q.onRun()
	}
	return q.Runner.Run(ctx, req, emit)
}

func TestDecide_Refine(t *testing.T) {
	gdb := testDB(t)
	runner := &queryRunner{Runner: testEngine(t)}
	svc := newService(t, gdb, runner, nil)
	startLaunchRun(t, svc)

	rec := &sinkRecorder{}
	err := svc.Decide(context.Background(), DecideRequest{
		SessionID: "s1",
		Action:    ActionRefine,
		Text:      "focus on enterprise buyers",
	}, rec.sink)
	require.NoError(t, err)

	require.Len(t, runner.runs, 2)
	refined := runner.runs[1]
	assert.Equal(t, "Launch of an AI notebook app\nRefinement: focus on enterprise buyers", refined.Query)
	assert.True(t, refined.IsRefinement)
	assert.Equal(t, models.ModeDeep, refined.Mode)
	assert.Equal(t, event.TypeApprovalRequired, rec.events[len(rec.events)-1].Type())

	pending, err := approval.Get(gdb, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Launch of an AI notebook app", pending.OriginalQuery, "refinements do not stack")
	assert.False(t, pending.NeedsRefinement)

	sess, msgs, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, refined.Query, sess.Query)
	assert.Equal(t, models.StatusWaitingApproval, sess.Status)

	var userTexts []string
	for _, m := range msgs {
		if m.Type == models.MessageUser {
			userTexts = append(userTexts, m.Content)
		}
	}
	assert.Equal(t, []string{"Launch of an AI notebook app", "focus on enterprise buyers"}, userTexts)
}

func TestDecide_RefineRequiresText(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb, testEngine(t), nil)
	startLaunchRun(t, svc)

	err := svc.Decide(context.Background(), DecideRequest{SessionID: "s1", Action: ActionRefine, Text: "  "}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	pending, err := approval.Get(gdb, "s1")
	require.NoError(t, err)
	assert.False(t, pending.NeedsRefinement)
}

func TestDecide_RestartResetsSession(t *testing.T) {
	gdb := testDB(t)
	runner := &queryRunner{Runner: testEngine(t)}
	svc := newService(t, gdb, runner, nil)
	startLaunchRun(t, svc)
	require.NoError(t, svc.Decide(context.Background(), DecideRequest{SessionID: "s1", Action: ActionApprove}, nil))

	var atRun *models.Session
	runner.onRun = func() {
		s, err := store.GetSession(gdb, "s1")
		require.NoError(t, err)
		atRun = s
	}
	err := svc.Decide(context.Background(), DecideRequest{
		SessionID: "s1",
		Action:    ActionRestart,
		Text:      "AI notebooks for lawyers",
	}, nil)
	require.NoError(t, err)

	require.NotNil(t, atRun)
	assert.Equal(t, models.StatusResearching, atRun.Status)
	assert.Empty(t, atRun.Research)
	assert.Empty(t, atRun.Sources)
	assert.Empty(t, atRun.TrendingTopics)
	assert.Empty(t, atRun.Ideas)
	assert.Equal(t, "AI notebooks for lawyers", atRun.Query)

	last := runner.runs[len(runner.runs)-1]
	assert.Equal(t, "AI notebooks for lawyers", last.Query)
	assert.True(t, last.IsRefinement)

	pending, err := approval.Get(gdb, "s1")
	require.NoError(t, err)
	assert.Equal(t, "AI notebooks for lawyers", pending.OriginalQuery)

	_, msgs, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "AI notebooks for lawyers", msgs[0].Content, "transcript starts over")
	assert.Equal(t, 1, msgs[0].Sequence)
}

func TestDecide_RestartWithoutTextReusesQuery(t *testing.T) {
	runner := &queryRunner{Runner: testEngine(t)}
	svc := newService(t, testDB(t), runner, nil)
	startLaunchRun(t, svc)

	require.NoError(t, svc.Decide(context.Background(), DecideRequest{SessionID: "s1", Action: ActionRestart}, nil))
	assert.Equal(t, "Launch of an AI notebook app", runner.runs[len(runner.runs)-1].Query)
}

func TestDecide_NotFoundLeavesSessionAlone(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb, testEngine(t), nil)
	require.NoError(t, store.CreateOrReplaceSession(gdb, &models.Session{
		SessionID: "s2",
		Query:     "q",
		Status:    models.StatusResearching,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}))

	for _, action := range []Action{ActionApprove, ActionRefine, ActionRestart} {
		err := svc.Decide(context.Background(), DecideRequest{SessionID: "s2", Action: action, Text: "x"}, nil)
		assert.ErrorIs(t, err, ErrNotFound, string(action))
	}

	sess, err := store.GetSession(gdb, "s2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResearching, sess.Status)
	assert.True(t, sess.UpdatedAt.Equal(fixedNow))
	msgs, err := store.ListMessages(gdb, "s2")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"approve", ActionApprove, false},
		{" Refine ", ActionRefine, false},
		{"RESTART", ActionRestart, false},
		{"reject", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartRun_SinkErrorStopsRun(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb, testEngine(t), nil)
	gone := errors.New("client disconnected")

	var seen int
	err := svc.StartRun(context.Background(), StartRequest{
		SessionID: "s1",
		Query:     "Launch of an AI notebook app",
		Platforms: []string{"LinkedIn"},
	}, func(ev event.Event) error {
		seen++
		if ev.Type() == event.TypeResearchPlanComplete {
			return gone
		}
		return nil
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 2, seen)

	_, err = approval.Get(gdb, "s1")
	assert.ErrorIs(t, err, approval.ErrNotFound)
}

func TestStartRun_NotificationFailureIsIgnored(t *testing.T) {
	notes := &recordingNotifier{err: errors.New("slack down")}
	svc := newService(t, testDB(t), testEngine(t), notes)
	startLaunchRun(t, svc)
	assert.Len(t, notes.titles(), 1)
}

func TestReset(t *testing.T) {
	svc := newService(t, testDB(t), testEngine(t), nil)
	startLaunchRun(t, svc)

	sess, err := svc.Reset(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResearching, sess.Status)
	assert.Empty(t, sess.Research)
	assert.Equal(t, "Launch of an AI notebook app", sess.Query)

	_, msgs, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = svc.Reset(context.Background(), "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_NotFound(t *testing.T) {
	svc := newService(t, testDB(t), testEngine(t), nil)
	_, _, err := svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, strings.Contains(err.Error(), "nope"))
}

func TestKeyedMutex_Serializes(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("s1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Empty(t, k.locks, "entries are released")
}
