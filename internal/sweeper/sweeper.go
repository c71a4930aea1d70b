// Package sweeper expires pending approvals nobody decided on.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/trendyard/internal/approval"
	"github.com/zulandar/trendyard/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Opts configures a Sweeper.
type Opts struct {
	DB       *gorm.DB
	Schedule string
	// TTL is how long an undecided approval is kept. Zero disables sweeping.
	TTL    time.Duration
	Now    func() time.Time
	Logger *zap.Logger
}

// Sweeper deletes stale pending approvals on a cron schedule.
type Sweeper struct {
	db       *gorm.DB
	schedule cron.Schedule
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// New creates a Sweeper. The schedule is validated up front.
func New(opts Opts) (*Sweeper, error) {
	if opts.DB == nil {
		return nil, errors.New("sweeper: db is required")
	}
	if opts.TTL < 0 {
		return nil, errors.New("sweeper: ttl must not be negative")
	}
	sched, err := cronParser.Parse(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("sweeper: schedule %q: %w", opts.Schedule, err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{
		db:       opts.DB,
		schedule: sched,
		ttl:      opts.TTL,
		now:      opts.Now,
		log:      logging.OrNop(opts.Logger),
	}, nil
}

// Enabled reports whether the sweeper deletes anything.
func (s *Sweeper) Enabled() bool { return s.ttl > 0 }

// Next returns the first scheduled run after from.
func (s *Sweeper) Next(from time.Time) time.Time { return s.schedule.Next(from) }

// Sweep deletes undecided approvals older than the TTL once.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl)
	n, err := approval.ExpireOlderThan(s.db.WithContext(ctx), cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired stale approvals", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run sweeps on schedule until ctx is cancelled, then waits for a running
// sweep to finish.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.Enabled() {
		s.log.Info("approval sweeper disabled")
		return nil
	}

	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Warn("approval sweep failed", zap.Error(err))
		}
	}))
	c.Start()
	s.log.Info("approval sweeper started",
		zap.Duration("ttl", s.ttl),
		zap.Time("next_run", s.Next(s.now())),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
