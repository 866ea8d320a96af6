package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// DefaultSweepSchedule runs the sweep every five minutes
	DefaultSweepSchedule = "*/5 * * * *"
	// DefaultStaleAfter is how long an in-flight request may sit untouched
	DefaultStaleAfter = 10 * time.Minute
	// InterruptedReason is recorded on requests aborted by the sweeper
	InterruptedReason = "pipeline interrupted"
)

// inFlight are the statuses a background pipeline moves a request through
var inFlight = []entity.Status{entity.StatusNew, entity.StatusRegistered, entity.StatusClassified}

// RequestSweeper is the slice of the workflow engine the sweeper needs
type RequestSweeper interface {
	GetAllRequests(ctx context.Context, filter entity.RequestFilter) ([]*entity.ServiceRequest, error)
	AbortRequest(ctx context.Context, id string, reason string) (*entity.ServiceRequest, error)
	PipelineActive(id string) bool
}

// StaleRequestSweeper aborts in-flight requests whose pipeline no longer runs,
// typically because the process restarted mid-pipeline.
type StaleRequestSweeper struct {
	engine     RequestSweeper
	schedule   cron.Schedule
	expr       string
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewStaleRequestSweeper validates the cron expression and builds the sweeper
func NewStaleRequestSweeper(engine RequestSweeper, schedule string, staleAfter time.Duration, logger *zap.Logger) (*StaleRequestSweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid sweeper schedule %q: %w", schedule, err)
	}

	return &StaleRequestSweeper{
		engine:     engine,
		schedule:   sched,
		expr:       schedule,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Name returns the worker name
func (s *StaleRequestSweeper) Name() string {
	return "stale-request-sweeper"
}

// Start schedules the sweep; it does not block
func (s *StaleRequestSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Stale request sweep failed", zap.Error(err))
		}
	}))
	c.Start()
	s.cron = c

	s.logger.Info("Stale request sweeper started",
		zap.String("schedule", s.expr),
		zap.Duration("stale_after", s.staleAfter),
		zap.Time("next_run", s.schedule.Next(s.now())))
	return nil
}

// Stop cancels future sweeps and waits for a running one to finish
func (s *StaleRequestSweeper) Stop() error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	<-c.Stop().Done()
	s.logger.Info("Stale request sweeper stopped")
	return nil
}

// Sweep aborts every stale in-flight request once and returns how many were aborted.
// A request another actor settles in the meantime is skipped.
func (s *StaleRequestSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	aborted := 0

	for _, status := range inFlight {
		requests, err := s.engine.GetAllRequests(ctx, entity.RequestFilter{
			Status:        status,
			UpdatedBefore: &cutoff,
		})
		if err != nil {
			return aborted, fmt.Errorf("list %s requests: %w", status, err)
		}

		for _, req := range requests {
			if s.engine.PipelineActive(req.ID) {
				continue
			}
			if _, err := s.engine.AbortRequest(ctx, req.ID, InterruptedReason); err != nil {
				s.logger.Info("Skipped stale request",
					zap.String("request_id", req.ID),
					zap.String("status", string(req.Status)),
					zap.Error(err))
				continue
			}
			aborted++
			s.logger.Info("Aborted stale request",
				zap.String("request_id", req.ID),
				zap.String("status", string(req.Status)),
				zap.Time("updated_at", req.UpdatedAt))
		}
	}

	return aborted, nil
}
