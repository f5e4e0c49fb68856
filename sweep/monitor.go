package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"disputeflow/disputecase"
)

// CaseSource lists open cases whose deadlines have passed.
type CaseSource interface {
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]disputecase.Case, error)
}

// Escalator promotes an overdue case. Backed by the case service so the
// escalation carries its timeline event and outbox message.
type Escalator interface {
	Escalate(ctx context.Context, caseID, reason string, actor disputecase.Actor) (disputecase.Case, error)
}

// Monitor periodically scans for overdue cases and escalates them. Case
// state is never owned here; every mutation goes through the case
// service under its usual locking.
type Monitor struct {
	cases       CaseSource
	escalator   Escalator
	logger      *zap.Logger
	interval    time.Duration
	jitter      time.Duration
	batchSize   int
	concurrency int
	now         func() time.Time
}

func NewMonitor(cases CaseSource, escalator Escalator, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cases:       cases,
		escalator:   escalator,
		logger:      logger,
		interval:    5 * time.Minute,
		jitter:      30 * time.Second,
		batchSize:   100,
		concurrency: 4,
		now:         time.Now,
	}
}

func (m *Monitor) WithInterval(interval, jitter time.Duration) *Monitor {
	m.interval = interval
	m.jitter = jitter
	return m
}

func (m *Monitor) WithBatchSize(n int) *Monitor {
	m.batchSize = n
	return m
}

func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Run loops until the context is cancelled. Jitter keeps replicas from
// scanning in lockstep.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("deadline monitor started",
		zap.Duration("interval", m.interval),
		zap.Int("batch_size", m.batchSize))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("deadline monitor stopped")
			return ctx.Err()
		case <-time.After(m.tickAfter()):
		}

		escalated, err := m.SweepOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			m.logger.Error("sweep failed", zap.Error(err))
			continue
		}
		if escalated > 0 {
			m.logger.Info("sweep escalated overdue cases", zap.Int("count", escalated))
		}
	}
}

// SweepOnce scans one batch of overdue cases and escalates each. A case
// raced away by a concurrent operation is skipped, not an error.
func (m *Monitor) SweepOnce(ctx context.Context) (int, error) {
	asOf := m.now().UTC()
	overdue, err := m.cases.ListOverdue(ctx, asOf, m.batchSize)
	if err != nil {
		return 0, fmt.Errorf("sweep: list overdue: %w", err)
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	escalated := 0
	results := make(chan bool, len(overdue))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, c := range overdue {
		c := c
		g.Go(func() error {
			ok, err := m.escalateOne(ctx, c, asOf)
			if err != nil {
				return err
			}
			results <- ok
			return nil
		})
	}
	// Count every success that made it into the channel even when the
	// group errored, so the caller sees how much work actually happened.
	waitErr := g.Wait()
	close(results)
	for ok := range results {
		if ok {
			escalated++
		}
	}
	return escalated, waitErr
}

func (m *Monitor) escalateOne(ctx context.Context, c disputecase.Case, asOf time.Time) (bool, error) {
	reason := "Escalation threshold exceeded without resolution"
	if !asOf.Before(c.ResolutionDueAt) {
		reason = "Resolution deadline exceeded"
	}

	_, err := m.escalator.Escalate(ctx, c.ID, reason, disputecase.Actor{
		Name: "Deadline Monitor",
		Role: "system",
	})
	switch {
	case err == nil:
		m.logger.Info("case escalated by deadline sweep",
			zap.String("case_id", c.ID),
			zap.String("case_number", c.CaseNumber),
			zap.String("reason", reason))
		return true, nil
	case errors.Is(err, disputecase.ErrInvalidTransition),
		errors.Is(err, disputecase.ErrVersionConflict),
		errors.Is(err, disputecase.ErrNotFound):
		// a concurrent operation moved the case first
		m.logger.Debug("skipping case raced by concurrent operation",
			zap.String("case_id", c.ID), zap.Error(err))
		return false, nil
	default:
		return false, fmt.Errorf("sweep: escalate %s: %w", c.ID, err)
	}
}

func (m *Monitor) tickAfter() time.Duration {
	if m.jitter <= 0 {
		return m.interval
	}
	return m.interval + time.Duration(rand.Int63n(int64(m.jitter)))
}
