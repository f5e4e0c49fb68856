package sla

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNoConfiguration signals the exact (type, priority) pair has no row.
var ErrNoConfiguration = errors.New("sla: no configuration for type/priority")

// ConfigStore is the lookup contract the resolver consumes.
type ConfigStore interface {
	Get(ctx context.Context, disputeType, priority string) (Deadlines, error)
}

// Resolver answers deadline lookups, substituting the default policy
// when configuration is absent. Absence is an operational condition,
// not an error, so it is logged at warning level and the caller
// proceeds.
type Resolver struct {
	store    ConfigStore
	fallback Deadlines
	logger   *zap.Logger
}

func NewResolver(store ConfigStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:    store,
		fallback: DefaultPolicy,
		logger:   logger,
	}
}

// Deadlines returns the configured deadlines for the exact
// (disputeType, priority) pair, or the default policy when none exist.
// Store failures other than a missing row are propagated.
func (r *Resolver) Deadlines(ctx context.Context, disputeType, priority string) (Deadlines, error) {
	d, err := r.store.Get(ctx, disputeType, priority)
	if err != nil {
		if errors.Is(err, ErrNoConfiguration) {
			r.logger.Warn("sla configuration missing, applying default policy",
				zap.String("dispute_type", disputeType),
				zap.String("priority", priority),
				zap.Int("response_hours", r.fallback.ResponseHours),
				zap.Int("resolution_hours", r.fallback.ResolutionHours),
			)
			return r.fallback, nil
		}
		return Deadlines{}, err
	}
	return d, nil
}
