package sla

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore reads SLA configuration from postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, disputeType, priority string) (Deadlines, error) {
	const query = `
        SELECT response_hours, resolution_hours, escalation_threshold_hours
        FROM dispute_sla_configurations
        WHERE dispute_type = $1 AND priority = $2
    `

	var d Deadlines
	err := s.pool.QueryRow(ctx, query, disputeType, priority).
		Scan(&d.ResponseHours, &d.ResolutionHours, &d.EscalationThresholdHours)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deadlines{}, ErrNoConfiguration
		}
		return Deadlines{}, fmt.Errorf("sla: get configuration: %w", err)
	}
	return d, nil
}

// Upsert replaces the deadlines for one (type, priority) pair. Used by
// admin tooling and test seeding; running cases keep the deadlines they
// were filed with.
func (s *PGStore) Upsert(ctx context.Context, cfg Configuration) (Configuration, error) {
	if cfg.DisputeType == "" || cfg.Priority == "" {
		return Configuration{}, fmt.Errorf("sla: dispute type and priority required")
	}
	if cfg.ResponseHours <= 0 || cfg.ResolutionHours <= 0 {
		return Configuration{}, fmt.Errorf("sla: deadline hours must be positive")
	}
	if cfg.ResolutionHours < cfg.ResponseHours {
		return Configuration{}, fmt.Errorf("sla: resolution deadline before response deadline")
	}

	const query = `
        INSERT INTO dispute_sla_configurations
            (dispute_type, priority, response_hours, resolution_hours, escalation_threshold_hours)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (dispute_type, priority) DO UPDATE
        SET response_hours = EXCLUDED.response_hours,
            resolution_hours = EXCLUDED.resolution_hours,
            escalation_threshold_hours = EXCLUDED.escalation_threshold_hours,
            updated_at = get_tx_timestamp()
        RETURNING id, dispute_type, priority, response_hours, resolution_hours,
                  escalation_threshold_hours, created_at, updated_at
    `

	var out Configuration
	err := s.pool.QueryRow(ctx, query,
		cfg.DisputeType, cfg.Priority,
		cfg.ResponseHours, cfg.ResolutionHours, cfg.EscalationThresholdHours,
	).Scan(&out.ID, &out.DisputeType, &out.Priority, &out.ResponseHours,
		&out.ResolutionHours, &out.EscalationThresholdHours, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Configuration{}, fmt.Errorf("sla: upsert configuration: %w", err)
	}
	return out, nil
}
