package disputecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no case exists for the given id.
	ErrNotFound = errors.New("disputecase: not found")
	// ErrVersionConflict signals the optimistic concurrency token moved
	// under the caller; re-fetch and retry.
	ErrVersionConflict = errors.New("disputecase: version conflict")
)

const caseColumns = `
    id, case_number, dispute_type, priority,
    complainant_id, complainant_name, complainant_email,
    respondent_id, respondent_name, respondent_email,
    title, description, amount_cents, currency,
    response_due_at, resolution_due_at, escalation_threshold_hours,
    status, mediator_id, mediator_name,
    is_escalated, escalated_at,
    resolution_type, resolution_summary, resolved_at, resolved_by,
    referred_to_pro_consumidor, referred_at,
    version, created_at, updated_at`

// PGRepository persists dispute cases in postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// NextCaseNumber draws the next externally visible case number. The
// backing sequence makes numbers unique and strictly increasing across
// all filings.
func (r *PGRepository) NextCaseNumber(ctx context.Context, tx pgx.Tx) (string, error) {
	var num string
	err := tx.QueryRow(ctx, `SELECT 'DSP-' || lpad(nextval('dispute_case_number_seq')::text, 6, '0')`).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("disputecase: next case number: %w", err)
	}
	return num, nil
}

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, c Case) (Case, error) {
	const query = `
        INSERT INTO disputes (
            id, case_number, dispute_type, priority,
            complainant_id, complainant_name, complainant_email,
            respondent_id, respondent_name, respondent_email,
            title, description, amount_cents, currency,
            response_due_at, resolution_due_at, escalation_threshold_hours, status
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING ` + caseColumns

	row := tx.QueryRow(ctx, query,
		c.ID, c.CaseNumber, c.Type, c.Priority,
		c.Complainant.ID, c.Complainant.Name, c.Complainant.Email,
		c.Respondent.ID, c.Respondent.Name, c.Respondent.Email,
		c.Title, c.Description, c.AmountCents, c.Currency,
		c.ResponseDueAt, c.ResolutionDueAt, c.EscalationThresholdHours, c.Status,
	)
	created, err := scanCase(row)
	if err != nil {
		return Case{}, fmt.Errorf("disputecase: insert: %w", err)
	}
	return created, nil
}

// GetForUpdate loads a case and locks its row for the rest of the
// transaction. The lock serializes all mutations of one case,
// including timeline seq assignment by subordinate writers.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Case, error) {
	query := `SELECT ` + caseColumns + ` FROM disputes WHERE id = $1 FOR UPDATE`
	c, err := scanCase(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("disputecase: get for update: %w", err)
	}
	return c, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Case, error) {
	query := `SELECT ` + caseColumns + ` FROM disputes WHERE id = $1`
	c, err := scanCase(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("disputecase: get: %w", err)
	}
	return c, nil
}

// Update writes the mutable fields guarded by the version token.
// Identity, parties, deadlines and created_at are immutable by design
// and never part of the SET list.
func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, c Case) (Case, error) {
	const query = `
        UPDATE disputes
        SET status = $3,
            mediator_id = $4,
            mediator_name = $5,
            is_escalated = $6,
            escalated_at = $7,
            resolution_type = $8,
            resolution_summary = $9,
            resolved_at = $10,
            resolved_by = $11,
            referred_to_pro_consumidor = $12,
            referred_at = $13,
            version = version + 1,
            updated_at = get_tx_timestamp()
        WHERE id = $1 AND version = $2
        RETURNING ` + caseColumns

	row := tx.QueryRow(ctx, query,
		c.ID, c.Version,
		c.Status, c.MediatorID, c.MediatorName,
		c.IsEscalated, c.EscalatedAt,
		c.ResolutionType, c.ResolutionSummary, c.ResolvedAt, c.ResolvedBy,
		c.ReferredToProConsumidor, c.ReferredAt,
	)
	updated, err := scanCase(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Case{}, fmt.Errorf("disputecase: update: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM disputes WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return Case{}, fmt.Errorf("disputecase: update existence check: %w", err)
	}
	if exists {
		return Case{}, ErrVersionConflict
	}
	return Case{}, ErrNotFound
}

// ListOverdue returns open cases whose resolution deadline has passed
// or whose escalation threshold elapsed without resolution. Cases that
// are already escalated, with the regulator, or settled are skipped.
func (r *PGRepository) ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]Case, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + caseColumns + `
        FROM disputes
        WHERE status IN ('filed', 'acknowledged', 'in_mediation')
          AND (
              resolution_due_at <= $1
              OR created_at + make_interval(hours => escalation_threshold_hours) <= $1
          )
        ORDER BY resolution_due_at ASC
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("disputecase: list overdue: %w", err)
	}
	defer rows.Close()

	out := make([]Case, 0, limit)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("disputecase: scan overdue: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("disputecase: iterate overdue: %w", err)
	}
	return out, nil
}

func scanCase(row pgx.Row) (Case, error) {
	var c Case
	return c, row.Scan(
		&c.ID, &c.CaseNumber, &c.Type, &c.Priority,
		&c.Complainant.ID, &c.Complainant.Name, &c.Complainant.Email,
		&c.Respondent.ID, &c.Respondent.Name, &c.Respondent.Email,
		&c.Title, &c.Description, &c.AmountCents, &c.Currency,
		&c.ResponseDueAt, &c.ResolutionDueAt, &c.EscalationThresholdHours,
		&c.Status, &c.MediatorID, &c.MediatorName,
		&c.IsEscalated, &c.EscalatedAt,
		&c.ResolutionType, &c.ResolutionSummary, &c.ResolvedAt, &c.ResolvedBy,
		&c.ReferredToProConsumidor, &c.ReferredAt,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
}
