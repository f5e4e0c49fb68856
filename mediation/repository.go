package mediation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no session exists for the id.
	ErrNotFound = errors.New("mediation: session not found")
	// ErrCaseNotFound is returned when the referenced dispute is absent.
	ErrCaseNotFound = errors.New("mediation: dispute not found")
)

const sessionColumns = `
    id, dispute_id, session_number, scheduled_at, duration_minutes, channel, location,
    mediator_id, mediator_name, status, started_at, ended_at,
    complainant_attended, respondent_attended, outcome_summary, outcome_notes, parties_agreed,
    created_at, updated_at`

// PGRepository persists mediation sessions in postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) LockDispute(ctx context.Context, tx pgx.Tx, disputeID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM disputes WHERE id = $1 FOR UPDATE`, disputeID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCaseNotFound
		}
		return fmt.Errorf("mediation: lock dispute: %w", err)
	}
	return nil
}

// NextSessionNumber computes MAX+1 within the dispute. Callers hold the
// dispute row lock, so concurrent schedulers cannot draw the same number.
func (r *PGRepository) NextSessionNumber(ctx context.Context, tx pgx.Tx, disputeID string) (int, error) {
	var number int
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(session_number), 0) + 1 FROM mediation_sessions WHERE dispute_id = $1`,
		disputeID).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("mediation: next session number: %w", err)
	}
	return number, nil
}

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, s Session) (Session, error) {
	const query = `
        INSERT INTO mediation_sessions (
            id, dispute_id, session_number, scheduled_at, duration_minutes, channel, location,
            mediator_id, mediator_name, status
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING ` + sessionColumns

	row := tx.QueryRow(ctx, query,
		s.ID, s.DisputeID, s.SessionNumber, s.ScheduledAt, s.DurationMinutes, s.Channel, s.Location,
		s.MediatorID, s.MediatorName, s.Status,
	)
	created, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("mediation: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, tx pgx.Tx, id string) (Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM mediation_sessions WHERE id = $1`
	s, err := scanSession(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("mediation: get: %w", err)
	}
	return s, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, s Session) (Session, error) {
	const query = `
        UPDATE mediation_sessions
        SET status = $2,
            started_at = $3,
            ended_at = $4,
            complainant_attended = $5,
            respondent_attended = $6,
            outcome_summary = $7,
            outcome_notes = $8,
            parties_agreed = $9,
            updated_at = get_tx_timestamp()
        WHERE id = $1
        RETURNING ` + sessionColumns

	row := tx.QueryRow(ctx, query,
		s.ID, s.Status, s.StartedAt, s.EndedAt,
		s.ComplainantAttended, s.RespondentAttended,
		s.OutcomeSummary, s.OutcomeNotes, s.PartiesAgreed,
	)
	updated, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("mediation: update: %w", err)
	}
	return updated, nil
}

func (r *PGRepository) ListByDispute(ctx context.Context, disputeID string) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM mediation_sessions WHERE dispute_id = $1 ORDER BY session_number ASC`

	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("mediation: list: %w", err)
	}
	defer rows.Close()

	out := make([]Session, 0, 4)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("mediation: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mediation: iterate: %w", err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	return s, row.Scan(
		&s.ID, &s.DisputeID, &s.SessionNumber, &s.ScheduledAt, &s.DurationMinutes, &s.Channel, &s.Location,
		&s.MediatorID, &s.MediatorName, &s.Status, &s.StartedAt, &s.EndedAt,
		&s.ComplainantAttended, &s.RespondentAttended, &s.OutcomeSummary, &s.OutcomeNotes, &s.PartiesAgreed,
		&s.CreatedAt, &s.UpdatedAt,
	)
}
