package participant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no participant row exists for the id.
	ErrNotFound = errors.New("participant: not found")
	// ErrCaseNotFound is returned when the referenced dispute is absent.
	ErrCaseNotFound = errors.New("participant: dispute not found")
)

const participantColumns = `
    id, dispute_id, user_id, name, email, role, is_active, joined_at, left_at`

// PGRepository persists dispute participants in postgres.
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
		return fmt.Errorf("participant: lock dispute: %w", err)
	}
	return nil
}

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, p Participant) (Participant, error) {
	const query = `
        INSERT INTO dispute_participants (id, dispute_id, user_id, name, email, role, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING ` + participantColumns

	created, err := scanParticipant(tx.QueryRow(ctx, query,
		p.ID, p.DisputeID, p.UserID, p.Name, p.Email, p.Role, p.IsActive))
	if err != nil {
		return Participant{}, fmt.Errorf("participant: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, tx pgx.Tx, id string) (Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM dispute_participants WHERE id = $1`
	p, err := scanParticipant(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, fmt.Errorf("participant: get: %w", err)
	}
	return p, nil
}

func (r *PGRepository) Deactivate(ctx context.Context, tx pgx.Tx, id string, at time.Time) (Participant, error) {
	const query = `
        UPDATE dispute_participants
        SET is_active = false,
            left_at = $2
        WHERE id = $1
        RETURNING ` + participantColumns

	p, err := scanParticipant(tx.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, fmt.Errorf("participant: deactivate: %w", err)
	}
	return p, nil
}

func (r *PGRepository) ListByDispute(ctx context.Context, disputeID string) ([]Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM dispute_participants WHERE dispute_id = $1 ORDER BY joined_at ASC`

	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("participant: list: %w", err)
	}
	defer rows.Close()

	out := make([]Participant, 0, 4)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("participant: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("participant: iterate: %w", err)
	}
	return out, nil
}

func scanParticipant(row pgx.Row) (Participant, error) {
	var p Participant
	return p, row.Scan(
		&p.ID, &p.DisputeID, &p.UserID, &p.Name, &p.Email, &p.Role, &p.IsActive, &p.JoinedAt, &p.LeftAt,
	)
}
