package evidence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no evidence row exists for the id.
	ErrNotFound = errors.New("evidence: not found")
	// ErrCaseNotFound is returned when the referenced dispute is absent.
	ErrCaseNotFound = errors.New("evidence: dispute not found")
)

const evidenceColumns = `
    id, dispute_id, name, description, kind,
    file_name, file_content_type, file_size_bytes, file_storage_key,
    submitter_id, submitter_name, submitter_role,
    review_status, reviewer_id, reviewer_name, review_notes, reviewed_at,
    created_at, updated_at`

// PGRepository persists dispute evidence in postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// LockDispute takes the parent dispute's row lock for the transaction.
func (r *PGRepository) LockDispute(ctx context.Context, tx pgx.Tx, disputeID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM disputes WHERE id = $1 FOR UPDATE`, disputeID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCaseNotFound
		}
		return fmt.Errorf("evidence: lock dispute: %w", err)
	}
	return nil
}

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, rec Record) (Record, error) {
	const query = `
        INSERT INTO dispute_evidence (
            id, dispute_id, name, description, kind,
            file_name, file_content_type, file_size_bytes, file_storage_key,
            submitter_id, submitter_name, submitter_role, review_status
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING ` + evidenceColumns

	row := tx.QueryRow(ctx, query,
		rec.ID, rec.DisputeID, rec.Name, rec.Description, rec.Kind,
		rec.File.Name, rec.File.ContentType, rec.File.SizeBytes, rec.File.StorageKey,
		rec.SubmitterID, rec.SubmitterName, rec.SubmitterRole, rec.ReviewStatus,
	)
	created, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("evidence: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, tx pgx.Tx, id string) (Record, error) {
	query := `SELECT ` + evidenceColumns + ` FROM dispute_evidence WHERE id = $1`
	rec, err := scanRecord(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("evidence: get: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) SetReview(ctx context.Context, tx pgx.Tx, id string, status ReviewStatus, reviewerID, reviewerName, notes string, at time.Time) (Record, error) {
	const query = `
        UPDATE dispute_evidence
        SET review_status = $2,
            reviewer_id = $3,
            reviewer_name = $4,
            review_notes = $5,
            reviewed_at = $6,
            updated_at = get_tx_timestamp()
        WHERE id = $1
        RETURNING ` + evidenceColumns

	rec, err := scanRecord(tx.QueryRow(ctx, query, id, status, reviewerID, reviewerName, notes, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("evidence: set review: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) ListByDispute(ctx context.Context, disputeID string) ([]Record, error) {
	query := `SELECT ` + evidenceColumns + ` FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("evidence: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("evidence: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence: iterate: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	return rec, row.Scan(
		&rec.ID, &rec.DisputeID, &rec.Name, &rec.Description, &rec.Kind,
		&rec.File.Name, &rec.File.ContentType, &rec.File.SizeBytes, &rec.File.StorageKey,
		&rec.SubmitterID, &rec.SubmitterName, &rec.SubmitterRole,
		&rec.ReviewStatus, &rec.ReviewerID, &rec.ReviewerName, &rec.ReviewNotes, &rec.ReviewedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
}
