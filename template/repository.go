package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no active template covers the pair.
var ErrNotFound = errors.New("template: not found")

// ErrInvalidInput tags validation failures on template writes so
// transport layers can report a client error instead of a server fault.
var ErrInvalidInput = errors.New("invalid input")

const templateColumns = `
    id, dispute_type, resolution_type, title, body, is_active, created_at, updated_at`

// PGStore reads resolution templates from postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Lookup returns the active template for a (dispute type, resolution
// type) pair.
func (s *PGStore) Lookup(ctx context.Context, disputeType, resolutionType string) (Template, error) {
	query := `SELECT ` + templateColumns + `
        FROM resolution_templates
        WHERE dispute_type = $1 AND resolution_type = $2 AND is_active = true`

	t, err := scanTemplate(s.pool.QueryRow(ctx, query, disputeType, resolutionType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, fmt.Errorf("template: lookup: %w", err)
	}
	return t, nil
}

// Upsert replaces the template for one pair. Admin tooling and test
// seeding only.
func (s *PGStore) Upsert(ctx context.Context, t Template) (Template, error) {
	if t.DisputeType == "" || t.ResolutionType == "" {
		return Template{}, fmt.Errorf("template: dispute type and resolution type required: %w", ErrInvalidInput)
	}
	if t.Body == "" {
		return Template{}, fmt.Errorf("template: body required: %w", ErrInvalidInput)
	}

	query := `
        INSERT INTO resolution_templates (id, dispute_type, resolution_type, title, body, is_active)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (dispute_type, resolution_type) DO UPDATE
        SET title = EXCLUDED.title,
            body = EXCLUDED.body,
            is_active = EXCLUDED.is_active,
            updated_at = get_tx_timestamp()
        RETURNING ` + templateColumns

	out, err := scanTemplate(s.pool.QueryRow(ctx, query,
		t.ID, t.DisputeType, t.ResolutionType, t.Title, t.Body, t.IsActive))
	if err != nil {
		return Template{}, fmt.Errorf("template: upsert: %w", err)
	}
	return out, nil
}

// ListByDisputeType returns all active templates for a dispute type,
// for pre-fill pickers.
func (s *PGStore) ListByDisputeType(ctx context.Context, disputeType string) ([]Template, error) {
	query := `SELECT ` + templateColumns + `
        FROM resolution_templates
        WHERE dispute_type = $1 AND is_active = true
        ORDER BY resolution_type ASC`

	rows, err := s.pool.Query(ctx, query, disputeType)
	if err != nil {
		return nil, fmt.Errorf("template: list: %w", err)
	}
	defer rows.Close()

	out := make([]Template, 0, 4)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("template: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("template: iterate: %w", err)
	}
	return out, nil
}

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	return t, row.Scan(
		&t.ID, &t.DisputeType, &t.ResolutionType, &t.Title, &t.Body, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
}
