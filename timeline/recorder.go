package timeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCaseNotFound is returned when an append references a dispute that
// does not exist.
var ErrCaseNotFound = errors.New("timeline: dispute not found")

// AppendParams carries one audit entry. OldValue/NewValue are set for
// status-change style events and nil otherwise.
type AppendParams struct {
	DisputeID   string
	Type        EventType
	Description string
	OldValue    *string
	NewValue    *string
	ActorID     *string
	ActorName   string
	ActorRole   string
}

// Recorder appends and reads dispute timeline events. Append runs inside
// the caller's transaction so the event commits or rolls back together
// with the mutation it documents.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Append inserts one event. Callers hold a FOR UPDATE lock on the
// dispute row, which serializes seq assignment per dispute.
func (r *Recorder) Append(ctx context.Context, tx pgx.Tx, params AppendParams) error {
	if params.DisputeID == "" {
		return fmt.Errorf("timeline: missing dispute id")
	}
	if params.Type == "" {
		return fmt.Errorf("timeline: missing event type")
	}

	const query = `
        INSERT INTO dispute_timeline_events
            (dispute_id, seq, event_type, description, old_value, new_value, actor_id, actor_name, actor_role)
        SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6, $7, $8
        FROM dispute_timeline_events
        WHERE dispute_id = $1
    `

	_, err := tx.Exec(ctx, query,
		params.DisputeID,
		params.Type,
		params.Description,
		params.OldValue,
		params.NewValue,
		params.ActorID,
		params.ActorName,
		params.ActorRole,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign key
			return ErrCaseNotFound
		}
		return fmt.Errorf("timeline: append event: %w", err)
	}
	return nil
}

// ListByDispute returns the full audit trail for a dispute in creation
// order. Case-detail views and referral justification exports read this.
func (r *Recorder) ListByDispute(ctx context.Context, disputeID string) ([]Event, error) {
	const query = `
        SELECT id, dispute_id, seq, event_type, description, old_value, new_value,
               actor_id::text, actor_name, actor_role, created_at
        FROM dispute_timeline_events
        WHERE dispute_id = $1
        ORDER BY seq ASC
    `

	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("timeline: list: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, 16)
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.DisputeID, &ev.Seq, &ev.Type, &ev.Description,
			&ev.OldValue, &ev.NewValue, &ev.ActorID, &ev.ActorName, &ev.ActorRole, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("timeline: scan: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timeline: iterate: %w", err)
	}
	return out, nil
}
