package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns invariant queries. Each query must return zero rows on a
// healthy database; any row is a counterexample.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_timeline_seq_monotonic",
			SQL: `WITH seqs AS (
                      SELECT dispute_id, seq,
                             LAG(seq) OVER (PARTITION BY dispute_id ORDER BY seq) AS prev
                      FROM dispute_timeline_events)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <= prev`,
		},
		{
			Name: "O2_timeline_seq_dense",
			SQL: `WITH seqs AS (
                      SELECT dispute_id, seq,
                             LAG(seq) OVER (PARTITION BY dispute_id ORDER BY seq) AS prev
                      FROM dispute_timeline_events)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <> prev + 1`,
		},
		{
			Name: "O3_every_case_has_filing_event",
			SQL: `SELECT d.id FROM disputes d
                  WHERE NOT EXISTS (
                      SELECT 1 FROM dispute_timeline_events e
                      WHERE e.dispute_id = d.id AND e.seq = 1 AND e.event_type = 'DISPUTE_FILED')`,
		},
		{
			Name: "O4_deadline_order",
			SQL:  `SELECT id FROM disputes WHERE resolution_due_at < response_due_at`,
		},
		{
			Name: "O5_case_number_format",
			SQL:  `SELECT id, case_number FROM disputes WHERE case_number !~ '^DSP-[0-9]{6,}$'`,
		},
		{
			Name: "O6_session_numbers_dense",
			SQL: `WITH nums AS (
                      SELECT dispute_id, session_number,
                             LAG(session_number) OVER (PARTITION BY dispute_id ORDER BY session_number) AS prev
                      FROM mediation_sessions)
                  SELECT * FROM nums
                  WHERE (prev IS NULL AND session_number <> 1)
                     OR (prev IS NOT NULL AND session_number <> prev + 1)`,
		},
		{
			Name: "O7_escalated_flag_consistent",
			SQL:  `SELECT id FROM disputes WHERE is_escalated AND escalated_at IS NULL`,
		},
		{
			Name: "O8_resolution_fields_paired",
			SQL:  `SELECT id FROM disputes WHERE resolved_at IS NOT NULL AND resolution_type IS NULL`,
		},
		{
			Name: "O9_review_verdict_has_timestamp",
			SQL:  `SELECT id FROM dispute_evidence WHERE review_status <> 'pending' AND reviewed_at IS NULL`,
		},
		{
			Name: "O10_completed_sessions_ended",
			SQL:  `SELECT id FROM mediation_sessions WHERE status = 'completed' AND ended_at IS NULL`,
		},
		{
			Name: "O11_inactive_participants_left",
			SQL:  `SELECT id FROM dispute_participants WHERE NOT is_active AND left_at IS NULL`,
		},
		{
			Name: "O12_version_floor",
			SQL:  `SELECT id, version FROM disputes WHERE version < 1`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
