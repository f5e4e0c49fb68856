package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"disputeflow/disputecase"
	"disputeflow/evidence"
	"disputeflow/mediation"
	"disputeflow/outbox"
	"disputeflow/participant"
	"disputeflow/sla"
	"disputeflow/sweep"
	"disputeflow/test/actors"
	"disputeflow/test/chaos"
	"disputeflow/test/infra"
	"disputeflow/test/oracles"
	"disputeflow/timeline"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func seedRNG(seed int64) { rand.Seed(seed) }

func TestDisputeWorkflowConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	seedRNG(seed)

	var (
		db         *infra.TestDB
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		db = &infra.TestDB{}
	case os.Getenv("DISPUTEFLOW_TEST_PG_DSN") != "":
		dsn = os.Getenv("DISPUTEFLOW_TEST_PG_DSN")
		usedShared = true
		db = &infra.TestDB{}
	default:
		if dockerAvailable(ctx) {
			db, dsn, err = infra.StartPostgres(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			db = &infra.TestDB{}
		}
	}
	defer db.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	recorder := timeline.NewRecorder(pool)
	enqueuer := outbox.NewEnqueuer()
	resolver := sla.NewResolver(sla.NewStore(pool), nil)
	caseRepo := disputecase.NewRepository(pool)
	caseSvc := disputecase.NewService(pool, caseRepo, resolver, recorder, enqueuer)
	evidenceSvc := evidence.NewService(pool, evidence.NewRepository(pool), recorder)
	mediationSvc := mediation.NewService(pool, mediation.NewRepository(pool), recorder)
	participantSvc := participant.NewService(pool, participant.NewRepository(pool), recorder)
	monitor := sweep.NewMonitor(caseRepo, caseSvc, nil)

	contendedID := mustSeed(t, ctx, pool, caseSvc)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	// transitioners battling over one case
	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Transitioner(ctx2, caseSvc, contendedID, stop) })
	}

	g.Go(func() error { return actors.Filer(ctx2, caseSvc, stop) })
	g.Go(func() error { return actors.EvidenceChurner(ctx2, evidenceSvc, contendedID, stop) })
	g.Go(func() error { return actors.SessionScheduler(ctx2, mediationSvc, contendedID, stop) })
	g.Go(func() error { return actors.ParticipantChurner(ctx2, participantSvc, contendedID, stop) })
	g.Go(func() error { return actors.OutboxWorker(ctx2, pool, stop) })

	// deadline sweep in a tight loop; escalations race the transitioners
	g.Go(func() error {
		for {
			select {
			case <-ctx2.Done():
				return ctx2.Err()
			case <-stop:
				return nil
			case <-time.After(3 * time.Second):
			}
			if _, err := monitor.SweepOnce(ctx2); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("sweep: %w", err)
			}
		}
	})

	// chaos: kill random backend
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

// mustSeed installs an aggressive SLA configuration and files the
// contended case every actor will fight over. The tight escalation
// threshold guarantees the sweep finds work mid-run.
func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool, caseSvc *disputecase.Service) string {
	t.Helper()

	slaStore := sla.NewStore(pool)
	if _, err := slaStore.Upsert(ctx, sla.Configuration{
		DisputeType: string(disputecase.TypeBilling),
		Priority:    string(disputecase.PriorityNormal),
		Deadlines: sla.Deadlines{
			ResponseHours:            1,
			ResolutionHours:          1,
			EscalationThresholdHours: 1,
		},
	}); err != nil {
		t.Fatalf("seed sla configuration: %v", err)
	}

	c, err := caseSvc.File(ctx, disputecase.FileParams{
		Type:        disputecase.TypeBilling,
		Priority:    disputecase.PriorityNormal,
		Complainant: disputecase.Party{ID: "buyer-contended", Name: "Contended Buyer"},
		Respondent:  disputecase.Party{ID: "dealer-contended", Name: "Contended Dealer"},
		Title:       "Contended stress case",
	})
	if err != nil {
		t.Fatalf("seed contended case: %v", err)
	}
	return c.ID
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"disputes", `SELECT id, case_number, status, version, is_escalated FROM disputes ORDER BY updated_at DESC LIMIT 50`},
		{"dispute_timeline_events", `SELECT id, dispute_id, seq, event_type, created_at FROM dispute_timeline_events ORDER BY id DESC LIMIT 50`},
		{"mediation_sessions", `SELECT id, dispute_id, session_number, status FROM mediation_sessions ORDER BY created_at DESC LIMIT 50`},
		{"outbox", `SELECT id, topic, processed_at, created_at FROM outbox ORDER BY created_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
