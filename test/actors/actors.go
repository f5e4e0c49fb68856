package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"disputeflow/disputecase"
	"disputeflow/evidence"
	"disputeflow/mediation"
	"disputeflow/participant"
)

func sleepJitter(base, spread int) {
	time.Sleep(time.Duration(base+rand.Intn(spread)) * time.Millisecond)
}

// expected returns true for errors that are normal under contention.
func expected(err error) bool {
	return errors.Is(err, disputecase.ErrInvalidTransition) ||
		errors.Is(err, disputecase.ErrVersionConflict) ||
		errors.Is(err, mediation.ErrBadStatus) ||
		errors.Is(err, participant.ErrAlreadyInactive)
}

// Filer keeps filing fresh disputes so the sweep and oracles always have
// new cases to look at.
func Filer(ctx context.Context, svc *disputecase.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.File(ctx, disputecase.FileParams{
			Type:        disputecase.TypeBilling,
			Priority:    disputecase.PriorityNormal,
			Complainant: disputecase.Party{ID: fmt.Sprintf("buyer-%d", rand.Int63()), Name: "Stress Buyer"},
			Respondent:  disputecase.Party{ID: "dealer-stress", Name: "Stress Dealer"},
			Title:       "Stress filing",
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("filer: %w", err)
		}
		sleepJitter(40, 60)
	}
}

// Transitioner races the case through its forward transitions. Losing a
// race surfaces as an invalid transition or version conflict, both fine.
func Transitioner(ctx context.Context, svc *disputecase.Service, caseID string, stop <-chan struct{}) error {
	actor := disputecase.Actor{ID: "", Name: "Stress Transitioner", Role: "admin"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var err error
		switch rand.Intn(4) {
		case 0:
			_, err = svc.Acknowledge(ctx, caseID, actor)
		case 1:
			_, err = svc.AssignMediator(ctx, caseID, "med-stress", "Stress Mediator", actor)
		case 2:
			_, err = svc.Resolve(ctx, caseID, "refund", "stress resolution", actor)
		case 3:
			_, err = svc.Escalate(ctx, caseID, "stress escalation", actor)
		}
		if err != nil && !expected(err) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("transitioner: %w", err)
		}
		sleepJitter(10, 30)
	}
}

// EvidenceChurner submits evidence and immediately reviews it, exercising
// the dispute lock from a second table.
func EvidenceChurner(ctx context.Context, svc *evidence.Service, caseID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		rec, err := svc.Submit(ctx, evidence.SubmitParams{
			DisputeID:     caseID,
			Name:          fmt.Sprintf("receipt-%d", rand.Int63()),
			Kind:          evidence.KindReceipt,
			File:          evidence.FileMeta{Name: "receipt.pdf", ContentType: "application/pdf", SizeBytes: 1024, StorageKey: "stress/receipt"},
			SubmitterID:   "buyer-stress",
			SubmitterName: "Stress Buyer",
			SubmitterRole: "complainant",
		})
		if err == nil {
			_, err = svc.Review(ctx, evidence.ReviewParams{
				EvidenceID:   rec.ID,
				Status:       evidence.ReviewAccepted,
				ReviewerID:   "med-stress",
				ReviewerName: "Stress Mediator",
			})
		}
		if err != nil && !expected(err) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("evidence churner: %w", err)
		}
		sleepJitter(30, 50)
	}
}

// SessionScheduler schedules sessions back to back so concurrent
// MAX+1 numbering gets hammered.
func SessionScheduler(ctx context.Context, svc *mediation.Service, caseID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Schedule(ctx, mediation.ScheduleParams{
			DisputeID:       caseID,
			ScheduledAt:     time.Now().Add(24 * time.Hour),
			DurationMinutes: 30,
			Channel:         mediation.ChannelVideo,
			Location:        "https://meet.example/stress",
			MediatorID:      "med-stress",
			MediatorName:    "Stress Mediator",
			ActorID:         "med-stress",
			ActorName:       "Stress Mediator",
			ActorRole:       "mediator",
		})
		if err != nil && !expected(err) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("session scheduler: %w", err)
		}
		sleepJitter(50, 80)
	}
}

// ParticipantChurner adds observers and removes them again.
func ParticipantChurner(ctx context.Context, svc *participant.Service, caseID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		p, err := svc.Add(ctx, participant.AddParams{
			DisputeID: caseID,
			UserID:    fmt.Sprintf("observer-%d", rand.Int63()),
			Name:      "Stress Observer",
			Role:      participant.RoleObserver,
			ActorID:   "admin-stress",
			ActorName: "Stress Admin",
			ActorRole: "admin",
		})
		if err == nil {
			_, err = svc.Remove(ctx, p.ID, "admin-stress", "Stress Admin", "admin")
		}
		if err != nil && !expected(err) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("participant churner: %w", err)
		}
		sleepJitter(60, 90)
	}
}

// OutboxWorker drains pending outbox messages with SKIP LOCKED so
// concurrent workers never double-deliver.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE processed_at IS NULL ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]int64, 0, 10)
		for rows.Next() {
			var id int64
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			_, _ = tx.Exec(ctx, `UPDATE outbox SET processed_at = NOW() WHERE id = $1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}
