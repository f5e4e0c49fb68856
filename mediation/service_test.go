package mediation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"disputeflow/timeline"
)

var testClock = time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo) (*Service, *fakeTimeline) {
	tl := &fakeTimeline{}
	ids := 0
	svc := NewService(&fakePool{}, repo, tl).
		WithClock(func() time.Time { return testClock }).
		WithIDGenerator(func() string { ids++; return fmt.Sprintf("sess-%d", ids) })
	return svc, tl
}

func scheduleParams(disputeID string) ScheduleParams {
	return ScheduleParams{
		DisputeID:       disputeID,
		ScheduledAt:     testClock.Add(48 * time.Hour),
		DurationMinutes: 60,
		Channel:         ChannelVideo,
		Location:        "https://meet.example/case",
		MediatorID:      "med-1",
		MediatorName:    "Carla Gomez",
		ActorID:         "a-1",
		ActorName:       "Admin",
		ActorRole:       "admin",
	}
}

func TestSchedule_SessionNumbersAreSequentialPerDispute(t *testing.T) {
	repo := newFakeRepo("case-1", "case-2")
	svc, tl := newTestService(repo)

	first, err := svc.Schedule(context.Background(), scheduleParams("case-1"))
	if err != nil {
		t.Fatalf("schedule #1: %v", err)
	}
	second, err := svc.Schedule(context.Background(), scheduleParams("case-1"))
	if err != nil {
		t.Fatalf("schedule #2: %v", err)
	}
	other, err := svc.Schedule(context.Background(), scheduleParams("case-2"))
	if err != nil {
		t.Fatalf("schedule other: %v", err)
	}

	if first.SessionNumber != 1 || second.SessionNumber != 2 {
		t.Errorf("expected sessions 1 and 2, got %d and %d", first.SessionNumber, second.SessionNumber)
	}
	if other.SessionNumber != 1 {
		t.Errorf("numbering must restart per dispute, got %d", other.SessionNumber)
	}
	if first.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", first.Status)
	}
	if len(tl.appended) != 3 || tl.appended[0].Type != timeline.EventMediationScheduled {
		t.Errorf("expected MEDIATION_SCHEDULED events, got %+v", tl.appended)
	}
}

func TestSchedule_UnknownDispute(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	if _, err := svc.Schedule(context.Background(), scheduleParams("missing")); !errors.Is(err, ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestStart_OnlyFromScheduled(t *testing.T) {
	repo := newFakeRepo("case-1")
	svc, tl := newTestService(repo)
	sess := mustSchedule(t, svc, "case-1")

	started, err := svc.Start(context.Background(), sess.ID, "med-1", "Carla")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", started.Status)
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(testClock) {
		t.Errorf("start time not stamped: %v", started.StartedAt)
	}
	if got := tl.appended[len(tl.appended)-1].Type; got != timeline.EventMediationStarted {
		t.Errorf("expected MEDIATION_STARTED, got %s", got)
	}

	if _, err := svc.Start(context.Background(), sess.ID, "med-1", "Carla"); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("second start: expected ErrBadStatus, got %v", err)
	}
}

func TestComplete_DescriptionReflectsAgreement(t *testing.T) {
	repo := newFakeRepo("case-1")
	svc, tl := newTestService(repo)

	agreed := mustSchedule(t, svc, "case-1")
	if _, err := svc.Start(context.Background(), agreed.ID, "med-1", "Carla"); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := svc.Complete(context.Background(), CompleteParams{
		SessionID:           agreed.ID,
		Summary:             "Parties agreed on a partial refund",
		Notes:               "Refund within 15 business days",
		PartiesAgreed:       true,
		ComplainantAttended: true,
		RespondentAttended:  true,
		ActorID:             "med-1",
		ActorName:           "Carla",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted || !done.PartiesAgreed || done.EndedAt == nil {
		t.Fatalf("unexpected completed session: %+v", done)
	}
	if desc := tl.appended[len(tl.appended)-1].Description; desc != "Mediation session #1 completed: agreement reached" {
		t.Errorf("unexpected description: %q", desc)
	}

	noDeal := mustSchedule(t, svc, "case-1")
	if _, err := svc.Complete(context.Background(), CompleteParams{
		SessionID: noDeal.ID,
		Summary:   "No common ground",
		ActorID:   "med-1",
	}); err != nil {
		t.Fatalf("complete without agreement: %v", err)
	}
	if desc := tl.appended[len(tl.appended)-1].Description; desc != "Mediation session #2 completed: no agreement reached" {
		t.Errorf("unexpected description: %q", desc)
	}

	// completed sessions are immutable
	if _, err := svc.Cancel(context.Background(), agreed.ID, "late cancel", "med-1", "Carla"); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("cancel after complete: expected ErrBadStatus, got %v", err)
	}
}

func TestCancel_RecordsReason(t *testing.T) {
	repo := newFakeRepo("case-1")
	svc, tl := newTestService(repo)
	sess := mustSchedule(t, svc, "case-1")

	cancelled, err := svc.Cancel(context.Background(), sess.ID, "respondent unavailable", "a-1", "Admin")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	ev := tl.appended[len(tl.appended)-1]
	if ev.Type != timeline.EventMediationCancelled {
		t.Errorf("expected MEDIATION_CANCELLED, got %s", ev.Type)
	}
	if ev.Description != "Mediation session #1 cancelled: respondent unavailable" {
		t.Errorf("unexpected description: %q", ev.Description)
	}
}

func TestMutate_MissingSession(t *testing.T) {
	repo := newFakeRepo("case-1")
	svc, _ := newTestService(repo)

	if _, err := svc.Start(context.Background(), "nope", "med-1", "Carla"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func mustSchedule(t *testing.T, svc *Service, disputeID string) Session {
	t.Helper()
	s, err := svc.Schedule(context.Background(), scheduleParams(disputeID))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return s
}

// ---- fakes ----

type fakeRepo struct {
	disputes map[string]bool
	sessions map[string]Session
}

func newFakeRepo(disputeIDs ...string) *fakeRepo {
	f := &fakeRepo{disputes: map[string]bool{}, sessions: map[string]Session{}}
	for _, id := range disputeIDs {
		f.disputes[id] = true
	}
	return f
}

func (f *fakeRepo) LockDispute(ctx context.Context, tx pgx.Tx, disputeID string) error {
	if !f.disputes[disputeID] {
		return ErrCaseNotFound
	}
	return nil
}

func (f *fakeRepo) NextSessionNumber(ctx context.Context, tx pgx.Tx, disputeID string) (int, error) {
	max := 0
	for _, s := range f.sessions {
		if s.DisputeID == disputeID && s.SessionNumber > max {
			max = s.SessionNumber
		}
	}
	return max + 1, nil
}

func (f *fakeRepo) Create(ctx context.Context, tx pgx.Tx, s Session) (Session, error) {
	s.CreatedAt = testClock
	s.UpdatedAt = testClock
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeRepo) Get(ctx context.Context, tx pgx.Tx, id string) (Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) Update(ctx context.Context, tx pgx.Tx, s Session) (Session, error) {
	if _, ok := f.sessions[s.ID]; !ok {
		return Session{}, ErrNotFound
	}
	s.UpdatedAt = testClock
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeRepo) ListByDispute(ctx context.Context, disputeID string) ([]Session, error) {
	out := []Session{}
	for _, s := range f.sessions {
		if s.DisputeID == disputeID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeTimeline struct {
	appended []timeline.AppendParams
}

func (f *fakeTimeline) Append(ctx context.Context, tx pgx.Tx, params timeline.AppendParams) error {
	f.appended = append(f.appended, params)
	return nil
}

type fakePool struct{}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(context.Context) error { f.rolled = true; return nil }

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { panic("not implemented") }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                         { panic("not implemented") }

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { panic("not implemented") }
func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { panic("not implemented") }
func (f *fakeTx) Conn() *pgx.Conn                                         { return nil }
