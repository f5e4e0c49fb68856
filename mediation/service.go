package mediation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"disputeflow/timeline"
)

// ErrBadStatus signals the session is not in a state that permits the
// requested action.
var ErrBadStatus = errors.New("mediation: invalid session status")

// ErrInvalidInput tags request validation failures so transport layers
// can report a client error instead of a server fault.
var ErrInvalidInput = errors.New("invalid input")

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository defines the data access required by the service.
type Repository interface {
	LockDispute(ctx context.Context, tx pgx.Tx, disputeID string) error
	NextSessionNumber(ctx context.Context, tx pgx.Tx, disputeID string) (int, error)
	Create(ctx context.Context, tx pgx.Tx, s Session) (Session, error)
	Get(ctx context.Context, tx pgx.Tx, id string) (Session, error)
	Update(ctx context.Context, tx pgx.Tx, s Session) (Session, error)
	ListByDispute(ctx context.Context, disputeID string) ([]Session, error)
}

// TimelineWriter appends audit events inside the operation's transaction.
type TimelineWriter interface {
	Append(ctx context.Context, tx pgx.Tx, params timeline.AppendParams) error
}

// Service manages mediation sessions. Sessions never transition the
// parent dispute; moving the case in or out of mediation is an explicit
// call on the case service.
type Service struct {
	pool     TxBeginner
	repo     Repository
	timeline TimelineWriter
	idGen    func() string
	now      func() time.Time
}

func NewService(pool TxBeginner, repo Repository, tl TimelineWriter) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		timeline: tl,
		idGen:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type ScheduleParams struct {
	DisputeID       string
	ScheduledAt     time.Time
	DurationMinutes int
	Channel         Channel
	Location        string
	MediatorID      string
	MediatorName    string
	ActorID         string
	ActorName       string
	ActorRole       string
}

// Schedule creates session number N+1 for the dispute and appends a
// MEDIATION_SCHEDULED event. The dispute row lock serializes numbering.
func (s *Service) Schedule(ctx context.Context, params ScheduleParams) (Session, error) {
	if params.DisputeID == "" {
		return Session{}, fmt.Errorf("mediation: missing dispute id: %w", ErrInvalidInput)
	}
	if params.ScheduledAt.IsZero() {
		return Session{}, fmt.Errorf("mediation: scheduled time required: %w", ErrInvalidInput)
	}
	if params.DurationMinutes <= 0 {
		return Session{}, fmt.Errorf("mediation: invalid duration: %w", ErrInvalidInput)
	}
	if !validChannel(params.Channel) {
		return Session{}, fmt.Errorf("mediation: invalid channel %q: %w", params.Channel, ErrInvalidInput)
	}
	if params.MediatorID == "" {
		return Session{}, fmt.Errorf("mediation: mediator required: %w", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("mediation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.LockDispute(ctx, tx, params.DisputeID); err != nil {
		return Session{}, err
	}

	number, err := s.repo.NextSessionNumber(ctx, tx, params.DisputeID)
	if err != nil {
		return Session{}, err
	}

	session := Session{
		ID:              s.idGen(),
		DisputeID:       params.DisputeID,
		SessionNumber:   number,
		ScheduledAt:     params.ScheduledAt.UTC(),
		DurationMinutes: params.DurationMinutes,
		Channel:         params.Channel,
		Location:        params.Location,
		MediatorID:      params.MediatorID,
		MediatorName:    params.MediatorName,
		Status:          StatusScheduled,
	}

	created, err := s.repo.Create(ctx, tx, session)
	if err != nil {
		return Session{}, err
	}

	if err := s.appendEvent(ctx, tx, created, timeline.EventMediationScheduled,
		fmt.Sprintf("Mediation session #%d scheduled for %s (%s)", created.SessionNumber, created.ScheduledAt.Format(time.RFC3339), created.Channel),
		params.ActorID, params.ActorName, params.ActorRole); err != nil {
		return Session{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("mediation: commit schedule: %w", err)
	}
	return created, nil
}

// Start marks a scheduled session as running and stamps the start time.
func (s *Service) Start(ctx context.Context, sessionID string, actorID, actorName string) (Session, error) {
	return s.mutate(ctx, sessionID, func(session *Session) (timeline.EventType, string, error) {
		if session.Status != StatusScheduled {
			return "", "", ErrBadStatus
		}
		session.Status = StatusInProgress
		at := s.now().UTC()
		session.StartedAt = &at
		return timeline.EventMediationStarted,
			fmt.Sprintf("Mediation session #%d started", session.SessionNumber), nil
	}, actorID, actorName)
}

type CompleteParams struct {
	SessionID           string
	Summary             string
	Notes               string
	PartiesAgreed       bool
	ComplainantAttended bool
	RespondentAttended  bool
	ActorID             string
	ActorName           string
}

// Complete finalizes a session with its outcome. The timeline entry
// says whether the parties reached agreement.
func (s *Service) Complete(ctx context.Context, params CompleteParams) (Session, error) {
	return s.mutate(ctx, params.SessionID, func(session *Session) (timeline.EventType, string, error) {
		if session.Status != StatusScheduled && session.Status != StatusInProgress {
			return "", "", ErrBadStatus
		}
		session.Status = StatusCompleted
		at := s.now().UTC()
		session.EndedAt = &at
		session.OutcomeSummary = &params.Summary
		session.OutcomeNotes = &params.Notes
		session.PartiesAgreed = params.PartiesAgreed
		session.ComplainantAttended = params.ComplainantAttended
		session.RespondentAttended = params.RespondentAttended

		desc := fmt.Sprintf("Mediation session #%d completed: no agreement reached", session.SessionNumber)
		if params.PartiesAgreed {
			desc = fmt.Sprintf("Mediation session #%d completed: agreement reached", session.SessionNumber)
		}
		return timeline.EventMediationCompleted, desc, nil
	}, params.ActorID, params.ActorName)
}

// Cancel voids a session that has not completed.
func (s *Service) Cancel(ctx context.Context, sessionID, reason string, actorID, actorName string) (Session, error) {
	return s.mutate(ctx, sessionID, func(session *Session) (timeline.EventType, string, error) {
		if session.Status == StatusCompleted || session.Status == StatusCancelled {
			return "", "", ErrBadStatus
		}
		session.Status = StatusCancelled
		at := s.now().UTC()
		session.EndedAt = &at
		return timeline.EventMediationCancelled,
			fmt.Sprintf("Mediation session #%d cancelled: %s", session.SessionNumber, reason), nil
	}, actorID, actorName)
}

// ListByDispute returns a dispute's sessions in session-number order.
func (s *Service) ListByDispute(ctx context.Context, disputeID string) ([]Session, error) {
	return s.repo.ListByDispute(ctx, disputeID)
}

func (s *Service) mutate(ctx context.Context, sessionID string, apply func(*Session) (timeline.EventType, string, error), actorID, actorName string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("mediation: missing session id: %w", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("mediation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	session, err := s.repo.Get(ctx, tx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := s.repo.LockDispute(ctx, tx, session.DisputeID); err != nil {
		return Session{}, err
	}
	// Re-read under the dispute lock; a competing writer may have
	// finished this session between the first read and the lock.
	session, err = s.repo.Get(ctx, tx, sessionID)
	if err != nil {
		return Session{}, err
	}

	eventType, description, err := apply(&session)
	if err != nil {
		return Session{}, err
	}

	updated, err := s.repo.Update(ctx, tx, session)
	if err != nil {
		return Session{}, err
	}

	if err := s.appendEvent(ctx, tx, updated, eventType, description, actorID, actorName, "mediator"); err != nil {
		return Session{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("mediation: commit: %w", err)
	}
	return updated, nil
}

func (s *Service) appendEvent(ctx context.Context, tx pgx.Tx, session Session, eventType timeline.EventType, description, actorID, actorName, actorRole string) error {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	return s.timeline.Append(ctx, tx, timeline.AppendParams{
		DisputeID:   session.DisputeID,
		Type:        eventType,
		Description: description,
		ActorID:     actor,
		ActorName:   actorName,
		ActorRole:   actorRole,
	})
}
