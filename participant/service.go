package participant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"disputeflow/timeline"
)

// ErrAlreadyInactive signals a remove on a participant who already left.
var ErrAlreadyInactive = errors.New("participant: already inactive")

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
	Create(ctx context.Context, tx pgx.Tx, p Participant) (Participant, error)
	Get(ctx context.Context, tx pgx.Tx, id string) (Participant, error)
	Deactivate(ctx context.Context, tx pgx.Tx, id string, at time.Time) (Participant, error)
	ListByDispute(ctx context.Context, disputeID string) ([]Participant, error)
}

// TimelineWriter appends audit events inside the operation's transaction.
type TimelineWriter interface {
	Append(ctx context.Context, tx pgx.Tx, params timeline.AppendParams) error
}

// Service tracks who may act on a case and in what role. Every
// membership change is audited, removal included.
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

type AddParams struct {
	DisputeID string
	UserID    string
	Name      string
	Email     string
	Role      Role
	ActorID   string
	ActorName string
	ActorRole string
}

// Add registers a participant on a case, active by default.
func (s *Service) Add(ctx context.Context, params AddParams) (Participant, error) {
	if params.DisputeID == "" {
		return Participant{}, fmt.Errorf("participant: missing dispute id: %w", ErrInvalidInput)
	}
	if params.UserID == "" {
		return Participant{}, fmt.Errorf("participant: missing user id: %w", ErrInvalidInput)
	}
	if !validRole(params.Role) {
		return Participant{}, fmt.Errorf("participant: invalid role %q: %w", params.Role, ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Participant{}, fmt.Errorf("participant: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.LockDispute(ctx, tx, params.DisputeID); err != nil {
		return Participant{}, err
	}

	p := Participant{
		ID:        s.idGen(),
		DisputeID: params.DisputeID,
		UserID:    params.UserID,
		Name:      params.Name,
		Email:     params.Email,
		Role:      params.Role,
		IsActive:  true,
	}

	created, err := s.repo.Create(ctx, tx, p)
	if err != nil {
		return Participant{}, err
	}

	var actorID *string
	if params.ActorID != "" {
		actorID = &params.ActorID
	}
	if err := s.timeline.Append(ctx, tx, timeline.AppendParams{
		DisputeID:   params.DisputeID,
		Type:        timeline.EventParticipantAdded,
		Description: fmt.Sprintf("%s added as %s", created.Name, created.Role),
		ActorID:     actorID,
		ActorName:   params.ActorName,
		ActorRole:   params.ActorRole,
	}); err != nil {
		return Participant{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Participant{}, fmt.Errorf("participant: commit add: %w", err)
	}
	return created, nil
}

// Remove soft-deactivates a participant and stamps the departure time.
// The record stays for audit.
func (s *Service) Remove(ctx context.Context, participantID string, actorID, actorName, actorRole string) (Participant, error) {
	if participantID == "" {
		return Participant{}, fmt.Errorf("participant: missing participant id: %w", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Participant{}, fmt.Errorf("participant: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.repo.Get(ctx, tx, participantID)
	if err != nil {
		return Participant{}, err
	}
	if err := s.repo.LockDispute(ctx, tx, p.DisputeID); err != nil {
		return Participant{}, err
	}
	p, err = s.repo.Get(ctx, tx, participantID)
	if err != nil {
		return Participant{}, err
	}
	if !p.IsActive {
		return Participant{}, ErrAlreadyInactive
	}

	updated, err := s.repo.Deactivate(ctx, tx, p.ID, s.now().UTC())
	if err != nil {
		return Participant{}, err
	}

	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.timeline.Append(ctx, tx, timeline.AppendParams{
		DisputeID:   p.DisputeID,
		Type:        timeline.EventParticipantRemoved,
		Description: fmt.Sprintf("%s (%s) removed from case", p.Name, p.Role),
		ActorID:     actor,
		ActorName:   actorName,
		ActorRole:   actorRole,
	}); err != nil {
		return Participant{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Participant{}, fmt.Errorf("participant: commit remove: %w", err)
	}
	return updated, nil
}

// ListByDispute returns all participants including deactivated ones.
func (s *Service) ListByDispute(ctx context.Context, disputeID string) ([]Participant, error) {
	return s.repo.ListByDispute(ctx, disputeID)
}
