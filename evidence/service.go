package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"disputeflow/timeline"
)

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
	Create(ctx context.Context, tx pgx.Tx, rec Record) (Record, error)
	Get(ctx context.Context, tx pgx.Tx, id string) (Record, error)
	SetReview(ctx context.Context, tx pgx.Tx, id string, status ReviewStatus, reviewerID, reviewerName, notes string, at time.Time) (Record, error)
	ListByDispute(ctx context.Context, disputeID string) ([]Record, error)
}

// TimelineWriter appends audit events inside the operation's transaction.
type TimelineWriter interface {
	Append(ctx context.Context, tx pgx.Tx, params timeline.AppendParams) error
}

// Service tracks submitted evidence and its review outcome. Reviewing
// evidence never transitions the parent dispute; it is informational
// for the mediator.
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

type SubmitParams struct {
	DisputeID     string
	Name          string
	Description   string
	Kind          Kind
	File          FileMeta
	SubmitterID   string
	SubmitterName string
	SubmitterRole string
}

// Submit records a new piece of evidence in pending review state and
// appends an EVIDENCE_SUBMITTED event attributed to the submitter.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (Record, error) {
	if params.DisputeID == "" {
		return Record{}, fmt.Errorf("evidence: missing dispute id: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(params.Name) == "" {
		return Record{}, fmt.Errorf("evidence: name required: %w", ErrInvalidInput)
	}
	if !validKind(params.Kind) {
		return Record{}, fmt.Errorf("evidence: invalid kind %q: %w", params.Kind, ErrInvalidInput)
	}
	if params.SubmitterID == "" {
		return Record{}, fmt.Errorf("evidence: submitter required: %w", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("evidence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Locking the dispute row serializes evidence writes with every
	// other mutation of the case, including timeline seq assignment.
	if err := s.repo.LockDispute(ctx, tx, params.DisputeID); err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:            s.idGen(),
		DisputeID:     params.DisputeID,
		Name:          strings.TrimSpace(params.Name),
		Description:   params.Description,
		Kind:          params.Kind,
		File:          params.File,
		SubmitterID:   params.SubmitterID,
		SubmitterName: params.SubmitterName,
		SubmitterRole: params.SubmitterRole,
		ReviewStatus:  ReviewPending,
	}

	created, err := s.repo.Create(ctx, tx, rec)
	if err != nil {
		return Record{}, err
	}

	if err := s.timeline.Append(ctx, tx, timeline.AppendParams{
		DisputeID:   params.DisputeID,
		Type:        timeline.EventEvidenceSubmitted,
		Description: fmt.Sprintf("Evidence %q submitted (%s)", created.Name, created.Kind),
		ActorID:     &created.SubmitterID,
		ActorName:   created.SubmitterName,
		ActorRole:   created.SubmitterRole,
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("evidence: commit submit: %w", err)
	}
	return created, nil
}

type ReviewParams struct {
	EvidenceID   string
	Status       ReviewStatus
	ReviewerID   string
	ReviewerName string
	Notes        string
}

// Review records the mediator's verdict and appends an
// EVIDENCE_REVIEWED event.
func (s *Service) Review(ctx context.Context, params ReviewParams) (Record, error) {
	if params.EvidenceID == "" {
		return Record{}, fmt.Errorf("evidence: missing evidence id: %w", ErrInvalidInput)
	}
	if params.Status != ReviewAccepted && params.Status != ReviewRejected {
		return Record{}, fmt.Errorf("evidence: review status must be accepted or rejected, got %q: %w", params.Status, ErrInvalidInput)
	}
	if params.ReviewerID == "" {
		return Record{}, fmt.Errorf("evidence: reviewer required: %w", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("evidence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.Get(ctx, tx, params.EvidenceID)
	if err != nil {
		return Record{}, err
	}
	if err := s.repo.LockDispute(ctx, tx, rec.DisputeID); err != nil {
		return Record{}, err
	}
	// Re-read under the dispute lock; a competing reviewer may have
	// recorded a verdict between the first read and the lock.
	rec, err = s.repo.Get(ctx, tx, params.EvidenceID)
	if err != nil {
		return Record{}, err
	}

	updated, err := s.repo.SetReview(ctx, tx, rec.ID, params.Status, params.ReviewerID, params.ReviewerName, params.Notes, s.now().UTC())
	if err != nil {
		return Record{}, err
	}

	old := string(rec.ReviewStatus)
	verdict := string(params.Status)
	if err := s.timeline.Append(ctx, tx, timeline.AppendParams{
		DisputeID:   rec.DisputeID,
		Type:        timeline.EventEvidenceReviewed,
		Description: fmt.Sprintf("Evidence %q %s", rec.Name, params.Status),
		OldValue:    &old,
		NewValue:    &verdict,
		ActorID:     &params.ReviewerID,
		ActorName:   params.ReviewerName,
		ActorRole:   "mediator",
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("evidence: commit review: %w", err)
	}
	return updated, nil
}

// ListByDispute returns all evidence for a case, newest first.
func (s *Service) ListByDispute(ctx context.Context, disputeID string) ([]Record, error) {
	return s.repo.ListByDispute(ctx, disputeID)
}
