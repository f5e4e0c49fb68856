package disputecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"disputeflow/sla"
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
	NextCaseNumber(ctx context.Context, tx pgx.Tx) (string, error)
	Create(ctx context.Context, tx pgx.Tx, c Case) (Case, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Case, error)
	Get(ctx context.Context, id string) (Case, error)
	Update(ctx context.Context, tx pgx.Tx, c Case) (Case, error)
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]Case, error)
}

// TimelineWriter appends audit events inside the operation's transaction.
type TimelineWriter interface {
	Append(ctx context.Context, tx pgx.Tx, params timeline.AppendParams) error
}

// OutboxWriter hands state changes off for downstream delivery.
type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// DeadlineResolver supplies SLA deadlines at filing time.
type DeadlineResolver interface {
	Deadlines(ctx context.Context, disputeType, priority string) (sla.Deadlines, error)
}

// Service owns every dispute status transition. Each operation is one
// transaction: load the case with a row lock, check the precondition,
// mutate, append exactly one timeline event, commit.
type Service struct {
	pool     TxBeginner
	repo     Repository
	slas     DeadlineResolver
	timeline TimelineWriter
	outbox   OutboxWriter
	idGen    func() string
	now      func() time.Time
}

func NewService(pool TxBeginner, repo Repository, slas DeadlineResolver, tl TimelineWriter, ob OutboxWriter) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		slas:     slas,
		timeline: tl,
		outbox:   ob,
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

// FileParams describes a new complaint from intake.
type FileParams struct {
	Type        Type
	Priority    Priority
	Complainant Party
	Respondent  Party
	Title       string
	Description string
	AmountCents *int64
	Currency    *string
}

// File creates a case in filed state. Deadlines are resolved before the
// transaction opens; a missing SLA configuration falls back to the
// default policy so intake is never blocked.
func (s *Service) File(ctx context.Context, params FileParams) (Case, error) {
	if !validType(params.Type) {
		return Case{}, fmt.Errorf("disputecase: invalid dispute type %q: %w", params.Type, ErrInvalidInput)
	}
	priority := params.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !validPriority(priority) {
		return Case{}, fmt.Errorf("disputecase: invalid priority %q: %w", priority, ErrInvalidInput)
	}
	if strings.TrimSpace(params.Title) == "" {
		return Case{}, fmt.Errorf("disputecase: title required: %w", ErrInvalidInput)
	}
	if params.Complainant.ID == "" || params.Respondent.ID == "" {
		return Case{}, fmt.Errorf("disputecase: complainant and respondent required: %w", ErrInvalidInput)
	}
	if params.AmountCents != nil {
		if *params.AmountCents <= 0 {
			return Case{}, fmt.Errorf("disputecase: disputed amount must be positive: %w", ErrInvalidInput)
		}
		if params.Currency == nil || len(*params.Currency) != 3 {
			return Case{}, fmt.Errorf("disputecase: currency required with disputed amount: %w", ErrInvalidInput)
		}
	}

	deadlines, err := s.slas.Deadlines(ctx, string(params.Type), string(priority))
	if err != nil {
		return Case{}, fmt.Errorf("disputecase: resolve deadlines: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("disputecase: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	caseNumber, err := s.repo.NextCaseNumber(ctx, tx)
	if err != nil {
		return Case{}, err
	}

	now := s.now().UTC()
	c := Case{
		ID:                       s.idGen(),
		CaseNumber:               caseNumber,
		Type:                     params.Type,
		Priority:                 priority,
		Complainant:              params.Complainant,
		Respondent:               params.Respondent,
		Title:                    strings.TrimSpace(params.Title),
		Description:              params.Description,
		AmountCents:              params.AmountCents,
		Currency:                 params.Currency,
		ResponseDueAt:            now.Add(time.Duration(deadlines.ResponseHours) * time.Hour),
		ResolutionDueAt:          now.Add(time.Duration(deadlines.ResolutionHours) * time.Hour),
		EscalationThresholdHours: deadlines.EscalationThresholdHours,
		Status:                   StatusFiled,
	}

	created, err := s.repo.Create(ctx, tx, c)
	if err != nil {
		return Case{}, err
	}

	filed := string(StatusFiled)
	if err := s.timeline.Append(ctx, tx, timeline.AppendParams{
		DisputeID:   created.ID,
		Type:        timeline.EventDisputeFiled,
		Description: fmt.Sprintf("Dispute filed by %s against %s", params.Complainant.Name, params.Respondent.Name),
		NewValue:    &filed,
		ActorID:     &created.Complainant.ID,
		ActorName:   created.Complainant.Name,
		ActorRole:   "complainant",
	}); err != nil {
		return Case{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"dispute_id":  created.ID,
			"case_number": created.CaseNumber,
			"type":        created.Type,
			"priority":    created.Priority,
		}
		if err := s.outbox.Enqueue(ctx, tx, "dispute.filed", payload); err != nil {
			return Case{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("disputecase: commit file: %w", err)
	}
	return created, nil
}

// Acknowledge moves a filed case to acknowledged.
func (s *Service) Acknowledge(ctx context.Context, caseID string, actor Actor) (Case, error) {
	return s.transition(ctx, caseID, StatusAcknowledged, actor, transitionOpts{
		eventType:   timeline.EventStatusChanged,
		description: "Dispute acknowledged",
		require: func(c Case) error {
			if c.Status != StatusFiled {
				return ErrInvalidTransition
			}
			return nil
		},
	})
}

// AssignMediator sets (or replaces) the mediator and moves the case to
// in_mediation. Valid from any pre-resolution state.
func (s *Service) AssignMediator(ctx context.Context, caseID, mediatorID, mediatorName string, actor Actor) (Case, error) {
	if mediatorID == "" || mediatorName == "" {
		return Case{}, fmt.Errorf("disputecase: mediator id and name required: %w", ErrInvalidInput)
	}
	return s.transition(ctx, caseID, StatusInMediation, actor, transitionOpts{
		eventType:   timeline.EventMediatorAssigned,
		description: fmt.Sprintf("Mediator %s assigned", mediatorName),
		require: func(c Case) error {
			if c.Status == StatusResolved || c.Status == StatusClosed {
				return ErrInvalidTransition
			}
			return nil
		},
		mutate: func(c *Case) {
			c.MediatorID = &mediatorID
			c.MediatorName = &mediatorName
		},
	})
}

// Escalate elevates a case's urgency, typically on SLA breach. Valid
// from any non-terminal state.
func (s *Service) Escalate(ctx context.Context, caseID, reason string, actor Actor) (Case, error) {
	return s.transition(ctx, caseID, StatusEscalated, actor, transitionOpts{
		eventType:   timeline.EventCaseEscalated,
		description: fmt.Sprintf("Case escalated: %s", reason),
		outboxTopic: "dispute.escalated",
		require: func(c Case) error {
			if IsTerminal(c.Status) {
				return ErrInvalidTransition
			}
			return nil
		},
		mutate: func(c *Case) {
			c.IsEscalated = true
			at := s.now().UTC()
			c.EscalatedAt = &at
		},
	})
}

// Resolve records the outcome. Allowed from any state except closed.
func (s *Service) Resolve(ctx context.Context, caseID, resolutionType, summary string, actor Actor) (Case, error) {
	if resolutionType == "" {
		return Case{}, fmt.Errorf("disputecase: resolution type required: %w", ErrInvalidInput)
	}
	return s.transition(ctx, caseID, StatusResolved, actor, transitionOpts{
		eventType:   timeline.EventCaseResolved,
		description: fmt.Sprintf("Dispute resolved (%s)", resolutionType),
		outboxTopic: "dispute.resolved",
		require: func(c Case) error {
			if c.Status == StatusClosed {
				return ErrInvalidTransition
			}
			return nil
		},
		mutate: func(c *Case) {
			c.ResolutionType = &resolutionType
			c.ResolutionSummary = &summary
			at := s.now().UTC()
			c.ResolvedAt = &at
			c.ResolvedBy = &actor.ID
		},
	})
}

// Close is the terminal transition. Closing an already-closed case is
// rejected so the terminal event is never duplicated.
func (s *Service) Close(ctx context.Context, caseID, reason string, actor Actor) (Case, error) {
	return s.transition(ctx, caseID, StatusClosed, actor, transitionOpts{
		eventType:   timeline.EventCaseClosed,
		description: fmt.Sprintf("Case closed: %s", reason),
		outboxTopic: "dispute.closed",
		require: func(c Case) error {
			if c.Status == StatusClosed {
				return ErrInvalidTransition
			}
			return nil
		},
	})
}

// ReferToProConsumidor hands the case to the consumer-protection
// regulator. Valid from any non-terminal state.
func (s *Service) ReferToProConsumidor(ctx context.Context, caseID, reason string, actor Actor) (Case, error) {
	return s.transition(ctx, caseID, StatusReferred, actor, transitionOpts{
		eventType:   timeline.EventCaseReferred,
		description: fmt.Sprintf("Case referred to Pro-Consumidor: %s", reason),
		outboxTopic: "dispute.referred",
		require: func(c Case) error {
			if IsTerminal(c.Status) {
				return ErrInvalidTransition
			}
			return nil
		},
		mutate: func(c *Case) {
			c.ReferredToProConsumidor = true
			at := s.now().UTC()
			c.ReferredAt = &at
		},
	})
}

// OverrideStatus is the administrative escape hatch. It does not
// consult the transition graph and records a STATUS_OVERRIDDEN event so
// audits can tell forced transitions from enforced ones.
func (s *Service) OverrideStatus(ctx context.Context, caseID string, newStatus Status, reason string, actor Actor) (Case, error) {
	if !validStatus(newStatus) {
		return Case{}, fmt.Errorf("disputecase: unknown status %q: %w", newStatus, ErrInvalidInput)
	}
	if reason == "" {
		return Case{}, fmt.Errorf("disputecase: override reason required: %w", ErrInvalidInput)
	}
	return s.transition(ctx, caseID, newStatus, actor, transitionOpts{
		eventType:   timeline.EventStatusOverridden,
		description: fmt.Sprintf("Status overridden by operator: %s", reason),
		require:     func(Case) error { return nil },
		skipGraph:   true,
	})
}

// Get returns a case by internal id.
func (s *Service) Get(ctx context.Context, caseID string) (Case, error) {
	return s.repo.Get(ctx, caseID)
}

type transitionOpts struct {
	eventType   timeline.EventType
	description string
	outboxTopic string
	require     func(Case) error
	mutate      func(*Case)
	skipGraph   bool
}

func (s *Service) transition(ctx context.Context, caseID string, to Status, actor Actor, opts transitionOpts) (Case, error) {
	if caseID == "" {
		return Case{}, fmt.Errorf("disputecase: missing case id: %w", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("disputecase: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}

	if err := opts.require(c); err != nil {
		return Case{}, err
	}
	if !opts.skipGraph && !CanTransition(c.Status, to) {
		return Case{}, ErrInvalidTransition
	}

	oldStatus := string(c.Status)
	c.Status = to
	if opts.mutate != nil {
		opts.mutate(&c)
	}

	updated, err := s.repo.Update(ctx, tx, c)
	if err != nil {
		return Case{}, err
	}

	newStatus := string(to)
	var actorID *string
	if actor.ID != "" {
		actorID = &actor.ID
	}
	if err := s.timeline.Append(ctx, tx, timeline.AppendParams{
		DisputeID:   updated.ID,
		Type:        opts.eventType,
		Description: opts.description,
		OldValue:    &oldStatus,
		NewValue:    &newStatus,
		ActorID:     actorID,
		ActorName:   actor.Name,
		ActorRole:   actor.Role,
	}); err != nil {
		return Case{}, err
	}

	if opts.outboxTopic != "" && s.outbox != nil {
		payload := map[string]any{
			"dispute_id":  updated.ID,
			"case_number": updated.CaseNumber,
			"previous":    oldStatus,
			"next":        newStatus,
		}
		if err := s.outbox.Enqueue(ctx, tx, opts.outboxTopic, payload); err != nil {
			return Case{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("disputecase: commit transition: %w", err)
	}
	return updated, nil
}
