package timeline

import "time"

// EventType tags a timeline entry with the action that produced it.
type EventType string

const (
	EventDisputeFiled       EventType = "DISPUTE_FILED"
	EventStatusChanged      EventType = "STATUS_CHANGED"
	EventStatusOverridden   EventType = "STATUS_OVERRIDDEN"
	EventMediatorAssigned   EventType = "MEDIATOR_ASSIGNED"
	EventCaseEscalated      EventType = "CASE_ESCALATED"
	EventCaseResolved       EventType = "CASE_RESOLVED"
	EventCaseClosed         EventType = "CASE_CLOSED"
	EventCaseReferred       EventType = "REFERRED_TO_PRO_CONSUMIDOR"
	EventEvidenceSubmitted  EventType = "EVIDENCE_SUBMITTED"
	EventEvidenceReviewed   EventType = "EVIDENCE_REVIEWED"
	EventMediationScheduled EventType = "MEDIATION_SCHEDULED"
	EventMediationStarted   EventType = "MEDIATION_STARTED"
	EventMediationCompleted EventType = "MEDIATION_COMPLETED"
	EventMediationCancelled EventType = "MEDIATION_CANCELLED"
	EventParticipantAdded   EventType = "PARTICIPANT_ADDED"
	EventParticipantRemoved EventType = "PARTICIPANT_REMOVED"
)

// Event is one immutable audit record on a dispute. Rows are never
// updated or deleted; seq is strictly increasing per dispute.
type Event struct {
	ID          int64
	DisputeID   string
	Seq         int
	Type        EventType
	Description string
	OldValue    *string
	NewValue    *string
	ActorID     *string
	ActorName   string
	ActorRole   string
	CreatedAt   time.Time
}
