package disputecase

import "time"

// Status is the lifecycle position of a dispute case.
type Status string

const (
	StatusFiled        Status = "filed"
	StatusAcknowledged Status = "acknowledged"
	StatusInMediation  Status = "in_mediation"
	StatusEscalated    Status = "escalated"
	StatusReferred     Status = "referred_to_pro_consumidor"
	StatusResolved     Status = "resolved"
	StatusClosed       Status = "closed"
)

// Type classifies what the complaint is about.
type Type string

const (
	TypeBilling          Type = "billing"
	TypeListingFraud     Type = "listing_fraud"
	TypeNonDelivery      Type = "non_delivery"
	TypeVehicleCondition Type = "vehicle_condition"
	TypeWarranty         Type = "warranty"
	TypeOther            Type = "other"
)

// Priority drives which SLA configuration row applies.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Party identifies one side of a dispute.
type Party struct {
	ID    string
	Name  string
	Email string
}

// Actor is the authenticated user performing an operation, supplied by
// the caller's identity context.
type Actor struct {
	ID   string
	Name string
	Role string
}

// Case mirrors the disputes table. ResponseDueAt/ResolutionDueAt are
// fixed at filing time from SLA configuration; Version is the
// optimistic concurrency token bumped on every update.
type Case struct {
	ID         string
	CaseNumber string
	Type       Type
	Priority   Priority

	Complainant Party
	Respondent  Party

	Title       string
	Description string
	AmountCents *int64
	Currency    *string

	ResponseDueAt            time.Time
	ResolutionDueAt          time.Time
	EscalationThresholdHours int

	Status       Status
	MediatorID   *string
	MediatorName *string

	IsEscalated bool
	EscalatedAt *time.Time

	ResolutionType    *string
	ResolutionSummary *string
	ResolvedAt        *time.Time
	ResolvedBy        *string

	ReferredToProConsumidor bool
	ReferredAt              *time.Time

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func validType(t Type) bool {
	switch t {
	case TypeBilling, TypeListingFraud, TypeNonDelivery, TypeVehicleCondition, TypeWarranty, TypeOther:
		return true
	default:
		return false
	}
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

func validStatus(s Status) bool {
	switch s {
	case StatusFiled, StatusAcknowledged, StatusInMediation, StatusEscalated, StatusReferred, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}
