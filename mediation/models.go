package mediation

import "time"

// Status is the lifecycle of one mediation session. Completed and
// cancelled sessions are immutable.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Channel is how the session is held.
type Channel string

const (
	ChannelVideo    Channel = "video"
	ChannelPhone    Channel = "phone"
	ChannelInPerson Channel = "in_person"
)

// Session mirrors the mediation_sessions table. SessionNumber is
// sequential within a dispute, starting at 1.
type Session struct {
	ID            string
	DisputeID     string
	SessionNumber int

	ScheduledAt     time.Time
	DurationMinutes int
	Channel         Channel
	Location        string // address for in-person, join link otherwise

	MediatorID   string
	MediatorName string

	Status    Status
	StartedAt *time.Time
	EndedAt   *time.Time

	ComplainantAttended bool
	RespondentAttended  bool
	OutcomeSummary      *string
	OutcomeNotes        *string
	PartiesAgreed       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func validChannel(c Channel) bool {
	switch c {
	case ChannelVideo, ChannelPhone, ChannelInPerson:
		return true
	default:
		return false
	}
}
