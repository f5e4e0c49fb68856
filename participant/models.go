package participant

import "time"

// Role determines what a participant may do on a case. Enforcement
// lives in the caller's authorization layer; the registry records it.
type Role string

const (
	RoleComplainant Role = "complainant"
	RoleRespondent  Role = "respondent"
	RoleMediator    Role = "mediator"
	RoleObserver    Role = "observer"
	RoleAdmin       Role = "admin"
)

// Participant mirrors the dispute_participants table. Removal is a
// soft-deactivation; rows are never deleted.
type Participant struct {
	ID        string
	DisputeID string
	UserID    string
	Name      string
	Email     string
	Role      Role
	IsActive  bool
	JoinedAt  time.Time
	LeftAt    *time.Time
}

func validRole(r Role) bool {
	switch r {
	case RoleComplainant, RoleRespondent, RoleMediator, RoleObserver, RoleAdmin:
		return true
	default:
		return false
	}
}
