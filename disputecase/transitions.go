package disputecase

import "errors"

// ErrInvalidTransition signals an operation's precondition on the
// current status is violated. Callers must re-fetch the case before
// retrying.
var ErrInvalidTransition = errors.New("disputecase: invalid status transition")

// transitions is the enforced status graph. Escalated and Referred are
// reachable from every non-terminal state; Closed is terminal. The
// self-edge on in_mediation covers mediator reassignment. Only
// OverrideStatus bypasses this table.
var transitions = map[Status][]Status{
	StatusFiled:        {StatusAcknowledged, StatusInMediation, StatusEscalated, StatusReferred, StatusResolved, StatusClosed},
	StatusAcknowledged: {StatusInMediation, StatusEscalated, StatusReferred, StatusResolved, StatusClosed},
	StatusInMediation:  {StatusInMediation, StatusEscalated, StatusReferred, StatusResolved, StatusClosed},
	StatusEscalated:    {StatusInMediation, StatusReferred, StatusResolved, StatusClosed},
	StatusReferred:     {StatusInMediation, StatusEscalated, StatusResolved, StatusClosed},
	StatusResolved:     {StatusResolved, StatusEscalated, StatusReferred, StatusClosed},
	StatusClosed:       {},
}

// CanTransition reports whether the graph permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s Status) bool {
	return s == StatusClosed
}
