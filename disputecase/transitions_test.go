package disputecase

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusFiled, StatusAcknowledged},
		{StatusFiled, StatusEscalated},
		{StatusFiled, StatusClosed}, // administrative closure
		{StatusAcknowledged, StatusInMediation},
		{StatusAcknowledged, StatusReferred},
		{StatusInMediation, StatusInMediation}, // mediator reassignment
		{StatusInMediation, StatusResolved},
		{StatusEscalated, StatusResolved},
		{StatusEscalated, StatusReferred},
		{StatusReferred, StatusClosed},
		{StatusResolved, StatusClosed},
		{StatusResolved, StatusEscalated},
		{StatusResolved, StatusReferred}, // regulator referral after a disputed resolution
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusAcknowledged, StatusFiled}, // no going back once acknowledged
		{StatusInMediation, StatusFiled},
		{StatusInMediation, StatusAcknowledged},
		{StatusResolved, StatusInMediation},
		{StatusClosed, StatusFiled},
		{StatusClosed, StatusEscalated},
		{StatusClosed, StatusResolved},
		{StatusClosed, StatusClosed},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusClosed) {
		t.Errorf("closed must be terminal")
	}
	for _, s := range []Status{StatusFiled, StatusAcknowledged, StatusInMediation, StatusEscalated, StatusReferred, StatusResolved} {
		if IsTerminal(s) {
			t.Errorf("%s must not be terminal", s)
		}
	}
}
