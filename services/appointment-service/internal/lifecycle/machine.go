package lifecycle

// transitions is the legal-transition table. Pending is the initial
// state, reachable only through Create. Cancelled and Completed are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

// CanTransition reports whether target is reachable from current.
func CanTransition(current, target Status) bool {
	for _, next := range transitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// authorizeTransition applies the role rule on top of the transition
// table. Admins may request any legal transition. Patients may only
// cancel their own appointments; confirm and complete are admin actions.
func authorizeTransition(p Principal, appt Appointment, target Status) error {
	if p.IsAdmin() {
		return nil
	}
	if p.ID != appt.UserID {
		return ErrForbidden
	}
	if target != StatusCancelled {
		return ErrForbidden
	}
	return nil
}
