package schedule

import "time"

// IsWithinBusinessHours reports whether the moment's time of day falls
// inside the clinic's hours for its weekday. Both band boundaries are
// inclusive, so a moment exactly at close is still bookable. Sunday is
// always closed.
func IsWithinBusinessHours(m Moment, p Policy) bool {
	wd := m.Time.Weekday()
	if wd == time.Sunday {
		return false
	}
	band := p.bandFor(wd)
	mod := minuteOfDay(m.Time)
	return mod >= band.Open && mod <= band.Close
}

// RoundToStep rounds the minute component to the nearest multiple of
// stepMinutes, with ties rounding up, and zeroes seconds. Pure function.
func RoundToStep(m Moment, stepMinutes int) Moment {
	if stepMinutes <= 0 {
		return m.atMinute(minuteOfDay(m.Time))
	}
	mod := minuteOfDay(m.Time)
	rounded := (mod + stepMinutes/2) / stepMinutes * stepMinutes
	return m.atMinute(rounded)
}

// NextValidSlot advances the moment to the nearest slot that satisfies
// the policy. The result always passes IsWithinBusinessHours and the
// function is idempotent.
func NextValidSlot(m Moment, p Policy) Moment {
	// Decide past-close on the raw minute before rounding: rounding can
	// snap a moment like 12:01 back onto the inclusive close boundary,
	// and a moment past close must move to the next day's open.
	if wd := m.Time.Weekday(); wd != time.Sunday {
		if minuteOfDay(m.Time) > p.bandFor(wd).Close {
			m = m.addDays(1).atMinute(0)
		}
	}
	m = RoundToStep(m, p.StepMinutes)
	for {
		wd := m.Time.Weekday()
		if wd == time.Sunday {
			m = m.addDays(1).atMinute(p.Weekday.Open)
			continue
		}
		band := p.bandFor(wd)
		mod := minuteOfDay(m.Time)
		switch {
		case mod < band.Open:
			return m.atMinute(band.Open)
		case mod > band.Close:
			m = m.addDays(1).atMinute(0)
		default:
			return m
		}
	}
}

// Normalize rounds the moment and, when it falls outside business hours,
// moves it to the next valid slot. The boolean tells callers whether an
// adjustment happened so the UI can show a notice; it carries no other
// meaning.
func Normalize(m Moment, p Policy) (Moment, bool) {
	out := NextValidSlot(m, p)
	return out, !out.Equal(m)
}

func (p Policy) bandFor(wd time.Weekday) Band {
	if wd == time.Saturday {
		return p.Saturday
	}
	return p.Weekday
}
