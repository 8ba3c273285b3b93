package schedule

import "time"

// DaySlots enumerates every bookable slot for a calendar date as "HH:MM"
// strings, stepped by the policy granularity. Sunday yields an empty
// list. The close boundary is included.
func DaySlots(date time.Time, p Policy) []string {
	wd := date.Weekday()
	if wd == time.Sunday {
		return nil
	}
	band := p.bandFor(wd)
	var slots []string
	for m := band.Open; m <= band.Close; m += p.StepMinutes {
		slots = append(slots, FormatClock(m))
	}
	return slots
}

// AvailableSlots is DaySlots minus the already-booked "HH:MM" times.
func AvailableSlots(date time.Time, p Policy, busy []string) []string {
	slots := DaySlots(date, p)
	if len(busy) == 0 || len(slots) == 0 {
		return slots
	}
	taken := make(map[string]struct{}, len(busy))
	for _, b := range busy {
		taken[b] = struct{}{}
	}
	free := slots[:0]
	for _, s := range slots {
		if _, ok := taken[s]; !ok {
			free = append(free, s)
		}
	}
	return free
}
