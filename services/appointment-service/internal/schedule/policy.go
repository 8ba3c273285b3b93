package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Band is an inclusive open/close range expressed in minutes from midnight.
type Band struct {
	Open  int
	Close int
}

// Policy is the clinic's business-hours schedule. Sunday is always closed.
type Policy struct {
	StepMinutes int
	Weekday     Band
	Saturday    Band
}

// DefaultPolicy matches the clinic's published hours:
// Mon-Fri 07:00-18:00, Sat 07:00-12:00, 15 minute slots.
func DefaultPolicy() Policy {
	return Policy{
		StepMinutes: 15,
		Weekday:     Band{Open: 7 * 60, Close: 18 * 60},
		Saturday:    Band{Open: 7 * 60, Close: 12 * 60},
	}
}

func (p Policy) Validate() error {
	if p.StepMinutes <= 0 || 60%p.StepMinutes != 0 {
		return fmt.Errorf("step minutes %d must divide 60", p.StepMinutes)
	}
	for _, b := range []Band{p.Weekday, p.Saturday} {
		if b.Open >= b.Close {
			return fmt.Errorf("band open %d must precede close %d", b.Open, b.Close)
		}
		if b.Open < 0 || b.Close >= 24*60 {
			return fmt.Errorf("band %d-%d out of range", b.Open, b.Close)
		}
		// Band boundaries must sit on the slot grid, otherwise snapping
		// to an open produces a time that re-rounds somewhere else.
		if b.Open%p.StepMinutes != 0 || b.Close%p.StepMinutes != 0 {
			return fmt.Errorf("band %d-%d not aligned to %d minute slots", b.Open, b.Close, p.StepMinutes)
		}
	}
	return nil
}

// ParseClock converts "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
