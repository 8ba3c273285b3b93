package schedule

import (
	"errors"
	"regexp"
	"time"
)

// ErrInvalidMoment is returned when a timestamp is missing, unparseable,
// or carries no UTC offset. A moment without an offset is ambiguous and
// is never silently assumed to be UTC.
var ErrInvalidMoment = errors.New("invalid moment")

// OffsetInstantLayout is the only persisted timestamp encoding. It embeds
// the viewer's UTC offset so any standards-compliant reader reconstructs
// the exact same instant.
const OffsetInstantLayout = "2006-01-02T15:04:05-07:00"

// LocalDisplayLayout is the human-facing local rendering kept for display
// and audit. It is never used for comparisons.
const LocalDisplayLayout = "2006-01-02 15:04"

// Moment is a civil date and time in the viewer's local clock, pinned to
// an explicit UTC offset. ZoneName is an optional IANA name carried for
// display only.
type Moment struct {
	Time     time.Time
	ZoneName string
}

var offsetSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:\d{2})$`)

// ParseMoment parses an offset-qualified timestamp such as
// "2024-03-11T09:30:00-06:00". Strings without an explicit offset fail
// with ErrInvalidMoment.
func ParseMoment(s string) (Moment, error) {
	if s == "" || !offsetSuffix.MatchString(s) {
		return Moment{}, ErrInvalidMoment
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Moment{}, ErrInvalidMoment
	}
	return Moment{Time: t}, nil
}

// MomentFromLocal builds a Moment from a local wall-clock string
// ("2006-01-02T15:04" or with seconds) and an explicit UTC offset in
// minutes, as submitted by browser clients.
func MomentFromLocal(local string, offsetMinutes int, zoneName string) (Moment, error) {
	if local == "" {
		return Moment{}, ErrInvalidMoment
	}
	loc := time.FixedZone("", offsetMinutes*60)
	t, err := time.ParseInLocation("2006-01-02T15:04:05", local, loc)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02T15:04", local, loc)
		if err != nil {
			return Moment{}, ErrInvalidMoment
		}
	}
	return Moment{Time: t, ZoneName: zoneName}, nil
}

// OffsetInstant renders the moment in the persisted encoding.
func (m Moment) OffsetInstant() string {
	return m.Time.Format(OffsetInstantLayout)
}

// LocalString renders the moment for display in the viewer's own clock.
func (m Moment) LocalString() string {
	return m.Time.Format(LocalDisplayLayout)
}

// Equal reports whether two moments name the same wall-clock time at the
// same offset.
func (m Moment) Equal(o Moment) bool {
	return m.Time.Equal(o.Time) && m.Time.Format(OffsetInstantLayout) == o.Time.Format(OffsetInstantLayout)
}

func (m Moment) withTime(t time.Time) Moment {
	return Moment{Time: t, ZoneName: m.ZoneName}
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// atMinute returns the moment's calendar day at the given minute from
// midnight, with seconds zeroed.
func (m Moment) atMinute(minutes int) Moment {
	y, mo, d := m.Time.Date()
	return m.withTime(time.Date(y, mo, d, minutes/60, minutes%60, 0, 0, m.Time.Location()))
}

func (m Moment) addDays(n int) Moment {
	y, mo, d := m.Time.Date()
	return m.withTime(time.Date(y, mo, d+n, m.Time.Hour(), m.Time.Minute(), 0, 0, m.Time.Location()))
}
