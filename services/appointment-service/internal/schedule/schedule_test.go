package schedule

import (
	"errors"
	"testing"
	"time"
)

func mustMoment(t *testing.T, s string) Moment {
	t.Helper()
	m, err := ParseMoment(s)
	if err != nil {
		t.Fatalf("ParseMoment(%q) failed: %v", s, err)
	}
	return m
}

func TestParseMomentRequiresOffset(t *testing.T) {
	for _, s := range []string{"", "2024-03-11T09:30:00", "2024-03-11 09:30", "not-a-time"} {
		if _, err := ParseMoment(s); !errors.Is(err, ErrInvalidMoment) {
			t.Fatalf("ParseMoment(%q): expected ErrInvalidMoment, got %v", s, err)
		}
	}
	if _, err := ParseMoment("2024-03-11T09:30:00-06:00"); err != nil {
		t.Fatalf("ParseMoment rejected a valid instant: %v", err)
	}
}

func TestOffsetInstantRoundTrip(t *testing.T) {
	raw := "2024-03-11T09:30:00-06:00"
	m := mustMoment(t, raw)
	if got := m.OffsetInstant(); got != raw {
		t.Fatalf("expected byte-for-byte round trip, got %q", got)
	}
	// The encoded instant names the same point in time for any reader.
	back, err := time.Parse(time.RFC3339, m.OffsetInstant())
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if !back.Equal(m.Time) {
		t.Fatalf("instant drifted: %v vs %v", back, m.Time)
	}
	if back.UTC().Hour() != 15 {
		t.Fatalf("expected 15:30 UTC, got %v", back.UTC())
	}
}

func TestIsWithinBusinessHoursInclusiveClose(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		moment string
		want   bool
	}{
		{"2024-03-11T07:00:00-06:00", true},  // Monday open boundary
		{"2024-03-11T18:00:00-06:00", true},  // Monday close boundary, inclusive
		{"2024-03-11T18:15:00-06:00", false}, // Monday past close
		{"2024-03-11T06:45:00-06:00", false}, // Monday before open
		{"2024-03-16T12:00:00-06:00", true},  // Saturday close boundary
		{"2024-03-16T12:15:00-06:00", false}, // Saturday past close
		{"2024-03-17T09:00:00-06:00", false}, // Sunday, always closed
	}
	for _, tc := range cases {
		if got := IsWithinBusinessHours(mustMoment(t, tc.moment), p); got != tc.want {
			t.Fatalf("IsWithinBusinessHours(%s) = %v, want %v", tc.moment, got, tc.want)
		}
	}
}

func TestRoundToStep(t *testing.T) {
	cases := []struct {
		in   string
		step int
		want string
	}{
		{"2024-03-11T09:07:00-06:00", 15, "2024-03-11T09:00:00-06:00"},
		{"2024-03-11T09:08:00-06:00", 15, "2024-03-11T09:15:00-06:00"},
		{"2024-03-11T09:05:00-06:00", 10, "2024-03-11T09:10:00-06:00"}, // tie rounds up
		{"2024-03-11T09:30:45-06:00", 15, "2024-03-11T09:30:00-06:00"}, // seconds zeroed
		{"2024-03-11T23:53:00-06:00", 15, "2024-03-12T00:00:00-06:00"}, // carries into next day
	}
	for _, tc := range cases {
		got := RoundToStep(mustMoment(t, tc.in), tc.step)
		if got.OffsetInstant() != tc.want {
			t.Fatalf("RoundToStep(%s, %d) = %s, want %s", tc.in, tc.step, got.OffsetInstant(), tc.want)
		}
	}
}

func TestNextValidSlot(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"sunday to monday open", "2024-03-17T10:00:00-06:00", "2024-03-18T07:00:00-06:00"},
		{"saturday past close to monday", "2024-03-16T12:01:00-06:00", "2024-03-18T07:00:00-06:00"},
		{"weekday past close to next day", "2024-03-11T18:01:00-06:00", "2024-03-12T07:00:00-06:00"},
		{"before open snaps to open", "2024-03-11T06:30:00-06:00", "2024-03-11T07:00:00-06:00"},
		{"in band unchanged", "2024-03-11T09:30:00-06:00", "2024-03-11T09:30:00-06:00"},
		{"close boundary unchanged", "2024-03-11T18:00:00-06:00", "2024-03-11T18:00:00-06:00"},
	}
	for _, tc := range cases {
		got := NextValidSlot(mustMoment(t, tc.in), p)
		if got.OffsetInstant() != tc.want {
			t.Fatalf("%s: NextValidSlot(%s) = %s, want %s", tc.name, tc.in, got.OffsetInstant(), tc.want)
		}
		if !IsWithinBusinessHours(got, p) {
			t.Fatalf("%s: result %s outside business hours", tc.name, got.OffsetInstant())
		}
		again := NextValidSlot(got, p)
		if again.OffsetInstant() != got.OffsetInstant() {
			t.Fatalf("%s: NextValidSlot not idempotent: %s then %s", tc.name, got.OffsetInstant(), again.OffsetInstant())
		}
	}
}

func TestNormalize(t *testing.T) {
	p := DefaultPolicy()

	valid := mustMoment(t, "2024-03-11T09:30:00-06:00")
	got, adjusted := Normalize(valid, p)
	if adjusted {
		t.Fatal("valid moment should not be adjusted")
	}
	if got.OffsetInstant() != valid.OffsetInstant() {
		t.Fatalf("valid moment changed: %s", got.OffsetInstant())
	}

	// A minute past close must not be rounded back onto the close
	// boundary; it belongs to the next open day.
	satLate := mustMoment(t, "2024-03-16T12:01:00-06:00")
	got, adjusted = Normalize(satLate, p)
	if !adjusted || got.OffsetInstant() != "2024-03-18T07:00:00-06:00" {
		t.Fatalf("saturday 12:01 normalized to %s adjusted=%v", got.OffsetInstant(), adjusted)
	}
	monLate := mustMoment(t, "2024-03-11T18:01:00-06:00")
	got, adjusted = Normalize(monLate, p)
	if !adjusted || got.OffsetInstant() != "2024-03-12T07:00:00-06:00" {
		t.Fatalf("monday 18:01 normalized to %s adjusted=%v", got.OffsetInstant(), adjusted)
	}

	sunday := mustMoment(t, "2024-03-17T09:13:00-06:00")
	got, adjusted = Normalize(sunday, p)
	if !adjusted {
		t.Fatal("sunday moment should be adjusted")
	}
	if got.OffsetInstant() != "2024-03-18T07:00:00-06:00" {
		t.Fatalf("sunday normalized to %s", got.OffsetInstant())
	}

	// Idempotence: normalizing an already-normalized moment is a no-op.
	again, adjusted := Normalize(got, p)
	if adjusted || !again.Equal(got) {
		t.Fatalf("Normalize not idempotent: %s adjusted=%v", again.OffsetInstant(), adjusted)
	}
}

func TestNormalizeAlwaysLandsInBusinessHours(t *testing.T) {
	p := DefaultPolicy()
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.FixedZone("", -6*3600))
	for i := 0; i < 7*24; i++ {
		m := Moment{Time: start.Add(time.Duration(i) * time.Hour)}
		got, _ := Normalize(m, p)
		if !IsWithinBusinessHours(got, p) {
			t.Fatalf("Normalize(%s) = %s outside business hours", m.OffsetInstant(), got.OffsetInstant())
		}
	}
}

func TestMomentFromLocal(t *testing.T) {
	m, err := MomentFromLocal("2024-03-11T09:30", -360, "America/Mexico_City")
	if err != nil {
		t.Fatalf("MomentFromLocal failed: %v", err)
	}
	if m.OffsetInstant() != "2024-03-11T09:30:00-06:00" {
		t.Fatalf("unexpected instant %s", m.OffsetInstant())
	}
	if _, err := MomentFromLocal("", -360, ""); !errors.Is(err, ErrInvalidMoment) {
		t.Fatalf("expected ErrInvalidMoment for empty local time, got %v", err)
	}
}

func TestDaySlots(t *testing.T) {
	p := DefaultPolicy()
	mon := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	slots := DaySlots(mon, p)
	// 07:00 through 18:00 inclusive at 15 minute steps.
	if len(slots) != 45 {
		t.Fatalf("expected 45 weekday slots, got %d", len(slots))
	}
	if slots[0] != "07:00" || slots[len(slots)-1] != "18:00" {
		t.Fatalf("unexpected slot range %s..%s", slots[0], slots[len(slots)-1])
	}

	sun := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)
	if got := DaySlots(sun, p); len(got) != 0 {
		t.Fatalf("expected no sunday slots, got %d", len(got))
	}
}

func TestAvailableSlots(t *testing.T) {
	p := DefaultPolicy()
	mon := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	free := AvailableSlots(mon, p, []string{"07:00", "18:00", "13:45"})
	if len(free) != 42 {
		t.Fatalf("expected 42 free slots, got %d", len(free))
	}
	if free[0] != "07:15" || free[len(free)-1] != "17:45" {
		t.Fatalf("unexpected free range %s..%s", free[0], free[len(free)-1])
	}

	// Busy times outside the policy grid change nothing.
	if got := AvailableSlots(mon, p, []string{"06:00", "19:00"}); len(got) != 45 {
		t.Fatalf("off-grid busy times removed slots: %d", len(got))
	}

	sun := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)
	if got := AvailableSlots(sun, p, nil); len(got) != 0 {
		t.Fatalf("expected no sunday slots, got %d", len(got))
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	bad := DefaultPolicy()
	bad.StepMinutes = 7
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for step not dividing 60")
	}
	bad = DefaultPolicy()
	bad.Saturday = Band{Open: 12 * 60, Close: 7 * 60}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for inverted band")
	}
	bad = DefaultPolicy()
	bad.Weekday.Open = 7*60 + 5
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for open off the slot grid")
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("07:30")
	if err != nil || m != 450 {
		t.Fatalf("ParseClock(07:30) = %d, %v", m, err)
	}
	for _, s := range []string{"25:00", "07:99", "seven", ""} {
		if _, err := ParseClock(s); err == nil {
			t.Fatalf("ParseClock(%q): expected error", s)
		}
	}
	if got := FormatClock(450); got != "07:30" {
		t.Fatalf("FormatClock(450) = %q", got)
	}
}
