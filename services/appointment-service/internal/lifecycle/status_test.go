package lifecycle

import "testing"

func TestParseStatusAliases(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
		ok   bool
	}{
		{"pending", StatusPending, true},
		{"Pendiente", StatusPending, true},
		{"CONFIRMADA", StatusConfirmed, true},
		{"confirmed", StatusConfirmed, true},
		{"cancelled", StatusCancelled, true},
		{"canceled", StatusCancelled, true},
		{"cancelada", StatusCancelled, true},
		{"  completada  ", StatusCompleted, true},
		{"completed", StatusCompleted, true},
		{"archived", StatusUnknown, false},
		{"", StatusUnknown, false},
	}
	for _, tc := range cases {
		got, ok := ParseStatus(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseStatus(%q) = %s, %v; want %s, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLabelIsTotal(t *testing.T) {
	for s, want := range map[Status]string{
		StatusPending:   "Pendiente",
		StatusConfirmed: "Confirmada",
		StatusCancelled: "Cancelada",
		StatusCompleted: "Completada",
	} {
		if got := s.Label(); got != want {
			t.Fatalf("Label(%s) = %q, want %q", s, got, want)
		}
	}
	if got := Status("whatever").Label(); got != "Desconocido" {
		t.Fatalf("unknown label = %q", got)
	}
	if got := StatusUnknown.Label(); got != "Desconocido" {
		t.Fatalf("StatusUnknown label = %q", got)
	}
}

func TestCanTransition(t *testing.T) {
	legal := [][2]Status{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusCompleted},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusCompleted},
	}
	for _, pair := range legal {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be legal", pair[0], pair[1])
		}
	}
	illegal := [][2]Status{
		{StatusCancelled, StatusConfirmed},
		{StatusCompleted, StatusConfirmed},
		{StatusCompleted, StatusCancelled},
		{StatusConfirmed, StatusPending},
		{StatusPending, StatusPending},
	}
	for _, pair := range illegal {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be illegal", pair[0], pair[1])
		}
	}
	if !StatusCancelled.Terminal() || !StatusCompleted.Terminal() || StatusPending.Terminal() {
		t.Fatal("terminal flags wrong")
	}
}
