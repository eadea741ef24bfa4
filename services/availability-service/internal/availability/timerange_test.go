package availability

import (
	"testing"
	"time"
)

func TestClockMinutes(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:30", 510, false},
		{"23:59", 1439, false},
		{"15:00:00", 900, false},
		{" 09:15 ", 555, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ClockMinutes(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ClockMinutes(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ClockMinutes(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ClockMinutes(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestEndInstant_CrossesMidnight(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	start, err := ToInstant(day, "15:00")
	if err != nil {
		t.Fatal(err)
	}
	end, err := EndInstant(start, "12:00")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, end)
	}
}

func TestEndInstant_SameDay(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	start, err := ToInstant(day, "08:00")
	if err != nil {
		t.Fatal(err)
	}
	end, err := EndInstant(start, "14:00")
	if err != nil {
		t.Fatal(err)
	}
	if !end.Equal(day.Add(14 * time.Hour)) {
		t.Fatalf("expected same-day end, got %s", end)
	}
}

func TestNightsOf(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

	nights := NightsOf(start, end)
	if len(nights) != 3 {
		t.Fatalf("expected 3 nights, got %d", len(nights))
	}
	for i, n := range nights {
		want := start.AddDate(0, 0, i)
		if !n.Equal(want) {
			t.Errorf("night %d: expected %s, got %s", i, want, n)
		}
	}

	// The checkout date is never a night.
	if got := Nights(start, end); got != 3 {
		t.Fatalf("Nights = %d, want 3", got)
	}
}

func TestDaysBetween_IgnoresClock(t *testing.T) {
	a := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	b := time.Date(2026, 3, 11, 0, 15, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 1 {
		t.Fatalf("DaysBetween = %d, want 1", got)
	}
}
