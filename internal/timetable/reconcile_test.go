package timetable

import (
	"errors"
	"testing"
)

func clock(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", s, err)
	}
	return v
}

func clocks(t *testing.T, ss ...string) []TimeOfDay {
	t.Helper()
	out := make([]TimeOfDay, len(ss))
	for i, s := range ss {
		out[i] = clock(t, s)
	}
	return out
}

// slot renders an optional time for comparisons; "-" means unset.
func slot(v *TimeOfDay) string {
	if v == nil {
		return "-"
	}
	return v.String()
}

func checkStops(t *testing.T, stops StopSequence, want [][2]string) {
	t.Helper()
	if len(stops) != len(want) {
		t.Fatalf("got %d stops, want %d", len(stops), len(want))
	}
	for i, w := range want {
		arr, dep := slot(stops[i].ArrivalTime), slot(stops[i].DepartureTime)
		if arr != w[0] || dep != w[1] {
			t.Errorf("stop %d (%s): arrival=%s departure=%s, want arrival=%s departure=%s",
				i, stops[i].StationName, arr, dep, w[0], w[1])
		}
	}
}

func TestReconcile_PendingArrivalRetriedForward(t *testing.T) {
	stops := NewStopSequence("A", "B", "C")
	Reconcile(stops, clocks(t, "08:00"), clocks(t, "07:55", "08:05", "08:30"))

	checkStops(t, stops, [][2]string{
		{"-", "07:55"},
		{"08:00", "08:05"},
		{"-", "08:30"},
	})
}

func TestReconcile_MidnightRollover(t *testing.T) {
	stops := NewStopSequence("A", "B")
	Reconcile(stops, clocks(t, "23:50"), clocks(t, "00:05", "00:20"))

	checkStops(t, stops, [][2]string{
		{"23:50", "00:05"},
		{"-", "00:20"},
	})
}

func TestReconcile_RolloverNeedsLastHour(t *testing.T) {
	// 22:50 against 00:05 is not covered by the override and stays pending
	// until departures run out.
	stops := NewStopSequence("A", "B", "C")
	Reconcile(stops, clocks(t, "22:50"), clocks(t, "00:05", "00:20"))

	checkStops(t, stops, [][2]string{
		{"-", "00:05"},
		{"-", "00:20"},
		{"22:50", "-"},
	})
}

func TestReconcile_HalfMinuteTieBreak(t *testing.T) {
	tests := []struct {
		name      string
		arrival   string
		departure string
		want      [][2]string
	}{
		{"arrival rounds up, departure does not", "08:05:30", "08:05", [][2]string{{"-", "08:05"}, {"08:05:30", "-"}}},
		{"both round up", "08:05:30", "08:05:30", [][2]string{{"08:05:30", "08:05:30"}, {"-", "-"}}},
		{"departure rounds up", "08:05", "08:05:30", [][2]string{{"08:05", "08:05:30"}, {"-", "-"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stops := NewStopSequence("A", "B")
			Reconcile(stops, clocks(t, tt.arrival), clocks(t, tt.departure))
			checkStops(t, stops, tt.want)
		})
	}
}

func TestReconcile_TypicalTrain(t *testing.T) {
	// Origin has only a departure, terminus only an arrival.
	stops := NewStopSequence("Praha hl.n.", "Kolín", "Pardubice hl.n.", "Česká Třebová")
	Reconcile(stops,
		clocks(t, "08:40", "09:02:30", "09:40"),
		clocks(t, "08:00", "08:42", "09:04"),
	)

	checkStops(t, stops, [][2]string{
		{"-", "08:00"},
		{"08:40", "08:42"},
		{"09:02:30", "09:04"},
		{"09:40", "-"},
	})
	if gaps := stops.Gaps(); len(gaps) != 0 {
		t.Errorf("Gaps() = %+v, want none", gaps)
	}
}

func TestReconcile_ForcedAfterDeparturesExhausted(t *testing.T) {
	// 10:00 never precedes a departure; it lands on the first stop reached
	// after departures are used up.
	stops := NewStopSequence("A", "B", "C", "D")
	Reconcile(stops, clocks(t, "10:00"), clocks(t, "08:00", "09:00"))

	checkStops(t, stops, [][2]string{
		{"-", "08:00"},
		{"-", "09:00"},
		{"10:00", "-"},
		{"-", "-"},
	})
}

func TestReconcile_Idempotent(t *testing.T) {
	stops := NewStopSequence("A", "B", "C")
	Reconcile(stops, clocks(t, "08:40", "09:40"), clocks(t, "08:00", "08:42"))
	before := stops.Clone()

	Reconcile(stops, nil, nil)

	for i := range stops {
		if slot(stops[i].ArrivalTime) != slot(before[i].ArrivalTime) ||
			slot(stops[i].DepartureTime) != slot(before[i].DepartureTime) {
			t.Errorf("stop %d changed on re-run", i)
		}
	}
}

func TestReconcile_DeparturesOneShort(t *testing.T) {
	stops := NewStopSequence("A", "B", "C", "D")
	Reconcile(stops, clocks(t, "08:10", "08:20", "08:30"), clocks(t, "08:00", "08:12", "08:22"))

	unset := 0
	for _, s := range stops {
		if s.DepartureTime == nil {
			unset++
		}
	}
	if unset != 1 {
		t.Fatalf("got %d stops without departure, want 1", unset)
	}
	if stops[len(stops)-1].DepartureTime != nil {
		t.Error("the stop without departure should be the terminus")
	}
}

func TestReconcile_InsufficientCandidates(t *testing.T) {
	stops := NewStopSequence("A", "B", "C")
	Reconcile(stops, nil, clocks(t, "08:00"))

	checkStops(t, stops, [][2]string{
		{"-", "08:00"},
		{"-", "-"},
		{"-", "-"},
	})

	gaps := stops.Gaps()
	if len(gaps) != 2 {
		t.Fatalf("Gaps() returned %d entries, want 2: %+v", len(gaps), gaps)
	}
	if gaps[0].Index != 1 || !gaps[0].MissingArrival || !gaps[0].MissingDeparture {
		t.Errorf("gap[0] = %+v", gaps[0])
	}
	if gaps[1].Index != 2 || !gaps[1].MissingArrival || gaps[1].MissingDeparture {
		t.Errorf("gap[1] = %+v", gaps[1])
	}
}

func TestReconcile_EmptyStops(t *testing.T) {
	// Nothing to assign to; must not panic.
	Reconcile(nil, clocks(t, "08:00"), clocks(t, "08:05"))
}

func TestReconcile_DoesNotAliasCandidates(t *testing.T) {
	arrivals := clocks(t, "08:00")
	departures := clocks(t, "08:05")
	stops := NewStopSequence("A")
	Reconcile(stops, arrivals, departures)

	arrivals[0] = clock(t, "12:00")
	departures[0] = clock(t, "12:05")
	if slot(stops[0].ArrivalTime) != "08:00" || slot(stops[0].DepartureTime) != "08:05" {
		t.Errorf("stop changed with candidate slice: %s/%s", slot(stops[0].ArrivalTime), slot(stops[0].DepartureTime))
	}
}

func TestAssignRegularTimes(t *testing.T) {
	t.Run("every stop", func(t *testing.T) {
		stops := NewStopSequence("A", "B", "C")
		if err := AssignRegularTimes(stops, []RegularTime{{Minute: 0}, {Minute: 3}, {Minute: 5, After30Seconds: true}}); err != nil {
			t.Fatal(err)
		}
		if stops[0].RegularTime == nil || stops[2].RegularTime.Minute != 5 || !stops[2].RegularTime.After30Seconds {
			t.Errorf("unexpected assignment: %+v", stops)
		}
	})

	t.Run("first skipped", func(t *testing.T) {
		stops := NewStopSequence("A", "B", "C")
		if err := AssignRegularTimes(stops, []RegularTime{{Minute: 3}, {Minute: 5}}); err != nil {
			t.Fatal(err)
		}
		if stops[0].RegularTime != nil {
			t.Error("first stop should have no regular time")
		}
		if stops[1].RegularTime.Minute != 3 || stops[2].RegularTime.Minute != 5 {
			t.Errorf("unexpected assignment: %v %v", stops[1].RegularTime, stops[2].RegularTime)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		stops := NewStopSequence("A", "B", "C")
		err := AssignRegularTimes(stops, []RegularTime{{Minute: 3}})
		if !errors.Is(err, ErrRegularTimeCount) {
			t.Fatalf("err = %v, want ErrRegularTimeCount", err)
		}
		for i, s := range stops {
			if s.RegularTime != nil {
				t.Errorf("stop %d modified on error", i)
			}
		}
	})
}
