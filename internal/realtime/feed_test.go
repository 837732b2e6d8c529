package realtime

import (
	"testing"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"trainsheet/internal/timetable"
)

func tod(h, m int, half bool) *timetable.TimeOfDay {
	return &timetable.TimeOfDay{Hour: h, Minute: m, After30Seconds: half}
}

func TestBuildFeedRollsOverMidnight(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, loc)
	generated := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	trains := []timetable.Train{{
		Number: "5678",
		Type:   timetable.TrainEx,
		Stops: timetable.StopSequence{
			{StationName: "Praha hl.n.", DepartureTime: tod(23, 40, false)},
			{StationName: "*Kolín", ArrivalTime: tod(23, 55, true), DepartureTime: tod(0, 5, false)},
			{StationName: "Pardubice hl.n.: odb.", ArrivalTime: tod(0, 30, false)},
		},
	}}

	feed := BuildFeed(trains, date, generated)

	h := feed.GetHeader()
	if h.GetGtfsRealtimeVersion() != "2.0" || h.GetIncrementality() != gtfs.FeedHeader_FULL_DATASET {
		t.Errorf("header = %v", h)
	}
	if h.GetTimestamp() != uint64(generated.Unix()) {
		t.Errorf("timestamp = %d", h.GetTimestamp())
	}
	if len(feed.GetEntity()) != 1 {
		t.Fatalf("entities = %d, want 1", len(feed.GetEntity()))
	}

	tu := feed.GetEntity()[0].GetTripUpdate()
	if tu.GetTrip().GetTripId() != "5678" || tu.GetTrip().GetStartDate() != "20261019" {
		t.Errorf("trip = %v", tu.GetTrip())
	}

	updates := tu.GetStopTimeUpdate()
	if len(updates) != 3 {
		t.Fatalf("stop time updates = %d, want 3", len(updates))
	}

	wantIDs := []string{"praha_hl.n", "kolín", "pardubice_hl.n"}
	for i, u := range updates {
		if u.GetStopSequence() != uint32(i+1) || u.GetStopId() != wantIDs[i] {
			t.Errorf("update %d = seq %d id %q, want %d %q", i, u.GetStopSequence(), u.GetStopId(), i+1, wantIDs[i])
		}
	}

	if updates[0].GetArrival() != nil {
		t.Error("origin has an arrival event")
	}
	if updates[2].GetDeparture() != nil {
		t.Error("terminus has a departure event")
	}

	want := []struct {
		got  int64
		want time.Time
	}{
		{updates[0].GetDeparture().GetTime(), time.Date(2026, 10, 19, 23, 40, 0, 0, loc)},
		{updates[1].GetArrival().GetTime(), time.Date(2026, 10, 19, 23, 55, 30, 0, loc)},
		{updates[1].GetDeparture().GetTime(), time.Date(2026, 10, 20, 0, 5, 0, 0, loc)},
		{updates[2].GetArrival().GetTime(), time.Date(2026, 10, 20, 0, 30, 0, 0, loc)},
	}
	for i, w := range want {
		if w.got != w.want.Unix() {
			t.Errorf("event %d = %v, want %v", i, time.Unix(w.got, 0).In(loc), w.want)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	trains := []timetable.Train{
		{Number: "1", Type: timetable.TrainOs, Stops: timetable.StopSequence{
			{StationName: "A", DepartureTime: tod(6, 0, false)},
			{StationName: "B", ArrivalTime: tod(6, 10, false)},
		}},
		{Number: "2", Type: timetable.TrainOs, Stops: timetable.StopSequence{{StationName: "A"}}},
	}
	date := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	data, err := Encode(BuildFeed(trains, date, date))
	if err != nil {
		t.Fatal(err)
	}
	feed, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	lines := Describe(feed)
	want := []string{
		"1 20260102 stops=2 first=2026-01-02T06:00:00Z last=2026-01-02T06:10:00Z",
		"2 20260102 stops=1 first=- last=-",
	}
	if len(lines) != len(want) {
		t.Fatalf("Describe = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	if _, err := Decode([]byte{0xff, 0xff}); err == nil {
		t.Error("Decode of garbage succeeded")
	}
}

func TestStore(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("2026-10-19"); ok {
		t.Fatal("empty store returned a feed")
	}
	gen := s.Generation()
	s.Set("2026-10-19", []byte{1}, gen)
	s.Set("2026-10-20", []byte{2}, gen)
	if got, ok := s.Get("2026-10-19"); !ok || got[0] != 1 {
		t.Errorf("Get = %v, %v", got, ok)
	}
	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d", s.Len())
	}
}

func TestStoreDropsFeedBuiltBeforeReset(t *testing.T) {
	s := NewStore()
	trains := []timetable.Train{{Number: "1", Stops: timetable.NewStopSequence("A")}}

	// a request reads the generation and loads trains, then a conversion
	// run finishes before the request stores its feed
	gen := s.Generation()
	old, err := Encode(BuildFeed(trains, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}
	s.Reset()

	if s.Set("2026-03-01", old, gen) {
		t.Error("Set accepted a feed from before the reset")
	}
	if _, ok := s.Get("2026-03-01"); ok {
		t.Fatal("feed built before the reset is cached")
	}

	if !s.Set("2026-03-01", []byte{1}, s.Generation()) {
		t.Error("Set rejected a feed from the current generation")
	}
	if _, ok := s.Get("2026-03-01"); !ok {
		t.Error("current feed not cached")
	}
}
