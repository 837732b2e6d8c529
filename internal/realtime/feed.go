package realtime

import (
	"fmt"
	"strings"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"trainsheet/internal/timetable"
)

// BuildFeed lays the trains out on serviceDate as a full GTFS-realtime
// dataset with one trip update per train. serviceDate's location is used
// for the absolute times.
func BuildFeed(trains []timetable.Train, serviceDate time.Time, generated time.Time) *gtfs.FeedMessage {
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(generated.Unix())),
		},
	}

	startDate := serviceDate.Format("20060102")
	for _, t := range trains {
		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id: proto.String(t.Number),
			TripUpdate: &gtfs.TripUpdate{
				Trip: &gtfs.TripDescriptor{
					TripId:               proto.String(t.Number),
					StartDate:            proto.String(startDate),
					ScheduleRelationship: gtfs.TripDescriptor_SCHEDULED.Enum(),
				},
				StopTimeUpdate: stopTimeUpdates(t.Stops, serviceDate),
			},
		})
	}
	return feed
}

func stopTimeUpdates(stops timetable.StopSequence, serviceDate time.Time) []*gtfs.TripUpdate_StopTimeUpdate {
	var l layout
	l.start(serviceDate)

	updates := make([]*gtfs.TripUpdate_StopTimeUpdate, 0, len(stops))
	for i, s := range stops {
		u := &gtfs.TripUpdate_StopTimeUpdate{
			StopSequence: proto.Uint32(uint32(i + 1)),
			StopId:       proto.String(StopID(s.StationName)),
		}
		if s.ArrivalTime != nil {
			u.Arrival = &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(l.place(*s.ArrivalTime).Unix())}
		}
		if s.DepartureTime != nil {
			u.Departure = &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(l.place(*s.DepartureTime).Unix())}
		}
		updates = append(updates, u)
	}
	return updates
}

// layout assigns calendar days to a train's clock times: a time earlier
// than the one before it belongs to the next day.
type layout struct {
	date time.Time
	day  int
	prev int // seconds since midnight of the previous time, -1 before the first
}

func (l *layout) start(date time.Time) {
	l.date = date
	l.day = 0
	l.prev = -1
}

func (l *layout) place(t timetable.TimeOfDay) time.Time {
	sec := t.Hour*3600 + t.Minute*60
	if t.After30Seconds {
		sec += 30
	}
	if l.prev >= 0 && sec < l.prev {
		l.day++
	}
	l.prev = sec
	y, m, d := l.date.Date()
	return time.Date(y, m, d+l.day, 0, 0, sec, 0, l.date.Location())
}

// StopID derives a stable stop identifier from a station name.
func StopID(name string) string {
	return strings.ReplaceAll(strings.ToLower(timetable.DisplayName(name)), " ", "_")
}

// Encode serializes a feed.
func Encode(feed *gtfs.FeedMessage) ([]byte, error) {
	data, err := proto.Marshal(feed)
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return data, nil
}

// Decode parses an encoded feed.
func Decode(data []byte) (*gtfs.FeedMessage, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(data, feed); err != nil {
		return nil, fmt.Errorf("parse feed protobuf: %w", err)
	}
	return feed, nil
}

// Describe returns one line per trip: id, start date, stop count and the
// first and last absolute times.
func Describe(feed *gtfs.FeedMessage) []string {
	var lines []string
	for _, e := range feed.GetEntity() {
		tu := e.GetTripUpdate()
		if tu == nil {
			continue
		}
		var first, last int64
		for _, u := range tu.GetStopTimeUpdate() {
			for _, ev := range []*gtfs.TripUpdate_StopTimeEvent{u.GetArrival(), u.GetDeparture()} {
				if ev == nil || ev.GetTime() == 0 {
					continue
				}
				if first == 0 {
					first = ev.GetTime()
				}
				last = ev.GetTime()
			}
		}
		lines = append(lines, fmt.Sprintf("%s %s stops=%d first=%s last=%s",
			tu.GetTrip().GetTripId(), tu.GetTrip().GetStartDate(), len(tu.GetStopTimeUpdate()),
			formatUnix(first), formatUnix(last)))
	}
	return lines
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
