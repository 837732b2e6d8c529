package timetable

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// StationStop is one appearance of a station in a train's schedule.
// The grouping step fills StationName; the time slots are filled later.
type StationStop struct {
	StationName   string
	RegularTime   *RegularTime
	ArrivalTime   *TimeOfDay
	DepartureTime *TimeOfDay
}

// StopSequence is a train's stops in sheet-row order.
type StopSequence []StationStop

// NewStopSequence creates stops with names only.
func NewStopSequence(names ...string) StopSequence {
	stops := make(StopSequence, len(names))
	for i, name := range names {
		stops[i] = StationStop{StationName: name}
	}
	return stops
}

// ErrRegularTimeCount reports regular markers that match neither the stop
// count nor the stop count minus one.
var ErrRegularTimeCount = errors.New("regular time count does not match stops")

// AssignRegularTimes places regular markers on stops. Markers exist for every
// stop or for every stop except the first; in the latter case the first stop
// is skipped.
func AssignRegularTimes(stops StopSequence, regular []RegularTime) error {
	offset := 0
	switch len(regular) {
	case len(stops):
	case len(stops) - 1:
		offset = 1
	default:
		return fmt.Errorf("%w: %d markers for %d stops", ErrRegularTimeCount, len(regular), len(stops))
	}

	for i, r := range regular {
		stops[i+offset].RegularTime = &r
	}
	return nil
}

// Gap describes a stop whose time slots could not be filled.
type Gap struct {
	Index            int
	StationName      string
	MissingArrival   bool
	MissingDeparture bool
}

// Gaps lists stops left without times. The origin may lack an arrival and
// the terminus may lack a departure; those are not gaps.
func (s StopSequence) Gaps() []Gap {
	var gaps []Gap
	last := len(s) - 1
	for i, stop := range s {
		g := Gap{
			Index:            i,
			StationName:      stop.StationName,
			MissingArrival:   stop.ArrivalTime == nil && i != 0,
			MissingDeparture: stop.DepartureTime == nil && i != last,
		}
		if g.MissingArrival || g.MissingDeparture {
			gaps = append(gaps, g)
		}
	}
	return gaps
}

// Clone returns a deep copy.
func (s StopSequence) Clone() StopSequence {
	out := make(StopSequence, len(s))
	for i, stop := range s {
		out[i] = StationStop{StationName: stop.StationName}
		if stop.RegularTime != nil {
			r := *stop.RegularTime
			out[i].RegularTime = &r
		}
		if stop.ArrivalTime != nil {
			a := *stop.ArrivalTime
			out[i].ArrivalTime = &a
		}
		if stop.DepartureTime != nil {
			d := *stop.DepartureTime
			out[i].DepartureTime = &d
		}
	}
	return out
}

// CleanStationName trims and NFC-normalizes a name read from a cell.
func CleanStationName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// DisplayName strips the sheet decorations the schedule tooling ignores:
// a leading marker character, anything after ':' and a trailing '.'.
func DisplayName(name string) string {
	name = CleanStationName(name)
	if r := []rune(name); len(r) > 0 && !unicode.IsLetter(r[0]) {
		name = strings.TrimSpace(string(r[1:]))
	}
	if i := strings.IndexByte(name, ':'); i != -1 {
		name = strings.TrimSpace(name[:i])
	}
	return strings.TrimSuffix(name, ".")
}

// TrainType is the train category printed on the sheet.
type TrainType string

const (
	TrainNex TrainType = "Nex"
	TrainPn  TrainType = "Pn"
	TrainMn  TrainType = "Mn"
	TrainVl  TrainType = "Vl"
	TrainSl  TrainType = "Sl"
	TrainEx  TrainType = "Ex"
	TrainR   TrainType = "R"
	TrainSp  TrainType = "Sp"
	TrainOs  TrainType = "Os"
)

var trainTypes = []TrainType{TrainNex, TrainPn, TrainMn, TrainVl, TrainSl, TrainEx, TrainR, TrainSp, TrainOs}

// ParseTrainType matches case-insensitively and returns the canonical spelling.
func ParseTrainType(s string) (TrainType, error) {
	s = strings.TrimSpace(s)
	for _, t := range trainTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown train type %q", s)
}

// IsCargo reports freight categories.
func (t TrainType) IsCargo() bool {
	switch t {
	case TrainNex, TrainMn, TrainSl, TrainVl, TrainPn:
		return true
	}
	return false
}

// IsPassenger reports passenger categories.
func (t TrainType) IsPassenger() bool {
	switch t {
	case TrainEx, TrainR, TrainSp, TrainOs:
		return true
	}
	return false
}

// Train is one reconciled timetable.
type Train struct {
	Number string
	Type   TrainType
	Stops  StopSequence
}
