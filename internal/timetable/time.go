package timetable

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a displayed clock time truncated to the minute.
// After30Seconds marks that the real value lies at least 30 seconds past the minute;
// it only matters for tie-breaking, never for Hour or Minute.
type TimeOfDay struct {
	Hour           int
	Minute         int
	After30Seconds bool
}

// NewTimeOfDay validates the fields and returns the time value.
func NewTimeOfDay(hour, minute int, after30Seconds bool) (TimeOfDay, error) {
	if hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("hour %d out of range 0-23", hour)
	}
	if minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("minute %d out of range 0-59", minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute, After30Seconds: after30Seconds}, nil
}

// IsBeforeOrSame orders t against other for sequencing decisions.
// Equal hour and minute count as "before or same" unless t rounds up past
// the half minute while other does not.
func (t TimeOfDay) IsBeforeOrSame(other TimeOfDay) bool {
	if t.Hour != other.Hour {
		return t.Hour < other.Hour
	}
	if t.Minute != other.Minute {
		return t.Minute < other.Minute
	}
	return !(t.After30Seconds && !other.After30Seconds)
}

// String renders "HH:MM", or "HH:MM:30" when the half-minute flag is set.
func (t TimeOfDay) String() string {
	if t.After30Seconds {
		return fmt.Sprintf("%02d:%02d:30", t.Hour, t.Minute)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseClock parses "H:MM", "HH:MM" or "HH:MM:SS". Seconds of 30 or more set
// the half-minute flag; the minute itself is never rounded.
func ParseClock(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("parse clock %q: want H:MM or HH:MM:SS", s)
	}

	var fields [3]int
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return TimeOfDay{}, fmt.Errorf("parse clock %q: bad field %q", s, p)
		}
		if i > 0 && len(p) != 2 {
			return TimeOfDay{}, fmt.Errorf("parse clock %q: bad field %q", s, p)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return TimeOfDay{}, fmt.Errorf("parse clock %q: bad field %q", s, p)
		}
		fields[i] = n
	}
	if fields[2] > 59 {
		return TimeOfDay{}, fmt.Errorf("parse clock %q: second %d out of range 0-59", s, fields[2])
	}

	t, err := NewTimeOfDay(fields[0], fields[1], fields[2] >= 30)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t, nil
}

type timeOfDayJSON struct {
	Hours          int   `json:"hours"`
	Minutes        int   `json:"minutes"`
	After30Seconds bool  `json:"isAfter30Seconds"`
	Legacy         *bool `json:"isAfter30seconds,omitempty"`
}

// MarshalJSON writes the object form consumed by the schedule tooling.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeOfDayJSON{Hours: t.Hour, Minutes: t.Minute, After30Seconds: t.After30Seconds})
}

// UnmarshalJSON accepts the object form (including the lowercase "seconds"
// key older files carry) or a clock string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseClock(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	var raw timeOfDayJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode time of day: %w", err)
	}
	after := raw.After30Seconds
	if raw.Legacy != nil {
		after = after || *raw.Legacy
	}
	parsed, err := NewTimeOfDay(raw.Hours, raw.Minutes, after)
	if err != nil {
		return fmt.Errorf("decode time of day: %w", err)
	}
	*t = parsed
	return nil
}

// RegularTime is an hour-less minute value used for relative markers.
// It is deliberately not comparable with TimeOfDay.
type RegularTime struct {
	Minute         int
	After30Seconds bool
}

func (r RegularTime) String() string {
	if r.After30Seconds {
		return fmt.Sprintf("%d½", r.Minute)
	}
	return strconv.Itoa(r.Minute)
}

type regularTimeJSON struct {
	Minutes        int  `json:"minutes"`
	After30Seconds bool `json:"isAfter30Seconds"`
}

func (r RegularTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(regularTimeJSON{Minutes: r.Minute, After30Seconds: r.After30Seconds})
}

// UnmarshalJSON accepts {"minutes":M,"isAfter30Seconds":B} or a bare minute count.
func (r *RegularTime) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("regular time %d is negative", n)
		}
		*r = RegularTime{Minute: n}
		return nil
	}

	var raw regularTimeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode regular time: %w", err)
	}
	if raw.Minutes < 0 {
		return fmt.Errorf("regular time %d is negative", raw.Minutes)
	}
	*r = RegularTime{Minute: raw.Minutes, After30Seconds: raw.After30Seconds}
	return nil
}
