package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"trainsheet/internal/timetable"
	"trainsheet/internal/xlsx"
)

// TrainBlock is what the grouping step yields for one train on a sheet:
// its stops (names only) and the candidate times in sheet order.
type TrainBlock struct {
	Number       string
	Type         timetable.TrainType
	Stops        timetable.StopSequence
	RegularTimes []timetable.RegularTime
	Arrivals     []timetable.TimeOfDay
	Departures   []timetable.TimeOfDay
}

// Grouper turns a workbook and its merge geometry into train blocks.
type Grouper interface {
	Group(ctx context.Context, path string, regions []xlsx.MergedRegion) ([]TrainBlock, error)
}

// GrouperFunc adapts a function to the Grouper interface.
type GrouperFunc func(ctx context.Context, path string, regions []xlsx.MergedRegion) ([]TrainBlock, error)

func (f GrouperFunc) Group(ctx context.Context, path string, regions []xlsx.MergedRegion) ([]TrainBlock, error) {
	return f(ctx, path, regions)
}

// SidecarSuffix is appended to a workbook path to find its grouping output.
const SidecarSuffix = ".groups.json"

// ErrNoSidecar is returned when a workbook has no grouping output next to it.
var ErrNoSidecar = errors.New("grouping output not found")

// SidecarGrouper reads train blocks that the grouping step wrote next to
// each workbook as <workbook>.groups.json.
type SidecarGrouper struct{}

type sidecarFile struct {
	Trains []sidecarTrain `json:"trains"`
}

type sidecarTrain struct {
	TrainNumber  trainNumber             `json:"trainNumber"`
	TrainType    string                  `json:"trainType"`
	Stations     []string                `json:"stations"`
	RegularTimes []timetable.RegularTime `json:"regularTimes"`
	Arrivals     []timetable.TimeOfDay   `json:"arrivals"`
	Departures   []timetable.TimeOfDay   `json:"departures"`
}

// trainNumber accepts both 1234 and "1234".
type trainNumber string

func (n *trainNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = trainNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("train number: %w", err)
	}
	*n = trainNumber(num.String())
	return nil
}

// Group reads and validates the sidecar of path. The merge geometry has
// already been consumed by the step that wrote the sidecar.
func (SidecarGrouper) Group(ctx context.Context, path string, _ []xlsx.MergedRegion) ([]TrainBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path + SidecarSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path+SidecarSuffix, ErrNoSidecar)
	}
	if err != nil {
		return nil, fmt.Errorf("read grouping output: %w", err)
	}

	var sf sidecarFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decode grouping output: %w", err)
	}

	blocks := make([]TrainBlock, 0, len(sf.Trains))
	for i, st := range sf.Trains {
		block, err := st.block()
		if err != nil {
			return nil, fmt.Errorf("grouping output train %d: %w", i, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func (st sidecarTrain) block() (TrainBlock, error) {
	number := strings.TrimSpace(string(st.TrainNumber))
	if _, err := strconv.Atoi(number); err != nil {
		return TrainBlock{}, fmt.Errorf("train number %q is not numeric", number)
	}
	typ, err := timetable.ParseTrainType(st.TrainType)
	if err != nil {
		return TrainBlock{}, fmt.Errorf("train %s: %w", number, err)
	}
	if len(st.Stations) == 0 {
		return TrainBlock{}, fmt.Errorf("train %s has no stations", number)
	}

	names := make([]string, len(st.Stations))
	for i, s := range st.Stations {
		names[i] = timetable.CleanStationName(s)
	}

	return TrainBlock{
		Number:       number,
		Type:         typ,
		Stops:        timetable.NewStopSequence(names...),
		RegularTimes: st.RegularTimes,
		Arrivals:     st.Arrivals,
		Departures:   st.Departures,
	}, nil
}
