package convert

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"trainsheet/internal/timetable"
)

// Record is the nested document the schedule tooling reads:
// {"trains":{"<number>":{"trainType":T,"schedule":[...]}}}.
type Record struct {
	Trains map[string]TrainRecord `json:"trains"`
}

// TrainRecord is one train inside a Record.
type TrainRecord struct {
	TrainType timetable.TrainType `json:"trainType"`
	Schedule  []StopRecord        `json:"schedule"`
}

// StopRecord is one schedule row. Missing times encode as null.
type StopRecord struct {
	StationName   string                 `json:"stationName"`
	ArrivalTime   *timetable.TimeOfDay   `json:"arrivalTime"`
	DepartureTime *timetable.TimeOfDay   `json:"departureTime"`
	RegularTime   *timetable.RegularTime `json:"regularTime,omitempty"`
}

// NewRecord builds the document for a set of trains. A later train with the
// same number replaces an earlier one.
func NewRecord(trains []timetable.Train) Record {
	rec := Record{Trains: make(map[string]TrainRecord, len(trains))}
	for _, t := range trains {
		schedule := make([]StopRecord, len(t.Stops))
		for i, s := range t.Stops {
			schedule[i] = StopRecord{
				StationName:   timetable.CleanStationName(s.StationName),
				ArrivalTime:   s.ArrivalTime,
				DepartureTime: s.DepartureTime,
				RegularTime:   s.RegularTime,
			}
		}
		rec.Trains[t.Number] = TrainRecord{TrainType: t.Type, Schedule: schedule}
	}
	return rec
}

// TrainList converts the document back into trains ordered by number.
func (r Record) TrainList() []timetable.Train {
	out := make([]timetable.Train, 0, len(r.Trains))
	for number, tr := range r.Trains {
		stops := make(timetable.StopSequence, len(tr.Schedule))
		for i, s := range tr.Schedule {
			stops[i] = timetable.StationStop{
				StationName:   s.StationName,
				ArrivalTime:   s.ArrivalTime,
				DepartureTime: s.DepartureTime,
				RegularTime:   s.RegularTime,
			}
		}
		out = append(out, timetable.Train{Number: number, Type: tr.TrainType, Stops: stops})
	}
	sortTrains(out)
	return out
}

// WriteRecord encodes the record as indented JSON.
func WriteRecord(w io.Writer, rec Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// ReadRecord decodes a record written by WriteRecord or by older tooling.
func ReadRecord(r io.Reader) (Record, error) {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// OutputName maps a workbook file name to its record file name.
func OutputName(workbook string) string {
	base := filepath.Base(workbook)
	ext := filepath.Ext(base)
	if strings.EqualFold(ext, ".xlsx") {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".json"
}

// writeRecordFile writes the record atomically into dir.
func writeRecordFile(dir, workbook string, rec Record) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".record-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteRecord(tmp, rec); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out := filepath.Join(dir, OutputName(workbook))
	if err := os.Rename(tmp.Name(), out); err != nil {
		return "", fmt.Errorf("rename record: %w", err)
	}
	return out, nil
}
