package storage

import (
	"context"
	"database/sql"
	"fmt"

	"trainsheet/internal/timetable"
	"trainsheet/internal/xlsx"
)

// GetMetadata retrieves a value from the feed_metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM feed_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMetadata stores a key-value pair in the feed_metadata table.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES (?, ?)`,
		key, value)
	return err
}

// HasData returns true if at least one train has been converted.
func (db *DB) HasData(ctx context.Context) bool {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trains`).Scan(&count)
	return err == nil && count > 0
}

// TrainSummary is a train listed without its stops.
type TrainSummary struct {
	Number      string
	Type        timetable.TrainType
	Stops       int
	Origin      string
	Destination string
	FileName    string
	UpdatedAt   string
}

// ListTrains returns every stored train ordered by number.
func (db *DB) ListTrains(ctx context.Context) ([]TrainSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.train_number, t.train_type, f.file_name, t.updated_at,
		       (SELECT COUNT(*) FROM station_stops s WHERE s.train_number = t.train_number),
		       COALESCE((SELECT s.station_name FROM station_stops s
		                 WHERE s.train_number = t.train_number
		                 ORDER BY s.stop_sequence ASC LIMIT 1), ''),
		       COALESCE((SELECT s.station_name FROM station_stops s
		                 WHERE s.train_number = t.train_number
		                 ORDER BY s.stop_sequence DESC LIMIT 1), '')
		FROM trains t
		JOIN conversion_files f ON f.id = t.file_id
		ORDER BY LENGTH(t.train_number), t.train_number`)
	if err != nil {
		return nil, fmt.Errorf("list trains query: %w", err)
	}
	defer rows.Close()

	var trains []TrainSummary
	for rows.Next() {
		var t TrainSummary
		if err := rows.Scan(&t.Number, &t.Type, &t.FileName, &t.UpdatedAt,
			&t.Stops, &t.Origin, &t.Destination); err != nil {
			return nil, fmt.Errorf("scan train: %w", err)
		}
		trains = append(trains, t)
	}
	return trains, rows.Err()
}

// TrainRow is a stored train with its stops.
type TrainRow struct {
	timetable.Train
	FileName  string
	UpdatedAt string
}

// GetTrain loads one train. Returns sql.ErrNoRows if the number is unknown.
func (db *DB) GetTrain(ctx context.Context, number string) (*TrainRow, error) {
	t := &TrainRow{}
	err := db.QueryRowContext(ctx, `
		SELECT t.train_number, t.train_type, f.file_name, t.updated_at
		FROM trains t
		JOIN conversion_files f ON f.id = t.file_id
		WHERE t.train_number = ?`, number).Scan(&t.Number, &t.Type, &t.FileName, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	stops, err := db.stopsFor(ctx, number)
	if err != nil {
		return nil, err
	}
	t.Stops = stops
	return t, nil
}

// AllTrains loads every train with its stops, ordered by number.
func (db *DB) AllTrains(ctx context.Context) ([]timetable.Train, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.train_number, t.train_type, s.station_name,
		       s.regular_minutes, s.regular_after30, s.arrival_time, s.departure_time
		FROM trains t
		JOIN station_stops s ON s.train_number = t.train_number
		ORDER BY LENGTH(t.train_number), t.train_number, s.stop_sequence`)
	if err != nil {
		return nil, fmt.Errorf("all trains query: %w", err)
	}
	defer rows.Close()

	var trains []timetable.Train
	for rows.Next() {
		var (
			number string
			typ    timetable.TrainType
			sr     stopRow
		)
		if err := rows.Scan(&number, &typ, &sr.name, &sr.regularMinutes, &sr.regularAfter30,
			&sr.arrival, &sr.departure); err != nil {
			return nil, fmt.Errorf("scan train stop: %w", err)
		}
		stop, err := sr.decode()
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", number, err)
		}
		if n := len(trains); n == 0 || trains[n-1].Number != number {
			trains = append(trains, timetable.Train{Number: number, Type: typ})
		}
		last := &trains[len(trains)-1]
		last.Stops = append(last.Stops, stop)
	}
	return trains, rows.Err()
}

func (db *DB) stopsFor(ctx context.Context, number string) (timetable.StopSequence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT station_name, regular_minutes, regular_after30, arrival_time, departure_time
		FROM station_stops
		WHERE train_number = ?
		ORDER BY stop_sequence`, number)
	if err != nil {
		return nil, fmt.Errorf("stops query: %w", err)
	}
	defer rows.Close()

	stops := timetable.StopSequence{}
	for rows.Next() {
		var sr stopRow
		if err := rows.Scan(&sr.name, &sr.regularMinutes, &sr.regularAfter30,
			&sr.arrival, &sr.departure); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stop, err := sr.decode()
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", number, err)
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

type stopRow struct {
	name           string
	regularMinutes sql.NullInt64
	regularAfter30 sql.NullBool
	arrival        sql.NullString
	departure      sql.NullString
}

func (sr stopRow) decode() (timetable.StationStop, error) {
	stop := timetable.StationStop{StationName: sr.name}
	if sr.regularMinutes.Valid {
		stop.RegularTime = &timetable.RegularTime{
			Minute:         int(sr.regularMinutes.Int64),
			After30Seconds: sr.regularAfter30.Bool,
		}
	}
	if sr.arrival.Valid {
		t, err := timetable.ParseClock(sr.arrival.String)
		if err != nil {
			return stop, fmt.Errorf("stop %s arrival: %w", sr.name, err)
		}
		stop.ArrivalTime = &t
	}
	if sr.departure.Valid {
		t, err := timetable.ParseClock(sr.departure.String)
		if err != nil {
			return stop, fmt.Errorf("stop %s departure: %w", sr.name, err)
		}
		stop.DepartureTime = &t
	}
	return stop, nil
}

// EncodeStop returns the column values stored for a stop's optional slots.
func EncodeStop(stop timetable.StationStop) (regularMinutes, regularAfter30, arrival, departure any) {
	if stop.RegularTime != nil {
		regularMinutes = stop.RegularTime.Minute
		regularAfter30 = stop.RegularTime.After30Seconds
	}
	if stop.ArrivalTime != nil {
		arrival = stop.ArrivalTime.String()
	}
	if stop.DepartureTime != nil {
		departure = stop.DepartureTime.String()
	}
	return
}

// ConversionFileRow is one workbook outcome in the conversion log.
type ConversionFileRow struct {
	ID          int64
	RunID       string
	FileName    string
	Sheet       string
	Status      string
	Error       string
	Trains      int
	Regions     int
	ConvertedAt string
}

// ListConversionFiles returns the most recent file outcomes first.
func (db *DB) ListConversionFiles(ctx context.Context, limit int) ([]ConversionFileRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT f.id, f.run_id, f.file_name, f.sheet, f.status, f.error, f.trains,
		       (SELECT COUNT(*) FROM merged_regions m WHERE m.file_id = f.id),
		       f.converted_at
		FROM conversion_files f
		ORDER BY f.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("conversion files query: %w", err)
	}
	defer rows.Close()

	var files []ConversionFileRow
	for rows.Next() {
		var f ConversionFileRow
		if err := rows.Scan(&f.ID, &f.RunID, &f.FileName, &f.Sheet, &f.Status, &f.Error,
			&f.Trains, &f.Regions, &f.ConvertedAt); err != nil {
			return nil, fmt.Errorf("scan conversion file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// MergedRegionsForFile returns the stored merge geometry of a converted file in sheet order.
func (db *DB) MergedRegionsForFile(ctx context.Context, fileID int64) ([]xlsx.MergedRegion, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT first_row, last_row, first_col, last_col
		FROM merged_regions
		WHERE file_id = ?
		ORDER BY seq`, fileID)
	if err != nil {
		return nil, fmt.Errorf("merged regions query: %w", err)
	}
	defer rows.Close()

	regions := []xlsx.MergedRegion{}
	for rows.Next() {
		var m xlsx.MergedRegion
		if err := rows.Scan(&m.FirstRow, &m.LastRow, &m.FirstCol, &m.LastCol); err != nil {
			return nil, fmt.Errorf("scan merged region: %w", err)
		}
		regions = append(regions, m)
	}
	return regions, rows.Err()
}

// RunRow summarizes one batch conversion.
type RunRow struct {
	RunID      string
	InputDir   string
	StartedAt  string
	FinishedAt string
	Files      int
	Failed     int
	Trains     int
}

// LatestRun returns the most recently started run, or sql.ErrNoRows.
func (db *DB) LatestRun(ctx context.Context) (*RunRow, error) {
	r := &RunRow{}
	var finished sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT run_id, input_dir, started_at, finished_at, files, failed, trains
		FROM conversion_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1`).Scan(&r.RunID, &r.InputDir, &r.StartedAt, &finished, &r.Files, &r.Failed, &r.Trains)
	if err != nil {
		return nil, err
	}
	r.FinishedAt = finished.String
	return r, nil
}
