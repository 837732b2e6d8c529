package storage

import "fmt"

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("database migrations applied")
	return nil
}

var migrations = []string{
	// One batch conversion over an input directory
	`CREATE TABLE IF NOT EXISTS conversion_runs (
		run_id      TEXT PRIMARY KEY,
		input_dir   TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		files       INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		trains      INTEGER NOT NULL DEFAULT 0
	)`,

	// Outcome of each workbook in a run
	`CREATE TABLE IF NOT EXISTS conversion_files (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id       TEXT NOT NULL REFERENCES conversion_runs(run_id),
		file_name    TEXT NOT NULL,
		sheet        TEXT NOT NULL,
		status       TEXT NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		trains       INTEGER NOT NULL DEFAULT 0,
		converted_at TEXT NOT NULL
	)`,

	// Merge geometry extracted from a converted file
	`CREATE TABLE IF NOT EXISTS merged_regions (
		file_id   INTEGER NOT NULL REFERENCES conversion_files(id) ON DELETE CASCADE,
		seq       INTEGER NOT NULL,
		first_row INTEGER NOT NULL,
		last_row  INTEGER NOT NULL,
		first_col INTEGER NOT NULL,
		last_col  INTEGER NOT NULL,
		PRIMARY KEY (file_id, seq)
	)`,

	// Latest reconciled version of each train
	`CREATE TABLE IF NOT EXISTS trains (
		train_number TEXT PRIMARY KEY,
		train_type   TEXT NOT NULL,
		file_id      INTEGER NOT NULL REFERENCES conversion_files(id),
		updated_at   TEXT NOT NULL
	)`,

	// Stops; times are "HH:MM" or "HH:MM:30", NULL when absent
	`CREATE TABLE IF NOT EXISTS station_stops (
		train_number    TEXT NOT NULL REFERENCES trains(train_number) ON DELETE CASCADE,
		stop_sequence   INTEGER NOT NULL,
		station_name    TEXT NOT NULL,
		regular_minutes INTEGER,
		regular_after30 INTEGER,
		arrival_time    TEXT,
		departure_time  TEXT,
		PRIMARY KEY (train_number, stop_sequence)
	)`,

	// Feed metadata (last_modified, etag, converted_at, etc.)
	`CREATE TABLE IF NOT EXISTS feed_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_conversion_files_run ON conversion_files(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trains_file ON trains(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_station_stops_station ON station_stops(station_name)`,
}
