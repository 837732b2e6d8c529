package convert

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"trainsheet/internal/storage"
	"trainsheet/internal/timetable"
	"trainsheet/internal/xlsx"
)

// Importer loads conversion results into SQLite.
type Importer struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(db *storage.DB, logger *slog.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// BeginRun opens the run row that file outcomes hang off.
func (imp *Importer) BeginRun(ctx context.Context, runID, inputDir string) error {
	if _, err := imp.db.ExecContext(ctx,
		`INSERT INTO conversion_runs (run_id, input_dir, started_at) VALUES (?, ?, ?)`,
		runID, inputDir, timestamp()); err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stores the run totals.
func (imp *Importer) FinishRun(ctx context.Context, sum *Summary) error {
	if _, err := imp.db.ExecContext(ctx,
		`UPDATE conversion_runs SET finished_at = ?, files = ?, failed = ?, trains = ? WHERE run_id = ?`,
		timestamp(), sum.Files, len(sum.Failures), sum.Trains, sum.RunID); err != nil {
		return fmt.Errorf("finish run %s: %w", sum.RunID, err)
	}
	return nil
}

// RecordFailure logs a file that could not be converted.
func (imp *Importer) RecordFailure(ctx context.Context, runID, path, sheet string, cause error) error {
	if _, err := imp.db.ExecContext(ctx,
		`INSERT INTO conversion_files (run_id, file_name, sheet, status, error, converted_at)
		 VALUES (?, ?, ?, 'failed', ?, ?)`,
		runID, filepath.Base(path), sheet, cause.Error(), timestamp()); err != nil {
		return fmt.Errorf("record failure of %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveFile stores one converted workbook: its log row, merge geometry and
// trains. A train converted again replaces its earlier stops.
// The entire operation runs in a single transaction.
func (imp *Importer) SaveFile(ctx context.Context, res *FileResult) error {
	start := time.Now()
	file := filepath.Base(res.File)

	tx, err := imp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := timestamp()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO conversion_files (run_id, file_name, sheet, status, trains, converted_at)
		 VALUES (?, ?, ?, 'ok', ?, ?)`,
		res.RunID, file, res.Sheet, len(res.Trains), now)
	if err != nil {
		return fmt.Errorf("insert conversion file %s: %w", file, err)
	}
	fileID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("conversion file id: %w", err)
	}

	if err := imp.importRegions(ctx, tx, fileID, res.Regions); err != nil {
		return err
	}
	if err := imp.importTrains(ctx, tx, fileID, now, res.Trains); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES ('converted_at', ?)`, now); err != nil {
		return fmt.Errorf("set converted_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	imp.logger.Info("conversion stored",
		"file", file,
		"duration", time.Since(start).Round(time.Millisecond),
		"regions", len(res.Regions),
		"trains", len(res.Trains),
	)
	return nil
}

func (imp *Importer) importRegions(ctx context.Context, tx *sql.Tx, fileID int64, regions []xlsx.MergedRegion) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO merged_regions (file_id, seq, first_row, last_row, first_col, last_col)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare merged_regions: %w", err)
	}
	defer stmt.Close()

	for i, m := range regions {
		if _, err := stmt.ExecContext(ctx, fileID, i, m.FirstRow, m.LastRow, m.FirstCol, m.LastCol); err != nil {
			return fmt.Errorf("insert merged region %s: %w", m, err)
		}
	}
	return nil
}

func (imp *Importer) importTrains(ctx context.Context, tx *sql.Tx, fileID int64, now string, trains []timetable.Train) error {
	upsert, err := tx.PrepareContext(ctx,
		`INSERT INTO trains (train_number, train_type, file_id, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(train_number) DO UPDATE SET
		   train_type = excluded.train_type,
		   file_id = excluded.file_id,
		   updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare trains: %w", err)
	}
	defer upsert.Close()

	clearStops, err := tx.PrepareContext(ctx, `DELETE FROM station_stops WHERE train_number = ?`)
	if err != nil {
		return fmt.Errorf("prepare stop cleanup: %w", err)
	}
	defer clearStops.Close()

	insertStop, err := tx.PrepareContext(ctx,
		`INSERT INTO station_stops (train_number, stop_sequence, station_name,
		 regular_minutes, regular_after30, arrival_time, departure_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare station_stops: %w", err)
	}
	defer insertStop.Close()

	for _, t := range trains {
		if _, err := upsert.ExecContext(ctx, t.Number, string(t.Type), fileID, now); err != nil {
			return fmt.Errorf("upsert train %s: %w", t.Number, err)
		}
		if _, err := clearStops.ExecContext(ctx, t.Number); err != nil {
			return fmt.Errorf("clear stops of train %s: %w", t.Number, err)
		}
		for i, s := range t.Stops {
			rm, ra, arr, dep := storage.EncodeStop(s)
			if _, err := insertStop.ExecContext(ctx, t.Number, i, timetable.CleanStationName(s.StationName),
				rm, ra, arr, dep); err != nil {
				return fmt.Errorf("insert stop %d of train %s: %w", i, t.Number, err)
			}
		}
	}
	return nil
}
