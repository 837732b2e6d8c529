package convert

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trainsheet/internal/timetable"
	"trainsheet/internal/xlsx"
)

// Options configure a Converter.
type Options struct {
	Sheet     string // schedule sheet name inside each workbook
	OutputDir string // where <name>.json records go; empty disables writing
	Workers   int    // files converted in parallel
}

// Converter runs the per-file pipeline: merge geometry, grouping, reconciliation.
type Converter struct {
	grouper  Grouper
	importer *Importer // nil disables persistence
	opts     Options
	logger   *slog.Logger
}

// NewConverter creates a Converter. importer may be nil.
func NewConverter(grouper Grouper, importer *Importer, opts Options, logger *slog.Logger) *Converter {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Converter{grouper: grouper, importer: importer, opts: opts, logger: logger}
}

// FileResult is the outcome of converting one workbook.
type FileResult struct {
	RunID   string
	File    string
	Sheet   string
	Regions []xlsx.MergedRegion
	Trains  []timetable.Train
}

// FileFailure records a workbook that could not be converted.
type FileFailure struct {
	File string
	Err  error
}

// Summary reports a batch conversion.
type Summary struct {
	RunID     string
	Files     int
	Converted int
	Trains    int
	Failures  []FileFailure
	Duration  time.Duration
}

// ConvertFile converts one workbook without writing or persisting anything.
func (c *Converter) ConvertFile(ctx context.Context, path string) (*FileResult, error) {
	regions, err := xlsx.ExtractMergedRegions(path, c.opts.Sheet)
	if err != nil {
		return nil, err
	}

	blocks, err := c.grouper.Group(ctx, path, regions)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", filepath.Base(path), err)
	}

	res := &FileResult{
		File:    path,
		Sheet:   c.opts.Sheet,
		Regions: regions,
		Trains:  make([]timetable.Train, 0, len(blocks)),
	}
	for _, b := range blocks {
		res.Trains = append(res.Trains, c.reconcile(path, b))
	}
	return res, nil
}

// reconcile fills a copy of the block's stops and logs data-quality signals.
func (c *Converter) reconcile(path string, b TrainBlock) timetable.Train {
	stops := b.Stops.Clone()
	file := filepath.Base(path)

	if n := len(stops); len(b.Arrivals) > n || (len(b.Departures) != n && len(b.Departures) != n-1) {
		c.logger.Warn("candidate counts outside expected bounds",
			"file", file,
			"train", b.Number,
			"stops", n,
			"arrivals", len(b.Arrivals),
			"departures", len(b.Departures),
		)
	}

	if len(b.RegularTimes) > 0 {
		if err := timetable.AssignRegularTimes(stops, b.RegularTimes); err != nil {
			c.logger.Warn("regular times not placed",
				"file", file,
				"train", b.Number,
				"stops", len(stops),
				"regular", len(b.RegularTimes),
				"error", err,
			)
		}
	}

	timetable.Reconcile(stops, b.Arrivals, b.Departures)

	for _, g := range stops.Gaps() {
		c.logger.Warn("stop left without time",
			"file", file,
			"train", b.Number,
			"station", g.StationName,
			"index", g.Index,
			"arrival", g.MissingArrival,
			"departure", g.MissingDeparture,
		)
	}

	return timetable.Train{Number: b.Number, Type: b.Type, Stops: stops}
}

// ConvertDir converts every workbook in dir. A failing file is recorded and
// never stops the others; only cancellation of ctx ends the batch early.
func (c *Converter) ConvertDir(ctx context.Context, dir string) (*Summary, error) {
	start := time.Now()

	files, err := ListWorkbooks(dir)
	if err != nil {
		return nil, err
	}

	sum := &Summary{RunID: uuid.NewString(), Files: len(files)}
	c.logger.Info("conversion started", "run", sum.RunID, "dir", dir, "files", len(files))

	if c.importer != nil {
		if err := c.importer.BeginRun(ctx, sum.RunID, dir); err != nil {
			return nil, err
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.opts.Workers)

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			trains, err := c.convertOne(ctx, sum.RunID, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failures = append(sum.Failures, FileFailure{File: path, Err: err})
				return nil
			}
			sum.Converted++
			sum.Trains += trains
			return nil
		})
	}
	g.Wait()

	slices.SortFunc(sum.Failures, func(a, b FileFailure) int { return strings.Compare(a.File, b.File) })
	sum.Duration = time.Since(start)

	if c.importer != nil {
		// the run row is closed even when ctx is done
		if err := c.importer.FinishRun(context.WithoutCancel(ctx), sum); err != nil {
			c.logger.Error("finish conversion run", "run", sum.RunID, "error", err)
		}
	}

	c.logger.Info("conversion finished",
		"run", sum.RunID,
		"files", sum.Files,
		"converted", sum.Converted,
		"failed", len(sum.Failures),
		"tables", sum.Trains,
		"duration", sum.Duration.Round(time.Millisecond),
	)
	return sum, ctx.Err()
}

// convertOne runs the full pipeline for a single file and returns its train count.
func (c *Converter) convertOne(ctx context.Context, runID, path string) (int, error) {
	file := filepath.Base(path)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.logger.Info("processing file", "file", file)

	res, err := c.ConvertFile(ctx, path)
	if err != nil {
		c.logger.Error("conversion failed", "file", file, "error", err)
		if c.importer != nil {
			if rerr := c.importer.RecordFailure(ctx, runID, path, c.opts.Sheet, err); rerr != nil {
				c.logger.Error("record failure", "file", file, "error", rerr)
			}
		}
		return 0, err
	}
	res.RunID = runID

	if c.opts.OutputDir != "" {
		out, err := writeRecordFile(c.opts.OutputDir, path, NewRecord(res.Trains))
		if err != nil {
			c.logger.Error("write record failed", "file", file, "error", err)
			return 0, err
		}
		c.logger.Info("record written", "file", file, "output", filepath.Base(out), "trains", len(res.Trains))
	}

	if c.importer != nil {
		if err := c.importer.SaveFile(ctx, res); err != nil {
			c.logger.Error("persist failed", "file", file, "error", err)
			return 0, err
		}
	}
	return len(res.Trains), nil
}

// ListWorkbooks returns the workbook files directly inside dir, sorted by name.
// Office lock files ("~$name.xlsx") are skipped.
func ListWorkbooks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

// sortTrains orders trains by numeric train number.
func sortTrains(trains []timetable.Train) {
	slices.SortFunc(trains, func(a, b timetable.Train) int {
		if c := cmp.Compare(len(a.Number), len(b.Number)); c != 0 {
			return c
		}
		return strings.Compare(a.Number, b.Number)
	})
}
