package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trainsheet/internal/config"
	"trainsheet/internal/convert"
	"trainsheet/internal/realtime"
	"trainsheet/internal/server"
	"trainsheet/internal/storage"
	"trainsheet/internal/xlsx"
)

func main() {
	cfg := config.Load()

	// CLI flags
	serve := flag.Bool("serve", false, "Convert on startup, then serve the web UI, API and GTFS-RT feed")
	syncOnly := flag.Bool("sync", false, "Check the source bundle, convert it if changed, then exit")
	gtfsOut := flag.String("gtfsrt", "", "Write the stored trains as a GTFS-realtime feed to this file, then exit")
	serviceDate := flag.String("service-date", "", "Service date (YYYY-MM-DD) for -gtfsrt, default today")
	inspect := flag.String("inspect", "", "Print a summary of a GTFS-realtime feed file, then exit")
	merges := flag.String("merges", "", "Print the merged regions of the schedule sheet in this workbook, then exit")
	sheets := flag.String("sheets", "", "Print the sheet names of this workbook, then exit")
	flag.StringVar(&cfg.InputDir, "input-dir", cfg.InputDir, "Directory of workbooks to convert")
	flag.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory for converted JSON records")
	flag.BoolVar(&cfg.WriteJSON, "json", cfg.WriteJSON, "Write a JSON record per workbook")
	flag.StringVar(&cfg.Sheet, "sheet", cfg.Sheet, "Schedule sheet name inside each workbook")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Workbooks converted in parallel")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// Commands that only read a single file need no database.
	switch {
	case *inspect != "":
		exitOn(logger, "inspect feed", inspectFeed(*inspect))
		return
	case *sheets != "":
		exitOn(logger, "list sheets", printSheets(*sheets))
		return
	case *merges != "":
		exitOn(logger, "extract merged regions", printMerges(*merges, cfg.Sheet))
		return
	}

	// Cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	loc := convert.LoadLocation(cfg.Timezone)

	if *gtfsOut != "" {
		exitOn(logger, "write feed", writeFeed(ctx, db, *gtfsOut, *serviceDate, loc))
		return
	}

	opts := convert.Options{Sheet: cfg.Sheet, Workers: cfg.Workers}
	if cfg.WriteJSON {
		opts.OutputDir = cfg.OutputDir
	}
	converter := convert.NewConverter(convert.SidecarGrouper{}, convert.NewImporter(db, logger), opts, logger)

	var downloader *convert.Downloader
	if cfg.SourceURL != "" {
		downloader = convert.NewDownloader(cfg.SourceURL, os.TempDir(), logger)
	}
	scheduler := convert.NewScheduler(downloader, converter, db, cfg.InputDir, loc, logger)

	switch {
	case *syncOnly:
		if downloader == nil {
			logger.Error("-sync needs TRAINSHEET_SOURCE_URL")
			os.Exit(1)
		}
		scheduler.OnConverted(printSummary)
		exitOn(logger, "sync", scheduler.CheckAndUpdate(ctx))
	case *serve:
		runServer(ctx, cfg, db, scheduler, loc, logger)
	default:
		sum, err := converter.ConvertDir(ctx, cfg.InputDir)
		if sum != nil {
			printSummary(sum)
		}
		exitOn(logger, "conversion", err)
		if sum.Files > 0 && sum.Converted == 0 {
			os.Exit(1)
		}
	}
}

func runServer(ctx context.Context, cfg *config.Config, db *storage.DB, scheduler *convert.Scheduler, loc *time.Location, logger *slog.Logger) {
	feeds := realtime.NewStore()
	srv := server.New(cfg, db, feeds, loc, logger)

	scheduler.OnConverted(func(sum *convert.Summary) {
		feeds.Reset()
		if sum.Trains > 0 {
			srv.SetReady()
		}
	})

	// Initial conversion runs behind the loading page
	go func() {
		if err := scheduler.EnsureData(ctx); err != nil {
			logger.Error("initial conversion failed", "error", err)
		}
		// Check for updates on first start today
		if err := scheduler.CheckAndUpdate(ctx); err != nil {
			logger.Error("daily bundle check failed", "error", err)
		}
	}()
	go scheduler.StartBackground(ctx)

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func printSummary(sum *convert.Summary) {
	fmt.Printf("Run %s: %d/%d files converted in %s\n",
		sum.RunID, sum.Converted, sum.Files, sum.Duration.Round(time.Millisecond))
	fmt.Printf("Number of parsed tables: %d\n", sum.Trains)
	for _, f := range sum.Failures {
		fmt.Printf("  failed %s: %v\n", filepath.Base(f.File), f.Err)
	}
}

func writeFeed(ctx context.Context, db *storage.DB, out, date string, loc *time.Location) error {
	day := time.Now().In(loc)
	if date != "" {
		var err error
		if day, err = time.ParseInLocation(time.DateOnly, date, loc); err != nil {
			return fmt.Errorf("service date: %w", err)
		}
	}
	trains, err := db.AllTrains(ctx)
	if err != nil {
		return err
	}
	data, err := realtime.Encode(realtime.BuildFeed(trains, day, time.Now()))
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Wrote %d trains for %s to %s\n", len(trains), day.Format(time.DateOnly), out)
	return nil
}

func inspectFeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	feed, err := realtime.Decode(data)
	if err != nil {
		return err
	}
	for _, line := range realtime.Describe(feed) {
		fmt.Println(line)
	}
	return nil
}

func printSheets(path string) error {
	names, err := xlsx.SheetNames(path)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func printMerges(path, sheet string) error {
	regions, err := xlsx.ExtractMergedRegions(path, sheet)
	if err != nil {
		var nf *xlsx.NotFoundError
		if errors.As(err, &nf) {
			if names, nerr := xlsx.SheetNames(path); nerr == nil {
				return fmt.Errorf("%w (sheets: %v)", err, names)
			}
		}
		return err
	}
	for _, m := range regions {
		fmt.Printf("%s\trows %d-%d\tcols %d-%d\n", m, m.FirstRow, m.LastRow, m.FirstCol, m.LastCol)
	}
	fmt.Printf("Number of merged regions: %d\n", len(regions))
	return nil
}

func exitOn(logger *slog.Logger, what string, err error) {
	if err == nil {
		return
	}
	logger.Error(what+" failed", "error", err)
	os.Exit(1)
}
