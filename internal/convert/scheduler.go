package convert

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"trainsheet/internal/storage"
)

// Scheduler keeps the converted timetables current.
type Scheduler struct {
	downloader *Downloader // nil when there is no remote bundle
	converter  *Converter
	db         *storage.DB
	inputDir   string
	loc        *time.Location
	logger     *slog.Logger

	mu            sync.Mutex
	lastCheckDate string // YYYY-MM-DD of last check, prevents multiple checks per day
	onConverted   []func(*Summary)
}

// NewScheduler creates a Scheduler. downloader may be nil, in which case
// only the local input directory is converted.
func NewScheduler(downloader *Downloader, converter *Converter, db *storage.DB, inputDir string, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		downloader: downloader,
		converter:  converter,
		db:         db,
		inputDir:   inputDir,
		loc:        loc,
		logger:     logger,
	}
}

// OnConverted registers a callback run after every completed conversion.
func (s *Scheduler) OnConverted(fn func(*Summary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConverted = append(s.onConverted, fn)
}

// EnsureData converts the timetables if the database is empty.
// Called on startup.
func (s *Scheduler) EnsureData(ctx context.Context) error {
	if s.db.HasData(ctx) {
		s.logger.Info("converted timetables already present")
		return nil
	}
	s.logger.Info("no converted timetables found, performing initial conversion")
	return s.update(ctx)
}

// CheckAndUpdate checks if the bundle has been updated and converts it if so.
// Only checks once per calendar day.
func (s *Scheduler) CheckAndUpdate(ctx context.Context) error {
	s.mu.Lock()
	today := time.Now().In(s.loc).Format("2006-01-02")
	if s.lastCheckDate == today {
		s.mu.Unlock()
		return nil
	}
	s.lastCheckDate = today
	s.mu.Unlock()

	if s.downloader == nil {
		return nil
	}

	lastModified, _ := s.db.GetMetadata(ctx, "last_modified")
	etag, _ := s.db.GetMetadata(ctx, "etag")

	result, err := s.downloader.Check(ctx, lastModified, etag)
	if err != nil {
		return err
	}
	if !result.NeedsUpdate {
		return nil
	}

	return s.update(ctx)
}

// StartBackground starts the 3 AM daily check goroutine.
// It blocks until the context is cancelled.
func (s *Scheduler) StartBackground(ctx context.Context) {
	s.logger.Info("conversion scheduler started")

	for {
		next := next3AM(time.Now(), s.loc)
		s.logger.Info("next bundle check scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			if err := s.CheckAndUpdate(ctx); err != nil {
				s.logger.Error("background conversion failed", "error", err)
			}
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("conversion scheduler stopped")
			return
		}
	}
}

// update downloads the bundle when one is configured, then converts the input directory.
func (s *Scheduler) update(ctx context.Context) error {
	var lastModified, etag string
	if s.downloader != nil {
		zipPath, lm, et, err := s.downloader.Download(ctx)
		if err != nil {
			return err
		}
		defer os.Remove(zipPath)

		if _, err := Unpack(zipPath, s.inputDir, s.logger); err != nil {
			return err
		}
		lastModified, etag = lm, et
	}

	sum, err := s.converter.ConvertDir(ctx, s.inputDir)
	if err != nil {
		return err
	}

	if lastModified != "" {
		if err := s.db.SetMetadata(ctx, "last_modified", lastModified); err != nil {
			s.logger.Error("store last_modified", "error", err)
		}
	}
	if etag != "" {
		if err := s.db.SetMetadata(ctx, "etag", etag); err != nil {
			s.logger.Error("store etag", "error", err)
		}
	}

	s.mu.Lock()
	hooks := append([]func(*Summary){}, s.onConverted...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(sum)
	}
	return nil
}

// next3AM returns the next 3:00 AM in loc after now.
func next3AM(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// LoadLocation resolves a timezone name, falling back to a fixed
// Central European offset when the zone database is unavailable.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.FixedZone("CET", 1*60*60)
	}
	return loc
}
