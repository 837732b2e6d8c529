package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"trainsheet/internal/config"
	"trainsheet/internal/handler"
	"trainsheet/internal/realtime"
	"trainsheet/internal/storage"
	"trainsheet/web"
)

// Server is the HTTP server for browsing converted timetables.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	logger *slog.Logger
	ready  chan struct{} // closed when trains are available
}

// New creates a new Server with all routes registered.
func New(cfg *config.Config, db *storage.DB, feeds *realtime.Store, loc *time.Location, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Static files, served from the embedded FS; versioned URLs get immutable caching
	staticFS, _ := fs.Sub(web.StaticFiles, "static")
	h := handler.New(db, feeds, cfg, loc, staticFS, logger)

	ready := make(chan struct{})
	// If data already exists, mark ready immediately
	if db.HasData(context.Background()) {
		close(ready)
	}

	s := &Server{mux: mux, cfg: cfg, logger: logger, ready: ready}

	fileServer := http.FileServer(http.FS(staticFS))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticCacheHandler(fileServer)))

	mux.HandleFunc("GET /healthz", h.Healthz)

	// Pages
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /files", h.FilesPage)
	mux.HandleFunc("GET /trains/{number}", h.TrainPage)

	// API
	mux.HandleFunc("GET /api/trains", h.APITrains)
	mux.HandleFunc("GET /api/trains/{number}", h.APITrain)
	mux.HandleFunc("GET /api/files", h.APIFiles)
	mux.HandleFunc("GET /api/files/{id}/regions", h.APIFileRegions)

	// Feed
	mux.HandleFunc("GET /gtfs-rt", h.GTFSRealtime)

	return s
}

// SetReady signals that converted trains are available.
func (s *Server) SetReady() {
	select {
	case <-s.ready:
		// already closed
	default:
		close(s.ready)
	}
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger, s.cfg.CORSOrigins, s.ready)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
