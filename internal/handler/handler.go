package handler

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"time"

	"trainsheet/internal/config"
	"trainsheet/internal/realtime"
	"trainsheet/internal/storage"
	"trainsheet/internal/templates"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	db      *storage.DB
	feeds   *realtime.Store
	cfg     *config.Config
	loc     *time.Location // service-day zone for feed dates
	logger  *slog.Logger
	version string // content hash of static assets, for cache busting
	now     func() time.Time
}

// New creates a Handler. static is the asset tree served under /static/.
func New(db *storage.DB, feeds *realtime.Store, cfg *config.Config, loc *time.Location, static fs.FS, logger *slog.Logger) *Handler {
	v := computeAssetVersion(static)
	logger.Info("asset version computed", "version", v)
	return &Handler{db: db, feeds: feeds, cfg: cfg, loc: loc, logger: logger, version: v, now: time.Now}
}

// computeAssetVersion hashes all CSS and JS files in the static tree
// to produce a short version string. Changes to any file produce a new version.
func computeAssetVersion(static fs.FS) string {
	h := md5.New()
	if static == nil {
		return fmt.Sprintf("%x", h.Sum(nil))[:8]
	}
	var paths []string
	fs.WalkDir(static, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ext := path.Ext(p); ext == ".css" || ext == ".js" {
			paths = append(paths, p)
		}
		return nil
	})
	sort.Strings(paths) // deterministic order
	for _, p := range paths {
		data, err := fs.ReadFile(static, p)
		if err != nil {
			continue
		}
		h.Write(data)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:8]
}

// page creates a templates.Page with the asset version pre-filled.
func (h *Handler) page(title, currentPath string) templates.Page {
	return templates.Page{
		Title:        title,
		CurrentPath:  currentPath,
		AssetVersion: h.version,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
