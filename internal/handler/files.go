package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"trainsheet/internal/templates"
)

const (
	defaultFileLimit = 50
	maxFileLimit     = 500
)

type fileJSON struct {
	ID          int64  `json:"id"`
	RunID       string `json:"runId"`
	FileName    string `json:"fileName"`
	Sheet       string `json:"sheet"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Trains      int    `json:"trains"`
	Regions     int    `json:"regions"`
	ConvertedAt string `json:"convertedAt"`
}

type regionJSON struct {
	Range    string `json:"range"`
	FirstRow int    `json:"firstRow"`
	LastRow  int    `json:"lastRow"`
	FirstCol int    `json:"firstCol"`
	LastCol  int    `json:"lastCol"`
}

// fileLimit reads ?limit=, clamped to [1, maxFileLimit].
func fileLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultFileLimit
	}
	return min(n, maxFileLimit)
}

// APIFiles returns recent per-workbook conversion outcomes, newest first.
func (h *Handler) APIFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.db.ListConversionFiles(r.Context(), fileLimit(r))
	if err != nil {
		h.logger.Error("listing conversion files", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]fileJSON, 0, len(files))
	for _, f := range files {
		out = append(out, fileJSON{
			ID:          f.ID,
			RunID:       f.RunID,
			FileName:    f.FileName,
			Sheet:       f.Sheet,
			Status:      f.Status,
			Error:       f.Error,
			Trains:      f.Trains,
			Regions:     f.Regions,
			ConvertedAt: f.ConvertedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// APIFileRegions returns the merged regions stored for one converted file.
func (h *Handler) APIFileRegions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	regions, err := h.db.MergedRegionsForFile(r.Context(), id)
	if err != nil {
		h.logger.Error("loading merged regions", "file", id, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]regionJSON, 0, len(regions))
	for _, m := range regions {
		out = append(out, regionJSON{
			Range:    m.String(),
			FirstRow: m.FirstRow,
			LastRow:  m.LastRow,
			FirstCol: m.FirstCol,
			LastCol:  m.LastCol,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// FilesPage serves the conversion history.
func (h *Handler) FilesPage(w http.ResponseWriter, r *http.Request) {
	files, err := h.db.ListConversionFiles(r.Context(), fileLimit(r))
	if err != nil {
		h.logger.Error("listing conversion files", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	data := templates.FilesData{Page: h.page("Files", "/files")}
	for _, f := range files {
		data.Files = append(data.Files, templates.FileItem{
			FileName:    f.FileName,
			Status:      f.Status,
			Error:       f.Error,
			Trains:      f.Trains,
			Regions:     f.Regions,
			ConvertedAt: f.ConvertedAt,
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.FilesPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("rendering files page", "error", err)
	}
}

type healthJSON struct {
	Status  string `json:"status"`
	HasData bool   `json:"hasData"`
	LastRun string `json:"lastRun,omitempty"`
	Feeds   int    `json:"cachedFeeds"`
}

// Healthz reports liveness and whether any trains are stored.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthJSON{Status: "ok", HasData: h.db.HasData(ctx), Feeds: h.feeds.Len()}
	run, err := h.db.LatestRun(ctx)
	switch {
	case err == nil:
		resp.LastRun = run.FinishedAt
	case !errors.Is(err, sql.ErrNoRows):
		h.logger.Warn("reading latest run", "error", err)
	}
	h.writeJSON(w, http.StatusOK, resp)
}
