package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"trainsheet/internal/convert"
	"trainsheet/internal/storage"
	"trainsheet/internal/templates"
	"trainsheet/internal/timetable"
)

type trainSummaryJSON struct {
	Number      string `json:"trainNumber"`
	Type        string `json:"trainType"`
	Stops       int    `json:"stops"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	FileName    string `json:"fileName"`
	UpdatedAt   string `json:"updatedAt"`
}

// APITrains lists every stored train without its stops.
func (h *Handler) APITrains(w http.ResponseWriter, r *http.Request) {
	trains, err := h.db.ListTrains(r.Context())
	if err != nil {
		h.logger.Error("listing trains", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]trainSummaryJSON, 0, len(trains))
	for _, t := range trains {
		out = append(out, trainSummaryJSON{
			Number:      t.Number,
			Type:        string(t.Type),
			Stops:       t.Stops,
			Origin:      timetable.DisplayName(t.Origin),
			Destination: timetable.DisplayName(t.Destination),
			FileName:    t.FileName,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// APITrain returns one train in the same shape as a converted record file.
func (h *Handler) APITrain(w http.ResponseWriter, r *http.Request) {
	train, ok := h.loadTrain(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, convert.NewRecord([]timetable.Train{train.Train}))
}

// loadTrain fetches the {number} train, writing the error response itself
// when it cannot.
func (h *Handler) loadTrain(w http.ResponseWriter, r *http.Request) (*storage.TrainRow, bool) {
	number := r.PathValue("number")
	train, err := h.db.GetTrain(r.Context(), number)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.logger.Error("fetching train", "train", number, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return nil, false
	}
	return train, true
}

// Home serves the train list.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trains, err := h.db.ListTrains(ctx)
	if err != nil {
		h.logger.Error("listing trains", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	data := templates.TrainListData{Page: h.page("Trains", "/")}
	if run, err := h.db.LatestRun(ctx); err == nil {
		data.LastRun = run.FinishedAt
	}
	for _, t := range trains {
		data.Trains = append(data.Trains, templates.TrainItem{
			Number:      t.Number,
			Type:        string(t.Type),
			Origin:      timetable.DisplayName(t.Origin),
			Destination: timetable.DisplayName(t.Destination),
			Stops:       t.Stops,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.TrainListPage(data).Render(ctx, w); err != nil {
		h.logger.Error("rendering train list", "error", err)
	}
}

// TrainPage serves the timetable of a single train.
func (h *Handler) TrainPage(w http.ResponseWriter, r *http.Request) {
	train, ok := h.loadTrain(w, r)
	if !ok {
		return
	}

	data := templates.TrainDetailData{
		Page:     h.page(string(train.Type)+" "+train.Number, ""),
		Number:   train.Number,
		Type:     string(train.Type),
		FileName: train.FileName,
		Updated:  train.UpdatedAt,
	}
	for _, s := range train.Stops {
		item := templates.StopItem{Station: timetable.DisplayName(s.StationName)}
		if s.RegularTime != nil {
			item.Regular = s.RegularTime.String()
		}
		if s.ArrivalTime != nil {
			item.Arrival = s.ArrivalTime.String()
		}
		if s.DepartureTime != nil {
			item.Departure = s.DepartureTime.String()
		}
		data.Stops = append(data.Stops, item)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.TrainDetailPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("rendering train page", "error", err)
	}
}
