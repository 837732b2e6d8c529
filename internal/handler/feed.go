package handler

import (
	"net/http"
	"strings"
	"time"

	"trainsheet/internal/realtime"
)

// GTFSRealtime serves every stored train laid out on ?date=YYYY-MM-DD
// (today in the service zone by default) as a protobuf FeedMessage.
// ?format=text returns a one-line-per-trip summary instead.
// Encoded feeds are cached per date until the next conversion run; a feed
// whose trains were loaded before that run finished is served but not cached.
func (h *Handler) GTFSRealtime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().In(h.loc).Format(time.DateOnly)
	}
	serviceDate, err := time.ParseInLocation(time.DateOnly, date, h.loc)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	data, ok := h.feeds.Get(date)
	if !ok {
		gen := h.feeds.Generation()
		trains, err := h.db.AllTrains(ctx)
		if err != nil {
			h.logger.Error("loading trains for feed", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		data, err = realtime.Encode(realtime.BuildFeed(trains, serviceDate, h.now()))
		if err != nil {
			h.logger.Error("encoding feed", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		cached := h.feeds.Set(date, data, gen)
		h.logger.Debug("feed built", "date", date, "trains", len(trains), "bytes", len(data), "cached", cached)
	}

	if r.URL.Query().Get("format") == "text" {
		feed, err := realtime.Decode(data)
		if err != nil {
			h.logger.Error("decoding cached feed", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(strings.Join(realtime.Describe(feed), "\n") + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}
