package route

import (
	"log/slog"
	"net/http"
	"time"

	"smallsched/src-server/feed"
	"smallsched/src-server/utils"

	"github.com/google/uuid"
)

func Explore(muxer *http.ServeMux, as *utils.AppState) {
	// suggested events from the feed, recent ones only
	muxer.HandleFunc("GET /explore", func(w http.ResponseWriter, r *http.Request) {
		events, err := as.Catalog.Events(r.Context())
		if err != nil {
			slog.Warn("can't load feed", "where", "route/explore.go", "error", err)
			writeError(w, http.StatusBadGateway, "Can't load suggested events")
			return
		}
		events = feed.FilterByDateRange(events, time.Now())
		events = feed.FilterByTag(events, r.URL.Query().Get("tag"))
		writeJSON(w, http.StatusOK, events)
	})

	muxer.HandleFunc("GET /explore/tags", func(w http.ResponseWriter, r *http.Request) {
		events, err := as.Catalog.Events(r.Context())
		if err != nil {
			slog.Warn("can't load feed", "where", "route/explore.go", "error", err)
			writeError(w, http.StatusBadGateway, "Can't load suggested events")
			return
		}
		writeJSON(w, http.StatusOK, append([]string{"All"}, feed.Tags(events)...))
	})

	// add a suggestion to the user's events
	muxer.HandleFunc("POST /explore/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Please provide a suggestion ID")
			return
		}
		suggestion, ok, err := as.Catalog.Find(r.Context(), id)
		switch {
		case err != nil:
			slog.Warn("can't load feed", "where", "route/explore.go", "error", err)
			writeError(w, http.StatusBadGateway, "Can't load suggested events")
			return
		case !ok:
			writeError(w, http.StatusNotFound, "Suggestion not found")
			return
		}

		newEvent := suggestion.ToEvent()
		if err := as.Events.Insert(r.Context(), &newEvent); err != nil {
			slog.Error("can't add suggestion", "where", "route/explore.go", "error", err)
			writeError(w, http.StatusInternalServerError, "Can't create event")
			return
		}
		writeJSON(w, http.StatusCreated, toRespBody(newEvent, time.Time{}))
	})
}
