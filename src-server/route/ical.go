package route

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"smallsched/src-server/ical"
	"smallsched/src-server/utils"
)

func Ical(muxer *http.ServeMux, as *utils.AppState) {
	muxer.HandleFunc("GET /calendar.ics", func(w http.ResponseWriter, r *http.Request) {
		eventModels, err := as.Events.All(r.Context())
		if err != nil {
			slog.Error("can't get events", "where", "route/ical.go", "error", err)
			writeError(w, http.StatusInternalServerError, "Can't get events")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `inline; filename="smallsched.ics"`)
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, ical.Export(eventModels, time.Now())); err != nil {
			slog.Warn("can't write to response", "where", "route/ical.go", "err", err)
		}
	})
}
