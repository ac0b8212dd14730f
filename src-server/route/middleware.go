package route

import (
	"log/slog"
	"net/http"
	"time"

	"smallsched/src-server/utils"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LogMiddleware logs every request and turns panics into a 500.
func LogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTimer := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				slog.Error("handler panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
				rec.WriteHeader(http.StatusInternalServerError)
			}
			slog.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(startTimer))
		}()
		next.ServeHTTP(rec, r)
	})
}

// Handler mounts every API route. /metrics is left to the caller since it
// depends on which registry is in use.
func Handler(muxer *http.ServeMux, as *utils.AppState) http.Handler {
	Events(muxer, as)
	Explore(muxer, as)
	Ical(muxer, as)
	return LogMiddleware(muxer)
}
