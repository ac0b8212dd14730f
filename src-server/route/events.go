package route

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"smallsched/src-server/model"
	"smallsched/src-server/recurrence"
	"smallsched/src-server/service"
	"smallsched/src-server/utils"
)

type OneEventRespBody struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	StartDate   string          `json:"start_date"`
	Frequency   model.Frequency `json:"frequency"`
	Occurrences int             `json:"occurrences"`
	// position of the requested date in the series, 1-based; 0 when not asked for a date
	Occurrence int `json:"occurrence,omitempty"`
}

func toRespBody(e model.Event, day time.Time) OneEventRespBody {
	body := OneEventRespBody{
		ID:          e.ID,
		Name:        e.Name,
		StartDate:   e.StartDate.Format(time.DateOnly),
		Frequency:   e.Frequency,
		Occurrences: e.Occurrences,
	}
	if !day.IsZero() {
		body.Occurrence = recurrence.IndexOf(recurrence.Occurrences(e), day) + 1
	}
	return body
}

type DeleteOccurrenceRespBody struct {
	Outcome service.Outcome   `json:"outcome"`
	Events  []OneEventRespBody `json:"events"`
}

type CreateEventReqBody struct {
	Name        string `json:"name"`
	Start       string `json:"start"` // YYYY-MM-DD or plain English
	Frequency   string `json:"frequency"`
	Occurrences int    `json:"occurrences"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	respBodyJson, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Can't marshal response body"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(respBodyJson)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

func Events(muxer *http.ServeMux, as *utils.AppState) {
	// events occurring on one date
	muxer.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		day, err := time.Parse(time.DateOnly, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Please provide a date as YYYY-MM-DD")
			return
		}

		eventModels, err := as.Events.EventsOn(r.Context(), day)
		if err != nil {
			slog.Error("can't get events", "where", "route/events.go", "error", err)
			writeError(w, http.StatusInternalServerError, "Can't get events")
			return
		}
		respBody := make([]OneEventRespBody, 0, len(eventModels))
		for _, e := range eventModels {
			respBody = append(respBody, toRespBody(e, day))
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	// date -> events for a whole month
	muxer.HandleFunc("GET /events/month", func(w http.ResponseWriter, r *http.Request) {
		year, yearErr := strconv.Atoi(r.URL.Query().Get("year"))
		month, monthErr := strconv.Atoi(r.URL.Query().Get("month"))
		if yearErr != nil || monthErr != nil {
			writeError(w, http.StatusBadRequest, "Please provide a year and a month")
			return
		}

		eventsInMonth, err := as.Events.EventsForMonth(r.Context(), year, time.Month(month))
		switch {
		case errors.Is(err, service.ErrInvalidMonth):
			writeError(w, http.StatusBadRequest, "Month must be between 1 and 12")
			return
		case err != nil:
			slog.Error("can't get events for month", "where", "route/events.go", "error", err)
			writeError(w, http.StatusInternalServerError, "Can't get events")
			return
		}

		respBody := make(map[string][]OneEventRespBody, len(eventsInMonth))
		for day, eventModels := range eventsInMonth {
			key := day.Format(time.DateOnly)
			for _, e := range eventModels {
				respBody[key] = append(respBody[key], toRespBody(e, day))
			}
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	// create a new event, the success response is the stored event
	muxer.HandleFunc("POST /events", func(w http.ResponseWriter, r *http.Request) {
		var reqBody CreateEventReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		start, err := utils.ParseDate(as.When, reqBody.Start, time.Now().In(as.Config.GetLocation()))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Can't understand the start date")
			return
		}
		frequency, err := model.ParseFrequency(reqBody.Frequency)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		newEvent := model.Event{
			Name:        utils.CleanupString(reqBody.Name),
			StartDate:   start,
			Frequency:   frequency,
			Occurrences: reqBody.Occurrences,
		}
		if err := as.Events.Insert(r.Context(), &newEvent); err != nil {
			if errors.Is(err, model.ErrInvalidEvent) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.Error("can't create event", "where", "route/events.go", "error", err)
			writeError(w, http.StatusInternalServerError, "Can't create event")
			return
		}
		writeJSON(w, http.StatusCreated, toRespBody(newEvent, time.Time{}))
	})

	// delete a whole series; deleting an unknown id still succeeds
	muxer.HandleFunc("DELETE /events/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Please provide an event ID")
			return
		}
		removed, err := as.Events.DeleteWhole(r.Context(), id)
		if err != nil {
			slog.Error("can't delete event", "where", "route/events.go", "error", err)
			writeError(w, http.StatusInternalServerError, "Can't delete event")
			return
		}
		if !removed {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// delete one occurrence of a series
	muxer.HandleFunc("DELETE /events/{id}/occurrences/{date}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Please provide an event ID")
			return
		}
		day, err := time.Parse(time.DateOnly, r.PathValue("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Please provide a date as YYYY-MM-DD")
			return
		}

		result, err := as.Events.DeleteOccurrence(r.Context(), id, day)
		if err != nil {
			slog.Error("can't delete occurrence", "where", "route/events.go", "error", err)
			writeError(w, http.StatusInternalServerError, "Can't delete occurrence")
			return
		}
		respBody := DeleteOccurrenceRespBody{
			Outcome: result.Outcome,
			Events:  make([]OneEventRespBody, 0, 2),
		}
		for _, e := range []*model.Event{result.Updated, result.Before, result.After} {
			if e != nil {
				respBody.Events = append(respBody.Events, toRespBody(*e, time.Time{}))
			}
		}
		writeJSON(w, http.StatusOK, respBody)
	})
}
