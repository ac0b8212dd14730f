// Package feed reads the list of suggested events published as CSV.
//
// Columns: Name, Summary, ImageURL, StartDate, Frequency, Count, Tag1, Tag2, Tag3.
// The first row is a header.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"smallsched/src-server/model"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

const (
	minColumns = 6
	maxTags    = 3

	// events that started longer ago than this are not suggested
	recentWindow = 14 * 24 * time.Hour
)

// feedNamespace keys the deterministic ids of feed rows.
var feedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("smallsched/explore"))

// ExploreEvent is a suggestion from the feed, not yet in the store.
type ExploreEvent struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Summary   string          `json:"summary"`
	ImageURL  string          `json:"image_url"`
	StartDate time.Time       `json:"start_date"`
	Frequency model.Frequency `json:"frequency"`
	Count     int             `json:"count"`
	Tags      []string        `json:"tags"`
}

// ToEvent builds the record to insert for this suggestion.
func (e ExploreEvent) ToEvent() model.Event {
	return model.Event{
		Name:        e.Name,
		StartDate:   e.StartDate,
		Frequency:   e.Frequency,
		Occurrences: e.Count,
	}
}

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("parseDate: unrecognized date %q", s)
}

// Parse reads the feed. Rows that are too short or carry an unreadable date
// are skipped, as are counts outside 1..model.MaxOccurrences. An unknown
// frequency falls back to daily and an unreadable count to 1.
func Parse(r io.Reader) ([]ExploreEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	events := make([]ExploreEvent, 0)
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Parse: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) < minColumns {
			continue
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		startDate, err := parseDate(record[3])
		if err != nil {
			slog.Debug("feed row skipped", "name", record[0], "error", err)
			continue
		}
		frequency, err := model.ParseFrequency(record[4])
		if err != nil {
			frequency = model.FrequencyDaily
		}
		count, err := strconv.Atoi(record[5])
		if err != nil {
			count = 1
		}
		if count < 1 || count > model.MaxOccurrences || record[0] == "" {
			slog.Debug("feed row skipped", "name", record[0], "count", count)
			continue
		}

		tags := make([]string, 0, maxTags)
		for j := minColumns; j < len(record) && j < minColumns+maxTags; j++ {
			if record[j] != "" {
				tags = append(tags, record[j])
			}
		}

		events = append(events, ExploreEvent{
			ID:        uuid.NewSHA1(feedNamespace, []byte(record[0]+"|"+startDate.Format(time.DateOnly))),
			Name:      record[0],
			Summary:   record[1],
			ImageURL:  record[2],
			StartDate: startDate,
			Frequency: frequency,
			Count:     count,
			Tags:      tags,
		})
	}
	return events, nil
}

// FilterByDateRange keeps events starting no earlier than two weeks before now.
func FilterByDateRange(events []ExploreEvent, now time.Time) []ExploreEvent {
	cutoff := now.Add(-recentWindow)
	filtered := make([]ExploreEvent, 0, len(events))
	for _, e := range events {
		if !e.StartDate.Before(cutoff) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// FilterByTag keeps events carrying tag, compared without case. An empty tag
// or "all" keeps everything.
func FilterByTag(events []ExploreEvent, tag string) []ExploreEvent {
	fold := cases.Fold()
	tag = fold.String(strings.TrimSpace(tag))
	if tag == "" || tag == "all" {
		return events
	}
	filtered := make([]ExploreEvent, 0)
	for _, e := range events {
		if slices.ContainsFunc(e.Tags, func(t string) bool { return fold.String(t) == tag }) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Tags lists the distinct tags in feed order.
func Tags(events []ExploreEvent) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, e := range events {
		for _, t := range e.Tags {
			key := fold.String(t)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			tags = append(tags, t)
		}
	}
	return tags
}

// Find returns the suggestion with the given id.
func Find(events []ExploreEvent, id uuid.UUID) (ExploreEvent, bool) {
	for _, e := range events {
		if e.ID == id {
			return e, true
		}
	}
	return ExploreEvent{}, false
}
