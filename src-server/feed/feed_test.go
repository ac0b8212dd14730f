package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"smallsched/src-server/feed"
	"smallsched/src-server/model"
)

const sampleCSV = `Name,Summary,Image,StartDate,Frequency,Count,Tag1,Tag2,Tag3
Yoga in the park,"Stretch, breathe, relax",https://example.com/yoga.png,2024-06-01,Weekly,8,Fitness,Outdoor,
Book club,Monthly reads,,2024-06-15,monthly,6,Social,,
"Quoted, name",Has a comma,,06/20/2024,bi-weekly,3,social
Broken date,,,not a date,daily,3,Misc
Too short,x,y
Zero count,,,2024-06-01,daily,0,Misc
Odd frequency,,,2024-07-01,hourly,abc,Misc
`

func TestParse(t *testing.T) {
	events, err := feed.Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events: %v", len(events), events)
	}

	yoga := events[0]
	if yoga.Name != "Yoga in the park" || yoga.Summary != "Stretch, breathe, relax" ||
		yoga.Frequency != model.FrequencyWeekly || yoga.Count != 8 ||
		!yoga.StartDate.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("yoga = %+v", yoga)
	}
	if len(yoga.Tags) != 2 || yoga.Tags[0] != "Fitness" || yoga.Tags[1] != "Outdoor" {
		t.Errorf("yoga tags = %v", yoga.Tags)
	}

	quoted := events[2]
	if quoted.Name != "Quoted, name" || quoted.Frequency != model.FrequencyBiWeekly ||
		!quoted.StartDate.Equal(time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("quoted = %+v", quoted)
	}

	odd := events[3]
	if odd.Frequency != model.FrequencyDaily || odd.Count != 1 {
		t.Errorf("defaults not applied: %+v", odd)
	}

	again, _ := feed.Parse(strings.NewReader(sampleCSV))
	if again[0].ID != yoga.ID || yoga.ID == events[1].ID {
		t.Error("feed ids should be stable and distinct")
	}

	e := yoga.ToEvent()
	if err := e.Validate(); err != nil {
		t.Errorf("ToEvent not valid: %v", err)
	}
}

func TestParseSkipsOversizedCount(t *testing.T) {
	const csv = `Name,Summary,Image,StartDate,Frequency,Count
Forever,,,2024-06-01,daily,4611686018427387904
Huge,,,2024-06-01,daily,99999999
Capped,,,2024-06-01,daily,10000
`
	events, err := feed.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Name != "Capped" || events[0].Count != model.MaxOccurrences {
		t.Fatalf("got %v", events)
	}
	e := events[0].ToEvent()
	if err := e.Validate(); err != nil {
		t.Errorf("capped row not valid: %v", err)
	}
}

func TestFilters(t *testing.T) {
	events, err := feed.Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}

	recent := feed.FilterByDateRange(events, time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC))
	if len(recent) != 3 {
		t.Errorf("FilterByDateRange kept %d: %v", len(recent), recent)
	}
	for _, e := range recent {
		if e.Name == "Yoga in the park" {
			t.Error("event older than two weeks kept")
		}
	}

	social := feed.FilterByTag(events, "SOCIAL")
	if len(social) != 2 || social[0].Name != "Book club" || social[1].Name != "Quoted, name" {
		t.Errorf("FilterByTag = %v", social)
	}
	if got := feed.FilterByTag(events, "All"); len(got) != len(events) {
		t.Errorf("all tag filtered to %d", len(got))
	}
	if got := feed.FilterByTag(events, ""); len(got) != len(events) {
		t.Errorf("empty tag filtered to %d", len(got))
	}

	tags := feed.Tags(events)
	if strings.Join(tags, ",") != "Fitness,Outdoor,Social,Misc" {
		t.Errorf("Tags = %v", tags)
	}

	if found, ok := feed.Find(events, events[1].ID); !ok || found.Name != "Book club" {
		t.Errorf("Find = %v, %v", found, ok)
	}
}

func TestFetcherCaching(t *testing.T) {
	var hits, failing atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	f, err := feed.NewFetcher(srv.URL+"/events.csv", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := f.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.FromCache || string(first.Body) != sampleCSV {
		t.Errorf("first fetch = %+v", first)
	}

	second, err := f.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !second.FromCache || second.Hash != first.Hash {
		t.Errorf("second fetch should be served from cache: %+v", second)
	}

	failing.Store(1)
	third, err := f.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !third.FromCache || string(third.Body) != sampleCSV {
		t.Errorf("server error should fall back to cache: %+v", third)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times", hits.Load())
	}
}

func TestFetcherErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, err := feed.NewFetcher(srv.URL, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Error("expected an error")
	}
	if _, err := feed.NewFetcher("not a url", t.TempDir()); err == nil {
		t.Error("expected invalid url error")
	}
}

func TestCatalog(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	f, err := feed.NewFetcher(srv.URL, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := feed.NewCatalog(f)
	ctx := context.Background()

	if !c.UpdatedAt().IsZero() {
		t.Error("fresh catalog should not have an update time")
	}
	events, err := c.Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 || hits.Load() != 1 {
		t.Fatalf("events = %d, hits = %d", len(events), hits.Load())
	}
	if _, err := c.Events(ctx); err != nil || hits.Load() != 1 {
		t.Errorf("second Events should not fetch: %v, hits = %d", err, hits.Load())
	}

	n, err := c.Refresh(ctx)
	if err != nil || n != 4 || hits.Load() != 2 {
		t.Errorf("Refresh = %d, %v, hits = %d", n, err, hits.Load())
	}

	found, ok, err := c.Find(ctx, events[2].ID)
	if err != nil || !ok || found.Name != "Quoted, name" {
		t.Errorf("Find = %v, %v, %v", found, ok, err)
	}
}
