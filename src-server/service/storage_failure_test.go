package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"smallsched/src-server/service"
	"smallsched/src-server/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var errDisk = errors.New("disk I/O error")

func newMockService(t *testing.T) (*service.EventService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	bundb := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })
	return service.New(store.New(bundb)), mock
}

func TestQueriesPropagateStorageFailure(t *testing.T) {
	es, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT").WillReturnError(errDisk)
	if _, err := es.EventsForMonth(ctx, 2024, time.January); !errors.Is(err, errDisk) {
		t.Errorf("EventsForMonth = %v", err)
	}
	mock.ExpectQuery("SELECT").WillReturnError(errDisk)
	if _, err := es.EventsOn(ctx, date(2024, 1, 1)); !errors.Is(err, errDisk) {
		t.Errorf("EventsOn = %v", err)
	}
	mock.ExpectExec("DELETE").WillReturnError(errDisk)
	if _, err := es.DeleteWhole(ctx, 1); !errors.Is(err, errDisk) {
		t.Errorf("DeleteWhole = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// A failing insert halfway through a split must roll the delete back.
func TestSplitRollsBackOnFailure(t *testing.T) {
	es, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "start_date", "frequency", "occurrences", "anchor_day"}).
			AddRow(int64(7), "standup", date(2024, 1, 1), "daily", int64(5), int64(0)),
	)
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT").WillReturnError(errDisk)
	mock.ExpectRollback()

	res, err := es.DeleteOccurrence(ctx, 7, date(2024, 1, 3))
	if !errors.Is(err, errDisk) {
		t.Fatalf("DeleteOccurrence = %v, %v", res, err)
	}
	if res.Outcome != "" {
		t.Errorf("outcome on failure = %q", res.Outcome)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
