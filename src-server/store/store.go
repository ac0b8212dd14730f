package store

import (
	"context"
	"errors"

	"smallsched/src-server/model"
)

var ErrNotFound = errors.New("event not found")

// Store is the persistence contract the event service depends on.
type Store interface {
	// Insert assigns a fresh id to e and persists it.
	Insert(ctx context.Context, e *model.Event) error
	// FindByID returns ErrNotFound when no record has the id.
	FindByID(ctx context.Context, id int64) (*model.Event, error)
	// FindAll returns every record ordered by id.
	FindAll(ctx context.Context) ([]model.Event, error)
	Update(ctx context.Context, e *model.Event) error
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id int64) (bool, error)

	// RunInTx runs fn against a Store bound to a single transaction.
	RunInTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
