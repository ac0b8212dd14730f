package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"smallsched/src-server/model"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// BunStore keeps events in an SQLite file through bun.
type BunStore struct {
	root *bun.DB
	db   bun.IDB
}

var _ Store = (*BunStore)(nil)

// Open creates (if needed) and opens the database file at path, then makes
// sure the schema exists. The caller owns the returned handle and must Close it.
func Open(ctx context.Context, path string, hooks ...bun.QueryHook) (*BunStore, error) {
	if path == "" {
		return nil, fmt.Errorf("Open: database path is blank")
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("Open: can't create data directory: %w", err)
		}
		dsn = "file:" + path + "?mode=rwc"
	}

	rawDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: can't open sqlite database: %w", err)
	}
	// one writer at a time; also keeps an in-memory database alive
	rawDB.SetMaxOpenConns(1)

	bunDB := bun.NewDB(rawDB, sqlitedialect.New())
	bunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))
	for _, hook := range hooks {
		bunDB.AddQueryHook(hook)
	}

	if err := model.CreateSchema(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}
	slog.Debug("event database opened", "path", path)

	return New(bunDB), nil
}

// New wraps an already configured bun handle. The schema is not created.
func New(db *bun.DB) *BunStore {
	return &BunStore{root: db, db: db}
}

func (s *BunStore) Insert(ctx context.Context, e *model.Event) error {
	e.ID = 0
	if _, err := s.db.NewInsert().
		Model(e).
		Returning("id").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*BunStore).Insert: %w", err)
	}
	return nil
}

func (s *BunStore) FindByID(ctx context.Context, id int64) (*model.Event, error) {
	eventModel := new(model.Event)
	if err := s.db.NewSelect().
		Model(eventModel).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("(*BunStore).FindByID: %w", err)
	}
	return eventModel, nil
}

func (s *BunStore) FindAll(ctx context.Context) ([]model.Event, error) {
	eventModels := make([]model.Event, 0)
	if err := s.db.NewSelect().
		Model(&eventModels).
		Order("id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*BunStore).FindAll: %w", err)
	}
	return eventModels, nil
}

func (s *BunStore) Update(ctx context.Context, e *model.Event) error {
	res, err := s.db.NewUpdate().
		Model(e).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("(*BunStore).Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BunStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*model.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("(*BunStore).Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("(*BunStore).Delete: %w", err)
	}
	return n > 0, nil
}

func (s *BunStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	// already inside a transaction: join it
	if _, ok := s.db.(bun.Tx); ok {
		return fn(s)
	}
	return s.root.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(&BunStore{root: s.root, db: tx})
	})
}

// Ping runs the cheapest query the database accepts; used for health and
// latency metrics.
func (s *BunStore) Ping(ctx context.Context) error {
	if _, err := s.root.NewSelect().
		Model((*model.Event)(nil)).
		Where("id = ?", 0).
		Exists(ctx); err != nil {
		return fmt.Errorf("(*BunStore).Ping: %w", err)
	}
	return nil
}

func (s *BunStore) Close() error {
	if _, ok := s.db.(bun.Tx); ok {
		return nil
	}
	return s.root.Close()
}
