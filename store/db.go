package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/videditor/jobrunner/errors"
)

// Open connects to Postgres and sizes the pool for the worker's concurrency.
//
// Pool sizing is concurrency*2: a single in-flight job can hold two
// connections at once (a handler transaction plus the failure writer, which
// always runs on a fresh connection).
func Open(ctx context.Context, databaseURL string, concurrency int) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	poolSize := concurrency * 2
	if poolSize < 4 {
		poolSize = 4
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return db, nil
}
