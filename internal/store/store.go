// Package store opens the sqlite database that backs database view storage.
// The pure-Go driver is used by default; build with -tags cgo_sqlite to use
// the cgo driver instead.
package store

import (
	"context"
	"database/sql"

	"github.com/conneroisu/tmplview/internal/errors"
)

// Open opens dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.NewConfigError("STORE_DSN", "store dsn is empty")
	}

	db, err := openDB(dsn)
	if err != nil {
		return nil, errors.WrapIO(err, "STORE_OPEN", "failed to open view store")
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapIO(err, "STORE_PING", "failed to connect to view store")
	}
	return db, nil
}
