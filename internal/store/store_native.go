//go:build !cgo_sqlite

package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver backing Open.
const DriverName = "sqlite"

func openDB(dsn string) (*sql.DB, error) {
	return sql.Open(DriverName, dsn)
}
