package locator

import (
	"context"
	"database/sql"
	"time"

	"github.com/conneroisu/tmplview/internal/errors"
)

// SQLLocator serves views stored in a database table.
type SQLLocator struct {
	db *sql.DB
}

// StoredView is a row of the views table.
type StoredView struct {
	Name      string    `json:"name" yaml:"name"`
	Size      int       `json:"size" yaml:"size"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewSQLLocator creates a locator over db. Call SetupSchema before use.
func NewSQLLocator(db *sql.DB) *SQLLocator {
	return &SQLLocator{db: db}
}

// SetupSchema creates the views table.
func (s *SQLLocator) SetupSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS views (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.WrapIO(err, "STORE_SCHEMA", "failed to create views table")
	}
	return nil
}

// FindView implements ViewLocator.
func (s *SQLLocator) FindView(ctx context.Context, name string) (string, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM views WHERE name = ?", name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.WrapIO(err, "STORE_READ", "failed to read view "+name)
	}
	return body, true, nil
}

// Put stores or replaces a view.
func (s *SQLLocator) Put(ctx context.Context, name, body string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO views (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, body, time.Now().Unix())
	if err != nil {
		return errors.WrapIO(err, "STORE_WRITE", "failed to store view "+name)
	}
	return nil
}

// Delete removes a view. It reports whether a row was removed.
func (s *SQLLocator) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM views WHERE name = ?", name)
	if err != nil {
		return false, errors.WrapIO(err, "STORE_DELETE", "failed to delete view "+name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WrapIO(err, "STORE_DELETE", "failed to delete view "+name)
	}
	return n > 0, nil
}

// List returns every stored view ordered by name.
func (s *SQLLocator) List(ctx context.Context) ([]StoredView, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, length(body), updated_at FROM views ORDER BY name")
	if err != nil {
		return nil, errors.WrapIO(err, "STORE_LIST", "failed to list views")
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var views []StoredView
	for rows.Next() {
		var v StoredView
		var updated int64
		if err := rows.Scan(&v.Name, &v.Size, &updated); err != nil {
			return nil, errors.WrapIO(err, "STORE_LIST", "failed to scan view row")
		}
		v.UpdatedAt = time.Unix(updated, 0)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO(err, "STORE_LIST", "failed to list views")
	}
	return views, nil
}
