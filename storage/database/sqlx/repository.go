// Package sqlxrepos implements the app repositories with sqlx, on postgres or sqlite.
// Queries use `?` placeholders and are rebound to the driver's bindvar.
package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

type repository struct {
	db *sqlx.DB
}

func (repo repository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return repo.db.GetContext(ctx, dest, repo.db.Rebind(query), args...)
}

func (repo repository) selekt(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return repo.db.SelectContext(ctx, dest, repo.db.Rebind(query), args...)
}

func (repo repository) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
}

// in expands the slice args of query, eg: `id IN (?)`.
func (repo repository) in(query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query args")
	}
	return q, a, nil
}

// trapNoRowsErr maps the "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// checkAffected returns notFound when res affected no row.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func nullTimePtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time.UTC()
	return &ts
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
