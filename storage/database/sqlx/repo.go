// Package sqlxrepos stores the app data in Postgres directly, through jmoiron/sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// pq error codes
const (
	codeUniqueViolation = "23505"
	codeInvalidText     = "22P02" // e.g. a malformed uuid
)

// where collects AND-ed conditions with `?` bindvars; rebind before running.
type where struct {
	clauses []string
	args    []interface{}
}

// eq adds `column = value`; an empty value adds nothing.
func (w *where) eq(column, value string) *where {
	if value != "" {
		w.clauses = append(w.clauses, column+" = ?")
		w.args = append(w.args, value)
	}
	return w
}

// cond adds a raw condition along its args.
func (w *where) cond(clause string, args ...interface{}) *where {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
	return w
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// trapNoRowsErr maps psql "no rows" and malformed ids to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows || pqCode(err) == codeInvalidText {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps a unique violation to conflict.
func trapUniqueErr(err error, conflict error, msg string) error {
	if conflict != nil && pqCode(err) == codeUniqueViolation {
		return conflict
	}
	return errors.Wrap(err, msg)
}

// expectOne returns notFound when res touched no row.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func selectIn(db *sqlx.DB, query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding IN clause")
	}
	return db.Rebind(q), a, nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
