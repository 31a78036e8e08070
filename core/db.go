package core

import (
	"context"
	"database/sql"
	"strings"
)

type (
	DBExecutor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingParam renders orderings the PostgREST way: `created_at.desc,name.asc`.
func OrderingParam(orderings []DBOrdering) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		direction := "desc"
		if ord.Ascending {
			direction = "asc"
		}
		parts = append(parts, ord.Field+"."+direction)
	}
	return strings.Join(parts, ",")
}
