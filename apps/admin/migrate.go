package main

import (
	"context"
	"errors"

	"github.com/cohortly/lms/storage/database"
)

var (
	migrateFunc = database.Migrate // mockable

	errNotSQLStore = errors.New("migrate needs the postgres store driver (STORE_DRIVER=postgres)")
)

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	db, ok := cli.repos.SQL()
	if !ok {
		return errNotSQLStore
	}
	return migrateFunc(ctx, db, args[0], args[1:]...)
}
