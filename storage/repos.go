// Package storage opens the repositories of the configured store driver.
package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
	"github.com/cohortly/lms/storage/database"
	inmemdb "github.com/cohortly/lms/storage/database/inmem"
	sqlxrepos "github.com/cohortly/lms/storage/database/sqlx"
	"github.com/cohortly/lms/storage/postgrest"
)

// ErrUnknownDriver is returned for a store.driver we do not support.
var ErrUnknownDriver = errors.New("unknown store driver")

var openDBFunc = database.Open // mockable

type Repositories struct {
	Driver      string
	Curriculum  curriculum.Repository
	Enrollment  enrollment.Repository
	Submission  submission.Repository
	Partnership partnership.Repository
	ClarityCall claritycall.Repository
	Auth        enrollment.AuthProvider

	sqlDB *sql.DB // only set by the postgres driver
}

// Open builds the repositories of conf.Store.Driver.
// The postgrest driver fails fast with core.ErrStoreNotConfigured; credentials are still re-read on every call.
// The postgres driver creates the database when missing; see MigrateUp.
func Open(conf *core.Config, logger core.Logger) (*Repositories, error) {
	switch conf.Store.Driver {
	case core.StoreDriverPostgREST, "":
		if _, err := conf.StoreCredentials(); err != nil {
			return nil, err
		}
		client := postgrest.NewClient(conf, logger)
		return &Repositories{
			Driver:      core.StoreDriverPostgREST,
			Curriculum:  postgrest.NewCurriculumRepository(client),
			Enrollment:  postgrest.NewEnrollmentRepository(client),
			Submission:  postgrest.NewSubmissionRepository(client),
			Partnership: postgrest.NewPartnershipRepository(client),
			ClarityCall: postgrest.NewClarityCallRepository(client),
			Auth:        postgrest.NewAuthProvider(client),
		}, nil

	case core.StoreDriverPostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := openDBFunc(conf)
		if err != nil {
			return nil, err
		}
		// accounts still live on the auth provider
		client := postgrest.NewClient(conf, logger)
		return &Repositories{
			Driver:      core.StoreDriverPostgres,
			Curriculum:  sqlxrepos.NewCurriculumRepository(db),
			Enrollment:  sqlxrepos.NewEnrollmentRepository(db),
			Submission:  sqlxrepos.NewSubmissionRepository(db),
			Partnership: sqlxrepos.NewPartnershipRepository(db),
			ClarityCall: sqlxrepos.NewClarityCallRepository(db),
			Auth:        postgrest.NewAuthProvider(client),
			sqlDB:       db.DB,
		}, nil

	case core.StoreDriverInMem:
		return NewInMem(inmemdb.Open()), nil
	}
	return nil, errors.Wrap(ErrUnknownDriver, conf.Store.Driver)
}

// NewInMem builds the repositories over an in-memory db.
func NewInMem(db *inmemdb.DB) *Repositories {
	return &Repositories{
		Driver:      core.StoreDriverInMem,
		Curriculum:  inmemdb.NewCurriculumRepository(db),
		Enrollment:  inmemdb.NewEnrollmentRepository(db),
		Submission:  inmemdb.NewSubmissionRepository(db),
		Partnership: inmemdb.NewPartnershipRepository(db),
		ClarityCall: inmemdb.NewClarityCallRepository(db),
		Auth:        inmemdb.NewAuthProvider(db),
	}
}

// SQL returns the underlying database of the postgres driver.
func (r *Repositories) SQL() (*sql.DB, bool) {
	return r.sqlDB, r.sqlDB != nil
}

// MigrateUp applies the pending migrations of the postgres driver; other drivers have nothing to migrate.
func (r *Repositories) MigrateUp(ctx context.Context) error {
	if r.sqlDB == nil {
		return nil
	}
	return database.Migrate(ctx, r.sqlDB, "up")
}

func (r *Repositories) Close() error {
	if r.sqlDB == nil {
		return nil
	}
	return r.sqlDB.Close()
}
