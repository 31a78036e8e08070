package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/cohortly/lms/apps/api/echo"
	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/cache"
	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/core/dashboard"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
	emailsvc "github.com/cohortly/lms/services/email"
	"github.com/cohortly/lms/storage"
)

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := newLogger(conf, "api")
	defer logger.Sync()
	storeLogger := newLogger(conf, "store")

	// set up store
	repos, err := storage.Open(conf, storeLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up store: %v", err), err)
	}
	defer func() {
		if err = repos.Close(); err != nil {
			storeLogger.Error("Failed to close", err)
		}
	}()
	if err = repos.MigrateUp(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("migrating store: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	c := cache.New()
	ttl := cache.TTLs{Short: conf.Cache.ShortTTL, Medium: conf.Cache.MediumTTL, Long: conf.Cache.LongTTL}

	currSvc := curriculum.NewService(repos.Curriculum, c, ttl, logger)
	enrSvc := enrollment.NewService(repos.Enrollment, repos.Auth, currSvc, mailSvc, c, ttl, logger)
	subSvc := submission.NewService(repos.Submission, currSvc, enrSvc, c, ttl, logger)
	pairSvc := partnership.NewService(
		repos.Partnership, enrSvc, currSvc, mailSvc, c, ttl, logger,
		partnership.Options{Timeout: conf.Pairing.Timeout, AdminEmail: conf.AdminEmail},
	)
	callSvc := claritycall.NewService(repos.ClarityCall, enrSvc, mailSvc, c, ttl, logger)
	dashSvc := dashboard.NewService(currSvc, enrSvc, subSvc, pairSvc, callSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf.FrontendBaseURL, logger)

	enrollment.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("store").Set(repos.Driver)
	expvar.Publish("cache_entries", expvar.Func(func() interface{} { return c.Len() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		&echoapi.Options{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			CurriculumSvc:  currSvc,
			EnrollmentSvc:  enrSvc,
			SubmissionSvc:  subSvc,
			PartnershipSvc: pairSvc,
			ClarityCallSvc: callSvc,
			DashboardSvc:   dashSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
