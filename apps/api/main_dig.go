package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	dig_container "github.com/cohortly/lms/apps/api/di/dig"
	echoapi "github.com/cohortly/lms/apps/api/echo"
	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/cache"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/storage"
)

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		storeLoggerParam dig_container.StoreLoggerParam,
		repos *storage.Repositories,
		appCache *cache.Cache,
		server echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : %s", conf))

		core.ParseEmailTemplates(conf.FrontendBaseURL, apiLogger)

		enrollment.LoadCommonPasswords(apiLogger)

		storeLogger := storeLoggerParam.Logger
		defer func() {
			if err := repos.Close(); err != nil {
				storeLogger.Error("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.NewString("store").Set(repos.Driver)
		expvar.Publish("cache_entries", expvar.Func(func() interface{} { return appCache.Len() }))

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
