package main

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dicontainer "github.com/mentora/mentora/apps/api/di"
	echoapi "github.com/mentora/mentora/apps/api/echo"
	"github.com/mentora/mentora/core"
)

func startWithDig() {
	c := dicontainer.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dicontainer.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		initApp(validate, translator, apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		startDebugServer(conf, apiLogger)

		serve(conf, server, apiLogger)
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
