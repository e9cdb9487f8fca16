package main

import (
	"expvar"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/livesession"
	"github.com/mentora/mentora/core/user"
	appfs "github.com/mentora/mentora/fs"
)

// initApp registers the validators and loads the embedded assets.
func initApp(validate *validator.Validate, translator ut.Translator, logger core.Logger) {
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	livesession.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, false, logger)

	user.LoadCommonPasswords(appfs.FS, logger)
}

// =========================================================================
// Start Debug Service
//
// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
// /debug/vars - Added to the default mux by importing the expvar package.
func startDebugServer(conf *core.Config, logger core.Logger) {
	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}
