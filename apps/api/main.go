package main

import (
	"flag"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"go.uber.org/zap"

	"github.com/cohortly/lms/core"
	logsvc "github.com/cohortly/lms/services/logger"
)

func main() {
	di := flag.String("di", "dig", "how dependencies are wired: dig|manual")
	flag.Parse()

	switch *di {
	case "manual":
		startManual()
	case "dig":
		startWithDig()
	default:
		log.Fatalf("unknown -di %q, want dig or manual", *di)
	}
}

// newLogger builds a named Rollbar logger; Rollbar only reports outside debug.
func newLogger(conf *core.Config, name string) *logsvc.RollbarLogger {
	local, err := logsvc.NewLocalLogger(conf)
	if err != nil {
		log.Fatalf("building %s logger: %v", name, err)
	}
	logger := logsvc.NewRollbarLogger(local.Named(name).WithOptions(zap.AddCaller()), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
