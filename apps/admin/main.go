package main

import (
	"fmt"
	"log"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/cache"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
	emailsvc "github.com/cohortly/lms/services/email"
	logsvc "github.com/cohortly/lms/services/logger"
	"github.com/cohortly/lms/storage"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds)

	conf := core.NewConfig()
	promptStoreCredentials(conf)

	local, err := logsvc.NewLocalLogger(conf)
	errAndDie(err)
	appLogger := logsvc.NewRollbarLogger(local.Named("admin"), conf)
	appLogger.Enable(!conf.Debug)
	defer appLogger.Sync()

	// set up store
	repos, err := storage.Open(conf, appLogger)
	errAndDie(err)
	defer func() { _ = repos.Close() }()

	// start CLI
	cli := newCommandLine(conf, repos, emailsvc.NewConsoleService(conf, appLogger), appLogger)
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		_ = repos.Close()
		os.Exit(1)
	}
}

// promptStoreCredentials asks for the REST store API key when it is missing and stdin is a terminal.
func promptStoreCredentials(conf *core.Config) {
	if conf.Store.Driver != core.StoreDriverPostgREST {
		return
	}
	if _, err := conf.StoreCredentials(); err == nil || !term.IsTerminal(syscall.Stdin) {
		return
	}
	fmt.Print("Enter store API key:")
	key, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	errAndDie(err)
	conf.SetStoreCredentials("", string(key))
}

func newCommandLine(conf *core.Config, repos *storage.Repositories, mailSvc core.EmailService, appLogger core.Logger) *commandLine {
	c := cache.New()
	ttl := cache.TTLs{Short: conf.Cache.ShortTTL, Medium: conf.Cache.MediumTTL, Long: conf.Cache.LongTTL}

	currSvc := curriculum.NewService(repos.Curriculum, c, ttl, appLogger)
	enrSvc := enrollment.NewService(repos.Enrollment, repos.Auth, currSvc, mailSvc, c, ttl, appLogger)
	validate, translator := core.NewValidator()
	enrollment.InitValidators(validate, translator)

	return &commandLine{
		repos:    repos,
		validate: validate,
		out:      os.Stdout,
		enrSvc:   enrSvc,
		subSvc:   submission.NewService(repos.Submission, currSvc, enrSvc, c, ttl, appLogger),
		pairSvc: partnership.NewService(
			repos.Partnership, enrSvc, currSvc, mailSvc, c, ttl, appLogger,
			partnership.Options{Timeout: conf.Pairing.Timeout, AdminEmail: conf.AdminEmail},
		),
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
