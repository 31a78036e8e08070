package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

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
	logsvc "github.com/cohortly/lms/services/logger"
	"github.com/cohortly/lms/storage"
)

type StoreLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storeLogger"`
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	Curriculum  *curriculum.Service
	Enrollment  *enrollment.Service
	Submission  *submission.Service
	Partnership *partnership.Service
	ClarityCall *claritycall.Service
	Dashboard   *dashboard.Service
}

func newNamedLogger(conf *core.Config, name string) core.Logger {
	local, err := logsvc.NewLocalLogger(conf)
	if err != nil {
		log.Fatal(errors.Wrap(err, "building "+name+" logger").Error())
	}
	logger := logsvc.NewRollbarLogger(local.Named(name).WithOptions(zap.AddCaller()), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return newNamedLogger(conf, "api")
}

func newStoreLogger(conf *core.Config) core.Logger {
	return newNamedLogger(conf, "store")
}

func newRepositories(conf *core.Config, loggerParam StoreLoggerParam) *storage.Repositories {
	repos, err := storage.Open(conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up store: %v", err), err)
	}
	if err = repos.MigrateUp(context.Background()); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating store: %v", err), err)
	}
	return repos
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTTLs(conf *core.Config) cache.TTLs {
	return cache.TTLs{Short: conf.Cache.ShortTTL, Medium: conf.Cache.MediumTTL, Long: conf.Cache.LongTTL}
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	enrollment.InitValidators(validate, translator)
	return validate, translator
}

func newCurriculumService(repos *storage.Repositories, c *cache.Cache, ttl cache.TTLs, logger core.Logger) *curriculum.Service {
	return curriculum.NewService(repos.Curriculum, c, ttl, logger)
}

func newEnrollmentService(
	repos *storage.Repositories,
	curr *curriculum.Service,
	mailSvc core.EmailService,
	c *cache.Cache,
	ttl cache.TTLs,
	logger core.Logger,
) *enrollment.Service {
	return enrollment.NewService(repos.Enrollment, repos.Auth, curr, mailSvc, c, ttl, logger)
}

func newSubmissionService(
	repos *storage.Repositories,
	curr *curriculum.Service,
	enr *enrollment.Service,
	c *cache.Cache,
	ttl cache.TTLs,
	logger core.Logger,
) *submission.Service {
	return submission.NewService(repos.Submission, curr, enr, c, ttl, logger)
}

func newPartnershipService(
	conf *core.Config,
	repos *storage.Repositories,
	curr *curriculum.Service,
	enr *enrollment.Service,
	mailSvc core.EmailService,
	c *cache.Cache,
	ttl cache.TTLs,
	logger core.Logger,
) *partnership.Service {
	return partnership.NewService(
		repos.Partnership, enr, curr, mailSvc, c, ttl, logger,
		partnership.Options{Timeout: conf.Pairing.Timeout, AdminEmail: conf.AdminEmail},
	)
}

func newClarityCallService(
	repos *storage.Repositories,
	enr *enrollment.Service,
	mailSvc core.EmailService,
	c *cache.Cache,
	ttl cache.TTLs,
	logger core.Logger,
) *claritycall.Service {
	return claritycall.NewService(repos.ClarityCall, enr, mailSvc, c, ttl, logger)
}

func newDashboardService(
	curr *curriculum.Service,
	enr *enrollment.Service,
	sub *submission.Service,
	pair *partnership.Service,
	calls *claritycall.Service,
) *dashboard.Service {
	return dashboard.NewService(curr, enr, sub, pair, calls)
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		CurriculumSvc:  p.Curriculum,
		EnrollmentSvc:  p.Enrollment,
		SubmissionSvc:  p.Submission,
		PartnershipSvc: p.Partnership,
		ClarityCallSvc: p.ClarityCall,
		DashboardSvc:   p.Dashboard,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStoreLogger, dig.Name("storeLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(cache.New))
	must(c.Provide(newTTLs))
	must(c.Provide(newValidator))
	must(c.Provide(newCurriculumService))
	must(c.Provide(newEnrollmentService))
	must(c.Provide(newSubmissionService))
	must(c.Provide(newPartnershipService))
	must(c.Provide(newClarityCallService))
	must(c.Provide(newDashboardService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
