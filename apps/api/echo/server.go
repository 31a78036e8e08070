package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/core/dashboard"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		CurriculumSvc  *curriculum.Service
		EnrollmentSvc  *enrollment.Service
		SubmissionSvc  *submission.Service
		PartnershipSvc *partnership.Service
		ClarityCallSvc *claritycall.Service
		DashboardSvc   *dashboard.Service
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		http     *http.Server
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil) // interface compliance check

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.http = &http.Server{
		Addr:         opts.Conf.Server.Address,
		ReadTimeout:  opts.Conf.Server.ReadTimeout,
		WriteTimeout: opts.Conf.Server.WriteTimeout,
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Logger.SetLevel(log.ERROR)
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf)

	registerCurriculumAPI(v1, jwt, s.opts.CurriculumSvc, s.opts.Validate)
	registerEnrollmentAPI(v1, jwt, s.opts.EnrollmentSvc, s.opts.Validate)
	registerSubmissionAPI(v1, jwt, s.opts.SubmissionSvc, s.opts.Validate)
	registerPartnershipAPI(v1, jwt, s.opts.PartnershipSvc, s.opts.Validate)
	registerClarityCallAPI(v1, jwt, s.opts.ClarityCallSvc, s.opts.Validate)
	registerDashboardAPI(v1, jwt, s.opts.DashboardSvc)
}

func (s *server) Start() {
	s.opts.Logger.Info("API listening on " + s.http.Addr)
	if err := s.app.StartServer(s.http); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
