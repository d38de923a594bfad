package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/academic"
	"github.com/umoja/academy/core/attendance"
	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/comms"
	"github.com/umoja/academy/core/dashboard"
	"github.com/umoja/academy/core/exam"
	"github.com/umoja/academy/core/fee"
	"github.com/umoja/academy/core/library"
	"github.com/umoja/academy/core/records"
	"github.com/umoja/academy/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		AuthSvc       *auth.Service
		UserSvc       *user.Service
		DashboardSvc  *dashboard.Service
		AcademicSvc   *academic.Service
		AttendanceSvc *attendance.Service
		ExamSvc       *exam.Service
		FeeSvc        *fee.Service
		CommsSvc      *comms.Service
		LibrarySvc    *library.Service
		RecordsSvc    *records.Service
	}

	Server struct {
		ServerDeps
		app        *echo.Echo
		signingKey []byte
		errors     chan error
		shutdown   chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.AuthSvc, "AuthSvc"),
	).CheckAndPanic()

	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		signingKey: []byte(deps.Conf.SecretKey),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.Conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(requestTimeout(s.Conf.Server.RequestTimeout))

	session := s.sessionMiddleware

	s.app.GET("/", s.home)
	s.app.GET(loginPath, s.loginPage)
	s.app.POST(loginPath, s.login)
	s.app.POST("/logout", s.logout, session)
	s.app.GET(dashboardPath, s.dashboard, session)

	v1 := s.app.Group("/v1")
	registerUserAPI(v1, s)

	authed := v1.Group("", session)
	registerAcademicAPI(authed, s)
	registerAttendanceAPI(authed, s)
	registerExamAPI(authed, s)
	registerFeeAPI(authed, s)
	registerCommsAPI(authed, s)
	registerLibraryAPI(authed, s)
	registerRecordsAPI(authed, s)
}

// Start blocks serving requests; a listener failure is sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
