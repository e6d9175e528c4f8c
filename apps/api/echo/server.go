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

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/dashboard"
	"github.com/touchline/academy/core/match"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/training"
	"github.com/touchline/academy/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        user.Service
		TeamSvc        team.Service
		PlayerSvc      player.Service
		TrainingSvc    training.Service
		MatchSvc       match.Service
		BillingSvc     billing.Service
		DashboardSvc   dashboard.Service
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.TeamSvc, "TeamSvc"),
		vala.IsNotNil(deps.PlayerSvc, "PlayerSvc"),
		vala.IsNotNil(deps.TrainingSvc, "TrainingSvc"),
		vala.IsNotNil(deps.MatchSvc, "MatchSvc"),
		vala.IsNotNil(deps.BillingSvc, "BillingSvc"),
		vala.IsNotNil(deps.DashboardSvc, "DashboardSvc"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
	).CheckAndPanic()

	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	auth := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(appJWTConfig),
		scopeMiddleware(s.deps.UserSvc, s.deps.TeamSvc, s.deps.PlayerSvc),
	}

	registerUserAPI(g, auth, s.deps.UserSvc, s.deps.Validate)
	registerTeamAPI(g, auth, s.deps.TeamSvc, s.deps.MatchSvc, s.deps.Validate)
	registerPlayerAPI(g, auth, s.deps.PlayerSvc, s.deps.TrainingSvc, s.deps.Validate)
	registerTrainingAPI(g, auth, s.deps.TrainingSvc, s.deps.PlayerSvc, s.deps.UserSvc, s.deps.Validate)
	registerMatchAPI(g, auth, s.deps.MatchSvc, s.deps.Validate)
	registerBillingAPI(g, auth, s.deps.BillingSvc, s.deps.UserSvc, s.deps.Validate)
	registerDashboardAPI(g, auth, s.deps.DashboardSvc, s.deps.UserSvc)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
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
	default: // already signaled
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
