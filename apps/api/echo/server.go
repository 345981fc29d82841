package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/chat"
	"github.com/trezcool/mwalimu/core/feedback"
	"github.com/trezcool/mwalimu/core/resource"
	"github.com/trezcool/mwalimu/core/stats"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
	metricsvc "github.com/trezcool/mwalimu/services/metrics"
	realtimesvc "github.com/trezcool/mwalimu/services/realtime"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc     user.Service
		TutorSvc    *tutor.Service
		StudentSvc  *student.Service
		BookingSvc  *booking.Service
		ChatSvc     *chat.Service
		FeedbackSvc *feedback.Service
		ResourceSvc *resource.Service
		StatsSvc    *stats.Service

		Hub           *realtimesvc.Hub
		BookingEvents realtimesvc.EventHandler
		Metrics       *metricsvc.Metrics
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
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
	if !s.deps.DisableReqLogs && !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	if s.deps.Metrics != nil {
		s.app.Use(metricsMiddleware(s.deps.Metrics))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/health", health)
	s.app.Static("/uploads", conf.UploadDir)

	jwt := newJWTMiddleware(conf)
	authLimiter := newIPRateLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateBurst)
	api := s.app.Group("/api")

	registerAuthAPI(api, jwt, authLimiter, s.deps)
	registerProfileAPI(api, jwt, s.deps)
	registerTutorAPI(api, jwt, s.deps)
	registerBookingAPI(api, jwt, s.deps)
	registerChatAPI(api, jwt, s.deps)
	registerFeedbackAPI(api, jwt, s.deps)
	registerResourceAPI(api, jwt, s.deps)
	registerStatsAPI(api, jwt, s.deps)
	registerAdminAPI(api, jwt, s.deps)
	registerSocketAPI(s.app, s.deps)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// signalShutdown asks the app to shut down gracefully.
func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops accepting requests, then disconnects the realtime clients.
func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	err := s.app.Shutdown(ctx)
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	return err
}

func (s *server) Close() error {
	signal.Stop(s.shutdown)
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Mwalimu API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "timestamp": time.Now().UTC()})
}
