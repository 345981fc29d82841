package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/mwalimu/apps/api/echo"
	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/chat"
	"github.com/trezcool/mwalimu/core/feedback"
	"github.com/trezcool/mwalimu/core/resource"
	"github.com/trezcool/mwalimu/core/stats"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
	emailsvc "github.com/trezcool/mwalimu/services/email"
	logsvc "github.com/trezcool/mwalimu/services/logger"
	metricsvc "github.com/trezcool/mwalimu/services/metrics"
	realtimesvc "github.com/trezcool/mwalimu/services/realtime"
	"github.com/trezcool/mwalimu/storage/database"
	inmemdb "github.com/trezcool/mwalimu/storage/database/inmem"
	sqlxrepos "github.com/trezcool/mwalimu/storage/database/sqlx"
)

type repositories struct {
	users     user.Repository
	tutors    tutor.Repository
	students  student.Repository
	bookings  booking.Repository
	messages  chat.Repository
	feedback  feedback.Repository
	resources resource.Repository
	close     func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(zl.Named("db"), conf)

	// set up DB
	repos, err := setUpRepos(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	metrics := metricsvc.New()
	hub := realtimesvc.NewHub(logger, metrics)

	usrSvc := user.NewService(repos.users, mailSvc, conf)
	tutorSvc := tutor.NewService(repos.tutors)
	studentSvc := student.NewService(repos.students)
	bookingSvc := booking.NewService(booking.Deps{
		Repo:        repos.bookings,
		Tutors:      tutorSvc,
		Users:       usrSvc,
		Broadcaster: hub,
		MailSvc:     mailSvc,
		Logger:      logger,
		Recorder:    metrics,
	})
	chatSvc := chat.NewService(repos.messages, bookingSvc, hub)
	feedbackSvc := feedback.NewService(repos.feedback, bookingSvc, tutorSvc, usrSvc)
	statsSvc := stats.NewService(stats.Deps{
		Bookings: bookingSvc,
		Tutors:   tutorSvc,
		Students: studentSvc,
		Users:    usrSvc,
		Outcomes: feedbackSvc,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus exposition of the app collectors.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)
	http.Handle("/metrics", metrics.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		UserSvc:       usrSvc,
		TutorSvc:      tutorSvc,
		StudentSvc:    studentSvc,
		BookingSvc:    bookingSvc,
		ChatSvc:       chatSvc,
		FeedbackSvc:   feedbackSvc,
		ResourceSvc:   resource.NewService(repos.resources, tutorSvc),
		StatsSvc:      statsSvc,
		Hub:           hub,
		BookingEvents: realtimesvc.NewBookingEvents(hub, bookingSvc, chatSvc, logger),
		Metrics:       metrics,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepos opens the storage selected by conf.Database.Engine.
func setUpRepos(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "inmem" {
		db := inmemdb.Open()
		return repositories{
			users:     inmemdb.NewUserRepository(db),
			tutors:    inmemdb.NewTutorRepository(db),
			students:  inmemdb.NewStudentRepository(db),
			bookings:  inmemdb.NewBookingRepository(db),
			messages:  inmemdb.NewMessageRepository(db),
			feedback:  inmemdb.NewFeedbackRepository(db),
			resources: inmemdb.NewResourceRepository(db),
			close:     func() error { return nil },
		}, nil
	}

	sqlDB, err := setUpDB(conf)
	if err != nil {
		return repositories{}, err
	}
	db := sqlxrepos.NewDB(sqlDB)
	return repositories{
		users:     sqlxrepos.NewUserRepository(db),
		tutors:    sqlxrepos.NewTutorRepository(db),
		students:  sqlxrepos.NewStudentRepository(db),
		bookings:  sqlxrepos.NewBookingRepository(db),
		messages:  sqlxrepos.NewMessageRepository(db),
		feedback:  sqlxrepos.NewFeedbackRepository(db),
		resources: sqlxrepos.NewResourceRepository(db),
		close:     db.Close,
	}, nil
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
