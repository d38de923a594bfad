package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/umoja/academy/apps/api/echo"
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
	"github.com/umoja/academy/services/email"
	"github.com/umoja/academy/services/logger"
	"github.com/umoja/academy/storage/database"
	"github.com/umoja/academy/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Flush()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	scope := auth.NewScope(sqlxrepos.NewScopeRepository(db))
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)

	deps := echoapi.ServerDeps{
		Conf:   conf,
		Logger: logger,

		AuthSvc:       auth.NewService(sqlxrepos.NewSessionRepository(db), usrSvc, conf.Server.SessionTTL),
		UserSvc:       usrSvc,
		DashboardSvc:  dashboard.NewService(sqlxrepos.NewDashboardRepository(db), logger),
		AcademicSvc:   academic.NewService(db, sqlxrepos.NewAcademicRepository(db), scope),
		AttendanceSvc: attendance.NewService(db, sqlxrepos.NewAttendanceRepository(db), scope),
		ExamSvc:       exam.NewService(sqlxrepos.NewExamRepository(db), scope),
		FeeSvc:        fee.NewService(db, sqlxrepos.NewFeeRepository(db), scope, mailSvc, logger),
		CommsSvc:      comms.NewService(sqlxrepos.NewCommsRepository(db)),
		LibrarySvc:    library.NewService(db, sqlxrepos.NewLibraryRepository(db), conf),
		RecordsSvc:    records.NewService(db, sqlxrepos.NewRecordsRepository(db), scope),
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	deps.Validate = validator.New()
	deps.Translator = core.NewTranslator()
	core.InitValidators(deps.Validate, deps.Translator)
	user.InitValidators(deps.Validate, deps.Translator)
	attendance.InitValidators(deps.Validate, deps.Translator)
	fee.InitValidators(deps.Validate, deps.Translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(deps)

	go func() {
		logger.Info(fmt.Sprintf("%s listening on %s", conf.AppName, conf.Server.Address()))
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

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
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
