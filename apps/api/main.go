package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/touchline/academy/apps/api/echo"
	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/dashboard"
	"github.com/touchline/academy/core/match"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/training"
	"github.com/touchline/academy/core/user"
	emailsvc "github.com/touchline/academy/services/email"
	logsvc "github.com/touchline/academy/services/logger"
	"github.com/touchline/academy/storage/database"
	sqlxrepos "github.com/touchline/academy/storage/database/sqlx"
)

type options struct {
	Host      string `short:"H" long:"host" description:"Host to bind on (overrides SERVER_HOST)"`
	Port      string `short:"p" long:"port" description:"Port to bind on (overrides SERVER_PORT)"`
	DebugHost string `long:"debug-host" description:"Debug server address (overrides SERVER_DEBUG_HOST)"`
	NoMigrate bool   `long:"no-migrate" description:"Do not apply pending migrations on start"`
	// zero disables the in-process billing jobs; run them with `admin invoices` instead
	BillingEvery time.Duration `long:"billing-every" description:"Run invoice generation, overdue marking and reminders at this interval" default:"0"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(2)
	}

	// =========================================================================
	// Set up Dependencies

	conf := core.Conf
	if opts.Host != "" {
		conf.Server.Host = opts.Host
	}
	if opts.Port != "" {
		conf.Server.Port = opts.Port
	}
	if opts.DebugHost != "" {
		conf.Server.DebugHost = opts.DebugHost
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(conf, !opts.NoMigrate)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, logger)
	teamSvc := team.NewService(sqlxrepos.NewTeamRepository(db), usrSvc)
	plrSvc := player.NewService(sqlxrepos.NewPlayerRepository(db), teamSvc, usrSvc)
	trainingSvc := training.NewService(db, sqlxrepos.NewTrainingRepository(db), teamSvc, plrSvc)
	matchSvc := match.NewService(sqlxrepos.NewMatchRepository(db), teamSvc)
	billingSvc := billing.NewService(db, sqlxrepos.NewBillingRepository(db), plrSvc, usrSvc, mailSvc, logger)
	dashSvc := dashboard.NewService(dashboard.Deps{
		Users:     usrSvc,
		Teams:     teamSvc,
		Players:   plrSvc,
		Trainings: trainingSvc,
		Matches:   matchSvc,
		Billing:   billingSvc,
		Logger:    logger,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	team.InitValidators(validate, translator)

	if err := core.ParseEmailTemplates(); err != nil {
		logger.Fatal(err.Error(), err)
	}

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("db_engine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Billing Jobs

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if opts.BillingEvery > 0 {
		go runBillingJobs(jobsCtx, billingSvc, logger, opts.BillingEvery)
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			UserSvc:      usrSvc,
			TeamSvc:      teamSvc,
			PlayerSvc:    plrSvc,
			TrainingSvc:  trainingSvc,
			MatchSvc:     matchSvc,
			BillingSvc:   billingSvc,
			DashboardSvc: dashSvc,
			Validate:     validate,
			Translator:   translator,
		},
	)

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
		stopJobs()

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

func setUpDB(conf *core.Config, migrate bool) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err = database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// runBillingJobs generates due invoices, marks overdue ones and sends reminders every interval until ctx is done.
func runBillingJobs(ctx context.Context, svc billing.Service, logger core.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		now := time.Now()
		report, err := svc.GenerateInvoices(ctx, now)
		if err != nil {
			logger.Error(fmt.Sprintf("generating invoices: %v", err), err)
		} else if len(report.Generated) > 0 || report.Failed > 0 {
			logger.Info(fmt.Sprintf("invoices generated: %d, failed: %d", len(report.Generated), report.Failed))
		}
		if n, err := svc.MarkOverdue(ctx, now); err != nil {
			logger.Error(fmt.Sprintf("marking overdue invoices: %v", err), err)
		} else if n > 0 {
			logger.Info(fmt.Sprintf("invoices marked overdue: %d", n))
		}
		if n, err := svc.SendReminders(ctx, now); err != nil {
			logger.Error(fmt.Sprintf("sending reminders: %v", err), err)
		} else if n > 0 {
			logger.Info(fmt.Sprintf("reminders sent: %d", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
