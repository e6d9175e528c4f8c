package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/user"
	emailsvc "github.com/touchline/academy/services/email"
	logsvc "github.com/touchline/academy/services/logger"
	"github.com/touchline/academy/storage/database"
	sqlxrepos "github.com/touchline/academy/storage/database/sqlx"
)

func main() {
	conf := core.Conf
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	provider, err := database.NewMigrationProvider(db)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	if err := core.ParseEmailTemplates(); err != nil {
		logger.Fatal(err.Error(), err)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, logger)
	teamSvc := team.NewService(sqlxrepos.NewTeamRepository(db), usrSvc)
	plrSvc := player.NewService(sqlxrepos.NewPlayerRepository(db), teamSvc, usrSvc)

	// start CLI
	cli := commandLine{
		migrator:   provider,
		usrRepo:    usrRepo,
		usrSvc:     usrSvc,
		billingSvc: billing.NewSyncService(db, sqlxrepos.NewBillingRepository(db), plrSvc, usrSvc, mailSvc, logger),
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}
