package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	logsvc "github.com/trezcool/mwalimu/services/logger"
	"github.com/trezcool/mwalimu/storage/database"
	sqlxrepos "github.com/trezcool/mwalimu/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)

	// set up DB
	sqlDB, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	db := sqlxrepos.NewDB(sqlDB)

	// start CLI
	cli := commandLine{
		db:         sqlDB,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		tutorSvc:   tutor.NewService(sqlxrepos.NewTutorRepository(db)),
		studentSvc: student.NewService(sqlxrepos.NewStudentRepository(db)),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
