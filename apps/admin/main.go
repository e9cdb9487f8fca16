package main

import (
	"log"
	"os"

	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/user"
	appfs "github.com/mentora/mentora/fs"
	logsvc "github.com/mentora/mentora/services/logger"
	"github.com/mentora/mentora/storage/database"
	sqlxrepos "github.com/mentora/mentora/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	user.LoadCommonPasswords(appfs.FS, logsvc.NewRollbarLogger(logger, conf))

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err)
	}

	// start CLI
	cli := commandLine{
		db:      db,
		engine:  conf.Database.Engine,
		usrRepo: sqlxrepos.NewUserRepository(db),
	}
	err = cli.run(os.Args)
	if cerr := db.Close(); cerr != nil {
		logger.Printf("db.Close(): %v", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
