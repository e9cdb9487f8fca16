package main

import (
	"github.com/mentora/mentora/storage/database"
)

var gooseRunFunc = database.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db.DB, cli.engine, args[1:]...)
}
