package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/storage/database"
	pgrepos "github.com/KeviinDCV/NotionK4S/storage/database/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	if conf.Demo() {
		logger.Fatal("no database configured: admin commands need a real database")
	}

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// start CLI
	dbx := sqlx.NewDb(db, "postgres")
	cli := commandLine{
		db:       db,
		usrRepo:  pgrepos.NewUserRepository(dbx),
		taskRepo: pgrepos.NewTaskRepository(dbx),
		chatRepo: pgrepos.NewChatRepository(dbx),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
