package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/KeviinDCV/NotionK4S/apps/api/echo"
	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/chat"
	"github.com/KeviinDCV/NotionK4S/core/expense"
	"github.com/KeviinDCV/NotionK4S/core/meeting"
	"github.com/KeviinDCV/NotionK4S/core/note"
	"github.com/KeviinDCV/NotionK4S/core/notif"
	"github.com/KeviinDCV/NotionK4S/core/task"
	"github.com/KeviinDCV/NotionK4S/core/user"
	"github.com/KeviinDCV/NotionK4S/realtime"
	emailsvc "github.com/KeviinDCV/NotionK4S/services/email"
	logsvc "github.com/KeviinDCV/NotionK4S/services/logger"
	notifsvc "github.com/KeviinDCV/NotionK4S/services/notifier"
	"github.com/KeviinDCV/NotionK4S/storage/database"
	dummydb "github.com/KeviinDCV/NotionK4S/storage/database/dummy"
	pgrepos "github.com/KeviinDCV/NotionK4S/storage/database/postgres"
	localstore "github.com/KeviinDCV/NotionK4S/storage/local"
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

	// set up email
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	// set up gateways; the choice between the remote gateway and the demo
	// fallback is made once, here, and never revisited
	var (
		usrRepo     user.Repository
		taskRepo    task.Repository
		chatRepo    chat.Repository
		noteRepo    note.Repository
		expenseRepo expense.Repository
		meetingRepo meeting.Repository
		notifRepo   notif.Repository
	)
	if conf.Demo() {
		logger.Info("no database configured: running in demo mode")

		db, err := dummydb.Open()
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up demo data: %v", err), err)
		}
		usrRepo = dummydb.NewUserRepository(db)
		taskRepo = dummydb.NewTaskRepository(db)
		chatRepo = dummydb.NewChatRepository(db)
		noteRepo = dummydb.NewNoteRepository(db)
		expenseRepo = dummydb.NewExpenseRepository(db)
		meetingRepo = dummydb.NewMeetingRepository(db)
		notifRepo = dummydb.NewNotifRepository(db)
	} else {
		sqlDB, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = sqlDB.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing database: %v", err), err)
			}
		}()

		db := sqlx.NewDb(sqlDB, "postgres")
		usrRepo = pgrepos.NewUserRepository(db)
		taskRepo = pgrepos.NewTaskRepository(db)
		chatRepo = pgrepos.NewChatRepository(db)
		noteRepo = pgrepos.NewNoteRepository(db)
		expenseRepo = pgrepos.NewExpenseRepository(db)
		meetingRepo = pgrepos.NewMeetingRepository(db)
		notifRepo = pgrepos.NewNotifRepository(db)
	}

	// set up local mirror
	var mirror core.Mirror
	if conf.LocalMirrorPath != "" {
		m, err := localstore.Open(conf.LocalMirrorPath)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening local mirror: %v", err), err)
		}
		mirror = m
	} else {
		mirror = localstore.NewMemoryMirror()
	}

	// set up realtime feed, services and stores
	feed := realtime.NewBroker(logger)
	usrSvc := user.NewService(usrRepo, mailSvc)
	notifier := notifsvc.NewService(notifRepo, usrSvc, mailSvc, feed, logger)

	taskStore := task.NewStore(taskRepo, notifier, feed, mirror, logger)
	chatStore := chat.NewStore(chatRepo, feed, mirror, logger)
	noteStore := note.NewStore(noteRepo, feed, mirror, logger)
	expenseStore := expense.NewStore(expenseRepo, feed, mirror, logger)
	meetingStore := meeting.NewStore(meetingRepo, notifier, feed, mirror, logger)
	notifStore := notif.NewStore(notifRepo, feed, mirror, logger)

	// board-scoped stores reconcile for the life of the process; per-user
	// scopes (notes, notifications) subscribe on demand
	for name, subscribe := range map[string]func() error{
		"tasks":    taskStore.Subscribe,
		"chat":     func() error { return chatStore.Subscribe(chat.DefaultChannel) },
		"expenses": expenseStore.Subscribe,
		"meetings": meetingStore.Subscribe,
	} {
		if err := subscribe(); err != nil {
			logger.Error(fmt.Sprintf("subscribing %s store: %v", name, err), err)
		}
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

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

	server := echoapi.NewServer(
		conf.ServerAddress(),
		&echoapi.ServerDeps{
			Logger:       logger,
			UserSvc:      usrSvc,
			TaskStore:    taskStore,
			ChatStore:    chatStore,
			NoteStore:    noteStore,
			ExpenseStore: expenseStore,
			MeetingStore: meetingStore,
			NotifStore:   notifStore,
			Feed:         feed,
		},
	)

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
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
		return nil, err
	}
	return db, nil
}
