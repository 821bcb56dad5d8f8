package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strconv"
	"testing"

	"github.com/KeviinDCV/NotionK4S/core/chat"
	"github.com/KeviinDCV/NotionK4S/core/task"
	"github.com/KeviinDCV/NotionK4S/core/user"
	dummydb "github.com/KeviinDCV/NotionK4S/storage/database/dummy"
)

var (
	usrRepo  user.Repository
	taskRepo task.Repository
	chatRepo chat.Repository
)

func setup(t *testing.T) *commandLine {
	t.Helper()

	logger = log.New(io.Discard, "", 0)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	taskRepo = dummydb.NewTaskRepository(db)
	chatRepo = dummydb.NewChatRepository(db)

	// start CLI
	return &commandLine{
		usrRepo:  usrRepo,
		taskRepo: taskRepo,
		chatRepo: chatRepo,
	}
}

func createUser(t *testing.T, uname, email, pwd string) user.User {
	t.Helper()

	usr := user.User{
		Name:     "Test User",
		Username: uname,
		Email:    email,
		IsActive: true,
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword(): %v", err)
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "expense", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := createUser(t, "awesome", "awe@test.cd", "mdr")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID(): %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_createSuperuser(t *testing.T) {
	cli := setup(t)

	existing := createUser(t, "regular", "regular@test.cd", "mdr")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"createsuperuser"}, wantErr: errHelp},
		{name: "username but no email", args: []string{"createsuperuser", "-username", "boss"}, wantErr: errHelp},
		{name: "no password", args: []string{"createsuperuser", "-username", "boss", "-email", "boss@test.cd"}, wantErr: errHelp},
		{name: "create new admin", args: []string{"createsuperuser", "-username", "boss", "-email", "boss@test.cd"}, extra: extra{pwd: "lol"}},
		{name: "promote existing user", args: []string{"createsuperuser", "-username", existing.Username, "-email", existing.Email}, extra: extra{pwd: "lol"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			uname := tt.args[2]
			usr, err := usrRepo.GetUserByUsernameOrEmail(context.Background(), uname)
			if err != nil {
				t.Fatalf("GetUserByUsernameOrEmail(): %v", err)
			}
			if !usr.IsAdmin() {
				t.Errorf("user %q is not an admin", uname)
			}
			if !usr.IsActive {
				t.Errorf("user %q is not active", uname)
			}
		})
	}
}

func Test_commandLine_demoseed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	countTasks := func() int {
		tasks, err := taskRepo.FilterTasks(ctx, task.QueryFilter{}, nil, 0)
		if err != nil {
			t.Fatalf("FilterTasks(): %v", err)
		}
		return len(tasks)
	}
	countMessages := func() int {
		msgs, err := chatRepo.ListChannelMessages(ctx, chat.DefaultChannel, 100)
		if err != nil {
			t.Fatalf("ListChannelMessages(): %v", err)
		}
		return len(msgs)
	}

	// the demo account already exists: nothing is written
	tasksBefore, msgsBefore := countTasks(), countMessages()
	if err := cli.run([]string{"admin", "demoseed"}); err != nil {
		t.Fatalf("cli.run(): %v", err)
	}
	if countTasks() != tasksBefore || countMessages() != msgsBefore {
		t.Error("re-seeding wrote fixtures over an existing workspace")
	}

	// a fresh workspace gets the full fixture set
	demo, err := usrRepo.GetUserByUsernameOrEmail(ctx, "demo")
	if err != nil {
		t.Fatalf("GetUserByUsernameOrEmail(): %v", err)
	}
	if err = usrRepo.DeleteUsersByID(ctx, demo.ID); err != nil {
		t.Fatalf("DeleteUsersByID(): %v", err)
	}
	if err = cli.run([]string{"admin", "demoseed"}); err != nil {
		t.Fatalf("cli.run(): %v", err)
	}

	demo, err = usrRepo.GetUserByUsernameOrEmail(ctx, "demo")
	if err != nil {
		t.Fatalf("GetUserByUsernameOrEmail() after seed: %v", err)
	}
	if !demo.IsAdmin() || !demo.IsActive {
		t.Errorf("seeded owner = %+v, want an active admin", demo)
	}
	if countTasks() != tasksBefore+1 {
		t.Errorf("tasks = %d, want %d", countTasks(), tasksBefore+1)
	}
	if countMessages() != msgsBefore+1 {
		t.Errorf("messages = %d, want %d", countMessages(), msgsBefore+1)
	}
}
