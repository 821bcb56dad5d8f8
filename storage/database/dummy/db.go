package dummydb

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/chat"
	"github.com/KeviinDCV/NotionK4S/core/expense"
	"github.com/KeviinDCV/NotionK4S/core/meeting"
	"github.com/KeviinDCV/NotionK4S/core/note"
	"github.com/KeviinDCV/NotionK4S/core/task"
	"github.com/KeviinDCV/NotionK4S/core/user"
)

type (
	// DB is the demo fallback: in-memory tables behind the same repository
	// interfaces as the connected gateways.
	DB struct {
		user    *userTable
		task    *taskTable
		chat    *chatTable
		note    *noteTable
		expense *expenseTable
		meeting *meetingTable
		notif   *notifTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	taskTable struct {
		sync.RWMutex
		table map[string]*task.Task
	}

	chatTable struct {
		sync.RWMutex
		table map[string]*chat.Message
	}

	noteTable struct {
		sync.RWMutex
		table map[string]*note.Note
	}

	expenseTable struct {
		sync.RWMutex
		table map[string]*expense.Expense
	}

	meetingTable struct {
		sync.RWMutex
		table map[string]*meeting.Meeting
	}

	notifTable struct {
		sync.RWMutex
		table map[string]*core.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		task:    &taskTable{table: make(map[string]*task.Task)},
		chat:    &chatTable{table: make(map[string]*chat.Message)},
		note:    &noteTable{table: make(map[string]*note.Note)},
		expense: &expenseTable{table: make(map[string]*expense.Expense)},
		meeting: &meetingTable{table: make(map[string]*meeting.Meeting)},
		notif:   &notifTable{table: make(map[string]*core.Notification)},
	}
	db.seed()
	return db, nil
}

// NewID mints a demo-scoped identifier. The prefix keeps demo rows
// distinguishable from connected-gateway UUIDs.
func NewID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("demo-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// seed loads the fixtures every demo session starts from.
func (db *DB) seed() {
	now := time.Now().UTC()

	demoUsr := &user.User{
		ID:        core.Conf.DemoUserID,
		Name:      "Demo User",
		Username:  "demo",
		Email:     "demo@localhost",
		IsActive:  true,
		Roles:     []string{user.RoleAdminOwner},
		CreatedAt: now,
		UpdatedAt: now,
	}
	_ = demoUsr.SetPassword("Demo#Pass1")
	db.user.table[demoUsr.ID] = demoUsr

	mate := &user.User{
		ID:        "demo-mate",
		Name:      "Alex Demo",
		Username:  "alexdemo",
		Email:     "alex@localhost",
		IsActive:  true,
		Roles:     []string{user.RoleMember},
		CreatedAt: now,
		UpdatedAt: now,
	}
	_ = mate.SetPassword("Demo#Pass1")
	db.user.table[mate.ID] = mate

	welcome := &task.Task{
		ID:        NewID(),
		Title:     "Welcome to the board",
		Status:    task.StatusTodo,
		Priority:  task.PriorityMedium,
		CreatedBy: demoUsr.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.task.table[welcome.ID] = welcome

	hello := &chat.Message{
		ID:        NewID(),
		ChannelID: chat.DefaultChannel,
		UserID:    mate.ID,
		Body:      "Hey! This is the demo workspace.",
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.chat.table[hello.ID] = hello
}
