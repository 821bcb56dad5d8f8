package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	. "github.com/KeviinDCV/NotionK4S/apps/api/echo"
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
	notifsvc "github.com/KeviinDCV/NotionK4S/services/notifier"
	dummydb "github.com/KeviinDCV/NotionK4S/storage/database/dummy"
)

var (
	db      *dummydb.DB
	app     Server
	usrRepo user.Repository
	usrSvc  user.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	var err error

	// error responses take the production shape
	core.Conf.Debug = false

	// demo fallback gateway: the repos behave like the connected ones
	db, err = dummydb.Open()
	if err != nil {
		os.Exit(1)
	}
	usrRepo = dummydb.NewUserRepository(db)
	taskRepo := dummydb.NewTaskRepository(db)
	chatRepo := dummydb.NewChatRepository(db)
	noteRepo := dummydb.NewNoteRepository(db)
	expenseRepo := dummydb.NewExpenseRepository(db)
	meetingRepo := dummydb.NewMeetingRepository(db)
	notifRepo := dummydb.NewNotifRepository(db)

	// set up services
	logger := core.NopLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc = user.NewServiceMock(usrRepo, mailSvc)
	feed := realtime.NewBroker(logger)
	notifier := notifsvc.NewService(notifRepo, usrSvc, mailSvc, feed, logger)

	// set up stores
	taskStore := task.NewStore(taskRepo, notifier, feed, nil, logger)
	chatStore := chat.NewStore(chatRepo, feed, nil, logger)
	noteStore := note.NewStore(noteRepo, feed, nil, logger)
	expenseStore := expense.NewStore(expenseRepo, feed, nil, logger)
	meetingStore := meeting.NewStore(meetingRepo, notifier, feed, nil, logger)
	notifStore := notif.NewStore(notifRepo, feed, nil, logger)

	// set up server
	app = NewServer(
		"", /* addr */
		&ServerDeps{
			Logger:         logger,
			UserSvc:        usrSvc,
			TaskStore:      taskStore,
			ChatStore:      chatStore,
			NoteStore:      noteStore,
			ExpenseStore:   expenseStore,
			MeetingStore:   meetingStore,
			NotifStore:     notifStore,
			Feed:           feed,
			DisableReqLogs: true,
		},
	)

	os.Exit(m.Run())
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func getUser(t *testing.T, uname string) user.User {
	t.Helper()
	usr, err := usrRepo.GetUserByUsernameOrEmail(context.Background(), uname)
	if err != nil {
		t.Fatalf("getUser(%q): %v", uname, err)
	}
	return usr
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if tt.wantCode == 0 {
		tt.wantCode = http.StatusOK
	}
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
