package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/chat"
	"github.com/KeviinDCV/NotionK4S/core/expense"
	"github.com/KeviinDCV/NotionK4S/core/meeting"
	"github.com/KeviinDCV/NotionK4S/core/note"
	"github.com/KeviinDCV/NotionK4S/core/notif"
	"github.com/KeviinDCV/NotionK4S/core/task"
	"github.com/KeviinDCV/NotionK4S/core/user"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

type (
	// ServerDeps carries all the dependencies the API server needs.
	ServerDeps struct {
		Logger         core.Logger
		UserSvc        user.Service
		TaskStore      *task.Store
		ChatStore      *chat.Store
		NoteStore      *note.Store
		ExpenseStore   *expense.Store
		MeetingStore   *meeting.Store
		NotifStore     *notif.Store
		Feed           realtime.Feed
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		addr     string
		deps     *ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(addr string, deps *ServerDeps) Server {
	s := &server{
		addr:     addr,
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.deps.UserSvc)
	registerTaskAPI(v1, jwt, s.deps.TaskStore)
	registerChatAPI(v1, jwt, s.deps.ChatStore)
	registerNoteAPI(v1, jwt, s.deps.NoteStore)
	registerExpenseAPI(v1, jwt, s.deps.ExpenseStore)
	registerMeetingAPI(v1, jwt, s.deps.MeetingStore)
	registerNotificationAPI(v1, jwt, s.deps.NotifStore)
	registerFeedAPI(v1, s.deps.Feed, s.deps.Logger)
}

func (s *server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *server) Errors() <-chan error { return s.errs }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// signalShutdown is handed to the error handler so an integrity error can
// trigger a graceful stop.
func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
