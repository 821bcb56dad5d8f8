package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type feedApi struct {
	feed   realtime.Feed
	logger core.Logger
}

// registerFeedAPI exposes the change feed over a websocket.
//
// Browsers cannot set an Authorization header on a websocket handshake, so
// the JWT is passed as a `token` query param instead of going through the
// JWT middleware. Topics are requested as `?topics=task.board,chat.general`
// (family.scope pairs).
func registerFeedAPI(g *echo.Group, feed realtime.Feed, logger core.Logger) {
	api := feedApi{feed: feed, logger: logger}
	g.GET("/ws", api.stream)
}

func (api *feedApi) stream(ctx echo.Context) error {
	if _, err := ParseToken(ctx.QueryParam("token")); err != nil {
		return err
	}

	topics := strings.Split(ctx.QueryParam("topics"), ",")
	if len(topics) == 0 || topics[0] == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topics is required")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	defer conn.Close()

	events := make(chan realtime.Event, 64)
	push := func(ev realtime.Event) {
		select {
		case events <- ev:
		default: // slow client, drop
		}
	}

	var teardowns []func()
	defer func() {
		for _, unsub := range teardowns {
			unsub()
		}
	}()

	for _, topic := range topics {
		family, scope, ok := strings.Cut(strings.TrimSpace(topic), ".")
		if !ok {
			continue
		}
		unsub, err := api.feed.Subscribe(family, scope, realtime.Handlers{OnInsert: push, OnDelete: push})
		// teardown is unconditional, even on a failed handshake
		teardowns = append(teardowns, unsub)
		if err != nil {
			api.logger.Error(fmt.Sprintf("subscribing to %s: %v", topic, err), err)
		}
	}

	// drain client frames so pings and the close handshake are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return nil
			}
		}
	}
}
