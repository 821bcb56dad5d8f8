package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core/chat"
)

type chatApi struct {
	store *chat.Store
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *chat.Store) {
	api := chatApi{store: store}

	cg := g.Group("/chat/:channel/messages", jwt)
	cg.GET("", api.list)
	cg.POST("", api.post)
	cg.PUT("/:id", api.edit)
	cg.DELETE("/:id", api.destroy)
}

func (api *chatApi) list(ctx echo.Context) error {
	channelID := ctx.Param("channel")
	api.store.Fetch(ctx.Request().Context(), channelID)
	return ctx.JSON(http.StatusOK, api.store.Messages(channelID))
}

func (api *chatApi) post(ctx echo.Context) error {
	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data.ChannelID = ctx.Param("channel")
	data.UserID = claims.Subject

	msg, err := api.store.Post(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *chatApi) edit(ctx echo.Context) error {
	var data struct {
		Body string `json:"body"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding message edit")
	}

	msg, err := api.store.Edit(ctx.Request().Context(), ctx.Param("id"), data.Body)
	if err != nil {
		return notFound(err, chat.ErrNotFound, "editing message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *chatApi) destroy(ctx echo.Context) error {
	err := api.store.Delete(ctx.Request().Context(), ctx.Param("channel"), ctx.Param("id"))
	if err != nil {
		return notFound(err, chat.ErrNotFound, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}
