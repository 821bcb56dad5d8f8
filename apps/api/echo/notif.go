package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/KeviinDCV/NotionK4S/core/notif"
)

type notifApi struct {
	store *notif.Store
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *notif.Store) {
	api := notifApi{store: store}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.list)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/:id/read", api.markRead)
	ng.DELETE("/:id", api.destroy)
}

func (api *notifApi) list(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	api.store.Fetch(ctx.Request().Context(), claims.Subject)
	return ctx.JSON(http.StatusOK, api.store.Notifications())
}

func (api *notifApi) unreadCount(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	api.store.Fetch(ctx.Request().Context(), claims.Subject)
	return ctx.JSON(http.StatusOK, echo.Map{"unread": api.store.UnreadCount()})
}

func (api *notifApi) markRead(ctx echo.Context) error {
	n, err := api.store.MarkRead(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return notFound(err, notif.ErrNotFound, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notifApi) destroy(ctx echo.Context) error {
	if err := api.store.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFound(err, notif.ErrNotFound, "deleting notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}
