package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core/note"
)

type noteApi struct {
	store *note.Store
}

func registerNoteAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *note.Store) {
	api := noteApi{store: store}

	ng := g.Group("/notes", jwt)
	ng.GET("", api.list)
	ng.POST("", api.create)
	ng.PUT("/:id", api.update)
	ng.DELETE("/:id", api.destroy)
}

func (api *noteApi) list(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	api.store.Fetch(ctx.Request().Context(), claims.Subject)
	return ctx.JSON(http.StatusOK, api.store.Notes())
}

func (api *noteApi) create(ctx echo.Context) error {
	var data note.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data.OwnerID = claims.Subject

	n, err := api.store.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noteApi) update(ctx echo.Context) error {
	var data note.UpdateNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNote")
	}

	n, err := api.store.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFound(err, note.ErrNotFound, "updating note")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noteApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err := api.store.Delete(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return notFound(err, note.ErrNotFound, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}
