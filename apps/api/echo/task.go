package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core/task"
)

type taskApi struct {
	store *task.Store
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *task.Store) {
	api := taskApi{store: store}

	tg := g.Group("/tasks", jwt)
	tg.GET("", api.list)
	tg.POST("", api.create)
	tg.PATCH("/filter", api.setFilter)
	tg.GET("/selected", api.selected)
	tg.PUT("/selected", api.selectTask)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
}

func (api *taskApi) list(ctx echo.Context) error {
	api.store.Fetch(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, api.store.Tasks())
}

func (api *taskApi) create(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data.CreatedBy = claims.Subject

	t, err := api.store.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	t, err := api.store.Update(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return notFound(err, task.ErrNotFound, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	if err := api.store.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFound(err, task.ErrNotFound, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// setFilter patches the board filter; the store re-fetches with the merged
// filter and the response carries the narrowed list.
func (api *taskApi) setFilter(ctx echo.Context) error {
	var patch task.FilterPatch
	if err := ctx.Bind(&patch); err != nil {
		return errors.Wrap(err, "binding to FilterPatch")
	}
	api.store.SetFilter(ctx.Request().Context(), patch)
	return ctx.JSON(http.StatusOK, api.store.Tasks())
}

func (api *taskApi) selected(ctx echo.Context) error {
	t, ok := api.store.Selected()
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) selectTask(ctx echo.Context) error {
	var data struct {
		ID string `json:"id"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding selection")
	}
	api.store.Select(data.ID)
	return ctx.NoContent(http.StatusNoContent)
}
