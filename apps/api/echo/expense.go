package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core/expense"
)

type expenseApi struct {
	store *expense.Store
}

func registerExpenseAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *expense.Store) {
	api := expenseApi{store: store}

	eg := g.Group("/expenses", jwt)
	eg.GET("", api.list)
	eg.POST("", api.create)
	eg.GET("/totals", api.totals)
	eg.PUT("/:id", api.update)
	eg.DELETE("/:id", api.destroy)
}

func (api *expenseApi) list(ctx echo.Context) error {
	api.store.Fetch(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, api.store.Expenses())
}

// totals reports the running spend per currency, in cents.
func (api *expenseApi) totals(ctx echo.Context) error {
	api.store.Fetch(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, api.store.TotalCents())
}

func (api *expenseApi) create(ctx echo.Context) error {
	var data expense.NewExpense
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExpense")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data.CreatedBy = claims.Subject

	exp, err := api.store.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating expense")
	}
	return ctx.JSON(http.StatusCreated, exp)
}

func (api *expenseApi) update(ctx echo.Context) error {
	var data expense.UpdateExpense
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExpense")
	}

	exp, err := api.store.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFound(err, expense.ErrNotFound, "updating expense")
	}
	return ctx.JSON(http.StatusOK, exp)
}

func (api *expenseApi) destroy(ctx echo.Context) error {
	if err := api.store.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFound(err, expense.ErrNotFound, "deleting expense")
	}
	return ctx.NoContent(http.StatusNoContent)
}
