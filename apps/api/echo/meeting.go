package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core/meeting"
)

type meetingApi struct {
	store *meeting.Store
}

func registerMeetingAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *meeting.Store) {
	api := meetingApi{store: store}

	mg := g.Group("/meetings", jwt)
	mg.GET("", api.list)
	mg.POST("", api.create)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.destroy)
	mg.POST("/:id/participants", api.invite)
	mg.DELETE("/:id/participants/:userID", api.uninvite)
}

func (api *meetingApi) list(ctx echo.Context) error {
	api.store.Fetch(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, api.store.Meetings())
}

func (api *meetingApi) create(ctx echo.Context) error {
	var data meeting.NewMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeeting")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data.OrganizerID = claims.Subject

	m, err := api.store.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating meeting")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *meetingApi) update(ctx echo.Context) error {
	var data meeting.UpdateMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMeeting")
	}

	m, err := api.store.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFound(err, meeting.ErrNotFound, "updating meeting")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *meetingApi) destroy(ctx echo.Context) error {
	if err := api.store.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFound(err, meeting.ErrNotFound, "deleting meeting")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *meetingApi) invite(ctx echo.Context) error {
	var data struct {
		UserID string `json:"user_id"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding invite")
	}
	if data.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	m, err := api.store.Invite(ctx.Request().Context(), ctx.Param("id"), data.UserID, claims.Subject)
	if err != nil {
		return notFound(err, meeting.ErrNotFound, "inviting participant")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *meetingApi) uninvite(ctx echo.Context) error {
	m, err := api.store.Uninvite(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userID"))
	if err != nil {
		return notFound(err, meeting.ErrNotFound, "removing participant")
	}
	return ctx.JSON(http.StatusOK, m)
}
