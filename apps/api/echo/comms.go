package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core/comms"
)

type commsApi struct {
	*Server
}

func registerCommsAPI(g *echo.Group, s *Server) {
	api := commsApi{s}

	g.GET("/announcements", api.announcements)
	g.GET("/events", api.events)
}

func (api commsApi) announcements(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	list, err := api.CommsSvc.Announcements(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "listing announcements")
	}
	if list == nil {
		list = []comms.Announcement{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api commsApi) events(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	list, err := api.CommsSvc.UpcomingEvents(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "listing events")
	}
	if list == nil {
		list = []comms.Event{}
	}
	return ctx.JSON(http.StatusOK, list)
}
