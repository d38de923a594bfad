package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core/auth"
)

type academicApi struct {
	*Server
}

func registerAcademicAPI(g *echo.Group, s *Server) {
	api := academicApi{s}

	g.GET("/academics/current", api.current)
	g.GET("/classes", api.classes)
	g.GET("/classes/:id/timetable", api.classTimetable)
	g.GET("/teachers/me/timetable", api.teacherTimetable, requireRole(auth.RoleTeacher))
}

func (api academicApi) current(ctx echo.Context) error {
	period, err := api.AcademicSvc.Current(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current period")
	}
	return ctx.JSON(http.StatusOK, period)
}

func (api academicApi) classes(ctx echo.Context) error {
	classes, err := api.AcademicSvc.Classes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api academicApi) classTimetable(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	classID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	entries, err := api.AcademicSvc.ClassTimetable(ctx.Request().Context(), p, classID)
	if err != nil {
		return errors.Wrap(err, "getting class timetable")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api academicApi) teacherTimetable(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	entries, err := api.AcademicSvc.TeacherTimetable(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "getting teacher timetable")
	}
	return ctx.JSON(http.StatusOK, entries)
}
