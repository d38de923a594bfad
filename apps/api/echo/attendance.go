package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core/attendance"
	"github.com/umoja/academy/core/auth"
)

type (
	StudentMarkRequest struct {
		StudentID int    `json:"student_id" validate:"required,gt=0"`
		ClassID   int    `json:"class_id" validate:"required,gt=0"`
		Date      string `json:"date" validate:"omitempty,isodate"`
		Status    string `json:"status" validate:"required,attendance_status"`
		TimeIn    string `json:"time_in"`
		TimeOut   string `json:"time_out"`
		Remarks   string `json:"remarks" validate:"max=500"`
	}

	ClassMark struct {
		StudentID int    `json:"student_id" validate:"required,gt=0"`
		Status    string `json:"status" validate:"required,attendance_status"`
		Remarks   string `json:"remarks" validate:"max=500"`
	}

	ClassRegisterRequest struct {
		Date  string      `json:"date" validate:"omitempty,isodate"`
		Marks []ClassMark `json:"marks" validate:"required,min=1,dive"`
	}

	TeacherMarkRequest struct {
		TeacherID int    `json:"teacher_id" validate:"required,gt=0"`
		Date      string `json:"date" validate:"omitempty,isodate"`
		Status    string `json:"status" validate:"required,teacher_attendance_status"`
		LeaveType string `json:"leave_type"`
		TimeIn    string `json:"time_in"`
		TimeOut   string `json:"time_out"`
		Remarks   string `json:"remarks" validate:"max=500"`
	}
)

type attendanceApi struct {
	*Server
}

func registerAttendanceAPI(g *echo.Group, s *Server) {
	api := attendanceApi{s}

	ag := g.Group("/attendance")
	ag.POST("/students", api.markStudent, requireRole(auth.RoleAdmin, auth.RoleTeacher))
	ag.POST("/teachers", api.markTeacher, requireRole(auth.RoleAdmin))
	ag.GET("/classes/:id", api.classRoll, requireRole(auth.RoleAdmin, auth.RoleTeacher))
	ag.POST("/classes/:id", api.markClass, requireRole(auth.RoleAdmin, auth.RoleTeacher))
	ag.GET("/classes/:id/summary", api.summary)
}

func (api attendanceApi) markStudent(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data StudentMarkRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}
	day, err := parseDate(data.Date)
	if err != nil {
		return err
	}

	m := attendance.StudentMark{
		StudentID: data.StudentID,
		ClassID:   data.ClassID,
		Date:      day,
		Status:    data.Status,
		TimeIn:    nullString(data.TimeIn),
		TimeOut:   nullString(data.TimeOut),
		Remarks:   nullString(data.Remarks),
	}
	if err = api.AttendanceSvc.MarkStudent(ctx.Request().Context(), p, m); err != nil {
		return errors.Wrap(err, "marking student attendance")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api attendanceApi) markClass(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	classID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data ClassRegisterRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}
	day, err := parseDate(data.Date)
	if err != nil {
		return err
	}

	marks := make([]attendance.StudentMark, len(data.Marks))
	for i, m := range data.Marks {
		marks[i] = attendance.StudentMark{StudentID: m.StudentID, Status: m.Status, Remarks: nullString(m.Remarks)}
	}
	if err = api.AttendanceSvc.MarkClass(ctx.Request().Context(), p, classID, day, marks); err != nil {
		return errors.Wrap(err, "marking class register")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api attendanceApi) markTeacher(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data TeacherMarkRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}
	day, err := parseDate(data.Date)
	if err != nil {
		return err
	}

	m := attendance.TeacherMark{
		TeacherID: data.TeacherID,
		Date:      day,
		Status:    data.Status,
		LeaveType: nullString(data.LeaveType),
		TimeIn:    nullString(data.TimeIn),
		TimeOut:   nullString(data.TimeOut),
		Remarks:   nullString(data.Remarks),
	}
	if err = api.AttendanceSvc.MarkTeacher(ctx.Request().Context(), p, m); err != nil {
		return errors.Wrap(err, "marking teacher attendance")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api attendanceApi) classRoll(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	classID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	day, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	roll, err := api.AttendanceSvc.ClassRoll(ctx.Request().Context(), p, classID, day)
	if err != nil {
		return errors.Wrap(err, "getting class roll")
	}
	if roll == nil {
		roll = []attendance.RollEntry{}
	}
	return ctx.JSON(http.StatusOK, roll)
}

func (api attendanceApi) summary(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	classID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	day, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	sum, err := api.AttendanceSvc.Summary(ctx.Request().Context(), p, classID, day)
	if err != nil {
		return errors.Wrap(err, "getting attendance summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}
