package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/exam"
)

type ResultRequest struct {
	StudentID       int     `json:"student_id" validate:"required,gt=0"`
	MarksObtained   float64 `json:"marks_obtained" validate:"gte=0"`
	IsAbsent        bool    `json:"is_absent"`
	TeacherComments string  `json:"teacher_comments" validate:"max=1000"`
}

type examApi struct {
	*Server
}

func registerExamAPI(g *echo.Group, s *Server) {
	api := examApi{s}

	g.POST("/exams/:id/results", api.recordResult, requireRole(auth.RoleAdmin, auth.RoleTeacher))
	g.GET("/students/:id/results", api.studentResults)
}

func (api examApi) recordResult(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	examID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data ResultRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}

	res, err := api.ExamSvc.RecordResult(ctx.Request().Context(), p, exam.Result{
		ExamID:          examID,
		StudentID:       data.StudentID,
		MarksObtained:   data.MarksObtained,
		IsAbsent:        data.IsAbsent,
		TeacherComments: nullString(data.TeacherComments),
	})
	if err != nil {
		return errors.Wrap(err, "recording result")
	}
	return ctx.JSON(http.StatusOK, res)
}

// studentResults accepts optional `year` and `term` filters.
func (api examApi) studentResults(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	studentID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	results, err := api.ExamSvc.StudentResults(ctx.Request().Context(), p, studentID, ctx.QueryParam("year"), ctx.QueryParam("term"))
	if err != nil {
		return errors.Wrap(err, "listing results")
	}
	if results == nil {
		results = []exam.StudentResult{}
	}
	return ctx.JSON(http.StatusOK, results)
}
