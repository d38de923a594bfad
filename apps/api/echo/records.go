package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/records"
)

type (
	BehaviorRequest struct {
		IncidentDate     string `json:"incident_date" validate:"omitempty,isodate"`
		IncidentType     string `json:"incident_type" validate:"required,oneof=Positive Disciplinary Academic Social Other"`
		Description      string `json:"description" validate:"required,max=2000"`
		ActionTaken      string `json:"action_taken" validate:"max=1000"`
		Severity         string `json:"severity" validate:"omitempty,oneof=Minor Moderate Major Severe"`
		ParentNotified   bool   `json:"parent_notified"`
		FollowUpRequired bool   `json:"follow_up_required"`
		AcademicYear     string `json:"academic_year" validate:"required,max=20"`
	}

	ReportCardRequest struct {
		AcademicYear     string `json:"academic_year" validate:"required,max=20"`
		Term             string `json:"term" validate:"required"`
		TeacherRemarks   string `json:"teacher_remarks" validate:"max=1000"`
		PrincipalRemarks string `json:"principal_remarks" validate:"max=1000"`
	}
)

type recordsApi struct {
	*Server
}

func registerRecordsAPI(g *echo.Group, s *Server) {
	api := recordsApi{s}

	sg := g.Group("/students/:id")
	sg.GET("/behavior", api.behavior)
	sg.POST("/behavior", api.recordBehavior, requireRole(auth.RoleAdmin, auth.RoleTeacher))
	sg.GET("/activities", api.activities)
	sg.POST("/report-cards", api.generateReportCard, requireRole(auth.RoleAdmin, auth.RoleTeacher))
}

func (api recordsApi) behavior(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	studentID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	list, err := api.RecordsSvc.BehavioralRecords(ctx.Request().Context(), p, studentID)
	if err != nil {
		return errors.Wrap(err, "listing behavioral records")
	}
	if list == nil {
		list = []records.BehavioralRecord{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api recordsApi) recordBehavior(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	studentID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data BehaviorRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}
	day, err := parseDate(data.IncidentDate)
	if err != nil {
		return err
	}

	rec, err := api.RecordsSvc.RecordBehavior(ctx.Request().Context(), p, records.BehavioralRecord{
		StudentID:        studentID,
		IncidentDate:     day,
		IncidentType:     data.IncidentType,
		Description:      data.Description,
		ActionTaken:      nullString(data.ActionTaken),
		Severity:         data.Severity,
		ParentNotified:   data.ParentNotified,
		FollowUpRequired: data.FollowUpRequired,
		AcademicYear:     data.AcademicYear,
	})
	if err != nil {
		return errors.Wrap(err, "recording behavior")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api recordsApi) activities(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	studentID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	list, err := api.RecordsSvc.Activities(ctx.Request().Context(), p, studentID)
	if err != nil {
		return errors.Wrap(err, "listing activities")
	}
	if list == nil {
		list = []records.Activity{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api recordsApi) generateReportCard(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	studentID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data ReportCardRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}

	rc, err := api.RecordsSvc.GenerateReportCard(ctx.Request().Context(), p, records.NewReportCard{
		StudentID:        studentID,
		AcademicYear:     data.AcademicYear,
		Term:             data.Term,
		TeacherRemarks:   data.TeacherRemarks,
		PrincipalRemarks: data.PrincipalRemarks,
	})
	if err != nil {
		return errors.Wrap(err, "generating report card")
	}
	return ctx.JSON(http.StatusCreated, rc)
}
