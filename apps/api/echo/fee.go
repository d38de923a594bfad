package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/fee"
)

type (
	PaymentRequest struct {
		Amount    float64 `json:"amount" validate:"required,gt=0"`
		Method    string  `json:"payment_method" validate:"required,payment_method"`
		Reference string  `json:"transaction_reference" validate:"max=100"`
		Remarks   string  `json:"remarks" validate:"max=500"`
		Date      string  `json:"payment_date" validate:"omitempty,isodate"`
	}

	BillRequest struct {
		StudentID    int    `json:"student_id" validate:"required,gt=0"`
		FeeTypeID    int    `json:"fee_type_id" validate:"required,gt=0"`
		GradeID      int    `json:"grade_id" validate:"required,gt=0"`
		DueDate      string `json:"due_date" validate:"required,isodate"`
		AcademicYear string `json:"academic_year" validate:"required,max=20"`
		Term         string `json:"term" validate:"required"`
	}

	StudentFeesResponse struct {
		Fees    []fee.StudentFee `json:"fees"`
		Summary fee.Summary      `json:"summary"`
	}
)

type feeApi struct {
	*Server
}

func registerFeeAPI(g *echo.Group, s *Server) {
	api := feeApi{s}

	g.GET("/students/:id/fees", api.studentFees)

	fg := g.Group("/fees", requireRole(auth.RoleAdmin))
	fg.POST("", api.bill)
	fg.GET("/defaulters", api.defaulters)
	fg.POST("/:id/payments", api.recordPayment)
}

func (api feeApi) studentFees(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	studentID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	fees, summary, err := api.FeeSvc.StudentFees(ctx.Request().Context(), p, studentID)
	if err != nil {
		return errors.Wrap(err, "listing student fees")
	}
	if fees == nil {
		fees = []fee.StudentFee{}
	}
	return ctx.JSON(http.StatusOK, StudentFeesResponse{Fees: fees, Summary: summary})
}

func (api feeApi) bill(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data BillRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}
	due, err := parseDate(data.DueDate)
	if err != nil {
		return err
	}

	sf, err := api.FeeSvc.Bill(ctx.Request().Context(), p, fee.NewBill{
		StudentID:    data.StudentID,
		FeeTypeID:    data.FeeTypeID,
		GradeID:      data.GradeID,
		DueDate:      due,
		AcademicYear: data.AcademicYear,
		Term:         data.Term,
	})
	if err != nil {
		return errors.Wrap(err, "billing student")
	}
	return ctx.JSON(http.StatusCreated, sf)
}

func (api feeApi) recordPayment(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	feeID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data PaymentRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}
	day, err := parseDate(data.Date)
	if err != nil {
		return err
	}

	rcpt, err := api.FeeSvc.RecordPayment(ctx.Request().Context(), p, fee.NewPayment{
		StudentFeeID: feeID,
		Amount:       data.Amount,
		Method:       data.Method,
		Reference:    data.Reference,
		Remarks:      data.Remarks,
		Date:         day,
	})
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, rcpt)
}

func (api feeApi) defaulters(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	list, err := api.FeeSvc.Defaulters(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "listing defaulters")
	}
	if list == nil {
		list = []fee.Summary{}
	}
	return ctx.JSON(http.StatusOK, list)
}
