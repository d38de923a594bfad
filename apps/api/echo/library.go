package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/library"
)

// IssueRequest names exactly one borrower.
type IssueRequest struct {
	BookID    int      `json:"book_id" validate:"required,gt=0"`
	StudentID null.Int `json:"student_id"`
	TeacherID null.Int `json:"teacher_id"`
	StaffID   null.Int `json:"staff_id"`
	DueDate   string   `json:"due_date" validate:"required,isodate"`
	Remarks   string   `json:"remarks" validate:"max=500"`
}

type libraryApi struct {
	*Server
}

func registerLibraryAPI(g *echo.Group, s *Server) {
	api := libraryApi{s}

	lg := g.Group("/library", requireRole(auth.RoleAdmin))
	lg.POST("/issues", api.issue)
	lg.POST("/issues/:id/return", api.giveBack)
}

func (api libraryApi) issue(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data IssueRequest
	if err = api.bind(ctx, &data); err != nil {
		return err
	}
	due, err := parseDate(data.DueDate)
	if err != nil {
		return err
	}

	is, err := api.LibrarySvc.Issue(ctx.Request().Context(), p, library.NewIssue{
		BookID: data.BookID,
		Borrower: library.Borrower{
			StudentID: data.StudentID,
			TeacherID: data.TeacherID,
			StaffID:   data.StaffID,
		},
		DueDate: due,
		Remarks: data.Remarks,
	})
	if err != nil {
		return errors.Wrap(err, "issuing book")
	}
	return ctx.JSON(http.StatusCreated, is)
}

func (api libraryApi) giveBack(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	issueID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	is, err := api.LibrarySvc.Return(ctx.Request().Context(), p, issueID)
	if err != nil {
		return errors.Wrap(err, "returning book")
	}
	return ctx.JSON(http.StatusOK, is)
}
