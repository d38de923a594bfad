package library

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

const (
	StatusIssued   = "Issued"
	StatusReturned = "Returned"
	StatusLost     = "Lost"
	StatusDamaged  = "Damaged"

	DefaultLoanDays = 14
)

var (
	ErrBookNotFound    = core.NotFound("book")
	ErrIssueNotFound   = core.NotFound("book issue")
	ErrOneBorrower     = errors.New("exactly one of student, teacher or staff must borrow the book")
	ErrNoCopies        = errors.New("no copies of this book are available")
	ErrAlreadyReturned = errors.New("this book has already been returned")
	ErrDueBeforeIssue  = errors.New("due date cannot be before the issue date")
)

type (
	Book struct {
		ID              int         `json:"id" db:"book_id"`
		ISBN            null.String `json:"isbn" db:"isbn"`
		Title           string      `json:"title" db:"title"`
		Author          string      `json:"author" db:"author"`
		Category        null.String `json:"category" db:"category"`
		TotalCopies     int         `json:"total_copies" db:"total_copies"`
		AvailableCopies int         `json:"available_copies" db:"available_copies"`
	}

	// Borrower names exactly one of a student, teacher or staff member.
	Borrower struct {
		StudentID null.Int `json:"student_id" db:"student_id"`
		TeacherID null.Int `json:"teacher_id" db:"teacher_id"`
		StaffID   null.Int `json:"staff_id" db:"staff_id"`
	}

	Issue struct {
		ID int `json:"id" db:"issue_id"`
		Borrower
		BookID     int         `json:"book_id" db:"book_id"`
		IssueDate  time.Time   `json:"issue_date" db:"issue_date"`
		DueDate    time.Time   `json:"due_date" db:"due_date"`
		ReturnDate null.Time   `json:"return_date" db:"return_date"`
		Fine       float64     `json:"fine_amount" db:"fine_amount"`
		Status     string      `json:"status" db:"status"`
		IssuedBy   int         `json:"issued_by" db:"issued_by"`
		ReturnedTo null.Int    `json:"returned_to" db:"returned_to"`
		Remarks    null.String `json:"remarks" db:"remarks"`
	}

	NewIssue struct {
		BookID   int
		Borrower Borrower
		DueDate  time.Time
		Remarks  string
	}

	Repository interface {
		// LockBook reads the book row FOR UPDATE; exec must be a transaction.
		LockBook(ctx context.Context, id int, exec ...core.DBExecutor) (Book, error)
		// AdjustAvailable adds delta to the book's available copies.
		AdjustAvailable(ctx context.Context, bookID, delta int, exec ...core.DBExecutor) error
		CreateIssue(ctx context.Context, is Issue, exec ...core.DBExecutor) (Issue, error)
		LockIssue(ctx context.Context, id int, exec ...core.DBExecutor) (Issue, error)
		CloseIssue(ctx context.Context, is Issue, exec ...core.DBExecutor) error
	}

	Service struct {
		db         core.DB
		repo       Repository
		finePerDay float64
		nowFunc    func() time.Time
	}
)

func NewService(db core.DB, repo Repository, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{db: db, repo: repo, finePerDay: conf.LibraryFinePerDay, nowFunc: time.Now}
}

// Valid reports whether exactly one borrower kind is set.
func (b Borrower) Valid() bool {
	n := 0
	for _, id := range []null.Int{b.StudentID, b.TeacherID, b.StaffID} {
		if id.Valid {
			n++
		}
	}
	return n == 1
}

// Fine charges finePerDay for each full day returned after due.
func Fine(due, returned time.Time, finePerDay float64) float64 {
	days := int(core.Today(returned).Sub(core.Today(due)).Hours() / 24)
	if days <= 0 {
		return 0
	}
	return core.Round(float64(days)*finePerDay, 2)
}

// Issue lends a copy of a book, decrementing its available copies in the same transaction.
func (svc *Service) Issue(ctx context.Context, p auth.Principal, ni NewIssue) (Issue, error) {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return Issue{}, err
	}
	if !ni.Borrower.Valid() {
		return Issue{}, core.NewValidationError(ErrOneBorrower, core.FieldError{Field: "borrower", Error: ErrOneBorrower.Error()})
	}
	today := core.Today(svc.nowFunc())
	due := ni.DueDate
	if due.IsZero() {
		due = today.AddDate(0, 0, DefaultLoanDays)
	}
	if core.Today(due).Before(today) {
		return Issue{}, core.NewValidationError(ErrDueBeforeIssue, core.FieldError{Field: "due_date", Error: ErrDueBeforeIssue.Error()})
	}

	var is Issue
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		book, err := svc.repo.LockBook(ctx, ni.BookID, tx)
		if err != nil {
			return err
		}
		if book.AvailableCopies <= 0 {
			return core.NewValidationError(ErrNoCopies, core.FieldError{Field: "book_id", Error: ErrNoCopies.Error()})
		}
		if err = svc.repo.AdjustAvailable(ctx, book.ID, -1, tx); err != nil {
			return errors.Wrap(err, "decrementing copies")
		}
		is, err = svc.repo.CreateIssue(ctx, Issue{
			Borrower:  ni.Borrower,
			BookID:    book.ID,
			IssueDate: today,
			DueDate:   core.Today(due),
			Status:    StatusIssued,
			IssuedBy:  p.UserID,
			Remarks:   null.NewString(ni.Remarks, ni.Remarks != ""),
		}, tx)
		return err
	})
	if err != nil {
		return Issue{}, err
	}
	return is, nil
}

// Return closes an issue, charging the overdue fine and putting the copy back.
func (svc *Service) Return(ctx context.Context, p auth.Principal, issueID int) (Issue, error) {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return Issue{}, err
	}
	today := core.Today(svc.nowFunc())

	var is Issue
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		is, err = svc.repo.LockIssue(ctx, issueID, tx)
		if err != nil {
			return err
		}
		if is.Status != StatusIssued {
			return core.NewValidationError(ErrAlreadyReturned)
		}
		is.ReturnDate = null.TimeFrom(today)
		is.Fine = Fine(is.DueDate, today, svc.finePerDay)
		is.Status = StatusReturned
		is.ReturnedTo = null.IntFrom(p.UserID)
		if err = svc.repo.CloseIssue(ctx, is, tx); err != nil {
			return errors.Wrap(err, "closing issue")
		}
		return errors.Wrap(svc.repo.AdjustAvailable(ctx, is.BookID, 1, tx), "incrementing copies")
	})
	if err != nil {
		return Issue{}, err
	}
	return is, nil
}
