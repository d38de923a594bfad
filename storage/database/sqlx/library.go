package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/library"
)

type libraryRepository struct {
	executor
}

var _ library.Repository = (*libraryRepository)(nil) // interface compliance check

func NewLibraryRepository(exec core.DBExecutor) *libraryRepository {
	return &libraryRepository{executor{exec: exec}}
}

func (repo libraryRepository) LockBook(ctx context.Context, id int, exec ...core.DBExecutor) (library.Book, error) {
	var b library.Book
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT book_id, isbn, title, author, category, total_copies, available_copies
		FROM books WHERE book_id = ? AND is_active = 1 FOR UPDATE`, id,
	).StructScan(&b)
	if err != nil {
		return library.Book{}, trapNoRowsErr(err, library.ErrBookNotFound, "selecting book")
	}
	return b, nil
}

func (repo libraryRepository) AdjustAvailable(ctx context.Context, bookID, delta int, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE books SET available_copies = available_copies + ? WHERE book_id = ?`, delta, bookID)
	return errors.Wrap(err, "updating available copies")
}

func (repo libraryRepository) CreateIssue(ctx context.Context, is library.Issue, exec ...core.DBExecutor) (library.Issue, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO book_issues (book_id, student_id, teacher_id, staff_id, issue_date, due_date, status, issued_by, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		is.BookID, is.StudentID, is.TeacherID, is.StaffID, is.IssueDate.Format(core.DateLayout),
		is.DueDate.Format(core.DateLayout), is.Status, is.IssuedBy, is.Remarks,
	)
	if err != nil {
		return library.Issue{}, trapConstraintErr(err, "borrower", nil, core.NotFound("borrower"), "inserting book issue")
	}
	if is.ID, err = lastInsertID(res); err != nil {
		return library.Issue{}, err
	}
	return is, nil
}

func (repo libraryRepository) LockIssue(ctx context.Context, id int, exec ...core.DBExecutor) (library.Issue, error) {
	var is library.Issue
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT issue_id, book_id, student_id, teacher_id, staff_id, issue_date, due_date, return_date,
			fine_amount, status, issued_by, returned_to, remarks
		FROM book_issues WHERE issue_id = ? FOR UPDATE`, id,
	).StructScan(&is)
	if err != nil {
		return library.Issue{}, trapNoRowsErr(err, library.ErrIssueNotFound, "selecting book issue")
	}
	return is, nil
}

func (repo libraryRepository) CloseIssue(ctx context.Context, is library.Issue, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE book_issues SET return_date = ?, fine_amount = ?, status = ?, returned_to = ?
		WHERE issue_id = ?`,
		is.ReturnDate, is.Fine, is.Status, is.ReturnedTo, is.ID,
	)
	return errors.Wrap(err, "closing book issue")
}
