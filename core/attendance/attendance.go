package attendance

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
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
	StatusLate    = "Late"
	StatusExcused = "Excused"
	StatusHalfDay = "Half Day"
	StatusOnLeave = "On Leave"
)

var (
	ErrStudentNotInClass = errors.New("student is not enrolled in this class")
	ErrFutureDate        = errors.New("attendance cannot be marked for a future date")
)

type (
	// StudentMark is one row of student_attendance, unique per (student, date).
	StudentMark struct {
		ID        int         `json:"id" db:"attendance_id"`
		StudentID int         `json:"student_id" db:"student_id"`
		ClassID   int         `json:"class_id" db:"class_id"`
		Date      time.Time   `json:"date" db:"attendance_date"`
		Status    string      `json:"status" db:"status"`
		TimeIn    null.String `json:"time_in" db:"time_in"`
		TimeOut   null.String `json:"time_out" db:"time_out"`
		Remarks   null.String `json:"remarks" db:"remarks"`
		MarkedBy  int         `json:"marked_by" db:"marked_by"`
	}

	TeacherMark struct {
		ID        int         `json:"id" db:"teacher_attendance_id"`
		TeacherID int         `json:"teacher_id" db:"teacher_id"`
		Date      time.Time   `json:"date" db:"attendance_date"`
		Status    string      `json:"status" db:"status"`
		LeaveType null.String `json:"leave_type" db:"leave_type"`
		TimeIn    null.String `json:"time_in" db:"time_in"`
		TimeOut   null.String `json:"time_out" db:"time_out"`
		Remarks   null.String `json:"remarks" db:"remarks"`
		MarkedBy  null.Int    `json:"marked_by" db:"marked_by"`
	}

	// RollEntry is a class member with their mark for the day, if any.
	RollEntry struct {
		StudentID       int         `json:"student_id" db:"student_id"`
		AdmissionNumber string      `json:"admission_number" db:"admission_number"`
		Name            string      `json:"name" db:"student_name"`
		Status          null.String `json:"status" db:"status"`
		Remarks         null.String `json:"remarks" db:"remarks"`
	}

	// ClassSummary is a row of daily_attendance_summary.
	ClassSummary struct {
		Date       time.Time `json:"date" boil:"attendance_date" db:"attendance_date"`
		ClassID    int       `json:"class_id" boil:"class_id" db:"class_id"`
		ClassName  string    `json:"class_name" boil:"class_name" db:"class_name"`
		Total      int       `json:"total" boil:"total_students" db:"total_students"`
		Present    int       `json:"present" boil:"present_count" db:"present_count"`
		Absent     int       `json:"absent" boil:"absent_count" db:"absent_count"`
		Late       int       `json:"late" boil:"late_count" db:"late_count"`
		Percentage float64   `json:"percentage" boil:"attendance_percentage" db:"attendance_percentage"`
	}

	Repository interface {
		// UpsertStudentMark inserts or updates the (student, date) row.
		UpsertStudentMark(ctx context.Context, m StudentMark, exec ...core.DBExecutor) error
		UpsertTeacherMark(ctx context.Context, m TeacherMark, exec ...core.DBExecutor) error
		StudentClassID(ctx context.Context, studentID int, exec ...core.DBExecutor) (null.Int, error)
		ClassRoll(ctx context.Context, classID int, day time.Time, exec ...core.DBExecutor) ([]RollEntry, error)
		ClassSummary(ctx context.Context, classID int, day time.Time, exec ...core.DBExecutor) (ClassSummary, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		scope   *auth.Scope
		nowFunc func() time.Time
	}
)

func NewService(db core.DB, repo Repository, scope *auth.Scope) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(scope, "scope"),
	).CheckAndPanic()

	return &Service{db: db, repo: repo, scope: scope, nowFunc: time.Now}
}

func (svc *Service) checkDate(day time.Time) (time.Time, error) {
	today := core.Today(svc.nowFunc())
	if day.IsZero() {
		return today, nil
	}
	day = core.Today(day)
	if day.After(today) {
		return time.Time{}, core.NewValidationError(ErrFutureDate, core.FieldError{Field: "date", Error: ErrFutureDate.Error()})
	}
	return day, nil
}

func (svc *Service) markStudent(ctx context.Context, p auth.Principal, classID int, m StudentMark, exec core.DBExecutor) error {
	current, err := svc.repo.StudentClassID(ctx, m.StudentID, exec)
	if err != nil {
		return err
	}
	if !current.Valid || current.Int != classID {
		return core.NewValidationError(ErrStudentNotInClass, core.FieldError{Field: "student_id", Error: ErrStudentNotInClass.Error()})
	}
	m.ClassID = classID
	m.MarkedBy = p.UserID
	return svc.repo.UpsertStudentMark(ctx, m, exec)
}

// MarkStudent records one student's attendance; a second mark for the same day overwrites the first.
func (svc *Service) MarkStudent(ctx context.Context, p auth.Principal, m StudentMark) error {
	if err := p.Require(auth.RoleAdmin, auth.RoleTeacher); err != nil {
		return err
	}
	day, err := svc.checkDate(m.Date)
	if err != nil {
		return err
	}
	m.Date = day
	if err = svc.scope.RequireClass(ctx, p, m.ClassID); err != nil {
		return err
	}
	return svc.markStudent(ctx, p, m.ClassID, m, svc.db)
}

// MarkClass records a whole class register for day in one transaction.
func (svc *Service) MarkClass(ctx context.Context, p auth.Principal, classID int, day time.Time, marks []StudentMark) error {
	if err := p.Require(auth.RoleAdmin, auth.RoleTeacher); err != nil {
		return err
	}
	day, err := svc.checkDate(day)
	if err != nil {
		return err
	}
	if err = svc.scope.RequireClass(ctx, p, classID); err != nil {
		return err
	}
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, m := range marks {
			m.Date = day
			if err := svc.markStudent(ctx, p, classID, m, tx); err != nil {
				return errors.Wrapf(err, "marking student %d", m.StudentID)
			}
		}
		return nil
	})
}

// MarkTeacher records staff attendance. Admins only.
func (svc *Service) MarkTeacher(ctx context.Context, p auth.Principal, m TeacherMark) error {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return err
	}
	day, err := svc.checkDate(m.Date)
	if err != nil {
		return err
	}
	m.Date = day
	m.MarkedBy = null.IntFrom(p.UserID)
	return svc.repo.UpsertTeacherMark(ctx, m)
}

// ClassRoll lists every student of classID with their mark for day.
func (svc *Service) ClassRoll(ctx context.Context, p auth.Principal, classID int, day time.Time) ([]RollEntry, error) {
	if err := p.Require(auth.RoleAdmin, auth.RoleTeacher); err != nil {
		return nil, err
	}
	if err := svc.scope.RequireClass(ctx, p, classID); err != nil {
		return nil, err
	}
	if day.IsZero() {
		day = svc.nowFunc()
	}
	return svc.repo.ClassRoll(ctx, classID, core.Today(day))
}

// Summary returns the tally for classID on day; a day without marks yields a zero summary.
func (svc *Service) Summary(ctx context.Context, p auth.Principal, classID int, day time.Time) (ClassSummary, error) {
	if err := svc.scope.RequireClass(ctx, p, classID); err != nil {
		return ClassSummary{}, err
	}
	if day.IsZero() {
		day = svc.nowFunc()
	}
	day = core.Today(day)
	sum, err := svc.repo.ClassSummary(ctx, classID, day)
	if err != nil {
		if core.IsNotFound(err) {
			return ClassSummary{Date: day, ClassID: classID}, nil
		}
		return ClassSummary{}, err
	}
	return sum, nil
}
