package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

var (
	ErrExamNotFound     = core.NotFound("exam")
	ErrMarksOutOfRange  = errors.New("marks obtained must be between 0 and the exam's total marks")
	ErrNoTotalMarks     = errors.New("exam has no total marks set")
	ErrStudentNotInExam = errors.New("student is not in the class sitting this exam")
)

type (
	Exam struct {
		ID           int       `json:"id" db:"exam_id"`
		Name         string    `json:"name" db:"exam_name"`
		Type         string    `json:"type" db:"exam_type"`
		ClassID      int       `json:"class_id" db:"class_id"`
		SubjectID    int       `json:"subject_id" db:"subject_id"`
		Date         time.Time `json:"date" db:"exam_date"`
		TotalMarks   float64   `json:"total_marks" db:"total_marks"`
		PassMarks    float64   `json:"pass_marks" db:"pass_marks"`
		TeacherID    null.Int  `json:"teacher_id" db:"teacher_id"`
		AcademicYear string    `json:"academic_year" db:"academic_year"`
		Term         string    `json:"term" db:"term"`
		IsPublished  bool      `json:"is_published" db:"is_published"`
	}

	Result struct {
		ID              int          `json:"id" db:"exam_result_id"`
		ExamID          int          `json:"exam_id" db:"exam_id"`
		StudentID       int          `json:"student_id" db:"student_id"`
		MarksObtained   float64      `json:"marks_obtained" db:"marks_obtained"`
		TotalMarks      float64      `json:"total_marks" db:"total_marks"`
		Percentage      null.Float64 `json:"percentage" db:"percentage"`
		Grade           null.String  `json:"grade" db:"grade"`
		TeacherComments null.String  `json:"teacher_comments" db:"teacher_comments"`
		IsAbsent        bool         `json:"is_absent" db:"is_absent"`
	}

	// StudentResult is a result joined with its exam and subject for listings.
	StudentResult struct {
		Result
		ExamName    string    `json:"exam_name" db:"exam_name"`
		ExamType    string    `json:"exam_type" db:"exam_type"`
		ExamDate    time.Time `json:"exam_date" db:"exam_date"`
		SubjectName string    `json:"subject_name" db:"subject_name"`
		Term        string    `json:"term" db:"term"`
		PassMarks   float64   `json:"pass_marks" db:"pass_marks"`
	}

	ResultsFilter struct {
		StudentID     int
		AcademicYear  string
		Term          string
		PublishedOnly bool
	}

	Repository interface {
		GetExam(ctx context.Context, id int, exec ...core.DBExecutor) (Exam, error)
		StudentInClass(ctx context.Context, studentID, classID int, exec ...core.DBExecutor) (bool, error)
		// UpsertResult inserts or updates the (exam, student) row.
		UpsertResult(ctx context.Context, r Result, exec ...core.DBExecutor) error
		StudentResults(ctx context.Context, filter ResultsFilter, exec ...core.DBExecutor) ([]StudentResult, error)
	}

	Service struct {
		repo  Repository
		scope *auth.Scope
	}
)

func NewService(repo Repository, scope *auth.Scope) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(scope, "scope"),
	).CheckAndPanic()

	return &Service{repo: repo, scope: scope}
}

// LetterGrade maps a percentage to the school's A..E scale.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B"
	case percentage >= 60:
		return "C"
	case percentage >= 50:
		return "D"
	default:
		return "E"
	}
}

// RecordResult upserts a student's marks for an exam. Absent students get no grade.
func (svc *Service) RecordResult(ctx context.Context, p auth.Principal, r Result) (Result, error) {
	if err := p.Require(auth.RoleAdmin, auth.RoleTeacher); err != nil {
		return Result{}, err
	}
	ex, err := svc.repo.GetExam(ctx, r.ExamID)
	if err != nil {
		return Result{}, err
	}
	if err = svc.scope.RequireClass(ctx, p, ex.ClassID); err != nil {
		return Result{}, err
	}
	if ex.TotalMarks <= 0 {
		return Result{}, core.NewValidationError(ErrNoTotalMarks, core.FieldError{Field: "exam_id", Error: ErrNoTotalMarks.Error()})
	}
	ok, err := svc.repo.StudentInClass(ctx, r.StudentID, ex.ClassID)
	if err != nil {
		return Result{}, errors.Wrap(err, "checking enrolment")
	}
	if !ok {
		return Result{}, core.NewValidationError(ErrStudentNotInExam, core.FieldError{Field: "student_id", Error: ErrStudentNotInExam.Error()})
	}

	r.TotalMarks = ex.TotalMarks
	if r.IsAbsent {
		r.MarksObtained = 0
		r.Grade = null.String{}
	} else {
		if r.MarksObtained < 0 || r.MarksObtained > ex.TotalMarks {
			msg := fmt.Sprintf("marks obtained must be between 0 and %.2f", ex.TotalMarks)
			return Result{}, core.NewValidationError(ErrMarksOutOfRange, core.FieldError{Field: "marks_obtained", Error: msg})
		}
		r.Grade = null.StringFrom(LetterGrade(r.MarksObtained / ex.TotalMarks * 100))
	}
	r.Percentage = null.Float64From(core.Round(r.MarksObtained/ex.TotalMarks*100, 2))

	if err = svc.repo.UpsertResult(ctx, r); err != nil {
		return Result{}, errors.Wrap(err, "saving result")
	}
	return r, nil
}

// StudentResults lists the results of studentID visible to p. Students and
// parents only see published exams.
func (svc *Service) StudentResults(ctx context.Context, p auth.Principal, studentID int, year, term string) ([]StudentResult, error) {
	if err := svc.scope.RequireStudent(ctx, p, studentID); err != nil {
		return nil, err
	}
	filter := ResultsFilter{StudentID: studentID, AcademicYear: year, Term: term}
	switch p.Role {
	case auth.RoleAdmin, auth.RoleTeacher:
	case auth.RoleStudent, auth.RoleParent:
		filter.PublishedOnly = true
	default:
		return nil, auth.ErrUnknownRole
	}
	return svc.repo.StudentResults(ctx, filter)
}
