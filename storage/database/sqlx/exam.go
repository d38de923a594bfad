package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/exam"
)

type examRepository struct {
	executor
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(exec core.DBExecutor) *examRepository {
	return &examRepository{executor{exec: exec}}
}

func (repo examRepository) GetExam(ctx context.Context, id int, exec ...core.DBExecutor) (exam.Exam, error) {
	var ex exam.Exam
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT exam_id, exam_name, exam_type, class_id, subject_id, exam_date, total_marks, pass_marks,
			teacher_id, academic_year, term, is_published
		FROM exams WHERE exam_id = ?`, id,
	).StructScan(&ex)
	if err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrExamNotFound, "selecting exam")
	}
	return ex, nil
}

func (repo examRepository) StudentInClass(ctx context.Context, studentID, classID int, exec ...core.DBExecutor) (bool, error) {
	var ok bool
	err := repo.getExec(exec).QueryRowxContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM students WHERE student_id = ? AND class_id = ?)`, studentID, classID,
	).Scan(&ok)
	if err != nil {
		return false, errors.Wrap(err, "checking enrolment")
	}
	return ok, nil
}

// UpsertResult never writes percentage: the column is generated.
func (repo examRepository) UpsertResult(ctx context.Context, r exam.Result, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO exam_results (exam_id, student_id, marks_obtained, total_marks, grade, teacher_comments, is_absent)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			marks_obtained = VALUES(marks_obtained), total_marks = VALUES(total_marks), grade = VALUES(grade),
			teacher_comments = VALUES(teacher_comments), is_absent = VALUES(is_absent)`,
		r.ExamID, r.StudentID, r.MarksObtained, r.TotalMarks, r.Grade, r.TeacherComments, r.IsAbsent,
	)
	if err != nil {
		return trapConstraintErr(err, "student_id", nil, errStudentNotFound, "upserting exam result")
	}
	return nil
}

func (repo examRepository) StudentResults(ctx context.Context, filter exam.ResultsFilter, exec ...core.DBExecutor) ([]exam.StudentResult, error) {
	q := `
		SELECT er.exam_result_id, er.exam_id, er.student_id, er.marks_obtained, er.total_marks, er.percentage,
			er.grade, er.teacher_comments, er.is_absent,
			e.exam_name, e.exam_type, e.exam_date, sub.subject_name, e.term, e.pass_marks
		FROM exam_results er
			JOIN exams e ON e.exam_id = er.exam_id
			JOIN subjects sub ON sub.subject_id = e.subject_id
		WHERE er.student_id = ?`
	args := []interface{}{filter.StudentID}
	if filter.AcademicYear != "" {
		q += ` AND e.academic_year = ?`
		args = append(args, filter.AcademicYear)
	}
	if filter.Term != "" {
		q += ` AND e.term = ?`
		args = append(args, filter.Term)
	}
	if filter.PublishedOnly {
		q += ` AND e.is_published = 1`
	}
	q += ` ORDER BY e.exam_date DESC, sub.subject_name`

	var results []exam.StudentResult
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &results, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting results")
	}
	return results, nil
}
