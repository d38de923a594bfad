package boiledrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/academic"
	"github.com/umoja/academy/core/attendance"
	"github.com/umoja/academy/core/fee"
)

// ReportRepository reads the reporting views: student_fee_summary,
// daily_attendance_summary and timetable_view.
type ReportRepository struct {
	exec core.DBExecutor
}

func NewReportRepository(exec core.DBExecutor) *ReportRepository {
	return &ReportRepository{exec: exec}
}

func (repo ReportRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

const feeSummaryColumns = `student_id, admission_number, student_name, class_name, total_fees, total_paid, balance, payment_status`

func (repo ReportRepository) FeeSummary(ctx context.Context, studentID int, exec ...core.DBExecutor) (fee.Summary, error) {
	var s fee.Summary
	err := queries.Raw(
		`SELECT `+feeSummaryColumns+` FROM student_fee_summary WHERE student_id = ?`,
		studentID,
	).Bind(ctx, repo.getExec(exec), &s)
	if err != nil {
		return fee.Summary{}, trapNoRowsErr(err, core.NotFound("fee summary"), "selecting fee summary")
	}
	return s, nil
}

// Defaulters lists active students with an outstanding balance, largest first.
func (repo ReportRepository) Defaulters(ctx context.Context, exec ...core.DBExecutor) ([]fee.Summary, error) {
	var list []fee.Summary
	err := queries.Raw(
		`SELECT ` + feeSummaryColumns + ` FROM student_fee_summary WHERE balance > 0 ORDER BY balance DESC, student_name`,
	).Bind(ctx, repo.getExec(exec), &list)
	if err != nil {
		return nil, errors.Wrap(err, "selecting defaulters")
	}
	return list, nil
}

func (repo ReportRepository) AttendanceSummary(ctx context.Context, classID int, day time.Time, exec ...core.DBExecutor) (attendance.ClassSummary, error) {
	var s attendance.ClassSummary
	err := queries.Raw(
		`SELECT attendance_date, class_id, class_name, total_students, present_count, absent_count, late_count, attendance_percentage
		FROM daily_attendance_summary
		WHERE class_id = ? AND attendance_date = ?`,
		classID, day.Format(core.DateLayout),
	).Bind(ctx, repo.getExec(exec), &s)
	if err != nil {
		return attendance.ClassSummary{}, trapNoRowsErr(err, core.NotFound("attendance summary"), "selecting attendance summary")
	}
	return s, nil
}

// Timetable reads timetable_view in weekday and slot order.
func (repo ReportRepository) Timetable(ctx context.Context, filter academic.TimetableFilter, exec ...core.DBExecutor) ([]academic.TimetableEntry, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ClassID != 0 {
		conds = append(conds, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != 0 {
		conds = append(conds, "teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.AcademicYear != "" {
		conds = append(conds, "academic_year = ?")
		args = append(args, filter.AcademicYear)
	}
	if filter.Term != "" {
		conds = append(conds, "term = ?")
		args = append(args, filter.Term)
	}

	q := `SELECT timetable_id, class_id, teacher_id, class_name, subject_name, teacher_name, day_of_week,
		slot_name, start_time, end_time, sort_order, room_number, academic_year, term
		FROM timetable_view`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY FIELD(day_of_week, 'Monday', 'Tuesday', 'Wednesday', 'Thursday', 'Friday', 'Saturday', 'Sunday'), sort_order`

	var list []academic.TimetableEntry
	if err := queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), &list); err != nil {
		return nil, errors.Wrap(err, "selecting timetable")
	}
	return list, nil
}
