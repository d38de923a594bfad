package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/attendance"
	"github.com/umoja/academy/storage/database/sqlboiler"
)

var errStudentNotFound = core.NotFound("student")

type attendanceRepository struct {
	executor
	reports *boiledrepos.ReportRepository
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{executor: executor{exec: exec}, reports: boiledrepos.NewReportRepository(exec)}
}

func (repo attendanceRepository) UpsertStudentMark(ctx context.Context, m attendance.StudentMark, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO student_attendance (student_id, class_id, attendance_date, status, time_in, time_out, remarks, marked_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			class_id = VALUES(class_id), status = VALUES(status), time_in = VALUES(time_in),
			time_out = VALUES(time_out), remarks = VALUES(remarks), marked_by = VALUES(marked_by)`,
		m.StudentID, m.ClassID, m.Date.Format(core.DateLayout), m.Status, m.TimeIn, m.TimeOut, m.Remarks, m.MarkedBy,
	)
	if err != nil {
		return trapConstraintErr(err, "student_id", nil, errStudentNotFound, "upserting student attendance")
	}
	return nil
}

func (repo attendanceRepository) UpsertTeacherMark(ctx context.Context, m attendance.TeacherMark, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO teacher_attendance (teacher_id, attendance_date, status, leave_type, time_in, time_out, remarks, marked_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), leave_type = VALUES(leave_type), time_in = VALUES(time_in),
			time_out = VALUES(time_out), remarks = VALUES(remarks), marked_by = VALUES(marked_by)`,
		m.TeacherID, m.Date.Format(core.DateLayout), m.Status, m.LeaveType, m.TimeIn, m.TimeOut, m.Remarks, m.MarkedBy,
	)
	if err != nil {
		return trapConstraintErr(err, "teacher_id", nil, core.NotFound("teacher"), "upserting teacher attendance")
	}
	return nil
}

func (repo attendanceRepository) StudentClassID(ctx context.Context, studentID int, exec ...core.DBExecutor) (null.Int, error) {
	var classID null.Int
	err := repo.getExec(exec).QueryRowxContext(ctx, `SELECT class_id FROM students WHERE student_id = ?`, studentID).Scan(&classID)
	if err != nil {
		return null.Int{}, trapNoRowsErr(err, errStudentNotFound, "selecting student class")
	}
	return classID, nil
}

func (repo attendanceRepository) ClassRoll(ctx context.Context, classID int, day time.Time, exec ...core.DBExecutor) ([]attendance.RollEntry, error) {
	var roll []attendance.RollEntry
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &roll, `
		SELECT s.student_id, s.admission_number,
			CONCAT(p.first_name, ' ', p.last_name) AS student_name,
			sa.status, sa.remarks
		FROM students s
			JOIN persons p ON p.person_id = s.person_id
			LEFT JOIN student_attendance sa ON sa.student_id = s.student_id AND sa.attendance_date = ?
		WHERE s.class_id = ? AND s.student_status = 'Active'
		ORDER BY p.first_name, p.last_name`,
		day.Format(core.DateLayout), classID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting class roll")
	}
	return roll, nil
}

func (repo attendanceRepository) ClassSummary(ctx context.Context, classID int, day time.Time, exec ...core.DBExecutor) (attendance.ClassSummary, error) {
	return repo.reports.AttendanceSummary(ctx, classID, day, exec...)
}
