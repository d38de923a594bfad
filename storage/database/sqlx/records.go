package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/records"
)

type recordsRepository struct {
	executor
}

var _ records.Repository = (*recordsRepository)(nil) // interface compliance check

func NewRecordsRepository(exec core.DBExecutor) *recordsRepository {
	return &recordsRepository{executor{exec: exec}}
}

func (repo recordsRepository) StudentClassID(ctx context.Context, studentID int, exec ...core.DBExecutor) (null.Int, error) {
	var classID null.Int
	err := repo.getExec(exec).QueryRowxContext(ctx, `SELECT class_id FROM students WHERE student_id = ?`, studentID).Scan(&classID)
	if err != nil {
		return null.Int{}, trapNoRowsErr(err, records.ErrStudentNotFound, "selecting student class")
	}
	return classID, nil
}

func (repo recordsRepository) BehavioralRecords(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]records.BehavioralRecord, error) {
	var list []records.BehavioralRecord
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &list, `
		SELECT record_id, student_id, incident_date, incident_type, description, action_taken, severity,
			recorded_by, parent_notified, follow_up_required, academic_year
		FROM behavioral_records WHERE student_id = ?
		ORDER BY incident_date DESC, record_id DESC`,
		studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting behavioral records")
	}
	return list, nil
}

func (repo recordsRepository) CreateBehavioralRecord(ctx context.Context, r records.BehavioralRecord, exec ...core.DBExecutor) (records.BehavioralRecord, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO behavioral_records (student_id, incident_date, incident_type, description, action_taken, severity,
			recorded_by, parent_notified, follow_up_required, academic_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StudentID, r.IncidentDate.Format(core.DateLayout), r.IncidentType, r.Description, r.ActionTaken, r.Severity,
		r.RecordedBy, r.ParentNotified, r.FollowUpRequired, r.AcademicYear,
	)
	if err != nil {
		return records.BehavioralRecord{}, trapConstraintErr(err, "student_id", nil, records.ErrStudentNotFound, "inserting behavioral record")
	}
	if r.ID, err = lastInsertID(res); err != nil {
		return records.BehavioralRecord{}, err
	}
	return r, nil
}

func (repo recordsRepository) Activities(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]records.Activity, error) {
	var list []records.Activity
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &list, `
		SELECT activity_id, student_id, activity_name, activity_type, participation_level, achievements,
			start_date, end_date, academic_year, supervisor_id
		FROM extracurricular_activities WHERE student_id = ?
		ORDER BY start_date DESC, activity_id`,
		studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting activities")
	}
	return list, nil
}

func (repo recordsRepository) ResultTotals(ctx context.Context, studentID int, year, term string, exec ...core.DBExecutor) (records.Totals, error) {
	var t records.Totals
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(er.total_marks), 0) AS total_marks, COALESCE(SUM(er.marks_obtained), 0) AS obtained_marks
		FROM exam_results er JOIN exams e ON e.exam_id = er.exam_id
		WHERE er.student_id = ? AND e.academic_year = ? AND e.term = ? AND er.is_absent = 0`,
		studentID, year, term,
	).StructScan(&t)
	if err != nil {
		return records.Totals{}, errors.Wrap(err, "summing results")
	}
	return t, nil
}

func (repo recordsRepository) TermDates(ctx context.Context, year, term string, exec ...core.DBExecutor) (time.Time, time.Time, error) {
	var dates struct {
		Start time.Time `db:"start_date"`
		End   time.Time `db:"end_date"`
	}
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT t.start_date, t.end_date
		FROM terms t JOIN academic_years y ON y.academic_year_id = t.academic_year_id
		WHERE y.year_name = ? AND t.term_name = ?
		LIMIT 1`,
		year, term,
	).StructScan(&dates)
	if err != nil {
		return time.Time{}, time.Time{}, trapNoRowsErr(err, core.NotFound("term"), "selecting term dates")
	}
	return dates.Start, dates.End, nil
}

func (repo recordsRepository) Presence(ctx context.Context, studentID int, from, to time.Time, exec ...core.DBExecutor) (records.Presence, error) {
	var p records.Presence
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(status IN ('Present', 'Late')), 0) AS attended, COUNT(*) AS total
		FROM student_attendance
		WHERE student_id = ? AND attendance_date BETWEEN ? AND ?`,
		studentID, from.Format(core.DateLayout), to.Format(core.DateLayout),
	).StructScan(&p)
	if err != nil {
		return records.Presence{}, errors.Wrap(err, "counting attendance")
	}
	return p, nil
}

func (repo recordsRepository) UpsertReportCard(ctx context.Context, rc records.ReportCard, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO report_cards (student_id, class_id, academic_year, term, total_marks, obtained_marks, percentage, grade,
			attendance_percentage, teacher_remarks, principal_remarks, generated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			class_id = VALUES(class_id), total_marks = VALUES(total_marks), obtained_marks = VALUES(obtained_marks),
			percentage = VALUES(percentage), grade = VALUES(grade), attendance_percentage = VALUES(attendance_percentage),
			teacher_remarks = VALUES(teacher_remarks), principal_remarks = VALUES(principal_remarks),
			generated_by = VALUES(generated_by), generated_at = CURRENT_TIMESTAMP`,
		rc.StudentID, rc.ClassID, rc.AcademicYear, rc.Term, rc.TotalMarks, rc.ObtainedMarks, rc.Percentage, rc.Grade,
		rc.AttendancePercentage, rc.TeacherRemarks, rc.PrincipalRemarks, rc.GeneratedBy,
	)
	return errors.Wrap(err, "upserting report card")
}

// RankClass uses competition ranking: equal percentages share a rank.
func (repo recordsRepository) RankClass(ctx context.Context, classID int, year, term string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE report_cards rc
			JOIN (
				SELECT report_card_id, RANK() OVER (ORDER BY percentage DESC) AS class_rank
				FROM report_cards
				WHERE class_id = ? AND academic_year = ? AND term = ?
			) ranked ON ranked.report_card_id = rc.report_card_id
		SET rc.rank_in_class = ranked.class_rank`,
		classID, year, term,
	)
	return errors.Wrap(err, "ranking report cards")
}

func (repo recordsRepository) GetReportCard(ctx context.Context, studentID int, year, term string, exec ...core.DBExecutor) (records.ReportCard, error) {
	var rc records.ReportCard
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT report_card_id, student_id, class_id, academic_year, term, total_marks, obtained_marks, percentage, grade,
			rank_in_class, attendance_percentage, teacher_remarks, principal_remarks, generated_by
		FROM report_cards WHERE student_id = ? AND academic_year = ? AND term = ?`,
		studentID, year, term,
	).StructScan(&rc)
	if err != nil {
		return records.ReportCard{}, trapNoRowsErr(err, core.NotFound("report card"), "selecting report card")
	}
	return rc, nil
}
