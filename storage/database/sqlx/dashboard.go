package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/dashboard"
)

type dashboardRepository struct {
	executor
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(exec core.DBExecutor) *dashboardRepository {
	return &dashboardRepository{executor{exec: exec}}
}

func (repo dashboardRepository) Stats(ctx context.Context, day time.Time) (dashboard.Stats, error) {
	var row struct {
		dashboard.AttendanceTally
		Students int `db:"students"`
		Teachers int `db:"teachers"`
		Classes  int `db:"classes"`
		Subjects int `db:"subjects"`
	}
	err := repo.exec.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM students WHERE student_status = 'Active') AS students,
			(SELECT COUNT(*) FROM teachers WHERE employment_status = 'Active') AS teachers,
			(SELECT COUNT(*) FROM classes WHERE is_active = 1) AS classes,
			(SELECT COUNT(*) FROM subjects WHERE is_active = 1) AS subjects,
			COUNT(sa.attendance_id) AS att_total,
			COALESCE(SUM(sa.status = 'Present'), 0) AS att_present,
			COALESCE(SUM(sa.status = 'Absent'), 0) AS att_absent,
			COALESCE(SUM(sa.status = 'Late'), 0) AS att_late
		FROM student_attendance sa
		WHERE sa.attendance_date = ?`,
		day.Format(core.DateLayout),
	).StructScan(&row)
	if err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "selecting dashboard stats")
	}
	return dashboard.Stats{
		Students:   row.Students,
		Teachers:   row.Teachers,
		Classes:    row.Classes,
		Subjects:   row.Subjects,
		Attendance: row.AttendanceTally,
	}, nil
}

// TeacherClasses names the classes a teacher appears in on the timetable.
func (repo dashboardRepository) TeacherClasses(ctx context.Context, userID int) ([]string, error) {
	var names []string
	err := sqlx.SelectContext(ctx, repo.exec, &names, `
		SELECT DISTINCT CONCAT(g.grade_name, ' ', c.section_name) AS class_name
		FROM timetable tt
			JOIN classes c ON c.class_id = tt.class_id
			JOIN grades g ON g.grade_id = c.grade_id
			JOIN teachers t ON t.teacher_id = tt.teacher_id
			JOIN users u ON u.user_id = t.user_id
		WHERE u.user_id = ?
		ORDER BY class_name`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting teacher classes")
	}
	return names, nil
}

func (repo dashboardRepository) StudentClass(ctx context.Context, userID int) (null.String, error) {
	var name null.String
	err := repo.exec.QueryRowxContext(ctx, `
		SELECT CONCAT(g.grade_name, ' ', c.section_name)
		FROM students s
			LEFT JOIN classes c ON c.class_id = s.class_id
			LEFT JOIN grades g ON g.grade_id = c.grade_id
		WHERE s.user_id = ?
		LIMIT 1`,
		userID,
	).Scan(&name)
	if errors.Cause(err) == sql.ErrNoRows {
		return null.String{}, nil
	}
	if err != nil {
		return null.String{}, errors.Wrap(err, "selecting student class")
	}
	return name, nil
}

func (repo dashboardRepository) ParentChildren(ctx context.Context, userID int) ([]dashboard.Child, error) {
	var children []dashboard.Child
	err := sqlx.SelectContext(ctx, repo.exec, &children, `
		SELECT s.student_id,
			CONCAT(p.first_name, ' ', p.last_name) AS child_name,
			CONCAT(g.grade_name, ' ', c.section_name) AS class_name
		FROM students s
			JOIN parents pa ON pa.parent_id = s.parent_id
			JOIN persons p ON p.person_id = s.person_id
			LEFT JOIN classes c ON c.class_id = s.class_id
			LEFT JOIN grades g ON g.grade_id = c.grade_id
		WHERE pa.user_id = ?
		ORDER BY p.first_name, p.last_name`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting children")
	}
	return children, nil
}
