package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/academic"
	"github.com/umoja/academy/storage/database/sqlboiler"
)

const (
	yearColumns  = `academic_year_id, year_name, start_date, end_date, is_current`
	termColumns  = `term_id, academic_year_id, term_name, term_number, start_date, end_date, is_current`
	classColumns = `c.class_id, c.grade_id, g.grade_name, c.section_name, c.class_teacher_id, c.capacity, c.academic_year_id`
)

type academicRepository struct {
	executor
	reports *boiledrepos.ReportRepository
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(exec core.DBExecutor) *academicRepository {
	return &academicRepository{executor: executor{exec: exec}, reports: boiledrepos.NewReportRepository(exec)}
}

func (repo academicRepository) CurrentYear(ctx context.Context, exec ...core.DBExecutor) (academic.Year, error) {
	var y academic.Year
	err := repo.getExec(exec).QueryRowxContext(ctx,
		`SELECT `+yearColumns+` FROM academic_years WHERE is_current = 1 ORDER BY start_date DESC LIMIT 1`,
	).StructScan(&y)
	if err != nil {
		return academic.Year{}, trapNoRowsErr(err, academic.ErrYearNotFound, "selecting current year")
	}
	return y, nil
}

func (repo academicRepository) CurrentTerm(ctx context.Context, exec ...core.DBExecutor) (academic.Term, error) {
	var t academic.Term
	err := repo.getExec(exec).QueryRowxContext(ctx,
		`SELECT `+termColumns+` FROM terms WHERE is_current = 1 ORDER BY start_date DESC LIMIT 1`,
	).StructScan(&t)
	if err != nil {
		return academic.Term{}, trapNoRowsErr(err, academic.ErrTermNotFound, "selecting current term")
	}
	return t, nil
}

func (repo academicRepository) GetYear(ctx context.Context, id int, exec ...core.DBExecutor) (academic.Year, error) {
	var y academic.Year
	err := repo.getExec(exec).QueryRowxContext(ctx, `SELECT `+yearColumns+` FROM academic_years WHERE academic_year_id = ?`, id).StructScan(&y)
	if err != nil {
		return academic.Year{}, trapNoRowsErr(err, academic.ErrYearNotFound, "selecting year")
	}
	return y, nil
}

func (repo academicRepository) GetTerm(ctx context.Context, id int, exec ...core.DBExecutor) (academic.Term, error) {
	var t academic.Term
	err := repo.getExec(exec).QueryRowxContext(ctx, `SELECT `+termColumns+` FROM terms WHERE term_id = ?`, id).StructScan(&t)
	if err != nil {
		return academic.Term{}, trapNoRowsErr(err, academic.ErrTermNotFound, "selecting term")
	}
	return t, nil
}

func (repo academicRepository) ClearCurrentYears(ctx context.Context, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `UPDATE academic_years SET is_current = 0 WHERE is_current = 1`)
	return errors.Wrap(err, "clearing current year")
}

func (repo academicRepository) SetCurrentYear(ctx context.Context, id int, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `UPDATE academic_years SET is_current = 1 WHERE academic_year_id = ?`, id)
	return errors.Wrap(err, "setting current year")
}

func (repo academicRepository) ClearCurrentTerms(ctx context.Context, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `UPDATE terms SET is_current = 0 WHERE is_current = 1`)
	return errors.Wrap(err, "clearing current term")
}

func (repo academicRepository) SetCurrentTerm(ctx context.Context, id int, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `UPDATE terms SET is_current = 1 WHERE term_id = ?`, id)
	return errors.Wrap(err, "setting current term")
}

func (repo academicRepository) ListClasses(ctx context.Context, yearID int, exec ...core.DBExecutor) ([]academic.Class, error) {
	var classes []academic.Class
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &classes, `
		SELECT `+classColumns+`
		FROM classes c JOIN grades g ON g.grade_id = c.grade_id
		WHERE c.academic_year_id = ? AND c.is_active = 1
		ORDER BY g.grade_level, c.section_name`,
		yearID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	return classes, nil
}

func (repo academicRepository) GetClass(ctx context.Context, id int, exec ...core.DBExecutor) (academic.Class, error) {
	var c academic.Class
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT `+classColumns+`
		FROM classes c JOIN grades g ON g.grade_id = c.grade_id
		WHERE c.class_id = ?`,
		id,
	).StructScan(&c)
	if err != nil {
		return academic.Class{}, trapNoRowsErr(err, core.NotFound("class"), "selecting class")
	}
	return c, nil
}

func (repo academicRepository) TeacherIDOfUser(ctx context.Context, userID int, exec ...core.DBExecutor) (int, error) {
	var id int
	err := repo.getExec(exec).QueryRowxContext(ctx, `SELECT teacher_id FROM teachers WHERE user_id = ? LIMIT 1`, userID).Scan(&id)
	if err != nil {
		return 0, trapNoRowsErr(err, core.NotFound("teacher"), "selecting teacher")
	}
	return id, nil
}

func (repo academicRepository) Timetable(ctx context.Context, filter academic.TimetableFilter, exec ...core.DBExecutor) ([]academic.TimetableEntry, error) {
	return repo.reports.Timetable(ctx, filter, exec...)
}
