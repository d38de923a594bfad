package sqlxrepos

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

// teachesClassOf matches a user who is the class teacher of classExpr or teaches
// it on the active timetable. Each branch binds one user_id.
func teachesClassOf(classExpr string) string {
	return fmt.Sprintf(`(
	EXISTS (SELECT 1 FROM classes c JOIN teachers t ON t.teacher_id = c.class_teacher_id WHERE c.class_id = %[1]s AND t.user_id = ?)
	OR EXISTS (SELECT 1 FROM timetable tt JOIN teachers t ON t.teacher_id = tt.teacher_id WHERE tt.class_id = %[1]s AND tt.is_active = 1 AND t.user_id = ?)
)`, classExpr)
}

type scopeRepository struct {
	executor
}

var _ auth.ScopeRepository = (*scopeRepository)(nil) // interface compliance check

func NewScopeRepository(exec core.DBExecutor) *scopeRepository {
	return &scopeRepository{executor{exec: exec}}
}

func (repo scopeRepository) exists(ctx context.Context, msg, q string, args ...interface{}) (bool, error) {
	var ok bool
	if err := repo.exec.QueryRowxContext(ctx, `SELECT EXISTS (`+q+`)`, args...).Scan(&ok); err != nil {
		return false, errors.Wrap(err, msg)
	}
	return ok, nil
}

func (repo scopeRepository) StudentOfUser(ctx context.Context, studentID, userID int) (bool, error) {
	return repo.exists(ctx, "checking student user",
		`SELECT 1 FROM students WHERE student_id = ? AND user_id = ?`, studentID, userID)
}

func (repo scopeRepository) ChildOfUser(ctx context.Context, studentID, userID int) (bool, error) {
	return repo.exists(ctx, "checking parent",
		`SELECT 1 FROM students s JOIN parents pa ON pa.parent_id = s.parent_id WHERE s.student_id = ? AND pa.user_id = ?`,
		studentID, userID)
}

func (repo scopeRepository) StudentTaughtByUser(ctx context.Context, studentID, userID int) (bool, error) {
	return repo.exists(ctx, "checking teacher of student",
		`SELECT 1 FROM students s WHERE s.student_id = ? AND `+teachesClassOf("s.class_id"),
		studentID, userID, userID)
}

func (repo scopeRepository) ClassOfStudentUser(ctx context.Context, classID, userID int) (bool, error) {
	return repo.exists(ctx, "checking class of student",
		`SELECT 1 FROM students WHERE class_id = ? AND user_id = ?`, classID, userID)
}

func (repo scopeRepository) ClassOfChildOfUser(ctx context.Context, classID, userID int) (bool, error) {
	return repo.exists(ctx, "checking class of child",
		`SELECT 1 FROM students s JOIN parents pa ON pa.parent_id = s.parent_id WHERE s.class_id = ? AND pa.user_id = ?`,
		classID, userID)
}

func (repo scopeRepository) ClassTaughtByUser(ctx context.Context, classID, userID int) (bool, error) {
	return repo.exists(ctx, "checking teacher of class",
		`SELECT 1 FROM DUAL WHERE `+teachesClassOf("?"),
		classID, userID, classID, userID)
}
