package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

type markKey struct {
	studentID int
	date      string
}

// repoStub keeps one mark per (student, date) like the unique key does.
type repoStub struct {
	classes  map[int]int // student -> class
	marks    map[markKey]StudentMark
	teachers map[markKey]TeacherMark
}

func newRepoStub() *repoStub {
	return &repoStub{
		classes:  map[int]int{100: 1, 101: 1, 200: 2},
		marks:    make(map[markKey]StudentMark),
		teachers: make(map[markKey]TeacherMark),
	}
}

func (r *repoStub) UpsertStudentMark(_ context.Context, m StudentMark, _ ...core.DBExecutor) error {
	r.marks[markKey{m.StudentID, m.Date.Format(core.DateLayout)}] = m
	return nil
}

func (r *repoStub) UpsertTeacherMark(_ context.Context, m TeacherMark, _ ...core.DBExecutor) error {
	r.teachers[markKey{m.TeacherID, m.Date.Format(core.DateLayout)}] = m
	return nil
}

func (r *repoStub) StudentClassID(_ context.Context, studentID int, _ ...core.DBExecutor) (null.Int, error) {
	if id, ok := r.classes[studentID]; ok {
		return null.IntFrom(id), nil
	}
	return null.Int{}, nil
}

func (r *repoStub) ClassRoll(_ context.Context, classID int, day time.Time, _ ...core.DBExecutor) ([]RollEntry, error) {
	var roll []RollEntry
	for sid, cid := range r.classes {
		if cid != classID {
			continue
		}
		e := RollEntry{StudentID: sid}
		if m, ok := r.marks[markKey{sid, day.Format(core.DateLayout)}]; ok {
			e.Status = null.StringFrom(m.Status)
		}
		roll = append(roll, e)
	}
	return roll, nil
}

func (r *repoStub) ClassSummary(_ context.Context, classID int, day time.Time, _ ...core.DBExecutor) (ClassSummary, error) {
	sum := ClassSummary{Date: day, ClassID: classID}
	for k, m := range r.marks {
		if m.ClassID != classID || k.date != day.Format(core.DateLayout) {
			continue
		}
		sum.Total++
		switch m.Status {
		case StatusPresent:
			sum.Present++
		case StatusAbsent:
			sum.Absent++
		case StatusLate:
			sum.Late++
		}
	}
	if sum.Total == 0 {
		return ClassSummary{}, core.NotFound("attendance summary")
	}
	return sum, nil
}

// teacherOfClass1 lets user 10 see class 1 only.
type teacherOfClass1 struct{}

func (teacherOfClass1) StudentOfUser(context.Context, int, int) (bool, error)       { return false, nil }
func (teacherOfClass1) ChildOfUser(context.Context, int, int) (bool, error)         { return false, nil }
func (teacherOfClass1) StudentTaughtByUser(context.Context, int, int) (bool, error) { return false, nil }
func (teacherOfClass1) ClassOfStudentUser(context.Context, int, int) (bool, error)  { return false, nil }
func (teacherOfClass1) ClassOfChildOfUser(context.Context, int, int) (bool, error)  { return false, nil }
func (teacherOfClass1) ClassTaughtByUser(_ context.Context, classID, userID int) (bool, error) {
	return classID == 1 && userID == 10, nil
}

var (
	today   = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	admin   = auth.Principal{UserID: 1, Role: auth.RoleAdmin}
	teacher = auth.Principal{UserID: 10, Role: auth.RoleTeacher}
	student = auth.Principal{UserID: 20, Role: auth.RoleStudent}
)

func setup(t *testing.T) (*Service, *repoStub, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	repo := newRepoStub()
	svc := NewService(sqlx.NewDb(mockDB, "sqlmock"), repo, auth.NewScope(teacherOfClass1{}))
	svc.nowFunc = func() time.Time { return today.Add(10 * time.Hour) }
	return svc, repo, mock
}

func TestService_MarkStudent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		p          auth.Principal
		mark       StudentMark
		wantErr    error
		wantIsVErr bool
	}{
		{name: "teacher marks own class", p: teacher, mark: StudentMark{StudentID: 100, ClassID: 1, Status: StatusPresent}},
		{name: "admin marks any class", p: admin, mark: StudentMark{StudentID: 200, ClassID: 2, Status: StatusLate}},
		{name: "past date", p: teacher, mark: StudentMark{StudentID: 100, ClassID: 1, Status: StatusAbsent, Date: today.AddDate(0, 0, -1)}},
		{name: "teacher of other class", p: teacher, mark: StudentMark{StudentID: 200, ClassID: 2, Status: StatusPresent}, wantErr: core.ErrForbidden},
		{name: "students cannot mark", p: student, mark: StudentMark{StudentID: 100, ClassID: 1, Status: StatusPresent}, wantErr: core.ErrForbidden},
		{name: "student not in class", p: admin, mark: StudentMark{StudentID: 200, ClassID: 1, Status: StatusPresent}, wantIsVErr: true},
		{name: "future date", p: teacher, mark: StudentMark{StudentID: 100, ClassID: 1, Status: StatusPresent, Date: today.AddDate(0, 0, 1)}, wantIsVErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := setup(t)
			err := svc.MarkStudent(ctx, tt.p, tt.mark)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantIsVErr:
				var vErr *core.ValidationError
				assert.True(t, errors.As(err, &vErr), "got %v", err)
			default:
				require.NoError(t, err)
				assert.Len(t, repo.marks, 1)
				for _, m := range repo.marks {
					assert.Equal(t, tt.p.UserID, m.MarkedBy)
				}
			}
		})
	}
}

func TestService_MarkStudentTwiceUpserts(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.MarkStudent(ctx, teacher, StudentMark{StudentID: 100, ClassID: 1, Status: StatusAbsent}))
	require.NoError(t, svc.MarkStudent(ctx, teacher, StudentMark{StudentID: 100, ClassID: 1, Status: StatusLate}))

	require.Len(t, repo.marks, 1)
	assert.Equal(t, StatusLate, repo.marks[markKey{100, "2025-03-04"}].Status)
}

func TestService_MarkClass(t *testing.T) {
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		svc, repo, mock := setup(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := svc.MarkClass(ctx, teacher, 1, time.Time{}, []StudentMark{
			{StudentID: 100, Status: StatusPresent},
			{StudentID: 101, Status: StatusAbsent},
		})
		require.NoError(t, err)
		assert.Len(t, repo.marks, 2)
		assert.NoError(t, mock.ExpectationsWereMet())

		sum, err := svc.Summary(ctx, teacher, 1, today)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Total)
		assert.Equal(t, 1, sum.Present)
		assert.Equal(t, 1, sum.Absent)

		roll, err := svc.ClassRoll(ctx, teacher, 1, time.Time{})
		require.NoError(t, err)
		assert.Len(t, roll, 2)
	})

	t.Run("rolls back when a student is not enrolled", func(t *testing.T) {
		svc, _, mock := setup(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := svc.MarkClass(ctx, admin, 1, today, []StudentMark{
			{StudentID: 100, Status: StatusPresent},
			{StudentID: 200, Status: StatusPresent},
		})
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_MarkTeacher(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.MarkTeacher(ctx, admin, TeacherMark{TeacherID: 1, Status: StatusHalfDay}))
	assert.Equal(t, null.IntFrom(1), repo.teachers[markKey{1, "2025-03-04"}].MarkedBy)

	assert.Equal(t, core.ErrForbidden, svc.MarkTeacher(ctx, teacher, TeacherMark{TeacherID: 1, Status: StatusPresent}))
}

func TestService_SummaryEmptyDay(t *testing.T) {
	svc, _, _ := setup(t)
	sum, err := svc.Summary(context.Background(), admin, 1, today)
	require.NoError(t, err)
	assert.Equal(t, ClassSummary{Date: today, ClassID: 1}, sum)
}

func TestValidators(t *testing.T) {
	validate := validator.New()
	InitValidators(validate, core.NewTranslator())

	assert.NoError(t, validate.Var("Excused", studentStatusTag))
	assert.Error(t, validate.Var("Half Day", studentStatusTag))
	assert.NoError(t, validate.Var("Half Day", teacherStatusTag))
	assert.Error(t, validate.Var("present", teacherStatusTag))
}
