package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/comms"
	"github.com/umoja/academy/core/fee"
	"github.com/umoja/academy/core/library"
	"github.com/umoja/academy/core/user"
)

func mockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func requireValidationErr(t *testing.T, err error, want error) {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Equal(t, want, vErr.Err)
}

var dupEntry = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

func TestUserRepository_GetUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	cols := []string{"user_id", "username", "email", "password_hash", "role_id", "role_name", "is_active", "last_login", "created_at", "updated_at"}

	t.Run("by username or email", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE u.username = ? OR u.email = ? LIMIT 1")).
			WithArgs("admin", "admin").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "admin", "admin@umoja.ac.ke", []byte("hash"), 1, "Super Admin", true, nil, now, now))

		usr, err := NewUserRepository(db).GetUser(ctx, user.GetFilter{UsernameOrEmail: "admin"})
		require.NoError(t, err)
		assert.Equal(t, "Super Admin", usr.RoleName)
		assert.False(t, usr.LastLogin.Valid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery("WHERE u.user_id = ?").WithArgs(9).WillReturnRows(sqlmock.NewRows(cols))

		_, err := NewUserRepository(db).GetUser(ctx, user.GetFilter{ID: 9})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("empty filter", func(t *testing.T) {
		db, _ := mockDB(t)
		_, err := NewUserRepository(db).GetUser(ctx, user.GetFilter{})
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestUserRepository_CheckUniqueness(t *testing.T) {
	tests := []struct {
		name           string
		username, mail int
		want           error
	}{
		{name: "free"},
		{name: "username taken", username: 1, want: user.ErrUsernameExists},
		{name: "email taken", mail: 1, want: user.ErrEmailExists},
		{name: "both taken", username: 1, mail: 1, want: user.ErrUsernameExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := mockDB(t)
			mock.ExpectQuery("FROM users").
				WithArgs("jdoe", "jdoe@umoja.ac.ke", "jdoe", "jdoe@umoja.ac.ke", 4).
				WillReturnRows(sqlmock.NewRows([]string{"username_taken", "email_taken"}).AddRow(tt.username, tt.mail))

			err := NewUserRepository(db).CheckUniqueness(context.Background(), "jdoe", "jdoe@umoja.ac.ke", 4)
			assert.Equal(t, tt.want, err)
		})
	}
}

func TestUserRepository_CreateUserDuplicate(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(dupEntry)

	_, err := NewUserRepository(db).CreateUser(context.Background(), user.User{Username: "admin"})
	requireValidationErr(t, err, user.ErrUsernameExists)
}

func TestSessionRepository_RevokeSession(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	db, mock := mockDB(t)
	mock.ExpectExec("UPDATE user_sessions SET revoked_at").WithArgs(at, "abc").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE user_sessions SET revoked_at").WithArgs(at, "nope").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSessionRepository(db)
	assert.NoError(t, repo.RevokeSession(ctx, "abc", at))
	assert.Equal(t, auth.ErrSessionNotFound, repo.RevokeSession(ctx, "nope", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_FullName(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT COALESCE").WithArgs(5, 5, 5, 5).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Jane Wanjiru"))

	name, err := NewSessionRepository(db).FullName(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Jane Wanjiru", name)
}

func TestScopeRepository(t *testing.T) {
	ctx := context.Background()
	db, mock := mockDB(t)
	repo := NewScopeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM students s WHERE s.student_id = ? AND")).
		WithArgs(100, 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM DUAL WHERE")).
		WithArgs(3, 10, 3, 10).
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(false))
	mock.ExpectQuery("JOIN parents pa").
		WithArgs(100, 30).
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(true))

	ok, err := repo.StudentTaughtByUser(ctx, 100, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClassTaughtByUser(ctx, 3, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ChildOfUser(ctx, 100, 30)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepository_LockStudentFee(t *testing.T) {
	ctx := context.Background()
	cols := []string{"student_fee_id", "student_id", "fee_type_id", "fee_name", "amount_due", "amount_paid", "due_date", "academic_year", "term", "payment_status", "last_payment_date"}
	due := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	db, mock := mockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sf.student_fee_id = ? FOR UPDATE")).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 100, 2, "Tuition", "15000.00", "0.00", due, "2025-2026", "Term 1", "Pending", nil))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sf.student_fee_id = ? FOR UPDATE")).WithArgs(2).
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewFeeRepository(db)
	sf, err := repo.LockStudentFee(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 15000.0, sf.AmountDue)
	assert.Equal(t, "Tuition", sf.FeeName)

	_, err = repo.LockStudentFee(ctx, 2)
	assert.Equal(t, fee.ErrFeeNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepository_CreatePayment(t *testing.T) {
	ctx := context.Background()
	pmt := fee.Payment{
		StudentID: 100, FeeTypeID: 2, StudentFeeID: 1, Amount: 5000,
		Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), Method: "Cash",
		ReceiptNumber: "RCT-20250304-0A1B2C3D", AcademicYear: "2025-2026", Term: "Term 1", CollectedBy: 1,
	}

	t.Run("inserted", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("INSERT INTO payments").
			WithArgs(100, 2, 1, 5000.0, "2025-03-04", "Cash", nil, "RCT-20250304-0A1B2C3D", "2025-2026", "Term 1", 1, nil).
			WillReturnResult(sqlmock.NewResult(12, 1))

		got, err := NewFeeRepository(db).CreatePayment(ctx, pmt)
		require.NoError(t, err)
		assert.Equal(t, 12, got.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate receipt", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("INSERT INTO payments").WillReturnError(dupEntry)

		_, err := NewFeeRepository(db).CreatePayment(ctx, pmt)
		requireValidationErr(t, err, fee.ErrDuplicateReceipt)
	})

	t.Run("unknown fee", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("INSERT INTO payments").WillReturnError(&mysql.MySQLError{Number: 1452})

		_, err := NewFeeRepository(db).CreatePayment(ctx, pmt)
		requireValidationErr(t, err, fee.ErrUnknownStudentFee)
	})
}

func TestFeeRepository_CreateStudentFee(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	sf := fee.StudentFee{
		StudentID: 100, FeeTypeID: 2, AmountDue: 15000, DueDate: due,
		AcademicYear: "2025-2026", Term: "Term 1", Status: fee.StatusPending,
	}

	t.Run("billed twice", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("INSERT INTO student_fees").
			WithArgs(100, 2, 15000.0, 0.0, "2025-02-15", "2025-2026", "Term 1", fee.StatusPending).
			WillReturnError(dupEntry)

		_, err := NewFeeRepository(db).CreateStudentFee(ctx, sf)
		requireValidationErr(t, err, fee.ErrDuplicateBill)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown student", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("INSERT INTO student_fees").WillReturnError(&mysql.MySQLError{Number: 1452})

		_, err := NewFeeRepository(db).CreateStudentFee(ctx, sf)
		requireValidationErr(t, err, fee.ErrUnknownStudentFee)
	})
}

func TestAudienceClause(t *testing.T) {
	tests := []struct {
		name      string
		aud       comms.Audience
		wantQuery string
		wantArgs  []interface{}
	}{
		{name: "everything", aud: comms.Audience{All: true}, wantQuery: "1 = 1"},
		{name: "nothing", aud: comms.Audience{}, wantQuery: "1 = 0"},
		{
			name:      "role only",
			aud:       comms.Audience{Audiences: []string{comms.AudienceAll, comms.AudienceTeachers}},
			wantQuery: "target_audience IN (?, ?)",
			wantArgs:  []interface{}{comms.AudienceAll, comms.AudienceTeachers},
		},
		{
			name:      "role and classes",
			aud:       comms.Audience{Audiences: []string{comms.AudienceAll, comms.AudienceParents}, ClassIDs: []int{3, 4}},
			wantQuery: "(target_audience IN (?, ?) OR (target_audience = ? AND target_class_id IN (?, ?)))",
			wantArgs:  []interface{}{comms.AudienceAll, comms.AudienceParents, comms.AudienceSpecificClass, 3, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args, err := audienceClause(tt.aud)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCommsRepository_Announcements(t *testing.T) {
	db, mock := mockDB(t)
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("AND target_audience IN (?, ?)")).
		WithArgs("2025-03-04", "2025-03-04", comms.AudienceAll, comms.AudienceStudents).
		WillReturnRows(sqlmock.NewRows([]string{"announcement_id", "title", "content", "target_audience", "target_class_id", "priority", "published_by", "published_date", "expiry_date", "attachment"}).
			AddRow(1, "Sports day", "Friday", "All", nil, "High", 1, day, nil, nil))

	list, err := NewCommsRepository(db).Announcements(context.Background(), comms.Audience{Audiences: []string{comms.AudienceAll, comms.AudienceStudents}}, day)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Sports day", list[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLibraryRepository_LockIssue(t *testing.T) {
	db, mock := mockDB(t)
	due := time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM book_issues WHERE issue_id = ? FOR UPDATE")).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"issue_id", "book_id", "student_id", "teacher_id", "staff_id", "issue_date", "due_date", "return_date", "fine_amount", "status", "issued_by", "returned_to", "remarks"}).
			AddRow(1, 7, nil, 3, nil, due.AddDate(0, 0, -14), due, nil, "0.00", "Issued", 1, nil, nil))

	is, err := NewLibraryRepository(db).LockIssue(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, null.IntFrom(3), is.TeacherID)
	assert.True(t, is.Borrower.Valid())
	assert.Equal(t, library.StatusIssued, is.Status)
}

func TestRecordsRepository_RankClass(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("RANK() OVER (ORDER BY percentage DESC)")).
		WithArgs(3, "2025-2026", "Term 1").
		WillReturnResult(sqlmock.NewResult(0, 28))

	require.NoError(t, NewRecordsRepository(db).RankClass(context.Background(), 3, "2025-2026", "Term 1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("stats", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM student_attendance sa")).
			WithArgs("2025-03-04").
			WillReturnRows(sqlmock.NewRows([]string{"students", "teachers", "classes", "subjects", "att_total", "att_present", "att_absent", "att_late"}).
				AddRow(420, 31, 14, 12, 40, 35, 3, 2))

		stats, err := NewDashboardRepository(db).Stats(ctx, time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 420, stats.Students)
		assert.Equal(t, 14, stats.Classes)
		assert.Equal(t, 35, stats.Attendance.Present)
		assert.Equal(t, 2, stats.Attendance.Late)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("teacher classes come from the timetable", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery(`(?s)SELECT DISTINCT .+ FROM timetable tt\s+JOIN classes c .+ WHERE u\.user_id = \?`).
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"class_name"}).AddRow("Grade 6 A").AddRow("Grade 7 B"))

		names, err := NewDashboardRepository(db).TeacherClasses(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Grade 6 A", "Grade 7 B"}, names)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("student without class", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM students s")).
			WithArgs(9).
			WillReturnRows(sqlmock.NewRows([]string{"class_name"}))

		name, err := NewDashboardRepository(db).StudentClass(ctx, 9)
		require.NoError(t, err)
		assert.False(t, name.Valid)
	})

	t.Run("parent children", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE pa.user_id = ?")).
			WithArgs(12).
			WillReturnRows(sqlmock.NewRows([]string{"student_id", "child_name", "class_name"}).
				AddRow(3, "Grace Mwangi", "Grade 7 East").
				AddRow(4, "Peter Mwangi", nil))

		children, err := NewDashboardRepository(db).ParentChildren(ctx, 12)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, null.StringFrom("Grade 7 East"), children[0].ClassName)
		assert.False(t, children[1].ClassName.Valid)
	})
}
