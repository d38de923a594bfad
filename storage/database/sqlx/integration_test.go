package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/attendance"
	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/dashboard"
	"github.com/umoja/academy/core/fee"
	"github.com/umoja/academy/services/email"
	"github.com/umoja/academy/storage/database/sqlx"
	"github.com/umoja/academy/tests"
)

// Seed rows: admin user 1, teacher 1 (user 2) class teacher of class 1,
// parent 1 (user 3) of student 1 (user 4), student fee 1 of 15000.
var admin = auth.Principal{UserID: 1, Role: auth.RoleAdmin}

func TestIntegration_PaymentSettlesFee(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := &testutil.NopLogger{}
	core.ParseEmailTemplates(logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	svc := fee.NewService(db, sqlxrepos.NewFeeRepository(db), auth.NewScope(sqlxrepos.NewScopeRepository(db)), mailSvc, logger)

	rcpt, err := svc.RecordPayment(ctx, admin, fee.NewPayment{StudentFeeID: 1, Amount: 5000, Method: "Cash"})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPartial, rcpt.Fee.Status)
	assert.Equal(t, 10000.0, rcpt.Balance)

	rcpt, err = svc.RecordPayment(ctx, admin, fee.NewPayment{StudentFeeID: 1, Amount: 10000, Method: "Mobile Money", Reference: "QK12AB34CD"})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, rcpt.Fee.Status)
	assert.Equal(t, 0.0, rcpt.Balance)
	assert.Equal(t, 15000.0, rcpt.Fee.AmountPaid)
	assert.Len(t, mailSvc.Sent(), 2)

	fees, summary, err := svc.StudentFees(ctx, auth.Principal{UserID: 3, Role: auth.RoleParent}, 1)
	require.NoError(t, err)
	assert.Len(t, fees, 2)
	assert.Equal(t, 17000.0, summary.TotalFees)
	assert.Equal(t, 2000.0, summary.Balance)

	var receipts int
	require.NoError(t, db.Get(&receipts, `SELECT COUNT(DISTINCT receipt_number) FROM payments WHERE student_fee_id = 1`))
	assert.Equal(t, 2, receipts)
}

func TestIntegration_AttendanceUpsert(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	svc := attendance.NewService(db, sqlxrepos.NewAttendanceRepository(db), auth.NewScope(sqlxrepos.NewScopeRepository(db)))
	teacher := auth.Principal{UserID: 2, Role: auth.RoleTeacher}
	day := core.Today(time.Now())

	require.NoError(t, svc.MarkStudent(ctx, teacher, attendance.StudentMark{StudentID: 1, ClassID: 1, Status: attendance.StatusPresent}))
	require.NoError(t, svc.MarkStudent(ctx, teacher, attendance.StudentMark{StudentID: 1, ClassID: 1, Status: attendance.StatusLate}))

	var rows int
	require.NoError(t, db.Get(&rows, `SELECT COUNT(*) FROM student_attendance WHERE student_id = 1 AND attendance_date = ?`, day.Format(core.DateLayout)))
	assert.Equal(t, 1, rows)

	sum, err := svc.Summary(ctx, teacher, 1, day)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Late)
	assert.Equal(t, 100.0, sum.Percentage)
}

func TestIntegration_Cascades(t *testing.T) {
	db := testutil.PrepareDB(t)

	_, err := db.Exec(`INSERT INTO payments (student_id, fee_type_id, student_fee_id, amount_paid, payment_date, payment_method, receipt_number, collected_by)
		VALUES (1, 1, 1, 100, '2025-02-01', 'Cash', 'RCT-20250201-00000001', 1)`)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM teachers WHERE teacher_id = 1`)
	require.NoError(t, err)
	var classTeacher null.Int
	require.NoError(t, db.Get(&classTeacher, `SELECT class_teacher_id FROM classes WHERE class_id = 1`))
	assert.False(t, classTeacher.Valid)

	_, err = db.Exec(`DELETE FROM students WHERE student_id = 1`)
	require.NoError(t, err)
	var fees, payments int
	require.NoError(t, db.Get(&fees, `SELECT COUNT(*) FROM student_fees WHERE student_id = 1`))
	require.NoError(t, db.Get(&payments, `SELECT COUNT(*) FROM payments WHERE student_id = 1`))
	assert.Zero(t, fees)
	assert.Zero(t, payments)
}

func TestIntegration_ParentWithUnassignedChild(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO persons (person_id, first_name, last_name, gender) VALUES (50, 'Peter', 'Mwangi', 'Male')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO students (person_id, admission_number, admission_date, class_id, parent_id)
		VALUES (50, 'UJA2025050', '2025-01-15', NULL, 1)`)
	require.NoError(t, err)

	svc := dashboard.NewService(sqlxrepos.NewDashboardRepository(db), &testutil.NopLogger{})
	info, warning, err := svc.RoleInfo(ctx, auth.Principal{UserID: 3, Role: auth.RoleParent})
	require.NoError(t, err)
	assert.Empty(t, warning)
	require.Len(t, info.Children, 2)
	for _, c := range info.Children {
		if c.Name == "Peter Mwangi" {
			assert.False(t, c.ClassName.Valid)
		} else {
			assert.Equal(t, "Grade 6 A", c.ClassName.String)
		}
	}
}
