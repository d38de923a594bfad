package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/fee"
	"github.com/umoja/academy/storage/database"
	"github.com/umoja/academy/storage/database/sqlboiler"
)

const studentFeeColumns = `sf.student_fee_id, sf.student_id, sf.fee_type_id, ft.fee_name, sf.amount_due, sf.amount_paid,
	sf.due_date, sf.academic_year, sf.term, sf.payment_status, sf.last_payment_date`

type feeRepository struct {
	executor
	reports *boiledrepos.ReportRepository
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(exec core.DBExecutor) *feeRepository {
	return &feeRepository{executor: executor{exec: exec}, reports: boiledrepos.NewReportRepository(exec)}
}

func (repo feeRepository) GetFeeType(ctx context.Context, id int, exec ...core.DBExecutor) (fee.FeeType, error) {
	var ft fee.FeeType
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT fee_type_id, fee_name, fee_category, base_amount, is_mandatory, frequency
		FROM fee_types WHERE fee_type_id = ? AND is_active = 1`, id,
	).StructScan(&ft)
	if err != nil {
		return fee.FeeType{}, trapNoRowsErr(err, fee.ErrFeeTypeNotFound, "selecting fee type")
	}
	return ft, nil
}

func (repo feeRepository) GradeAmount(ctx context.Context, feeTypeID, gradeID int, year string, exec ...core.DBExecutor) (float64, error) {
	var amount float64
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT amount FROM fee_grade_amounts
		WHERE fee_type_id = ? AND grade_id = ? AND academic_year = ? AND is_active = 1`,
		feeTypeID, gradeID, year,
	).Scan(&amount)
	if err != nil {
		return 0, trapNoRowsErr(err, core.NotFound("grade amount"), "selecting grade amount")
	}
	return amount, nil
}

// CreateStudentFee refuses a second bill of the same fee type for the same
// term through the unique_student_fee_term key.
func (repo feeRepository) CreateStudentFee(ctx context.Context, sf fee.StudentFee, exec ...core.DBExecutor) (fee.StudentFee, error) {
	db := repo.getExec(exec)

	res, err := db.ExecContext(ctx, `
		INSERT INTO student_fees (student_id, fee_type_id, amount_due, amount_paid, due_date, academic_year, term, payment_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sf.StudentID, sf.FeeTypeID, sf.AmountDue, sf.AmountPaid, sf.DueDate.Format(core.DateLayout), sf.AcademicYear, sf.Term, sf.Status,
	)
	if err != nil {
		if database.IsDuplicate(err) {
			return fee.StudentFee{}, core.NewValidationError(fee.ErrDuplicateBill, core.FieldError{Field: "fee_type_id", Error: fee.ErrDuplicateBill.Error()})
		}
		return fee.StudentFee{}, trapConstraintErr(err, "student_id", nil, fee.ErrUnknownStudentFee, "inserting student fee")
	}
	id, err := lastInsertID(res)
	if err != nil {
		return fee.StudentFee{}, err
	}
	return repo.GetStudentFee(ctx, id, db)
}

func (repo feeRepository) getStudentFee(ctx context.Context, id int, lock bool, exec core.DBExecutor) (fee.StudentFee, error) {
	q := `SELECT ` + studentFeeColumns + `
		FROM student_fees sf JOIN fee_types ft ON ft.fee_type_id = sf.fee_type_id
		WHERE sf.student_fee_id = ?`
	if lock {
		q += ` FOR UPDATE`
	}
	var sf fee.StudentFee
	if err := exec.QueryRowxContext(ctx, q, id).StructScan(&sf); err != nil {
		return fee.StudentFee{}, trapNoRowsErr(err, fee.ErrFeeNotFound, "selecting student fee")
	}
	return sf, nil
}

func (repo feeRepository) GetStudentFee(ctx context.Context, id int, exec ...core.DBExecutor) (fee.StudentFee, error) {
	return repo.getStudentFee(ctx, id, false, repo.getExec(exec))
}

func (repo feeRepository) LockStudentFee(ctx context.Context, id int, exec ...core.DBExecutor) (fee.StudentFee, error) {
	return repo.getStudentFee(ctx, id, true, repo.getExec(exec))
}

func (repo feeRepository) CreatePayment(ctx context.Context, p fee.Payment, exec ...core.DBExecutor) (fee.Payment, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO payments (student_id, fee_type_id, student_fee_id, amount_paid, payment_date, payment_method,
			transaction_reference, receipt_number, academic_year, term, collected_by, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.StudentID, p.FeeTypeID, p.StudentFeeID, p.Amount, p.Date.Format(core.DateLayout), p.Method,
		p.Reference, p.ReceiptNumber, p.AcademicYear, p.Term, p.CollectedBy, p.Remarks,
	)
	if err != nil {
		return fee.Payment{}, trapConstraintErr(err, "receipt_number", fee.ErrDuplicateReceipt, fee.ErrUnknownStudentFee, "inserting payment")
	}
	if p.ID, err = lastInsertID(res); err != nil {
		return fee.Payment{}, err
	}
	return p, nil
}

func (repo feeRepository) LedgerTotal(ctx context.Context, studentFeeID int, exec ...core.DBExecutor) (float64, error) {
	var total float64
	err := repo.getExec(exec).QueryRowxContext(ctx,
		`SELECT COALESCE(SUM(amount_paid), 0) FROM payments WHERE student_fee_id = ?`, studentFeeID,
	).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "summing payments")
	}
	return total, nil
}

func (repo feeRepository) UpdateStudentFeeBalance(ctx context.Context, sf fee.StudentFee, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE student_fees SET amount_paid = ?, payment_status = ?, last_payment_date = ?
		WHERE student_fee_id = ?`,
		sf.AmountPaid, sf.Status, sf.LastPaymentDate, sf.ID,
	)
	return errors.Wrap(err, "updating student fee")
}

func (repo feeRepository) StudentFees(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]fee.StudentFee, error) {
	var fees []fee.StudentFee
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &fees, `
		SELECT `+studentFeeColumns+`
		FROM student_fees sf JOIN fee_types ft ON ft.fee_type_id = sf.fee_type_id
		WHERE sf.student_id = ?
		ORDER BY sf.due_date, sf.student_fee_id`,
		studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting student fees")
	}
	return fees, nil
}

func (repo feeRepository) Summary(ctx context.Context, studentID int, exec ...core.DBExecutor) (fee.Summary, error) {
	return repo.reports.FeeSummary(ctx, studentID, exec...)
}

func (repo feeRepository) Defaulters(ctx context.Context, exec ...core.DBExecutor) ([]fee.Summary, error) {
	return repo.reports.Defaulters(ctx, exec...)
}

// Payer picks the student's parent contact, preferring the person record's email
// over the parent's login email.
func (repo feeRepository) Payer(ctx context.Context, studentID int, exec ...core.DBExecutor) (fee.Payer, error) {
	var p fee.Payer
	err := repo.getExec(exec).QueryRowxContext(ctx, `
		SELECT CONCAT(sp.first_name, ' ', sp.last_name) AS student_name,
			CONCAT(pp.first_name, ' ', pp.last_name) AS parent_name,
			COALESCE(NULLIF(pp.email, ''), pu.email) AS parent_email
		FROM students s
			JOIN persons sp ON sp.person_id = s.person_id
			LEFT JOIN parents pa ON pa.parent_id = s.parent_id
			LEFT JOIN persons pp ON pp.person_id = pa.person_id
			LEFT JOIN users pu ON pu.user_id = pa.user_id
		WHERE s.student_id = ?`,
		studentID,
	).StructScan(&p)
	if err != nil {
		return fee.Payer{}, trapNoRowsErr(err, errStudentNotFound, "selecting payer")
	}
	return p, nil
}
