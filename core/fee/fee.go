package fee

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

const (
	StatusPending = "Pending"
	StatusPaid    = "Paid"
	StatusPartial = "Partial"
	StatusOverdue = "Overdue"
)

var PaymentMethods = []string{"Cash", "Bank Transfer", "Mobile Money", "Cheque", "Card"}

var (
	ErrFeeNotFound       = core.NotFound("student fee")
	ErrFeeTypeNotFound   = core.NotFound("fee type")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrDuplicateReceipt  = errors.New("a payment with this receipt number already exists")
	ErrDuplicateBill     = errors.New("this fee has already been billed to the student for the term")
	ErrUnknownStudentFee = errors.New("student or fee type does not exist")
)

type (
	FeeType struct {
		ID          int     `json:"id" db:"fee_type_id"`
		Name        string  `json:"name" db:"fee_name"`
		Category    string  `json:"category" db:"fee_category"`
		BaseAmount  float64 `json:"base_amount" db:"base_amount"`
		IsMandatory bool    `json:"is_mandatory" db:"is_mandatory"`
		Frequency   string  `json:"frequency" db:"frequency"`
	}

	// StudentFee is a billed obligation. AmountPaid caches the sum of its payments.
	StudentFee struct {
		ID              int       `json:"id" db:"student_fee_id"`
		StudentID       int       `json:"student_id" db:"student_id"`
		FeeTypeID       int       `json:"fee_type_id" db:"fee_type_id"`
		FeeName         string    `json:"fee_name" db:"fee_name"`
		AmountDue       float64   `json:"amount_due" db:"amount_due"`
		AmountPaid      float64   `json:"amount_paid" db:"amount_paid"`
		DueDate         time.Time `json:"due_date" db:"due_date"`
		AcademicYear    string    `json:"academic_year" db:"academic_year"`
		Term            string    `json:"term" db:"term"`
		Status          string    `json:"payment_status" db:"payment_status"`
		LastPaymentDate null.Time `json:"last_payment_date" db:"last_payment_date"`
	}

	Payment struct {
		ID            int         `json:"id" db:"payment_id"`
		StudentID     int         `json:"student_id" db:"student_id"`
		FeeTypeID     int         `json:"fee_type_id" db:"fee_type_id"`
		StudentFeeID  int         `json:"student_fee_id" db:"student_fee_id"`
		Amount        float64     `json:"amount" db:"amount_paid"`
		Date          time.Time   `json:"payment_date" db:"payment_date"`
		Method        string      `json:"payment_method" db:"payment_method"`
		Reference     null.String `json:"transaction_reference" db:"transaction_reference"`
		ReceiptNumber string      `json:"receipt_number" db:"receipt_number"`
		AcademicYear  string      `json:"academic_year" db:"academic_year"`
		Term          string      `json:"term" db:"term"`
		CollectedBy   int         `json:"collected_by" db:"collected_by"`
		Remarks       null.String `json:"remarks" db:"remarks"`
	}

	// Receipt is what RecordPayment returns: the ledger entry and the fee after it.
	Receipt struct {
		Payment Payment    `json:"payment"`
		Fee     StudentFee `json:"fee"`
		Balance float64    `json:"balance"`
	}

	// Summary is a row of student_fee_summary.
	Summary struct {
		StudentID       int         `json:"student_id" boil:"student_id" db:"student_id"`
		AdmissionNumber string      `json:"admission_number" boil:"admission_number" db:"admission_number"`
		StudentName     string      `json:"student_name" boil:"student_name" db:"student_name"`
		ClassName       null.String `json:"class_name" boil:"class_name" db:"class_name"`
		TotalFees       float64     `json:"total_fees" boil:"total_fees" db:"total_fees"`
		TotalPaid       float64     `json:"total_paid" boil:"total_paid" db:"total_paid"`
		Balance         float64     `json:"balance" boil:"balance" db:"balance"`
		Status          string      `json:"payment_status" boil:"payment_status" db:"payment_status"`
	}

	// Payer is the contact a receipt is mailed to.
	Payer struct {
		StudentName string      `db:"student_name"`
		ParentName  null.String `db:"parent_name"`
		ParentEmail null.String `db:"parent_email"`
	}

	NewBill struct {
		StudentID    int
		FeeTypeID    int
		GradeID      int
		DueDate      time.Time
		AcademicYear string
		Term         string
	}

	NewPayment struct {
		StudentFeeID int
		Amount       float64
		Method       string
		Reference    string
		Remarks      string
		Date         time.Time
	}

	Repository interface {
		GetFeeType(ctx context.Context, id int, exec ...core.DBExecutor) (FeeType, error)
		// GradeAmount returns the per-grade override for a fee type, or ErrNotFound.
		GradeAmount(ctx context.Context, feeTypeID, gradeID int, year string, exec ...core.DBExecutor) (float64, error)
		CreateStudentFee(ctx context.Context, sf StudentFee, exec ...core.DBExecutor) (StudentFee, error)
		GetStudentFee(ctx context.Context, id int, exec ...core.DBExecutor) (StudentFee, error)
		// LockStudentFee reads the fee row FOR UPDATE; exec must be a transaction.
		LockStudentFee(ctx context.Context, id int, exec ...core.DBExecutor) (StudentFee, error)
		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		// LedgerTotal sums the payments recorded against a fee.
		LedgerTotal(ctx context.Context, studentFeeID int, exec ...core.DBExecutor) (float64, error)
		UpdateStudentFeeBalance(ctx context.Context, sf StudentFee, exec ...core.DBExecutor) error
		StudentFees(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]StudentFee, error)
		Summary(ctx context.Context, studentID int, exec ...core.DBExecutor) (Summary, error)
		Defaulters(ctx context.Context, exec ...core.DBExecutor) ([]Summary, error)
		Payer(ctx context.Context, studentID int, exec ...core.DBExecutor) (Payer, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		scope   *auth.Scope
		mailSvc core.EmailService
		logger  core.Logger
		nowFunc func() time.Time
	}
)

func NewService(db core.DB, repo Repository, scope *auth.Scope, mailSvc core.EmailService, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(scope, "scope"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{db: db, repo: repo, scope: scope, mailSvc: mailSvc, logger: logger, nowFunc: time.Now}
}

// DerivePaymentStatus computes a fee's status from its amounts and due date.
func DerivePaymentStatus(due, paid float64, dueDate, today time.Time) string {
	switch {
	case paid >= due:
		return StatusPaid
	case paid > 0:
		return StatusPartial
	case !dueDate.IsZero() && core.Today(dueDate).Before(core.Today(today)):
		return StatusOverdue
	default:
		return StatusPending
	}
}

// Balance is never negative.
func (sf StudentFee) Balance() float64 {
	b := core.Round(sf.AmountDue-sf.AmountPaid, 2)
	if b < 0 {
		return 0
	}
	return b
}

// NewReceiptNumber returns a unique RCT-YYYYMMDD-XXXXXXXX receipt number.
func NewReceiptNumber(day time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("RCT-%s-%s", day.Format("20060102"), id[:8])
}

// AmountFor is the per-grade amount of a fee type for a year, falling back to its base amount.
func (svc *Service) AmountFor(ctx context.Context, feeTypeID, gradeID int, year string, exec ...core.DBExecutor) (float64, error) {
	ft, err := svc.repo.GetFeeType(ctx, feeTypeID, exec...)
	if err != nil {
		return 0, err
	}
	amount, err := svc.repo.GradeAmount(ctx, feeTypeID, gradeID, year, exec...)
	if err != nil {
		if core.IsNotFound(err) {
			return ft.BaseAmount, nil
		}
		return 0, errors.Wrap(err, "getting grade amount")
	}
	return amount, nil
}

// Bill charges a fee to a student.
func (svc *Service) Bill(ctx context.Context, p auth.Principal, nb NewBill) (StudentFee, error) {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return StudentFee{}, err
	}
	amount, err := svc.AmountFor(ctx, nb.FeeTypeID, nb.GradeID, nb.AcademicYear)
	if err != nil {
		return StudentFee{}, err
	}
	sf := StudentFee{
		StudentID:    nb.StudentID,
		FeeTypeID:    nb.FeeTypeID,
		AmountDue:    amount,
		DueDate:      nb.DueDate,
		AcademicYear: nb.AcademicYear,
		Term:         nb.Term,
	}
	sf.Status = DerivePaymentStatus(sf.AmountDue, 0, sf.DueDate, svc.nowFunc())
	return svc.repo.CreateStudentFee(ctx, sf)
}

// RecordPayment appends a payment to the ledger and resynchronises the fee's
// amount_paid and status from it, all in one transaction.
func (svc *Service) RecordPayment(ctx context.Context, p auth.Principal, np NewPayment) (Receipt, error) {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return Receipt{}, err
	}
	np.Amount = core.Round(np.Amount, 2)
	if np.Amount <= 0 {
		return Receipt{}, core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "amount", Error: ErrInvalidAmount.Error()})
	}
	now := svc.nowFunc()
	if np.Date.IsZero() {
		np.Date = now
	}

	var rcpt Receipt
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		sf, err := svc.repo.LockStudentFee(ctx, np.StudentFeeID, tx)
		if err != nil {
			return err
		}

		pmt, err := svc.repo.CreatePayment(ctx, Payment{
			StudentID:     sf.StudentID,
			FeeTypeID:     sf.FeeTypeID,
			StudentFeeID:  sf.ID,
			Amount:        np.Amount,
			Date:          core.Today(np.Date),
			Method:        np.Method,
			Reference:     null.NewString(np.Reference, np.Reference != ""),
			ReceiptNumber: NewReceiptNumber(now),
			AcademicYear:  sf.AcademicYear,
			Term:          sf.Term,
			CollectedBy:   p.UserID,
			Remarks:       null.NewString(np.Remarks, np.Remarks != ""),
		}, tx)
		if err != nil {
			return err
		}

		paid, err := svc.repo.LedgerTotal(ctx, sf.ID, tx)
		if err != nil {
			return errors.Wrap(err, "summing payments")
		}
		sf.AmountPaid = core.Round(paid, 2)
		sf.Status = DerivePaymentStatus(sf.AmountDue, sf.AmountPaid, sf.DueDate, now)
		sf.LastPaymentDate = null.TimeFrom(pmt.Date)
		if err = svc.repo.UpdateStudentFeeBalance(ctx, sf, tx); err != nil {
			return errors.Wrap(err, "updating fee balance")
		}

		rcpt = Receipt{Payment: pmt, Fee: sf, Balance: sf.Balance()}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	svc.sendReceipt(ctx, rcpt)
	return rcpt, nil
}

type receiptData struct {
	ParentName    string
	StudentName   string
	Amount        float64
	ReceiptNumber string
	FeeName       string
	Term          string
	AcademicYear  string
	Method        string
	Date          string
	Balance       float64
	Status        string
}

func (svc *Service) sendReceipt(ctx context.Context, rcpt Receipt) {
	payer, err := svc.repo.Payer(ctx, rcpt.Payment.StudentID)
	if err != nil {
		svc.logger.Warn("looking up payer for receipt "+rcpt.Payment.ReceiptNumber, err)
		return
	}
	if !payer.ParentEmail.Valid || payer.ParentEmail.String == "" {
		return
	}
	name := payer.ParentName.String
	if name == "" {
		name = "Parent"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: payer.ParentEmail.String}},
		Subject:      "Payment Receipt " + rcpt.Payment.ReceiptNumber,
		TemplateName: "payment_receipt",
		TemplateData: receiptData{
			ParentName:    name,
			StudentName:   payer.StudentName,
			Amount:        rcpt.Payment.Amount,
			ReceiptNumber: rcpt.Payment.ReceiptNumber,
			FeeName:       rcpt.Fee.FeeName,
			Term:          rcpt.Fee.Term,
			AcademicYear:  rcpt.Fee.AcademicYear,
			Method:        rcpt.Payment.Method,
			Date:          rcpt.Payment.Date.Format(core.DateLayout),
			Balance:       rcpt.Balance,
			Status:        rcpt.Fee.Status,
		},
	})
}

// StudentFees lists the fees billed to studentID with its overall summary.
func (svc *Service) StudentFees(ctx context.Context, p auth.Principal, studentID int) ([]StudentFee, Summary, error) {
	if err := svc.scope.RequireStudent(ctx, p, studentID); err != nil {
		return nil, Summary{}, err
	}
	fees, err := svc.repo.StudentFees(ctx, studentID)
	if err != nil {
		return nil, Summary{}, errors.Wrap(err, "listing student fees")
	}
	sum, err := svc.repo.Summary(ctx, studentID)
	if err != nil {
		return nil, Summary{}, err
	}
	return fees, sum, nil
}

// Defaulters lists active students with an outstanding balance, largest first.
func (svc *Service) Defaulters(ctx context.Context, p auth.Principal) ([]Summary, error) {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return nil, err
	}
	return svc.repo.Defaulters(ctx)
}
