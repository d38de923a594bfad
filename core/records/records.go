package records

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/exam"
)

var (
	ErrStudentNotFound = core.NotFound("student")
	ErrNoClass         = errors.New("student is not assigned to a class")
	ErrNoResults       = errors.New("student has no exam results for this term")
)

type (
	BehavioralRecord struct {
		ID               int         `json:"id" db:"record_id"`
		StudentID        int         `json:"student_id" db:"student_id"`
		IncidentDate     time.Time   `json:"incident_date" db:"incident_date"`
		IncidentType     string      `json:"incident_type" db:"incident_type"`
		Description      string      `json:"description" db:"description"`
		ActionTaken      null.String `json:"action_taken" db:"action_taken"`
		Severity         string      `json:"severity" db:"severity"`
		RecordedBy       int         `json:"recorded_by" db:"recorded_by"`
		ParentNotified   bool        `json:"parent_notified" db:"parent_notified"`
		FollowUpRequired bool        `json:"follow_up_required" db:"follow_up_required"`
		AcademicYear     string      `json:"academic_year" db:"academic_year"`
	}

	Activity struct {
		ID                 int         `json:"id" db:"activity_id"`
		StudentID          int         `json:"student_id" db:"student_id"`
		Name               string      `json:"name" db:"activity_name"`
		Type               string      `json:"activity_type" db:"activity_type"`
		ParticipationLevel string      `json:"participation_level" db:"participation_level"`
		Achievements       null.String `json:"achievements" db:"achievements"`
		StartDate          null.Time   `json:"start_date" db:"start_date"`
		EndDate            null.Time   `json:"end_date" db:"end_date"`
		AcademicYear       string      `json:"academic_year" db:"academic_year"`
		SupervisorID       null.Int    `json:"supervisor_id" db:"supervisor_id"`
	}

	ReportCard struct {
		ID                   int          `json:"id" db:"report_card_id"`
		StudentID            int          `json:"student_id" db:"student_id"`
		ClassID              int          `json:"class_id" db:"class_id"`
		AcademicYear         string       `json:"academic_year" db:"academic_year"`
		Term                 string       `json:"term" db:"term"`
		TotalMarks           float64      `json:"total_marks" db:"total_marks"`
		ObtainedMarks        float64      `json:"obtained_marks" db:"obtained_marks"`
		Percentage           float64      `json:"percentage" db:"percentage"`
		Grade                string       `json:"grade" db:"grade"`
		RankInClass          null.Int     `json:"rank_in_class" db:"rank_in_class"`
		AttendancePercentage null.Float64 `json:"attendance_percentage" db:"attendance_percentage"`
		TeacherRemarks       null.String  `json:"teacher_remarks" db:"teacher_remarks"`
		PrincipalRemarks     null.String  `json:"principal_remarks" db:"principal_remarks"`
		GeneratedBy          int          `json:"generated_by" db:"generated_by"`
	}

	// Totals aggregates a student's marks, excluding exams they were absent from.
	Totals struct {
		Total    float64 `db:"total_marks"`
		Obtained float64 `db:"obtained_marks"`
	}

	// Presence counts attendance marks; Attended includes late arrivals.
	Presence struct {
		Attended int `db:"attended"`
		Total    int `db:"total"`
	}

	NewReportCard struct {
		StudentID        int
		AcademicYear     string
		Term             string
		TeacherRemarks   string
		PrincipalRemarks string
	}

	Repository interface {
		StudentClassID(ctx context.Context, studentID int, exec ...core.DBExecutor) (null.Int, error)
		BehavioralRecords(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]BehavioralRecord, error)
		CreateBehavioralRecord(ctx context.Context, r BehavioralRecord, exec ...core.DBExecutor) (BehavioralRecord, error)
		Activities(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]Activity, error)
		ResultTotals(ctx context.Context, studentID int, year, term string, exec ...core.DBExecutor) (Totals, error)
		// TermDates returns the start and end of the named term of the named year.
		TermDates(ctx context.Context, year, term string, exec ...core.DBExecutor) (time.Time, time.Time, error)
		Presence(ctx context.Context, studentID int, from, to time.Time, exec ...core.DBExecutor) (Presence, error)
		// UpsertReportCard inserts or replaces the (student, year, term) card.
		UpsertReportCard(ctx context.Context, rc ReportCard, exec ...core.DBExecutor) error
		// RankClass re-ranks every card of a class for the term by percentage.
		RankClass(ctx context.Context, classID int, year, term string, exec ...core.DBExecutor) error
		GetReportCard(ctx context.Context, studentID int, year, term string, exec ...core.DBExecutor) (ReportCard, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		scope   *auth.Scope
		nowFunc func() time.Time
	}
)

func NewService(db core.DB, repo Repository, scope *auth.Scope) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(scope, "scope"),
	).CheckAndPanic()

	return &Service{db: db, repo: repo, scope: scope, nowFunc: time.Now}
}

func (svc *Service) BehavioralRecords(ctx context.Context, p auth.Principal, studentID int) ([]BehavioralRecord, error) {
	if err := svc.scope.RequireStudent(ctx, p, studentID); err != nil {
		return nil, err
	}
	return svc.repo.BehavioralRecords(ctx, studentID)
}

// RecordBehavior files an incident against a student the principal teaches (or any, for admins).
func (svc *Service) RecordBehavior(ctx context.Context, p auth.Principal, r BehavioralRecord) (BehavioralRecord, error) {
	if err := p.Require(auth.RoleAdmin, auth.RoleTeacher); err != nil {
		return BehavioralRecord{}, err
	}
	if err := svc.scope.RequireStudent(ctx, p, r.StudentID); err != nil {
		return BehavioralRecord{}, err
	}
	if r.IncidentDate.IsZero() {
		r.IncidentDate = svc.nowFunc()
	}
	r.IncidentDate = core.Today(r.IncidentDate)
	if r.Severity == "" {
		r.Severity = "Minor"
	}
	r.RecordedBy = p.UserID
	return svc.repo.CreateBehavioralRecord(ctx, r)
}

func (svc *Service) Activities(ctx context.Context, p auth.Principal, studentID int) ([]Activity, error) {
	if err := svc.scope.RequireStudent(ctx, p, studentID); err != nil {
		return nil, err
	}
	return svc.repo.Activities(ctx, studentID)
}

// GenerateReportCard computes a student's term card from their exam results and
// attendance, replaces any earlier card for the term and re-ranks the class.
func (svc *Service) GenerateReportCard(ctx context.Context, p auth.Principal, nrc NewReportCard) (ReportCard, error) {
	if err := p.Require(auth.RoleAdmin, auth.RoleTeacher); err != nil {
		return ReportCard{}, err
	}
	if err := svc.scope.RequireStudent(ctx, p, nrc.StudentID); err != nil {
		return ReportCard{}, err
	}

	var rc ReportCard
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		classID, err := svc.repo.StudentClassID(ctx, nrc.StudentID, tx)
		if err != nil {
			return err
		}
		if !classID.Valid {
			return core.NewValidationError(ErrNoClass, core.FieldError{Field: "student_id", Error: ErrNoClass.Error()})
		}

		totals, err := svc.repo.ResultTotals(ctx, nrc.StudentID, nrc.AcademicYear, nrc.Term, tx)
		if err != nil {
			return errors.Wrap(err, "totalling results")
		}
		if totals.Total <= 0 {
			return core.NewValidationError(ErrNoResults)
		}

		rc = ReportCard{
			StudentID:        nrc.StudentID,
			ClassID:          classID.Int,
			AcademicYear:     nrc.AcademicYear,
			Term:             nrc.Term,
			TotalMarks:       core.Round(totals.Total, 2),
			ObtainedMarks:    core.Round(totals.Obtained, 2),
			TeacherRemarks:   null.NewString(nrc.TeacherRemarks, nrc.TeacherRemarks != ""),
			PrincipalRemarks: null.NewString(nrc.PrincipalRemarks, nrc.PrincipalRemarks != ""),
			GeneratedBy:      p.UserID,
		}
		pct := totals.Obtained / totals.Total * 100
		rc.Percentage = core.Round(pct, 2)
		rc.Grade = exam.LetterGrade(pct)

		from, to, err := svc.repo.TermDates(ctx, nrc.AcademicYear, nrc.Term, tx)
		switch {
		case err == nil:
			presence, err := svc.repo.Presence(ctx, nrc.StudentID, from, to, tx)
			if err != nil {
				return errors.Wrap(err, "counting attendance")
			}
			if presence.Total > 0 {
				rc.AttendancePercentage = null.Float64From(core.Round(float64(presence.Attended)/float64(presence.Total)*100, 2))
			}
		case !core.IsNotFound(err):
			return errors.Wrap(err, "getting term dates")
		}

		if err = svc.repo.UpsertReportCard(ctx, rc, tx); err != nil {
			return errors.Wrap(err, "saving report card")
		}
		if err = svc.repo.RankClass(ctx, rc.ClassID, rc.AcademicYear, rc.Term, tx); err != nil {
			return errors.Wrap(err, "ranking class")
		}
		rc, err = svc.repo.GetReportCard(ctx, rc.StudentID, rc.AcademicYear, rc.Term, tx)
		return err
	})
	if err != nil {
		return ReportCard{}, err
	}
	return rc, nil
}
