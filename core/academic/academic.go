package academic

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

var (
	ErrYearNotFound    = core.NotFound("academic year")
	ErrTermNotFound    = core.NotFound("term")
	ErrNoCurrentPeriod = core.NotFound("current academic year or term")
)

// Weekdays in timetable order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type (
	Year struct {
		ID        int       `json:"id" db:"academic_year_id"`
		Name      string    `json:"name" db:"year_name"`
		StartDate time.Time `json:"start_date" db:"start_date"`
		EndDate   time.Time `json:"end_date" db:"end_date"`
		IsCurrent bool      `json:"is_current" db:"is_current"`
	}

	Term struct {
		ID        int       `json:"id" db:"term_id"`
		YearID    int       `json:"academic_year_id" db:"academic_year_id"`
		Name      string    `json:"name" db:"term_name"`
		Number    int       `json:"number" db:"term_number"`
		StartDate time.Time `json:"start_date" db:"start_date"`
		EndDate   time.Time `json:"end_date" db:"end_date"`
		IsCurrent bool      `json:"is_current" db:"is_current"`
	}

	// Period is the current academic year and term used to scope writes.
	Period struct {
		Year Year `json:"year"`
		Term Term `json:"term"`
	}

	Class struct {
		ID             int      `json:"id" db:"class_id"`
		GradeID        int      `json:"grade_id" db:"grade_id"`
		GradeName      string   `json:"grade_name" db:"grade_name"`
		SectionName    string   `json:"section_name" db:"section_name"`
		ClassTeacherID null.Int `json:"class_teacher_id" db:"class_teacher_id"`
		Capacity       int      `json:"capacity" db:"capacity"`
		YearID         int      `json:"academic_year_id" db:"academic_year_id"`
	}

	TimetableEntry struct {
		ID           int         `json:"id" boil:"timetable_id" db:"timetable_id"`
		ClassID      int         `json:"class_id" boil:"class_id" db:"class_id"`
		TeacherID    int         `json:"teacher_id" boil:"teacher_id" db:"teacher_id"`
		ClassName    string      `json:"class_name" boil:"class_name" db:"class_name"`
		SubjectName  string      `json:"subject_name" boil:"subject_name" db:"subject_name"`
		TeacherName  string      `json:"teacher_name" boil:"teacher_name" db:"teacher_name"`
		DayOfWeek    string      `json:"day_of_week" boil:"day_of_week" db:"day_of_week"`
		SlotName     string      `json:"slot_name" boil:"slot_name" db:"slot_name"`
		StartTime    string      `json:"start_time" boil:"start_time" db:"start_time"`
		EndTime      string      `json:"end_time" boil:"end_time" db:"end_time"`
		SortOrder    int         `json:"-" boil:"sort_order" db:"sort_order"`
		RoomNumber   null.String `json:"room_number" boil:"room_number" db:"room_number"`
		AcademicYear string      `json:"academic_year" boil:"academic_year" db:"academic_year"`
		Term         string      `json:"term" boil:"term" db:"term"`
	}

	TimetableFilter struct {
		ClassID      int
		TeacherID    int
		AcademicYear string
		Term         string
	}

	Repository interface {
		CurrentYear(ctx context.Context, exec ...core.DBExecutor) (Year, error)
		CurrentTerm(ctx context.Context, exec ...core.DBExecutor) (Term, error)
		GetYear(ctx context.Context, id int, exec ...core.DBExecutor) (Year, error)
		GetTerm(ctx context.Context, id int, exec ...core.DBExecutor) (Term, error)
		// ClearCurrentYears and ClearCurrentTerms unset is_current on every row.
		ClearCurrentYears(ctx context.Context, exec ...core.DBExecutor) error
		SetCurrentYear(ctx context.Context, id int, exec ...core.DBExecutor) error
		ClearCurrentTerms(ctx context.Context, exec ...core.DBExecutor) error
		SetCurrentTerm(ctx context.Context, id int, exec ...core.DBExecutor) error
		ListClasses(ctx context.Context, yearID int, exec ...core.DBExecutor) ([]Class, error)
		GetClass(ctx context.Context, id int, exec ...core.DBExecutor) (Class, error)
		TeacherIDOfUser(ctx context.Context, userID int, exec ...core.DBExecutor) (int, error)
		Timetable(ctx context.Context, filter TimetableFilter, exec ...core.DBExecutor) ([]TimetableEntry, error)
	}

	Service struct {
		db    core.DB
		repo  Repository
		scope *auth.Scope
	}
)

func NewService(db core.DB, repo Repository, scope *auth.Scope) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(scope, "scope"),
	).CheckAndPanic()

	return &Service{db: db, repo: repo, scope: scope}
}

// Current returns the year and term flagged current.
func (svc *Service) Current(ctx context.Context) (Period, error) {
	year, err := svc.repo.CurrentYear(ctx)
	if err != nil {
		if core.IsNotFound(err) {
			return Period{}, ErrNoCurrentPeriod
		}
		return Period{}, errors.Wrap(err, "getting current year")
	}
	term, err := svc.repo.CurrentTerm(ctx)
	if err != nil {
		if core.IsNotFound(err) {
			return Period{}, ErrNoCurrentPeriod
		}
		return Period{}, errors.Wrap(err, "getting current term")
	}
	return Period{Year: year, Term: term}, nil
}

// SetCurrentYear makes id the only current academic year.
func (svc *Service) SetCurrentYear(ctx context.Context, p auth.Principal, id int) error {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return err
	}
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetYear(ctx, id, tx); err != nil {
			return err
		}
		if err := svc.repo.ClearCurrentYears(ctx, tx); err != nil {
			return errors.Wrap(err, "clearing current years")
		}
		return errors.Wrap(svc.repo.SetCurrentYear(ctx, id, tx), "setting current year")
	})
}

// SetCurrentTerm makes id the only current term.
func (svc *Service) SetCurrentTerm(ctx context.Context, p auth.Principal, id int) error {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return err
	}
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetTerm(ctx, id, tx); err != nil {
			return err
		}
		if err := svc.repo.ClearCurrentTerms(ctx, tx); err != nil {
			return errors.Wrap(err, "clearing current terms")
		}
		return errors.Wrap(svc.repo.SetCurrentTerm(ctx, id, tx), "setting current term")
	})
}

// Classes lists the active classes of the current academic year.
func (svc *Service) Classes(ctx context.Context) ([]Class, error) {
	year, err := svc.repo.CurrentYear(ctx)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrNoCurrentPeriod
		}
		return nil, errors.Wrap(err, "getting current year")
	}
	return svc.repo.ListClasses(ctx, year.ID)
}

// ClassTimetable returns the current-term timetable of classID, if p may see the class.
func (svc *Service) ClassTimetable(ctx context.Context, p auth.Principal, classID int) ([]TimetableEntry, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	if err := svc.scope.RequireClass(ctx, p, classID); err != nil {
		return nil, err
	}
	period, err := svc.Current(ctx)
	if err != nil {
		return nil, err
	}
	return svc.repo.Timetable(ctx, TimetableFilter{
		ClassID:      classID,
		AcademicYear: period.Year.Name,
		Term:         period.Term.Name,
	})
}

// TeacherTimetable returns the current-term timetable of the teacher linked to p.
func (svc *Service) TeacherTimetable(ctx context.Context, p auth.Principal) ([]TimetableEntry, error) {
	if err := p.Require(auth.RoleTeacher); err != nil {
		return nil, err
	}
	teacherID, err := svc.repo.TeacherIDOfUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	period, err := svc.Current(ctx)
	if err != nil {
		return nil, err
	}
	return svc.repo.Timetable(ctx, TimetableFilter{
		TeacherID:    teacherID,
		AcademicYear: period.Year.Name,
		Term:         period.Term.Name,
	})
}

// WeekdayIndex orders timetable days; unknown days sort last.
func WeekdayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return len(Weekdays)
}
