package dashboard

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

// NoClassAssigned is reported to a student whose record has no class.
const NoClassAssigned = "No Class Assigned"

const (
	warnStats    = "Error loading dashboard data"
	warnRoleInfo = "Error loading role information"
)

type (
	AttendanceTally struct {
		Date       string  `json:"date"`
		Total      int     `json:"total" db:"att_total"`
		Present    int     `json:"present" db:"att_present"`
		Absent     int     `json:"absent" db:"att_absent"`
		Late       int     `json:"late" db:"att_late"`
		Percentage float64 `json:"percentage"`
	}

	Stats struct {
		Students   int             `json:"students" db:"students"`
		Teachers   int             `json:"teachers" db:"teachers"`
		Classes    int             `json:"classes" db:"classes"`
		Subjects   int             `json:"subjects" db:"subjects"`
		Attendance AttendanceTally `json:"attendance"`
	}

	Child struct {
		StudentID int         `json:"student_id" db:"student_id"`
		Name      string      `json:"name" db:"child_name"`
		ClassName null.String `json:"class_name" db:"class_name"`
	}

	RoleInfo struct {
		Title     string   `json:"title"`
		Classes   []string `json:"classes,omitempty"`
		ClassName string   `json:"class_name,omitempty"`
		Children  []Child  `json:"children,omitempty"`
	}

	View struct {
		User     auth.Principal `json:"user"`
		Greeting string         `json:"greeting"`
		Stats    Stats          `json:"stats"`
		RoleInfo RoleInfo       `json:"role_info"`
		Warnings []string       `json:"warnings,omitempty"`
	}

	Repository interface {
		// Stats counts active students, teachers, classes and subjects along with the
		// attendance tally for day, in a single round-trip.
		Stats(ctx context.Context, day time.Time) (Stats, error)
		TeacherClasses(ctx context.Context, userID int) ([]string, error)
		StudentClass(ctx context.Context, userID int) (null.String, error)
		ParentChildren(ctx context.Context, userID int) ([]Child, error)
	}

	Service struct {
		repo    Repository
		logger  core.Logger
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, logger: logger, nowFunc: time.Now}
}

// AttendancePercentage is 0 for an empty register, otherwise present/total rounded to one decimal.
func AttendancePercentage(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	return core.Round(float64(present)/float64(total)*100, 1)
}

// Title names the role information panel.
func Title(role auth.Role) (string, error) {
	switch role {
	case auth.RoleAdmin:
		return "Role Information", nil
	case auth.RoleTeacher:
		return "Your Classes", nil
	case auth.RoleStudent:
		return "Your Information", nil
	case auth.RoleParent:
		return "Your Children", nil
	default:
		return "", auth.ErrUnknownRole
	}
}

// Stats never fails: on a query error it returns zeroed stats and a warning.
func (svc *Service) Stats(ctx context.Context) (Stats, string) {
	today := svc.nowFunc()
	stats, err := svc.repo.Stats(ctx, today)
	if err != nil {
		svc.logger.Warn(warnStats, err)
		stats = Stats{}
		stats.Attendance.Date = today.Format(core.DateLayout)
		return stats, warnStats
	}
	stats.Attendance.Date = today.Format(core.DateLayout)
	stats.Attendance.Percentage = AttendancePercentage(stats.Attendance.Present, stats.Attendance.Total)
	return stats, ""
}

// RoleInfo runs the role-scoped queries for p. Query failures degrade to an
// empty result plus a warning; only an unknown role is an error.
func (svc *Service) RoleInfo(ctx context.Context, p auth.Principal) (RoleInfo, string, error) {
	title, err := Title(p.Role)
	if err != nil {
		return RoleInfo{}, "", err
	}
	info := RoleInfo{Title: title}

	switch p.Role {
	case auth.RoleAdmin:
		return info, "", nil
	case auth.RoleTeacher:
		classes, err := svc.repo.TeacherClasses(ctx, p.UserID)
		if err != nil {
			return svc.degrade(info, err, p)
		}
		info.Classes = classes
	case auth.RoleStudent:
		class, err := svc.repo.StudentClass(ctx, p.UserID)
		if err != nil {
			return svc.degrade(info, err, p)
		}
		info.ClassName = NoClassAssigned
		if class.Valid && class.String != "" {
			info.ClassName = class.String
		}
	case auth.RoleParent:
		children, err := svc.repo.ParentChildren(ctx, p.UserID)
		if err != nil {
			return svc.degrade(info, err, p)
		}
		info.Children = children
	default:
		return RoleInfo{}, "", auth.ErrUnknownRole
	}
	return info, "", nil
}

func (svc *Service) degrade(info RoleInfo, err error, p auth.Principal) (RoleInfo, string, error) {
	svc.logger.Warn(warnRoleInfo, err, p)
	return RoleInfo{Title: info.Title}, warnRoleInfo, nil
}

// Dashboard assembles the landing page view model for p.
func (svc *Service) Dashboard(ctx context.Context, p auth.Principal) (View, error) {
	greeting, err := p.Role.Greeting(p.DisplayName())
	if err != nil {
		return View{}, err
	}
	view := View{User: p, Greeting: greeting}

	var warn string
	view.Stats, warn = svc.Stats(ctx)
	if warn != "" {
		view.Warnings = append(view.Warnings, warn)
	}

	view.RoleInfo, warn, err = svc.RoleInfo(ctx, p)
	if err != nil {
		return View{}, err
	}
	if warn != "" {
		view.Warnings = append(view.Warnings, warn)
	}
	return view, nil
}
