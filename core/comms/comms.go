package comms

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

const (
	AudienceAll           = "All"
	AudienceStudents      = "Students"
	AudienceTeachers      = "Teachers"
	AudienceParents       = "Parents"
	AudienceStaff         = "Staff"
	AudienceSpecificClass = "Specific Class"
)

type (
	Announcement struct {
		ID             int         `json:"id" db:"announcement_id"`
		Title          string      `json:"title" db:"title"`
		Content        string      `json:"content" db:"content"`
		TargetAudience string      `json:"target_audience" db:"target_audience"`
		TargetClassID  null.Int    `json:"target_class_id" db:"target_class_id"`
		Priority       string      `json:"priority" db:"priority"`
		PublishedBy    int         `json:"published_by" db:"published_by"`
		PublishedDate  time.Time   `json:"published_date" db:"published_date"`
		ExpiryDate     null.Time   `json:"expiry_date" db:"expiry_date"`
		Attachment     null.String `json:"attachment" db:"attachment"`
	}

	Event struct {
		ID             int         `json:"id" db:"event_id"`
		Name           string      `json:"name" db:"event_name"`
		Description    null.String `json:"description" db:"description"`
		Date           time.Time   `json:"date" db:"event_date"`
		StartTime      null.String `json:"start_time" db:"start_time"`
		EndTime        null.String `json:"end_time" db:"end_time"`
		Venue          null.String `json:"venue" db:"venue"`
		Type           string      `json:"event_type" db:"event_type"`
		TargetAudience string      `json:"target_audience" db:"target_audience"`
		TargetClassID  null.Int    `json:"target_class_id" db:"target_class_id"`
		IsMandatory    bool        `json:"is_mandatory" db:"is_mandatory"`
	}

	// Audience restricts listings to what a principal may read. All is true for
	// admins, who see every audience.
	Audience struct {
		All       bool
		Audiences []string
		ClassIDs  []int
	}

	Repository interface {
		// ClassIDsOfUser returns the classes a user belongs to through their role:
		// a student's class, a parent's children's classes, a teacher's timetabled classes.
		ClassIDsOfUser(ctx context.Context, role auth.Role, userID int, exec ...core.DBExecutor) ([]int, error)
		Announcements(ctx context.Context, aud Audience, day time.Time, exec ...core.DBExecutor) ([]Announcement, error)
		UpcomingEvents(ctx context.Context, aud Audience, from time.Time, exec ...core.DBExecutor) ([]Event, error)
	}

	Service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{repo: repo, nowFunc: time.Now}
}

// RoleAudience is the target audience addressing role, besides All.
func RoleAudience(role auth.Role) (string, error) {
	switch role {
	case auth.RoleAdmin:
		return AudienceStaff, nil
	case auth.RoleTeacher:
		return AudienceTeachers, nil
	case auth.RoleStudent:
		return AudienceStudents, nil
	case auth.RoleParent:
		return AudienceParents, nil
	default:
		return "", auth.ErrUnknownRole
	}
}

// AudienceFor resolves what p may read.
func (svc *Service) AudienceFor(ctx context.Context, p auth.Principal) (Audience, error) {
	target, err := RoleAudience(p.Role)
	if err != nil {
		return Audience{}, err
	}
	if p.IsAdmin() {
		return Audience{All: true}, nil
	}
	classIDs, err := svc.repo.ClassIDsOfUser(ctx, p.Role, p.UserID)
	if err != nil {
		return Audience{}, errors.Wrap(err, "resolving classes")
	}
	return Audience{Audiences: []string{AudienceAll, target}, ClassIDs: classIDs}, nil
}

// Announcements lists the active, unexpired announcements addressed to p, newest first.
func (svc *Service) Announcements(ctx context.Context, p auth.Principal) ([]Announcement, error) {
	aud, err := svc.AudienceFor(ctx, p)
	if err != nil {
		return nil, err
	}
	return svc.repo.Announcements(ctx, aud, core.Today(svc.nowFunc()))
}

// UpcomingEvents lists events from today onwards addressed to p, soonest first.
func (svc *Service) UpcomingEvents(ctx context.Context, p auth.Principal) ([]Event, error) {
	aud, err := svc.AudienceFor(ctx, p)
	if err != nil {
		return nil, err
	}
	return svc.repo.UpcomingEvents(ctx, aud, core.Today(svc.nowFunc()))
}

// Visible reports whether an item addressed to (audience, classID) reaches aud.
func (aud Audience) Visible(audience string, classID null.Int) bool {
	if aud.All {
		return true
	}
	if audience == AudienceSpecificClass {
		if !classID.Valid {
			return false
		}
		for _, id := range aud.ClassIDs {
			if id == classID.Int {
				return true
			}
		}
		return false
	}
	for _, a := range aud.Audiences {
		if a == audience {
			return true
		}
	}
	return false
}
