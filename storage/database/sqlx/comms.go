package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
	"github.com/umoja/academy/core/comms"
)

type commsRepository struct {
	executor
}

var _ comms.Repository = (*commsRepository)(nil) // interface compliance check

func NewCommsRepository(exec core.DBExecutor) *commsRepository {
	return &commsRepository{executor{exec: exec}}
}

func (repo commsRepository) ClassIDsOfUser(ctx context.Context, role auth.Role, userID int, exec ...core.DBExecutor) ([]int, error) {
	var q string
	args := []interface{}{userID}
	switch role {
	case auth.RoleStudent:
		q = `SELECT class_id FROM students WHERE user_id = ? AND class_id IS NOT NULL`
	case auth.RoleParent:
		q = `SELECT DISTINCT s.class_id FROM students s JOIN parents pa ON pa.parent_id = s.parent_id
			WHERE pa.user_id = ? AND s.class_id IS NOT NULL`
	case auth.RoleTeacher:
		q = `SELECT c.class_id FROM classes c JOIN teachers t ON t.teacher_id = c.class_teacher_id WHERE t.user_id = ?
			UNION
			SELECT tt.class_id FROM timetable tt JOIN teachers t ON t.teacher_id = tt.teacher_id WHERE t.user_id = ? AND tt.is_active = 1`
		args = append(args, userID)
	default:
		return nil, nil
	}

	var ids []int
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &ids, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting classes of user")
	}
	return ids, nil
}

// audienceClause restricts target_audience/target_class_id to aud.
func audienceClause(aud comms.Audience) (string, []interface{}, error) {
	if aud.All {
		return "1 = 1", nil, nil
	}
	if len(aud.Audiences) == 0 {
		return "1 = 0", nil, nil
	}
	clause, args, err := sqlx.In(`target_audience IN (?)`, aud.Audiences)
	if err != nil {
		return "", nil, err
	}
	if len(aud.ClassIDs) > 0 {
		classClause, classArgs, err := sqlx.In(`(target_audience = ? AND target_class_id IN (?))`, comms.AudienceSpecificClass, aud.ClassIDs)
		if err != nil {
			return "", nil, err
		}
		clause = "(" + clause + " OR " + classClause + ")"
		args = append(args, classArgs...)
	}
	return clause, args, nil
}

func (repo commsRepository) Announcements(ctx context.Context, aud comms.Audience, day time.Time, exec ...core.DBExecutor) ([]comms.Announcement, error) {
	clause, args, err := audienceClause(aud)
	if err != nil {
		return nil, errors.Wrap(err, "building audience")
	}
	d := day.Format(core.DateLayout)
	q := `SELECT announcement_id, title, content, target_audience, target_class_id, priority, published_by,
			published_date, expiry_date, attachment
		FROM announcements
		WHERE is_active = 1 AND published_date <= ? AND (expiry_date IS NULL OR expiry_date >= ?) AND ` + clause + `
		ORDER BY published_date DESC, FIELD(priority, 'Urgent', 'High', 'Medium', 'Low'), announcement_id DESC`

	db := repo.getExec(exec)
	var list []comms.Announcement
	if err = sqlx.SelectContext(ctx, db, &list, db.Rebind(q), append([]interface{}{d, d}, args...)...); err != nil {
		return nil, errors.Wrap(err, "selecting announcements")
	}
	return list, nil
}

func (repo commsRepository) UpcomingEvents(ctx context.Context, aud comms.Audience, from time.Time, exec ...core.DBExecutor) ([]comms.Event, error) {
	clause, args, err := audienceClause(aud)
	if err != nil {
		return nil, errors.Wrap(err, "building audience")
	}
	q := `SELECT event_id, event_name, description, event_date, start_time, end_time, venue, event_type,
			target_audience, target_class_id, is_mandatory
		FROM events
		WHERE event_date >= ? AND ` + clause + `
		ORDER BY event_date, start_time, event_id`

	db := repo.getExec(exec)
	var list []comms.Event
	if err = sqlx.SelectContext(ctx, db, &list, db.Rebind(q), append([]interface{}{from.Format(core.DateLayout)}, args...)...); err != nil {
		return nil, errors.Wrap(err, "selecting events")
	}
	return list, nil
}
