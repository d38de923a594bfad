package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/auth"
)

type sessionRepository struct {
	executor
}

var _ auth.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{executor{exec: exec}}
}

func (repo sessionRepository) CreateSession(ctx context.Context, s auth.Session) error {
	_, err := sqlx.NamedExecContext(ctx, repo.exec, `
		INSERT INTO user_sessions (session_id, user_id, ip_address, user_agent, created_at, expires_at)
		VALUES (:session_id, :user_id, :ip_address, :user_agent, :created_at, :expires_at)`,
		s,
	)
	return errors.Wrap(err, "inserting session")
}

func (repo sessionRepository) GetSession(ctx context.Context, id string) (auth.Session, error) {
	var s auth.Session
	err := repo.exec.QueryRowxContext(ctx, `
		SELECT session_id, user_id, ip_address, user_agent, created_at, expires_at, revoked_at
		FROM user_sessions WHERE session_id = ?`, id,
	).StructScan(&s)
	if err != nil {
		return auth.Session{}, trapNoRowsErr(err, auth.ErrSessionNotFound, "selecting session")
	}
	return s, nil
}

func (repo sessionRepository) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res, err := repo.exec.ExecContext(ctx, `UPDATE user_sessions SET revoked_at = ? WHERE session_id = ?`, at, id)
	if err != nil {
		return errors.Wrap(err, "revoking session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// FullName looks the user up as a teacher, student, parent then staff member.
func (repo sessionRepository) FullName(ctx context.Context, userID int) (string, error) {
	var name string
	err := repo.exec.QueryRowxContext(ctx, `
		SELECT COALESCE(
			(SELECT CONCAT(p.first_name, ' ', p.last_name) FROM teachers t JOIN persons p ON p.person_id = t.person_id WHERE t.user_id = ? LIMIT 1),
			(SELECT CONCAT(p.first_name, ' ', p.last_name) FROM students s JOIN persons p ON p.person_id = s.person_id WHERE s.user_id = ? LIMIT 1),
			(SELECT CONCAT(p.first_name, ' ', p.last_name) FROM parents pa JOIN persons p ON p.person_id = pa.person_id WHERE pa.user_id = ? LIMIT 1),
			(SELECT CONCAT(p.first_name, ' ', p.last_name) FROM staff st JOIN persons p ON p.person_id = st.person_id WHERE st.user_id = ? LIMIT 1),
			''
		)`, userID, userID, userID, userID,
	).Scan(&name)
	if err != nil {
		return "", errors.Wrap(err, "selecting full name")
	}
	return name, nil
}
