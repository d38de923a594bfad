package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/user"
)

const userColumns = `u.user_id, u.username, u.email, u.password_hash, u.role_id, r.role_name,
	u.is_active, u.last_login, u.created_at, u.updated_at`

type userRepository struct {
	executor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{executor{exec: exec}}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int) error {
	var taken struct {
		Username int `db:"username_taken"`
		Email    int `db:"email_taken"`
	}
	err := repo.exec.QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(username = ?), 0) AS username_taken, COALESCE(SUM(email = ?), 0) AS email_taken
		FROM users
		WHERE (username = ? OR email = ?) AND user_id <> ?`,
		username, email, username, email, excludeID,
	).StructScan(&taken)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	switch {
	case taken.Username > 0:
		return user.ErrUsernameExists
	case taken.Email > 0:
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) GetRoleID(ctx context.Context, roleName string) (int, error) {
	var id int
	err := repo.exec.QueryRowxContext(ctx, `SELECT role_id FROM user_roles WHERE role_name = ?`, roleName).Scan(&id)
	if err != nil {
		return 0, trapNoRowsErr(err, core.NotFound("role"), "selecting role")
	}
	return id, nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.exec.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, role_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		usr.Username, usr.Email, usr.PasswordHash, usr.RoleID, usr.IsActive, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, trapConstraintErr(err, "username", user.ErrUsernameExists, nil, "inserting user")
	}
	id, err := lastInsertID(res)
	if err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: id})
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u JOIN user_roles r ON r.role_id = u.role_id `
	var args []interface{}
	switch {
	case filter.ID != 0:
		q += `WHERE u.user_id = ?`
		args = append(args, filter.ID)
	case filter.UsernameOrEmail != "":
		q += `WHERE u.username = ? OR u.email = ? LIMIT 1`
		args = append(args, filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := repo.exec.QueryRowxContext(ctx, q, args...).StructScan(&usr); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return usr, nil
}

// UpdateUser leaves the password untouched when usr.PasswordHash is nil.
func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET username = ?, email = ?, is_active = ?, updated_at = ?`
	args := []interface{}{usr.Username, usr.Email, usr.IsActive, usr.UpdatedAt}
	if usr.PasswordHash != nil {
		q += `, password_hash = ?`
		args = append(args, usr.PasswordHash)
	}
	q += ` WHERE user_id = ?`
	args = append(args, usr.ID)

	if _, err := repo.exec.ExecContext(ctx, q, args...); err != nil {
		return user.User{}, trapConstraintErr(err, "username", user.ErrUsernameExists, nil, "updating user")
	}
	// MySQL counts unchanged rows as unaffected, so a missing user is detected by the read.
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo userRepository) SetLastLogin(ctx context.Context, id int, at time.Time) error {
	if _, err := repo.exec.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE user_id = ?`, at, id); err != nil {
		return errors.Wrap(err, "updating last login")
	}
	return nil
}
