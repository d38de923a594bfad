package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
)

// ScopeRepository answers ownership questions keyed by the principal's user id.
type ScopeRepository interface {
	StudentOfUser(ctx context.Context, studentID, userID int) (bool, error)
	ChildOfUser(ctx context.Context, studentID, userID int) (bool, error)
	StudentTaughtByUser(ctx context.Context, studentID, userID int) (bool, error)
	ClassOfStudentUser(ctx context.Context, classID, userID int) (bool, error)
	ClassOfChildOfUser(ctx context.Context, classID, userID int) (bool, error)
	ClassTaughtByUser(ctx context.Context, classID, userID int) (bool, error)
}

// Scope decides which students and classes a Principal may see.
type Scope struct {
	repo ScopeRepository
}

func NewScope(repo ScopeRepository) *Scope {
	return &Scope{repo: repo}
}

// CanSeeStudent: admins see everyone, teachers the students they teach,
// students themselves and parents their own children.
func (s *Scope) CanSeeStudent(ctx context.Context, p Principal, studentID int) (bool, error) {
	var ok bool
	var err error
	switch p.Role {
	case RoleAdmin:
		return true, nil
	case RoleTeacher:
		ok, err = s.repo.StudentTaughtByUser(ctx, studentID, p.UserID)
	case RoleStudent:
		ok, err = s.repo.StudentOfUser(ctx, studentID, p.UserID)
	case RoleParent:
		ok, err = s.repo.ChildOfUser(ctx, studentID, p.UserID)
	default:
		return false, ErrUnknownRole
	}
	return ok, errors.Wrap(err, "checking student scope")
}

func (s *Scope) CanSeeClass(ctx context.Context, p Principal, classID int) (bool, error) {
	var ok bool
	var err error
	switch p.Role {
	case RoleAdmin:
		return true, nil
	case RoleTeacher:
		ok, err = s.repo.ClassTaughtByUser(ctx, classID, p.UserID)
	case RoleStudent:
		ok, err = s.repo.ClassOfStudentUser(ctx, classID, p.UserID)
	case RoleParent:
		ok, err = s.repo.ClassOfChildOfUser(ctx, classID, p.UserID)
	default:
		return false, ErrUnknownRole
	}
	return ok, errors.Wrap(err, "checking class scope")
}

// RequireStudent returns core.ErrForbidden when p may not see studentID.
func (s *Scope) RequireStudent(ctx context.Context, p Principal, studentID int) error {
	ok, err := s.CanSeeStudent(ctx, p, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrForbidden
	}
	return nil
}

func (s *Scope) RequireClass(ctx context.Context, p Principal, classID int) error {
	ok, err := s.CanSeeClass(ctx, p, classID)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrForbidden
	}
	return nil
}
