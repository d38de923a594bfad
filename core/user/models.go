package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/umoja/academy/core"
)

// Role names as stored in user_roles.role_name.
const (
	RoleNameSuperAdmin = "Super Admin"
	RoleNamePrincipal  = "Principal"
	RoleNameAccountant = "Accountant"
	RoleNameLibrarian  = "Librarian"
	RoleNameTeacher    = "Teacher"
	RoleNameStudent    = "Student"
	RoleNameParent     = "Parent"
)

var RoleNames = []string{
	RoleNameSuperAdmin,
	RoleNamePrincipal,
	RoleNameAccountant,
	RoleNameLibrarian,
	RoleNameTeacher,
	RoleNameStudent,
	RoleNameParent,
}

type User struct {
	ID           int       `json:"id" db:"user_id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	RoleID       int       `json:"role_id" db:"role_id"`
	RoleName     string    `json:"role_name" db:"role_name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	LastLogin    null.Time `json:"last_login" db:"last_login"` // UTC
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username        string `json:"username" validate:"required,min=3,max=50,alphanum_"`
	Email           string `json:"email" validate:"required,email,max=100"`
	RoleName        string `json:"role" validate:"required,rolename"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.RoleName = core.CleanString(nu.RoleName)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Username, nu.Email, 0)
}

type RequestPasswordReset struct {
	Email string `json:"email" validate:"required,email"`
}

func (rp RequestPasswordReset) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single User; the first non-zero field wins.
type GetFilter struct {
	ID              int
	UsernameOrEmail string
}
