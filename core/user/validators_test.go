package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja/academy/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nopLogger{})
	return validate
}

func TestNewUserValidation(t *testing.T) {
	validate := newValidator()

	base := NewUser{
		Username:        "amina.otieno",
		Email:           "amina@umoja.ac.ke",
		RoleName:        RoleNameTeacher,
		Password:        "Kilima#2024x",
		PasswordConfirm: "Kilima#2024x",
	}
	with := func(fn func(nu *NewUser)) NewUser {
		nu := base
		fn(&nu)
		return nu
	}

	tests := []struct {
		name      string
		nu        NewUser
		wantField string
		wantTag   string
	}{
		{name: "valid", nu: base},
		{name: "unknown role", nu: with(func(nu *NewUser) { nu.RoleName = "Janitor" }), wantField: "role", wantTag: roleNameTag},
		{name: "bad username", nu: with(func(nu *NewUser) { nu.Username = "amina otieno" }), wantField: "username", wantTag: "alphanum_"},
		{name: "bad email", nu: with(func(nu *NewUser) { nu.Email = "amina" }), wantField: "email", wantTag: "email"},
		{name: "confirm mismatch", nu: with(func(nu *NewUser) { nu.PasswordConfirm = "nope" }), wantField: "password_confirm", wantTag: "eqfield"},
		{name: "too short", nu: with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1!", "Ab1!" }), wantField: "password", wantTag: pwdMinLenTag},
		{name: "whitespace", nu: with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Abc 123!xyz", "Abc 123!xyz" }), wantField: "password", wantTag: pwdNoSpaceTag},
		{name: "all numeric", nu: with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "1234567890", "1234567890" }), wantField: "password", wantTag: pwdNotAllNumTag},
		{name: "not complex", nu: with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "abcdefghij", "abcdefghij" }), wantField: "password", wantTag: pwdComplexityTag},
		{name: "similar to username", nu: with(func(nu *NewUser) {
			nu.Username = "grace.mwangi"
			nu.Password, nu.PasswordConfirm = "Grace.mwangi1", "Grace.mwangi1"
		}), wantField: "password", wantTag: pwdAttrSimTag},
		{name: "common", nu: with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "P@ssw0rd", "P@ssw0rd" }), wantField: "password", wantTag: pwdNoCommonTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.nu)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "want validator.ValidationErrors, got %T", err)

			var found bool
			for _, fe := range vErrs {
				if fe.Field() == tt.wantField && fe.Tag() == tt.wantTag {
					found = true
				}
			}
			assert.True(t, found, "want %s on %s, got %v", tt.wantTag, tt.wantField, vErrs)
		})
	}
}

func TestResetUserPasswordValidation(t *testing.T) {
	validate := newValidator()

	err := ResetUserPassword{Token: "t", UID: "u", Password: "weak", PasswordConfirm: "weak"}.Validate(validate)
	require.Error(t, err)

	err = ResetUserPassword{Token: "t", UID: "u", Password: "Kilima#2024x", PasswordConfirm: "Kilima#2024x"}.Validate(validate)
	assert.NoError(t, err)
}
