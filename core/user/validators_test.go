package user

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/touchline/academy/core"
)

type discardLogger struct{ *log.Logger }

func (l discardLogger) Debug(msg string, args ...interface{}) {}
func (l discardLogger) Info(msg string, args ...interface{})  {}
func (l discardLogger) Warn(msg string, args ...interface{})  {}
func (l discardLogger) Error(msg string, args ...interface{}) {}
func (l discardLogger) Fatal(msg string, args ...interface{}) { l.Logger.Fatal(msg) }

func TestCheckPassword(t *testing.T) {
	LoadCommonPasswords(discardLogger{log.New(io.Discard, "", 0)})

	tests := []struct {
		name string
		pwd  string
		attr string
		want string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123!", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefg123", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefg12!", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Coachbob1!", attr: "coachbob1", want: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd", want: pwdNoCommonTag},
		{name: "valid", pwd: "Kick-0ff#Pitch", attr: "coachbob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkPassword(tt.pwd, "", tt.attr, ""))
		})
	}
}

func TestValidateNewUser(t *testing.T) {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)

	tests := []struct {
		name    string
		nu      NewUser
		wantErr bool
	}{
		{name: "no username nor email", nu: NewUser{Name: "A", Password: "Kick-0ff#Pitch", PasswordConfirm: "Kick-0ff#Pitch"}, wantErr: true},
		{name: "passwords mismatch", nu: NewUser{Name: "A", Username: "coachbob", Password: "Kick-0ff#Pitch", PasswordConfirm: "x"}, wantErr: true},
		{name: "unknown role", nu: NewUser{Name: "A", Username: "coachbob", Password: "Kick-0ff#Pitch", PasswordConfirm: "Kick-0ff#Pitch", Roles: []string{"lol:"}}, wantErr: true},
		{name: "valid", nu: NewUser{Name: "A", Username: "coachbob", Password: "Kick-0ff#Pitch", PasswordConfirm: "Kick-0ff#Pitch", Roles: []string{RoleCoach}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.nu)
			assert.Equal(t, tt.wantErr, err != nil, "validate.Struct() error = %v", err)
		})
	}
}

func TestRoles(t *testing.T) {
	owner := User{Roles: []string{RoleAdminOwner}}
	coach := User{Roles: []string{RoleCoach}}

	assert.True(t, owner.IsAdmin())
	assert.False(t, owner.IsCoach())
	assert.Equal(t, "coach", coach.PrimaryRole())
	assert.True(t, CanAssignRoles(owner, []string{RoleAdminManager, RoleCoach}))
	assert.False(t, CanAssignRoles(coach, []string{RoleCoachHead}))
	assert.True(t, CanAssignRoles(coach, []string{RoleParent}))
	assert.Equal(t, Role{Name: "Coach Head", Value: RoleCoachHead}, Roles[3])
	assert.Equal(t, Role{Name: "Admin Manager", Value: RoleAdminManager}, Roles[5])
}
