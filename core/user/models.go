package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"
	"golang.org/x/crypto/bcrypt"

	"github.com/touchline/academy/core"
)

// Roles
const (
	// Admin
	RoleAdmin        = "admin:"
	RoleAdminOwner   = "admin:owner"
	RoleAdminManager = "admin:manager"

	// Coach
	RoleCoach     = "coach:"
	RoleCoachHead = "coach:head"

	// Parent
	RoleParent = "parent:"

	// Player
	RolePlayer = "player:"
)

var (
	AdminRoles  = []string{RoleAdmin, RoleAdminOwner, RoleAdminManager}
	CoachRoles  = []string{RoleCoach, RoleCoachHead}
	ParentRoles = []string{RoleParent}
	PlayerRoles = []string{RolePlayer}
	AllRoles    = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:   30,
		RoleAdminManager: 29,
		RoleAdmin:        21,

		// Coaches: 20 - 11
		RoleCoachHead: 20,
		RoleCoach:     11,

		// Parents: 10 - 5
		RoleParent: 5,

		// Players: 4 - 1
		RolePlayer: 1,
	}

	Roles = getRoleList()
)

func getAllRoles() []string {
	all := make([]string, 0, 7)
	all = append(all, AdminRoles...)
	all = append(all, CoachRoles...)
	all = append(all, ParentRoles...)
	all = append(all, PlayerRoles...)
	return all
}

// getRoleList lists roles from the lowest to the highest priority with a display name, e.g. "coach:head" -> "Coach Head".
func getRoleList() []Role {
	ordered := []string{RolePlayer, RoleParent, RoleCoach, RoleCoachHead, RoleAdmin, RoleAdminManager, RoleAdminOwner}
	roles := make([]Role, 0, len(ordered))
	for _, r := range ordered {
		name := strmangle.TitleCase(strings.ReplaceAll(strings.TrimSuffix(r, ":"), ":", "_"))
		roles = append(roles, Role{Name: splitCamel(name), Value: r})
	}
	return roles
}

// splitCamel inserts a space before each inner upper case letter.
func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func IsValidRole(role string) bool {
	return strmangle.SetInclude(role, AllRoles)
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// CanAssignRoles reports whether actor may grant roles: nobody can grant a role above their own max role.
func CanAssignRoles(actor User, roles []string) bool {
	return MaxRolePriority(roles) <= MaxRolePriority(actor.Roles)
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string      `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Username     string      `json:"username" db:"username"`
	Email        string      `json:"email" db:"email"`
	Phone        null.String `json:"phone" db:"phone"`
	IsActive     bool        `json:"is_active" db:"is_active"`
	Roles        []string    `json:"roles" db:"-"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    null.Time   `json:"last_login" db:"last_login"` // UTC
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

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsCoach() bool {
	return u.RoleStartsWith(RoleCoach)
}

func (u *User) IsParent() bool {
	return u.RoleStartsWith(RoleParent)
}

func (u *User) IsPlayer() bool {
	return u.RoleStartsWith(RolePlayer)
}

// PrimaryRole returns the role family with the highest priority: admin, coach, parent or player.
func (u *User) PrimaryRole() string {
	switch {
	case u.IsAdmin():
		return "admin"
	case u.IsCoach():
		return "coach"
	case u.IsParent():
		return "parent"
	case u.IsPlayer():
		return "player"
	}
	return ""
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           string   `json:"phone" validate:"omitempty,e164"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           *string  `json:"phone" validate:"omitempty,e164"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Phone != nil {
		phone := core.CleanString(*uu.Phone)
		uu.Phone = &phone
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string
	Roles       []string
	IsActive    *bool
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single User. Fields are ANDed; UsernameOrEmail matches any of its values against both columns.
type GetFilter struct {
	ID              string
	Email           string
	UsernameOrEmail []string
}
