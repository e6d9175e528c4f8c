package player

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
)

// Positions
const (
	PositionGoalkeeper = "goalkeeper"
	PositionDefender   = "defender"
	PositionMidfielder = "midfielder"
	PositionForward    = "forward"
)

// Statuses
const (
	StatusActive   = "active"
	StatusInjured  = "injured"
	StatusInactive = "inactive"
)

var (
	Positions = []string{PositionGoalkeeper, PositionDefender, PositionMidfielder, PositionForward}
	Statuses  = []string{StatusActive, StatusInjured, StatusInactive}
)

type Player struct {
	ID           string      `json:"id" db:"id"`
	FirstName    string      `json:"first_name" db:"first_name"`
	LastName     string      `json:"last_name" db:"last_name"`
	BirthDate    core.Date   `json:"birth_date" db:"birth_date"`
	Position     string      `json:"position" db:"position"`
	JerseyNumber null.Int    `json:"jersey_number" db:"jersey_number"`
	Status       string      `json:"status" db:"status"`
	TeamID       null.String `json:"team_id" db:"team_id"`
	ParentID     null.String `json:"parent_id" db:"parent_id"`
	UserID       null.String `json:"user_id" db:"user_id"`
	Notes        string      `json:"notes" db:"notes"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

func (p Player) FullName() string {
	return p.FirstName + " " + p.LastName
}

// AgeOn returns the age of the player in whole years on the given day.
func (p Player) AgeOn(day core.Date) int {
	if p.BirthDate.IsZero() {
		return 0
	}
	birth := p.BirthDate
	age := day.Year() - birth.Year()
	if day.Month() < birth.Month() || (day.Month() == birth.Month() && day.Day() < birth.Day()) {
		age--
	}
	return age
}

// AgeGroupOn returns the youth age group the player falls in on the given day: "U<n>" means younger than n.
func (p Player) AgeGroupOn(day core.Date) string {
	age := p.AgeOn(day)
	switch {
	case age >= 21:
		return "senior"
	case age < 5:
		return "U6"
	case age >= 19:
		return "U21"
	}
	return "U" + strconv.Itoa(age+1)
}

func (p Player) BelongsToParent(userID string) bool {
	return p.ParentID.Valid && p.ParentID.String == userID
}

func (p Player) IsAccount(userID string) bool {
	return p.UserID.Valid && p.UserID.String == userID
}

type NewPlayer struct {
	FirstName    string    `json:"first_name" validate:"required,max=60"`
	LastName     string    `json:"last_name" validate:"required,max=60"`
	BirthDate    core.Date `json:"birth_date" validate:"required"`
	Position     string    `json:"position" validate:"omitempty,oneof=goalkeeper defender midfielder forward"`
	JerseyNumber *int      `json:"jersey_number" validate:"omitempty,min=1,max=99"`
	Status       string    `json:"status" validate:"omitempty,oneof=active injured inactive"`
	TeamID       string    `json:"team_id" validate:"omitempty,entityid"`
	ParentID     string    `json:"parent_id" validate:"omitempty,entityid"`
	UserID       string    `json:"user_id" validate:"omitempty,entityid"`
	Notes        string    `json:"notes" validate:"max=2000"`
}

func (np *NewPlayer) Validate(validate *validator.Validate) error {
	np.FirstName = core.CleanString(np.FirstName)
	np.LastName = core.CleanString(np.LastName)
	np.Position = core.CleanString(np.Position, true /* lower */)
	np.Status = core.CleanString(np.Status, true /* lower */)
	if np.Status == "" {
		np.Status = StatusActive
	}
	np.Notes = core.CleanString(np.Notes)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.BirthDate.After(core.DateOf(core.Now())) {
		return core.NewFieldError("birth_date", "birth date cannot be in the future")
	}
	return nil
}

// UpdatePlayer holds the fields to change. For the nullable references an empty string clears the value.
type UpdatePlayer struct {
	FirstName    *string    `json:"first_name" validate:"omitempty,max=60"`
	LastName     *string    `json:"last_name" validate:"omitempty,max=60"`
	BirthDate    *core.Date `json:"birth_date"`
	Position     *string    `json:"position" validate:"omitempty,oneof=goalkeeper defender midfielder forward"`
	JerseyNumber *int       `json:"jersey_number" validate:"omitempty,min=0,max=99"` // 0 clears
	Status       *string    `json:"status" validate:"omitempty,oneof=active injured inactive"`
	TeamID       *string    `json:"team_id" validate:"omitempty,entityid"`
	ParentID     *string    `json:"parent_id" validate:"omitempty,entityid"`
	UserID       *string    `json:"user_id" validate:"omitempty,entityid"`
	Notes        *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (up *UpdatePlayer) Validate(validate *validator.Validate) error {
	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.BirthDate != nil && up.BirthDate.After(core.DateOf(core.Now())) {
		return core.NewFieldError("birth_date", "birth date cannot be in the future")
	}
	return nil
}

// IsCoachOnly reports whether only fields a coach may change are set.
func (up *UpdatePlayer) IsCoachOnly() bool {
	return up.FirstName == nil && up.LastName == nil && up.BirthDate == nil &&
		up.TeamID == nil && up.ParentID == nil && up.UserID == nil
}

type QueryFilter struct {
	Search   string
	TeamIDs  []string
	Status   string
	Position string
	ParentID string
	UserID   string
	IDs      []string // restricts the result to these players when not nil
}
