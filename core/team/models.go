package team

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
)

// AgeGroups lists the age groups a team may play in.
var AgeGroups = []string{"U6", "U7", "U8", "U9", "U10", "U11", "U12", "U13", "U14", "U15", "U16", "U17", "U18", "U19", "U21", "senior"}

type Team struct {
	ID        string      `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	AgeGroup  string      `json:"age_group" db:"age_group"`
	Season    string      `json:"season" db:"season"`
	CoachID   null.String `json:"coach_id" db:"coach_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// CoachedBy reports whether userID coaches the team.
func (t Team) CoachedBy(userID string) bool {
	return t.CoachID.Valid && t.CoachID.String == userID
}

type NewTeam struct {
	Name     string `json:"name" validate:"required,max=80"`
	AgeGroup string `json:"age_group" validate:"required,agegroup"`
	Season   string `json:"season" validate:"required,season"`
	CoachID  string `json:"coach_id" validate:"omitempty,entityid"`
}

func (nt *NewTeam) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Season = core.CleanString(nt.Season)
	nt.CoachID = core.CleanString(nt.CoachID)
	return validate.Struct(nt)
}

type UpdateTeam struct {
	Name     *string `json:"name" validate:"omitempty,max=80"`
	AgeGroup *string `json:"age_group" validate:"omitempty,agegroup"`
	Season   *string `json:"season" validate:"omitempty,season"`
	CoachID  *string `json:"coach_id" validate:"omitempty,entityid"`
}

func (ut *UpdateTeam) Validate(validate *validator.Validate) error {
	if ut.Name != nil {
		name := core.CleanString(*ut.Name)
		ut.Name = &name
	}
	return validate.Struct(ut)
}

type QueryFilter struct {
	Search   string
	AgeGroup string
	Season   string
	CoachID  string
	IDs      []string // restricts the result to these teams when not nil
}
