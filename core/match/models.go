package match

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
)

// Statuses
const (
	StatusScheduled = "scheduled"
	StatusPlayed    = "played"
	StatusCancelled = "cancelled"
	StatusPostponed = "postponed"
)

// Outcomes
const (
	OutcomeWin  = "W"
	OutcomeDraw = "D"
	OutcomeLoss = "L"
)

type Match struct {
	ID           string      `json:"id" db:"id"`
	TeamID       string      `json:"team_id" db:"team_id"`
	Opponent     string      `json:"opponent" db:"opponent"`
	Venue        string      `json:"venue" db:"venue"`
	IsHome       bool        `json:"is_home" db:"is_home"`
	KickoffAt    time.Time   `json:"kickoff_at" db:"kickoff_at"`
	Status       string      `json:"status" db:"status"`
	GoalsFor     null.Int    `json:"goals_for" db:"goals_for"`
	GoalsAgainst null.Int    `json:"goals_against" db:"goals_against"`
	Notes        string      `json:"notes" db:"notes"`
	Outcome      null.String `json:"outcome" db:"-"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// ComputeOutcome returns W, D or L for a played match with a score, an empty string otherwise.
func (m Match) ComputeOutcome() string {
	if m.Status != StatusPlayed || !m.GoalsFor.Valid || !m.GoalsAgainst.Valid {
		return ""
	}
	switch {
	case m.GoalsFor.Int > m.GoalsAgainst.Int:
		return OutcomeWin
	case m.GoalsFor.Int < m.GoalsAgainst.Int:
		return OutcomeLoss
	}
	return OutcomeDraw
}

// WithOutcome fills the derived Outcome field.
func (m Match) WithOutcome() Match {
	o := m.ComputeOutcome()
	m.Outcome = null.NewString(o, o != "")
	return m
}

// Record summarizes the played matches of a team.
type Record struct {
	TeamID       string `json:"team_id"`
	Played       int    `json:"played"`
	Won          int    `json:"won"`
	Drawn        int    `json:"drawn"`
	Lost         int    `json:"lost"`
	GoalsFor     int    `json:"goals_for"`
	GoalsAgainst int    `json:"goals_against"`
}

// GoalDifference is GoalsFor minus GoalsAgainst.
func (r Record) GoalDifference() int { return r.GoalsFor - r.GoalsAgainst }

// Add folds a match into the record. Matches without an outcome are ignored.
func (r *Record) Add(m Match) {
	switch m.ComputeOutcome() {
	case OutcomeWin:
		r.Won++
	case OutcomeDraw:
		r.Drawn++
	case OutcomeLoss:
		r.Lost++
	default:
		return
	}
	r.Played++
	r.GoalsFor += m.GoalsFor.Int
	r.GoalsAgainst += m.GoalsAgainst.Int
}

type NewMatch struct {
	TeamID    string    `json:"team_id" validate:"required,entityid"`
	Opponent  string    `json:"opponent" validate:"required,max=120"`
	Venue     string    `json:"venue" validate:"max=200"`
	IsHome    bool      `json:"is_home"`
	KickoffAt time.Time `json:"kickoff_at" validate:"required"`
	Notes     string    `json:"notes" validate:"max=2000"`
}

func (nm *NewMatch) Validate(validate *validator.Validate) error {
	nm.Opponent = core.CleanString(nm.Opponent)
	nm.Venue = core.CleanString(nm.Venue)
	nm.Notes = core.CleanString(nm.Notes)
	nm.KickoffAt = nm.KickoffAt.UTC().Truncate(time.Second)
	return validate.Struct(nm)
}

type UpdateMatch struct {
	Opponent  *string    `json:"opponent" validate:"omitempty,max=120"`
	Venue     *string    `json:"venue" validate:"omitempty,max=200"`
	IsHome    *bool      `json:"is_home"`
	KickoffAt *time.Time `json:"kickoff_at"`
	Status    *string    `json:"status" validate:"omitempty,oneof=scheduled cancelled postponed"`
	Notes     *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (um *UpdateMatch) Validate(validate *validator.Validate) error {
	return validate.Struct(um)
}

type MatchResult struct {
	GoalsFor     *int `json:"goals_for" validate:"required,min=0,max=99"`
	GoalsAgainst *int `json:"goals_against" validate:"required,min=0,max=99"`
}

func (mr *MatchResult) Validate(validate *validator.Validate) error {
	return validate.Struct(mr)
}

type QueryFilter struct {
	TeamIDs []string // restricts the result to these teams when not nil
	Status  string
	From    time.Time
	To      time.Time
	Limit   int
}
