package training

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
)

// Statuses
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Attendance statuses
const (
	AttendancePresent = "present"
	AttendanceLate    = "late"
	AttendanceAbsent  = "absent"
	AttendanceExcused = "excused"
)

type Training struct {
	ID        string    `json:"id" db:"id"`
	TeamID    string    `json:"team_id" db:"team_id"`
	Title     string    `json:"title" db:"title"`
	Location  string    `json:"location" db:"location"`
	StartsAt  time.Time `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time `json:"ends_at" db:"ends_at"`
	Status    string    `json:"status" db:"status"`
	Notes     string    `json:"notes" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (t Training) IsCancelled() bool { return t.Status == StatusCancelled }

type Attendance struct {
	TrainingID string      `json:"training_id" db:"training_id"`
	PlayerID   string      `json:"player_id" db:"player_id"`
	Status     string      `json:"status" db:"status"`
	Note       string      `json:"note" db:"note"`
	RecordedAt time.Time   `json:"recorded_at" db:"recorded_at"`
	RecordedBy null.String `json:"recorded_by" db:"recorded_by"`
}

type NewTraining struct {
	TeamID   string    `json:"team_id" validate:"required,entityid"`
	Title    string    `json:"title" validate:"required,max=120"`
	Location string    `json:"location" validate:"max=200"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Notes    string    `json:"notes" validate:"max=2000"`
}

func (nt *NewTraining) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Location = core.CleanString(nt.Location)
	nt.Notes = core.CleanString(nt.Notes)
	nt.StartsAt = nt.StartsAt.UTC().Truncate(time.Second)
	nt.EndsAt = nt.EndsAt.UTC().Truncate(time.Second)
	return validate.Struct(nt)
}

type UpdateTraining struct {
	Title    *string    `json:"title" validate:"omitempty,max=120"`
	Location *string    `json:"location" validate:"omitempty,max=200"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Status   *string    `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
	Notes    *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (ut *UpdateTraining) Validate(validate *validator.Validate) error {
	return validate.Struct(ut)
}

// AttendanceEntry is one line of a RecordAttendance request.
type AttendanceEntry struct {
	PlayerID string `json:"player_id" validate:"required,entityid"`
	Status   string `json:"status" validate:"required,oneof=present late absent excused"`
	Note     string `json:"note" validate:"max=500"`
}

type RecordAttendance struct {
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

func (ra *RecordAttendance) Validate(validate *validator.Validate) error {
	for i := range ra.Entries {
		ra.Entries[i].Status = core.CleanString(ra.Entries[i].Status, true /* lower */)
		ra.Entries[i].Note = core.CleanString(ra.Entries[i].Note)
	}
	return validate.Struct(ra)
}

type CheckIn struct {
	Token    string `json:"token" validate:"required"`
	PlayerID string `json:"player_id" validate:"omitempty,entityid"`
}

func (ci CheckIn) Validate(validate *validator.Validate) error { return validate.Struct(ci) }

type QueryFilter struct {
	TeamIDs []string
	Status  string
	From    time.Time
	To      time.Time
	Limit   int
}
