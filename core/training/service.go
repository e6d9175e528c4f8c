package training

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/user"
)

var (
	ErrNotFound           = errors.New("training not found")
	ErrCancelled          = errors.New("training is cancelled")
	ErrPlayerNotInTeam    = errors.New("player does not belong to the training's team")
	ErrNoPlayerForAccount = errors.New("no player is linked to this account")
)

type (
	Repository interface {
		CreateTraining(ctx context.Context, t Training) (Training, error)
		QueryTrainings(ctx context.Context, filter *QueryFilter) ([]Training, error)
		GetTraining(ctx context.Context, id string, exec ...core.DBExecutor) (Training, error)
		UpdateTraining(ctx context.Context, t Training) (Training, error)
		DeleteTraining(ctx context.Context, id string) error
		UpsertAttendance(ctx context.Context, att Attendance, exec ...core.DBExecutor) error
		QueryAttendance(ctx context.Context, trainingID string, exec ...core.DBExecutor) ([]Attendance, error)
		// AttendanceSummary counts the attendance records of a player by status.
		AttendanceSummary(ctx context.Context, playerID string) (map[string]int, error)
	}

	Service interface {
		Create(ctx context.Context, nt NewTraining) (Training, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Training, error)
		GetByID(ctx context.Context, id string) (Training, error)
		Update(ctx context.Context, t Training, ut UpdateTraining) (Training, error)
		Delete(ctx context.Context, id string) error
		RecordAttendance(ctx context.Context, t Training, ra RecordAttendance, recordedBy user.User) ([]Attendance, error)
		ListAttendance(ctx context.Context, trainingID string) ([]Attendance, error)
		AttendanceSummary(ctx context.Context, playerID string) (map[string]int, error)
		CheckInToken(t Training) (string, error)
		CheckIn(ctx context.Context, t Training, token string, plr player.Player, by user.User) (Attendance, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		teamSvc   team.Service
		playerSvc player.Service
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, teamSvc team.Service, playerSvc player.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(teamSvc, "teamSvc"),
		vala.IsNotNil(playerSvc, "playerSvc"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, teamSvc: teamSvc, playerSvc: playerSvc}
}

func (svc *service) Create(ctx context.Context, nt NewTraining) (Training, error) {
	if _, err := svc.teamSvc.GetByID(ctx, nt.TeamID); err != nil {
		if errors.Cause(err) == team.ErrNotFound {
			return Training{}, core.NewFieldError("team_id", "team not found")
		}
		return Training{}, errors.Wrap(err, "finding team")
	}
	now := core.Now()
	t := Training{
		ID:        core.NewID(),
		TeamID:    nt.TeamID,
		Title:     nt.Title,
		Location:  nt.Location,
		StartsAt:  nt.StartsAt,
		EndsAt:    nt.EndsAt,
		Status:    StatusScheduled,
		Notes:     nt.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateTraining(ctx, t)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Training, error) {
	return svc.repo.QueryTrainings(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Training, error) {
	if !core.IsValidID(id) {
		return Training{}, ErrNotFound
	}
	return svc.repo.GetTraining(ctx, id)
}

func (svc *service) Update(ctx context.Context, t Training, ut UpdateTraining) (Training, error) {
	if ut.Title != nil && core.CleanString(*ut.Title) != "" {
		t.Title = core.CleanString(*ut.Title)
	}
	if ut.Location != nil {
		t.Location = core.CleanString(*ut.Location)
	}
	if ut.StartsAt != nil && !ut.StartsAt.IsZero() {
		t.StartsAt = ut.StartsAt.UTC().Truncate(time.Second)
	}
	if ut.EndsAt != nil && !ut.EndsAt.IsZero() {
		t.EndsAt = ut.EndsAt.UTC().Truncate(time.Second)
	}
	if !t.EndsAt.After(t.StartsAt) {
		return Training{}, core.NewFieldError("ends_at", "ends_at must be after starts_at")
	}
	if ut.Status != nil && *ut.Status != "" {
		t.Status = *ut.Status
	}
	if ut.Notes != nil {
		t.Notes = core.CleanString(*ut.Notes)
	}
	t.UpdatedAt = core.Now()
	return svc.repo.UpdateTraining(ctx, t)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTraining(ctx, id)
}

// teamPlayerIDs returns the set of the IDs of the players of teamID.
func (svc *service) teamPlayerIDs(ctx context.Context, teamID string) (map[string]bool, error) {
	players, err := svc.playerSvc.Query(ctx, &player.QueryFilter{TeamIDs: []string{teamID}}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying team players")
	}
	ids := make(map[string]bool, len(players))
	for _, p := range players {
		ids[p.ID] = true
	}
	return ids, nil
}

func (svc *service) RecordAttendance(ctx context.Context, t Training, ra RecordAttendance, recordedBy user.User) ([]Attendance, error) {
	if t.IsCancelled() {
		return nil, core.NewValidationError(ErrCancelled)
	}
	members, err := svc.teamPlayerIDs(ctx, t.TeamID)
	if err != nil {
		return nil, err
	}
	for i, e := range ra.Entries {
		if !members[e.PlayerID] {
			field := fmt.Sprintf("entries[%d].player_id", i)
			return nil, core.NewValidationError(ErrPlayerNotInTeam, core.FieldError{Field: field, Error: ErrPlayerNotInTeam.Error()})
		}
	}

	now := core.Now()
	var result []Attendance
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, e := range ra.Entries {
			att := Attendance{
				TrainingID: t.ID,
				PlayerID:   e.PlayerID,
				Status:     e.Status,
				Note:       e.Note,
				RecordedAt: now,
				RecordedBy: null.StringFrom(recordedBy.ID),
			}
			if err := svc.repo.UpsertAttendance(ctx, att, tx); err != nil {
				return errors.Wrap(err, "saving attendance")
			}
		}
		var err error
		result, err = svc.repo.QueryAttendance(ctx, t.ID, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (svc *service) ListAttendance(ctx context.Context, trainingID string) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, trainingID)
}

func (svc *service) AttendanceSummary(ctx context.Context, playerID string) (map[string]int, error) {
	return svc.repo.AttendanceSummary(ctx, playerID)
}

func (svc *service) CheckInToken(t Training) (string, error) {
	if t.IsCancelled() {
		return "", core.NewValidationError(ErrCancelled)
	}
	return makeCheckInToken(t), nil
}

// CheckIn marks plr present, or late past the threshold, using a token scanned at the training.
// A check-in never overrides an attendance already recorded by staff.
func (svc *service) CheckIn(ctx context.Context, t Training, token string, plr player.Player, by user.User) (Attendance, error) {
	if t.IsCancelled() {
		return Attendance{}, core.NewValidationError(ErrCancelled)
	}
	now := core.Now()
	if err := verifyCheckInToken(t, token, now); err != nil {
		return Attendance{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if !plr.TeamID.Valid || plr.TeamID.String != t.TeamID {
		return Attendance{}, core.NewValidationError(ErrPlayerNotInTeam)
	}

	att := Attendance{
		TrainingID: t.ID,
		PlayerID:   plr.ID,
		Status:     checkInStatus(t, now),
		RecordedAt: now,
		RecordedBy: null.StringFrom(by.ID),
	}
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		existing, err := svc.repo.QueryAttendance(ctx, t.ID, tx)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.PlayerID == plr.ID {
				att = e
				return nil
			}
		}
		return svc.repo.UpsertAttendance(ctx, att, tx)
	})
	if err != nil {
		return Attendance{}, errors.Wrap(err, "checking in")
	}
	return att, nil
}
