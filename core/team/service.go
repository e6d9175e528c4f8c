package team

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/user"
)

var (
	ErrNotFound     = errors.New("team not found")
	errInvalidCoach = "coach must be an active user with a coach role"
)

type (
	Repository interface {
		CreateTeam(ctx context.Context, t Team) (Team, error)
		QueryTeams(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Team, error)
		GetTeam(ctx context.Context, id string, exec ...core.DBExecutor) (Team, error)
		UpdateTeam(ctx context.Context, t Team) (Team, error)
		DeleteTeam(ctx context.Context, id string) error
		CountTeams(ctx context.Context) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nt NewTeam) (Team, error)
		Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Team, error)
		GetByID(ctx context.Context, id string) (Team, error)
		Update(ctx context.Context, t Team, ut UpdateTeam) (Team, error)
		Delete(ctx context.Context, id string) error
		Count(ctx context.Context) (int, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrSvc, "usrSvc"),
	).CheckAndPanic()

	return &service{repo: repo, usrSvc: usrSvc}
}

func (svc *service) checkCoach(ctx context.Context, coachID string) error {
	if coachID == "" {
		return nil
	}
	coach, err := svc.usrSvc.GetByID(ctx, coachID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldError("coach_id", errInvalidCoach)
		}
		return errors.Wrap(err, "finding coach")
	}
	if !coach.IsActive || !coach.IsCoach() {
		return core.NewFieldError("coach_id", errInvalidCoach)
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nt NewTeam) (Team, error) {
	if err := svc.checkCoach(ctx, nt.CoachID); err != nil {
		return Team{}, err
	}
	now := core.Now()
	t := Team{
		ID:        core.NewID(),
		Name:      nt.Name,
		AgeGroup:  nt.AgeGroup,
		Season:    nt.Season,
		CoachID:   null.NewString(nt.CoachID, nt.CoachID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateTeam(ctx, t)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Team, error) {
	return svc.repo.QueryTeams(ctx, filter, orderings)
}

func (svc *service) GetByID(ctx context.Context, id string) (Team, error) {
	if !core.IsValidID(id) {
		return Team{}, ErrNotFound
	}
	return svc.repo.GetTeam(ctx, id)
}

func (svc *service) Update(ctx context.Context, t Team, ut UpdateTeam) (Team, error) {
	if ut.Name != nil && *ut.Name != "" {
		t.Name = *ut.Name
	}
	if ut.AgeGroup != nil {
		t.AgeGroup = *ut.AgeGroup
	}
	if ut.Season != nil {
		t.Season = *ut.Season
	}
	if ut.CoachID != nil {
		if err := svc.checkCoach(ctx, *ut.CoachID); err != nil {
			return Team{}, err
		}
		t.CoachID = null.NewString(*ut.CoachID, *ut.CoachID != "")
	}
	t.UpdatedAt = core.Now()
	return svc.repo.UpdateTeam(ctx, t)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTeam(ctx, id)
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountTeams(ctx)
}
