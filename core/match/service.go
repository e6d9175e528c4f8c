package match

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/team"
)

var (
	ErrNotFound  = errors.New("match not found")
	ErrCancelled = errors.New("cannot record the result of a cancelled match")
)

type (
	Repository interface {
		CreateMatch(ctx context.Context, m Match) (Match, error)
		QueryMatches(ctx context.Context, filter *QueryFilter) ([]Match, error)
		GetMatch(ctx context.Context, id string) (Match, error)
		UpdateMatch(ctx context.Context, m Match) (Match, error)
		DeleteMatch(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, nm NewMatch) (Match, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Match, error)
		GetByID(ctx context.Context, id string) (Match, error)
		Update(ctx context.Context, m Match, um UpdateMatch) (Match, error)
		RecordResult(ctx context.Context, m Match, mr MatchResult) (Match, error)
		Delete(ctx context.Context, id string) error
		TeamRecord(ctx context.Context, teamID string) (Record, error)
	}

	service struct {
		repo    Repository
		teamSvc team.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, teamSvc team.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(teamSvc, "teamSvc"),
	).CheckAndPanic()

	return &service{repo: repo, teamSvc: teamSvc}
}

func (svc *service) Create(ctx context.Context, nm NewMatch) (Match, error) {
	if _, err := svc.teamSvc.GetByID(ctx, nm.TeamID); err != nil {
		if errors.Cause(err) == team.ErrNotFound {
			return Match{}, core.NewFieldError("team_id", "team not found")
		}
		return Match{}, errors.Wrap(err, "finding team")
	}
	now := core.Now()
	m := Match{
		ID:        core.NewID(),
		TeamID:    nm.TeamID,
		Opponent:  nm.Opponent,
		Venue:     nm.Venue,
		IsHome:    nm.IsHome,
		KickoffAt: nm.KickoffAt,
		Status:    StatusScheduled,
		Notes:     nm.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m, err := svc.repo.CreateMatch(ctx, m)
	if err != nil {
		return Match{}, err
	}
	return m.WithOutcome(), nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Match, error) {
	matches, err := svc.repo.QueryMatches(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i] = matches[i].WithOutcome()
	}
	return matches, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Match, error) {
	if !core.IsValidID(id) {
		return Match{}, ErrNotFound
	}
	m, err := svc.repo.GetMatch(ctx, id)
	if err != nil {
		return Match{}, err
	}
	return m.WithOutcome(), nil
}

func (svc *service) Update(ctx context.Context, m Match, um UpdateMatch) (Match, error) {
	if um.Opponent != nil && core.CleanString(*um.Opponent) != "" {
		m.Opponent = core.CleanString(*um.Opponent)
	}
	if um.Venue != nil {
		m.Venue = core.CleanString(*um.Venue)
	}
	if um.IsHome != nil {
		m.IsHome = *um.IsHome
	}
	if um.KickoffAt != nil && !um.KickoffAt.IsZero() {
		m.KickoffAt = um.KickoffAt.UTC().Truncate(time.Second)
	}
	if um.Status != nil && *um.Status != "" && *um.Status != m.Status {
		// leaving the played state drops the score
		m.Status = *um.Status
		m.GoalsFor = null.Int{}
		m.GoalsAgainst = null.Int{}
	}
	if um.Notes != nil {
		m.Notes = core.CleanString(*um.Notes)
	}
	m.UpdatedAt = core.Now()
	m, err := svc.repo.UpdateMatch(ctx, m)
	if err != nil {
		return Match{}, err
	}
	return m.WithOutcome(), nil
}

func (svc *service) RecordResult(ctx context.Context, m Match, mr MatchResult) (Match, error) {
	if m.Status == StatusCancelled {
		return Match{}, core.NewValidationError(ErrCancelled)
	}
	m.Status = StatusPlayed
	m.GoalsFor = null.IntFrom(*mr.GoalsFor)
	m.GoalsAgainst = null.IntFrom(*mr.GoalsAgainst)
	m.UpdatedAt = core.Now()
	m, err := svc.repo.UpdateMatch(ctx, m)
	if err != nil {
		return Match{}, err
	}
	return m.WithOutcome(), nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteMatch(ctx, id)
}

func (svc *service) TeamRecord(ctx context.Context, teamID string) (Record, error) {
	matches, err := svc.repo.QueryMatches(ctx, &QueryFilter{TeamIDs: []string{teamID}, Status: StatusPlayed})
	if err != nil {
		return Record{}, errors.Wrap(err, "querying played matches")
	}
	rec := Record{TeamID: teamID}
	for _, m := range matches {
		rec.Add(m)
	}
	return rec, nil
}
