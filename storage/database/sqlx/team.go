package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/team"
)

const teamColumns = "id, name, age_group, season, coach_id, created_at, updated_at"

var teamOrderings = []string{"name", "age_group", "season", "created_at"}

type teamRepository struct {
	db core.DB
}

var _ team.Repository = (*teamRepository)(nil)

func NewTeamRepository(db core.DB) *teamRepository {
	return &teamRepository{db: db}
}

func (repo teamRepository) CreateTeam(ctx context.Context, t team.Team) (team.Team, error) {
	q := "INSERT INTO teams (" + teamColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	if _, err := execute(ctx, repo.db, q, t.ID, t.Name, t.AgeGroup, t.Season, t.CoachID, t.CreatedAt, t.UpdatedAt); err != nil {
		return team.Team{}, errors.Wrap(err, "inserting team")
	}
	return t, nil
}

func (repo teamRepository) QueryTeams(ctx context.Context, filter *team.QueryFilter, orderings []core.DBOrdering) ([]team.Team, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "name")
		if filter.AgeGroup != "" {
			w.add("age_group = ?", filter.AgeGroup)
		}
		if filter.Season != "" {
			w.add("season = ?", filter.Season)
		}
		if filter.CoachID != "" {
			w.add("coach_id = ?", filter.CoachID)
		}
		w.in("id", filter.IDs)
	}

	teams := make([]team.Team, 0)
	q := "SELECT " + teamColumns + " FROM teams" + w.String() + core.OrderByClause(orderings, teamOrderings, "name ASC")
	if err := selectAll(ctx, repo.db, &teams, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	return teams, nil
}

func (repo teamRepository) GetTeam(ctx context.Context, id string, exec ...core.DBExecutor) (team.Team, error) {
	var t team.Team
	err := get(ctx, core.PickExecutor(repo.db, exec...), &t, "SELECT "+teamColumns+" FROM teams WHERE id = ?", id)
	if err != nil {
		return team.Team{}, trapNoRows(err, team.ErrNotFound, "finding team")
	}
	return t, nil
}

func (repo teamRepository) UpdateTeam(ctx context.Context, t team.Team) (team.Team, error) {
	q := "UPDATE teams SET name = ?, age_group = ?, season = ?, coach_id = ?, updated_at = ? WHERE id = ?"
	n, err := execute(ctx, repo.db, q, t.Name, t.AgeGroup, t.Season, t.CoachID, t.UpdatedAt, t.ID)
	if err != nil {
		return team.Team{}, errors.Wrap(err, "updating team")
	}
	if n == 0 {
		return team.Team{}, team.ErrNotFound
	}
	return t, nil
}

func (repo teamRepository) DeleteTeam(ctx context.Context, id string) error {
	if _, err := execute(ctx, repo.db, "DELETE FROM teams WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "deleting team")
	}
	return nil
}

func (repo teamRepository) CountTeams(ctx context.Context) (int, error) {
	var n int
	if err := get(ctx, repo.db, &n, "SELECT COUNT(*) FROM teams"); err != nil {
		return 0, errors.Wrap(err, "counting teams")
	}
	return n, nil
}
