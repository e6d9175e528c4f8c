package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/match"
)

const matchColumns = "id, team_id, opponent, venue, is_home, kickoff_at, status, goals_for, goals_against, notes, created_at, updated_at"

type matchRepository struct {
	db core.DB
}

var _ match.Repository = (*matchRepository)(nil)

func NewMatchRepository(db core.DB) *matchRepository {
	return &matchRepository{db: db}
}

func (repo matchRepository) CreateMatch(ctx context.Context, m match.Match) (match.Match, error) {
	q := "INSERT INTO matches (" + matchColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := execute(ctx, repo.db, q,
		m.ID, m.TeamID, m.Opponent, m.Venue, m.IsHome, m.KickoffAt, m.Status,
		m.GoalsFor, m.GoalsAgainst, m.Notes, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return match.Match{}, errors.Wrap(err, "inserting match")
	}
	return m, nil
}

func (repo matchRepository) QueryMatches(ctx context.Context, filter *match.QueryFilter) ([]match.Match, error) {
	var (
		w         where
		pageLimit int
	)
	if filter != nil {
		w.in("team_id", filter.TeamIDs)
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
		if !filter.From.IsZero() {
			w.add("kickoff_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("kickoff_at <= ?", filter.To.UTC())
		}
		pageLimit = filter.Limit
	}

	matches := make([]match.Match, 0)
	q := "SELECT " + matchColumns + " FROM matches" + w.String() + " ORDER BY kickoff_at ASC" + limit(pageLimit)
	if err := selectAll(ctx, repo.db, &matches, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying matches")
	}
	return matches, nil
}

func (repo matchRepository) GetMatch(ctx context.Context, id string) (match.Match, error) {
	var m match.Match
	if err := get(ctx, repo.db, &m, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id); err != nil {
		return match.Match{}, trapNoRows(err, match.ErrNotFound, "finding match")
	}
	return m, nil
}

func (repo matchRepository) UpdateMatch(ctx context.Context, m match.Match) (match.Match, error) {
	q := `UPDATE matches SET opponent = ?, venue = ?, is_home = ?, kickoff_at = ?, status = ?, goals_for = ?,
		goals_against = ?, notes = ?, updated_at = ? WHERE id = ?`
	n, err := execute(ctx, repo.db, q,
		m.Opponent, m.Venue, m.IsHome, m.KickoffAt, m.Status, m.GoalsFor, m.GoalsAgainst, m.Notes, m.UpdatedAt, m.ID)
	if err != nil {
		return match.Match{}, errors.Wrap(err, "updating match")
	}
	if n == 0 {
		return match.Match{}, match.ErrNotFound
	}
	return m, nil
}

func (repo matchRepository) DeleteMatch(ctx context.Context, id string) error {
	if _, err := execute(ctx, repo.db, "DELETE FROM matches WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "deleting match")
	}
	return nil
}
