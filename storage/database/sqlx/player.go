package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/player"
)

const playerColumns = "id, first_name, last_name, birth_date, position, jersey_number, status, team_id, parent_id, user_id, notes, created_at, updated_at"

var playerOrderings = []string{"first_name", "last_name", "birth_date", "position", "jersey_number", "status", "created_at"}

type playerRepository struct {
	db core.DB
}

var _ player.Repository = (*playerRepository)(nil)

func NewPlayerRepository(db core.DB) *playerRepository {
	return &playerRepository{db: db}
}

func (repo playerRepository) CreatePlayer(ctx context.Context, p player.Player) (player.Player, error) {
	q := "INSERT INTO players (" + playerColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := execute(ctx, repo.db, q,
		p.ID, p.FirstName, p.LastName, p.BirthDate, p.Position, p.JerseyNumber, p.Status,
		p.TeamID, p.ParentID, p.UserID, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return player.Player{}, errors.Wrap(err, "inserting player")
	}
	return p, nil
}

func (repo playerRepository) QueryPlayers(ctx context.Context, filter *player.QueryFilter, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]player.Player, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "first_name", "last_name")
		w.in("team_id", filter.TeamIDs)
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
		if filter.Position != "" {
			w.add("position = ?", filter.Position)
		}
		if filter.ParentID != "" {
			w.add("parent_id = ?", filter.ParentID)
		}
		if filter.UserID != "" {
			w.add("user_id = ?", filter.UserID)
		}
		w.in("id", filter.IDs)
	}

	players := make([]player.Player, 0)
	q := "SELECT " + playerColumns + " FROM players" + w.String() +
		core.OrderByClause(orderings, playerOrderings, "last_name ASC, first_name ASC")
	if err := selectAll(ctx, core.PickExecutor(repo.db, exec...), &players, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying players")
	}
	return players, nil
}

func (repo playerRepository) GetPlayer(ctx context.Context, id string, exec ...core.DBExecutor) (player.Player, error) {
	var p player.Player
	err := get(ctx, core.PickExecutor(repo.db, exec...), &p, "SELECT "+playerColumns+" FROM players WHERE id = ?", id)
	if err != nil {
		return player.Player{}, trapNoRows(err, player.ErrNotFound, "finding player")
	}
	return p, nil
}

func (repo playerRepository) UpdatePlayer(ctx context.Context, p player.Player) (player.Player, error) {
	q := `UPDATE players SET first_name = ?, last_name = ?, birth_date = ?, position = ?, jersey_number = ?, status = ?,
		team_id = ?, parent_id = ?, user_id = ?, notes = ?, updated_at = ? WHERE id = ?`
	n, err := execute(ctx, repo.db, q,
		p.FirstName, p.LastName, p.BirthDate, p.Position, p.JerseyNumber, p.Status,
		p.TeamID, p.ParentID, p.UserID, p.Notes, p.UpdatedAt, p.ID)
	if err != nil {
		return player.Player{}, errors.Wrap(err, "updating player")
	}
	if n == 0 {
		return player.Player{}, player.ErrNotFound
	}
	return p, nil
}

func (repo playerRepository) DeletePlayer(ctx context.Context, id string) error {
	if _, err := execute(ctx, repo.db, "DELETE FROM players WHERE id = ?", id); err != nil {
		if isForeignKeyViolation(err) {
			return player.ErrHasInvoices
		}
		return errors.Wrap(err, "deleting player")
	}
	return nil
}

func (repo playerRepository) CountPlayers(ctx context.Context, status string) (int, error) {
	var w where
	if status != "" {
		w.add("status = ?", status)
	}
	var n int
	if err := get(ctx, repo.db, &n, "SELECT COUNT(*) FROM players"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting players")
	}
	return n, nil
}

func (repo playerRepository) JerseyTaken(ctx context.Context, teamID string, number int, excludedID string) (bool, error) {
	var n int
	q := "SELECT COUNT(*) FROM players WHERE team_id = ? AND jersey_number = ? AND id <> ?"
	if err := get(ctx, repo.db, &n, q, teamID, number, excludedID); err != nil {
		return false, errors.Wrap(err, "checking jersey number")
	}
	return n > 0, nil
}
