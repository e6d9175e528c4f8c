package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/training"
)

const (
	trainingColumns   = "id, team_id, title, location, starts_at, ends_at, status, notes, created_at, updated_at"
	attendanceColumns = "training_id, player_id, status, note, recorded_at, recorded_by"
)

type trainingRepository struct {
	db core.DB
}

var _ training.Repository = (*trainingRepository)(nil)

func NewTrainingRepository(db core.DB) *trainingRepository {
	return &trainingRepository{db: db}
}

func (repo trainingRepository) CreateTraining(ctx context.Context, t training.Training) (training.Training, error) {
	q := "INSERT INTO trainings (" + trainingColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := execute(ctx, repo.db, q,
		t.ID, t.TeamID, t.Title, t.Location, t.StartsAt, t.EndsAt, t.Status, t.Notes, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return training.Training{}, errors.Wrap(err, "inserting training")
	}
	return t, nil
}

func (repo trainingRepository) QueryTrainings(ctx context.Context, filter *training.QueryFilter) ([]training.Training, error) {
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
			w.add("starts_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("starts_at <= ?", filter.To.UTC())
		}
		pageLimit = filter.Limit
	}

	trainings := make([]training.Training, 0)
	q := "SELECT " + trainingColumns + " FROM trainings" + w.String() + " ORDER BY starts_at ASC" + limit(pageLimit)
	if err := selectAll(ctx, repo.db, &trainings, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying trainings")
	}
	return trainings, nil
}

func (repo trainingRepository) GetTraining(ctx context.Context, id string, exec ...core.DBExecutor) (training.Training, error) {
	var t training.Training
	err := get(ctx, core.PickExecutor(repo.db, exec...), &t, "SELECT "+trainingColumns+" FROM trainings WHERE id = ?", id)
	if err != nil {
		return training.Training{}, trapNoRows(err, training.ErrNotFound, "finding training")
	}
	return t, nil
}

func (repo trainingRepository) UpdateTraining(ctx context.Context, t training.Training) (training.Training, error) {
	q := "UPDATE trainings SET title = ?, location = ?, starts_at = ?, ends_at = ?, status = ?, notes = ?, updated_at = ? WHERE id = ?"
	n, err := execute(ctx, repo.db, q, t.Title, t.Location, t.StartsAt, t.EndsAt, t.Status, t.Notes, t.UpdatedAt, t.ID)
	if err != nil {
		return training.Training{}, errors.Wrap(err, "updating training")
	}
	if n == 0 {
		return training.Training{}, training.ErrNotFound
	}
	return t, nil
}

func (repo trainingRepository) DeleteTraining(ctx context.Context, id string) error {
	if _, err := execute(ctx, repo.db, "DELETE FROM trainings WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "deleting training")
	}
	return nil
}

func (repo trainingRepository) UpsertAttendance(ctx context.Context, att training.Attendance, exec ...core.DBExecutor) error {
	q := "INSERT INTO attendances (" + attendanceColumns + ") VALUES (?, ?, ?, ?, ?, ?)" +
		` ON CONFLICT (training_id, player_id) DO UPDATE SET status = excluded.status, note = excluded.note,
		recorded_at = excluded.recorded_at, recorded_by = excluded.recorded_by`
	_, err := execute(ctx, core.PickExecutor(repo.db, exec...), q,
		att.TrainingID, att.PlayerID, att.Status, att.Note, att.RecordedAt, att.RecordedBy)
	return errors.Wrap(err, "upserting attendance")
}

func (repo trainingRepository) QueryAttendance(ctx context.Context, trainingID string, exec ...core.DBExecutor) ([]training.Attendance, error) {
	att := make([]training.Attendance, 0)
	q := "SELECT " + attendanceColumns + " FROM attendances WHERE training_id = ? ORDER BY recorded_at, player_id"
	if err := selectAll(ctx, core.PickExecutor(repo.db, exec...), &att, q, trainingID); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	return att, nil
}

func (repo trainingRepository) AttendanceSummary(ctx context.Context, playerID string) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"n"`
	}
	q := "SELECT status, COUNT(*) AS n FROM attendances WHERE player_id = ? GROUP BY status"
	if err := selectAll(ctx, repo.db, &rows, q, playerID); err != nil {
		return nil, errors.Wrap(err, "summarizing attendance")
	}
	summary := make(map[string]int, len(rows))
	for _, r := range rows {
		summary[r.Status] = r.Count
	}
	return summary, nil
}
