// Package testutil provides a migrated throwaway database and fixtures for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/user"
	"github.com/touchline/academy/storage/database"
)

// PrepareDB opens a fresh sqlite database in a temporary directory and migrates it.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := *core.Conf
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(&conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// DiscardLogger drops everything but fatal entries.
type DiscardLogger struct {
	T *testing.T
}

var _ core.Logger = (*DiscardLogger)(nil)

func (*DiscardLogger) Debug(string, ...interface{}) {}
func (*DiscardLogger) Info(string, ...interface{})  {}
func (*DiscardLogger) Warn(string, ...interface{})  {}
func (*DiscardLogger) Error(string, ...interface{}) {}
func (l *DiscardLogger) Fatal(msg string, _ ...interface{}) {
	if l.T != nil {
		l.T.Fatal(msg)
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Second)
	}
	usr := user.User{
		ID:        core.NewID(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd == "" {
		pwd = core.NewID()
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTeam(t *testing.T, repo team.Repository, name, ageGroup string, coach *user.User) team.Team {
	t.Helper()

	now := core.Now()
	tm := team.Team{
		ID:        core.NewID(),
		Name:      name,
		AgeGroup:  ageGroup,
		Season:    "2024/2025",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if coach != nil {
		tm.CoachID = null.StringFrom(coach.ID)
	}
	tm, err := repo.CreateTeam(context.Background(), tm)
	if err != nil {
		t.Fatalf("CreateTeam() failed: %v", err)
	}
	return tm
}

// PlayerOpts sets the optional references of a fixture player.
type PlayerOpts struct {
	Team   *team.Team
	Parent *user.User
	User   *user.User
	Jersey int
	Status string
}

func CreatePlayer(t *testing.T, repo player.Repository, firstName, lastName string, opts PlayerOpts) player.Player {
	t.Helper()

	now := core.Now()
	p := player.Player{
		ID:        core.NewID(),
		FirstName: firstName,
		LastName:  lastName,
		BirthDate: core.NewDate(2012, time.May, 14),
		Position:  player.PositionMidfielder,
		Status:    opts.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Status == "" {
		p.Status = player.StatusActive
	}
	if opts.Team != nil {
		p.TeamID = null.StringFrom(opts.Team.ID)
	}
	if opts.Parent != nil {
		p.ParentID = null.StringFrom(opts.Parent.ID)
	}
	if opts.User != nil {
		p.UserID = null.StringFrom(opts.User.ID)
	}
	if opts.Jersey > 0 {
		p.JerseyNumber = null.IntFrom(opts.Jersey)
	}
	p, err := repo.CreatePlayer(context.Background(), p)
	if err != nil {
		t.Fatalf("CreatePlayer() failed: %v", err)
	}
	return p
}
