package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/access"
	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/match"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/training"
	"github.com/touchline/academy/core/user"
)

var errBoom = errors.New("boom")

type discardLogger struct{}

func (discardLogger) Debug(string, ...interface{}) {}
func (discardLogger) Info(string, ...interface{})  {}
func (discardLogger) Warn(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}
func (discardLogger) Fatal(string, ...interface{}) {}

// the fakes embed the service interfaces and only implement what the dashboard calls

type fakeUsers struct{ user.Service }

func (fakeUsers) Count(context.Context, string) (int, error) { return 3, nil }

type fakeTeams struct {
	team.Service
	teams []team.Team
}

func (fakeTeams) Count(context.Context) (int, error) { return 2, nil }
func (f fakeTeams) Query(context.Context, *team.QueryFilter, []core.DBOrdering) ([]team.Team, error) {
	return f.teams, nil
}

type fakePlayers struct{ player.Service }

func (fakePlayers) Count(context.Context, string) (int, error) { return 20, nil }
func (fakePlayers) Query(context.Context, *player.QueryFilter, []core.DBOrdering) ([]player.Player, error) {
	return []player.Player{{ID: "p1", FirstName: "Kid"}}, nil
}

type fakeTrainings struct {
	training.Service
	gotFilter *training.QueryFilter
}

func (f *fakeTrainings) Query(_ context.Context, filter *training.QueryFilter) ([]training.Training, error) {
	f.gotFilter = filter
	return []training.Training{{ID: "t1"}}, nil
}
func (f *fakeTrainings) AttendanceSummary(context.Context, string) (map[string]int, error) {
	return map[string]int{training.AttendancePresent: 4, training.AttendanceLate: 1}, nil
}

type failingMatches struct{ match.Service }

func (failingMatches) Query(context.Context, *match.QueryFilter) ([]match.Match, error) {
	return nil, errBoom
}
func (failingMatches) TeamRecord(context.Context, string) (match.Record, error) {
	return match.Record{}, errBoom
}

type fakeBilling struct{ billing.Service }

func (fakeBilling) Summary(context.Context, []string) (billing.Summary, error) {
	return billing.Summary{Billed: decimal.NewFromInt(100), OverdueCount: 1}, nil
}
func (fakeBilling) QueryInvoices(context.Context, *billing.InvoiceFilter, []core.DBOrdering) ([]billing.Invoice, error) {
	return nil, errBoom
}

func newTestService(trainings *fakeTrainings) Service {
	return NewService(Deps{
		Users:     &fakeUsers{},
		Teams:     &fakeTeams{teams: []team.Team{{ID: "team1"}}},
		Players:   &fakePlayers{},
		Trainings: trainings,
		Matches:   &failingMatches{},
		Billing:   &fakeBilling{},
		Logger:    &discardLogger{},
	})
}

func TestForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("admin", func(t *testing.T) {
		trainings := new(fakeTrainings)
		admin := user.User{ID: "a", Roles: []string{user.RoleAdmin}}
		d := newTestService(trainings).ForUser(ctx, admin, access.Scope{All: true})

		assert.Equal(t, "admin", d.Role)
		require.NotNil(t, d.Counts)
		assert.Equal(t, Counts{Users: 3, Coaches: 3, Parents: 3, Teams: 2, ActivePlayers: 20}, *d.Counts)
		require.NotNil(t, d.Billing)
		assert.Equal(t, 1, d.Billing.OverdueCount)
		assert.Len(t, d.UpcomingTrainings, 1)
		assert.Nil(t, trainings.gotFilter.TeamIDs)
		assert.Empty(t, d.UpcomingMatches)
		assert.Equal(t, []string{"upcoming matches could not be loaded", "overdue invoices could not be loaded"}, d.Warnings)
	})

	t.Run("coach", func(t *testing.T) {
		trainings := new(fakeTrainings)
		coach := user.User{ID: "c", Roles: []string{user.RoleCoach}}
		scope := access.Scope{TeamIDs: []string{"team1"}, CoachedTeamIDs: []string{"team1"}}
		d := newTestService(trainings).ForUser(ctx, coach, scope)

		assert.Equal(t, []string{"team1"}, trainings.gotFilter.TeamIDs)
		assert.Len(t, d.Teams, 1)
		assert.Nil(t, d.TeamRecords)
		assert.Nil(t, d.Counts)
		assert.Contains(t, d.Warnings, "team records could not be loaded")
	})

	t.Run("player", func(t *testing.T) {
		plr := user.User{ID: "u", Roles: []string{user.RolePlayer}}
		scope := access.Scope{TeamIDs: []string{}, PlayerIDs: []string{"p1"}, OwnPlayerIDs: []string{"p1"}}
		d := newTestService(new(fakeTrainings)).ForUser(ctx, plr, scope)

		assert.Len(t, d.Players, 1)
		assert.Equal(t, map[string]int{"present": 4, "late": 1}, d.Attendance)
		assert.Nil(t, d.Billing)
		assert.Equal(t, []string{"upcoming matches could not be loaded"}, d.Warnings)
	})
}
