package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchline/academy/core/match"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/user"
	"github.com/touchline/academy/testutil"
)

// academy is a small club shared by the API tests:
// eagles (U12) is coached by coach, falcons (U14) by coach2 and hawks (U12) has no coach.
// child plays for the eagles, own is the player account playing for the falcons.
type academy struct {
	admin, coach, coach2, parent, playerUsr user.User
	eagles, falcons, hawks                 team.Team
	child, teammate, own                   string
}

func newAcademy(t *testing.T) academy {
	t.Helper()
	var a academy
	a.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)
	a.coach = testutil.CreateUser(t, usrRepo, "Carla Coach", "carla", "carla@test.test", "", []string{user.RoleCoach}, true)
	a.coach2 = testutil.CreateUser(t, usrRepo, "Dan Coach", "dan", "dan@test.test", "", []string{user.RoleCoach}, true)
	a.parent = testutil.CreateUser(t, usrRepo, "Grace", "grace", "grace@test.test", "", []string{user.RoleParent}, true)
	a.playerUsr = testutil.CreateUser(t, usrRepo, "Paul", "paul", "paul@test.test", "", []string{user.RolePlayer}, true)

	a.eagles = testutil.CreateTeam(t, teamRepo, "Eagles", "U12", &a.coach)
	a.falcons = testutil.CreateTeam(t, teamRepo, "Falcons", "U14", &a.coach2)
	a.hawks = testutil.CreateTeam(t, teamRepo, "Hawks", "U12", nil)

	a.child = testutil.CreatePlayer(t, plrRepo, "Kim", "Adams", testutil.PlayerOpts{Team: &a.eagles, Parent: &a.parent, Jersey: 7}).ID
	a.teammate = testutil.CreatePlayer(t, plrRepo, "Leo", "Baker", testutil.PlayerOpts{Team: &a.eagles, Jersey: 9}).ID
	a.own = testutil.CreatePlayer(t, plrRepo, "Paul", "Clark", testutil.PlayerOpts{Team: &a.falcons, User: &a.playerUsr}).ID
	return a
}

func Test_teamApi_query(t *testing.T) {
	app := setup(t)
	a := newAcademy(t)

	tests := []struct {
		name    string
		path    string
		usr     user.User
		wantIDs []string
	}{
		{name: "admin sees all", path: "/api/teams", usr: a.admin, wantIDs: []string{a.eagles.ID, a.falcons.ID, a.hawks.ID}},
		{name: "coach sees coached teams", path: "/api/teams", usr: a.coach, wantIDs: []string{a.eagles.ID}},
		{name: "parent sees teams of children", path: "/api/teams", usr: a.parent, wantIDs: []string{a.eagles.ID}},
		{name: "player sees own team", path: "/api/teams", usr: a.playerUsr, wantIDs: []string{a.falcons.ID}},
		{name: "age_group=U12", path: "/api/teams?age_group=U12", usr: a.admin, wantIDs: []string{a.eagles.ID, a.hawks.ID}},
		{name: "coach filter", path: "/api/teams?coach=" + a.coach2.ID, usr: a.admin, wantIDs: []string{a.falcons.ID}},
		{name: "search", path: "/api/teams?search=HAW", usr: a.admin, wantIDs: []string{a.hawks.ID}},
		{name: "ordering", path: "/api/teams?ordering=-name", usr: a.admin, wantIDs: []string{a.hawks.ID, a.falcons.ID, a.eagles.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodGet, tt.path, getToken(t, tt.usr))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantIDs, ids(t, rec))
		})
	}
}

func Test_teamApi_crud(t *testing.T) {
	app := setup(t)
	a := newAcademy(t)

	adminToken := getToken(t, a.admin)
	coachToken := getToken(t, a.coach)
	path := func(tm team.Team) string { return "/api/teams/" + tm.ID }

	tests := []httpTest{
		{name: "auth required", path: path(a.eagles), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "out of scope is not found", path: path(a.falcons), token: coachToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "unknown id", path: "/api/teams/lol", token: adminToken, wantCode: http.StatusNotFound},
		{name: "coach retrieves own team", path: path(a.eagles), token: coachToken},
		{
			name: "coach cannot create", method: http.MethodPost, path: "/api/teams", token: coachToken,
			body: []byte(`{"name": "Owls", "age_group": "U10", "season": "2024/2025"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid team", method: http.MethodPost, path: "/api/teams", token: adminToken,
			body: []byte(`{"age_group": "U99", "season": "2024/2026"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":      "this field is required",
				"age_group": "invalid age group",
				"season":    "season must look like 2024 or 2024/2025",
			}),
		},
		{
			name: "coach must be a coach", method: http.MethodPost, path: "/api/teams", token: adminToken,
			body:     []byte(`{"name": "Owls", "age_group": "U10", "season": "2024", "coach_id": "` + a.parent.ID + `"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"coach_id": "coach must be an active user with a coach role"}),
		},
		{
			name: "created", method: http.MethodPost, path: "/api/teams", token: adminToken,
			body: []byte(`{"name": " Owls ", "age_group": "U10", "season": "2024", "coach_id": "` + a.coach2.ID + `"}`), wantCode: http.StatusCreated,
		},
		{name: "coach cannot update", method: http.MethodPut, path: path(a.eagles), token: coachToken, body: []byte(`{"name": "Eagles II"}`), wantCode: http.StatusForbidden},
		{name: "admin hands hawks to coach", method: http.MethodPut, path: path(a.hawks), token: adminToken, body: []byte(`{"coach_id": "` + a.coach.ID + `"}`)},
		{name: "coach now sees hawks", path: path(a.hawks), token: coachToken},
		{name: "coach cannot delete", method: http.MethodDelete, path: path(a.hawks), token: coachToken, wantCode: http.StatusForbidden},
		{name: "admin deletes", method: http.MethodDelete, path: path(a.hawks), token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: path(a.hawks), token: adminToken, wantCode: http.StatusNotFound},
	}
	runHttpTests(t, app, tests)

	owls, err := teamRepo.QueryTeams(context.Background(), &team.QueryFilter{Search: "owls"}, nil)
	require.NoError(t, err)
	require.Len(t, owls, 1)
	assert.Equal(t, "Owls", owls[0].Name)
	assert.Equal(t, a.coach2.ID, owls[0].CoachID.String)
}

func Test_teamApi_record(t *testing.T) {
	app := setup(t)
	a := newAcademy(t)
	ctx := context.Background()

	play := func(opponent string, goalsFor, goalsAgainst int) {
		m, err := matchSvc.Create(ctx, match.NewMatch{TeamID: a.eagles.ID, Opponent: opponent, KickoffAt: time.Now().Add(-48 * time.Hour)})
		require.NoError(t, err)
		_, err = matchSvc.RecordResult(ctx, m, match.MatchResult{GoalsFor: &goalsFor, GoalsAgainst: &goalsAgainst})
		require.NoError(t, err)
	}
	play("Rovers", 3, 1)
	play("United", 2, 2)
	play("City", 0, 1)
	_, err := matchSvc.Create(ctx, match.NewMatch{TeamID: a.eagles.ID, Opponent: "Athletic", KickoffAt: time.Now().Add(72 * time.Hour)})
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "parent sees the record of their child's team", path: "/api/teams/" + a.eagles.ID + "/record", token: getToken(t, a.parent),
			wantData: marchallObj(t, match.Record{TeamID: a.eagles.ID, Played: 3, Won: 1, Drawn: 1, Lost: 1, GoalsFor: 5, GoalsAgainst: 4}),
		},
		{
			name: "empty record", path: "/api/teams/" + a.falcons.ID + "/record", token: getToken(t, a.admin),
			wantData: marchallObj(t, match.Record{TeamID: a.falcons.ID}),
		},
		{name: "out of scope", path: "/api/teams/" + a.falcons.ID + "/record", token: getToken(t, a.parent), wantCode: http.StatusNotFound},
	}
	runHttpTests(t, app, tests)
}
