package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/touchline/academy/apps/api/echo"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/training"
)

func createTraining(t *testing.T, tm team.Team, startIn time.Duration) training.Training {
	t.Helper()
	start := time.Now().Add(startIn).UTC().Truncate(time.Second)
	tr, err := trainingSvc.Create(context.Background(), training.NewTraining{
		TeamID:   tm.ID,
		Title:    tm.Name + " session",
		Location: "Pitch 2",
		StartsAt: start,
		EndsAt:   start.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	return tr
}

func Test_trainingApi_queryAndManage(t *testing.T) {
	app := setup(t)
	a := newAcademy(t)

	eagles := createTraining(t, a.eagles, 24*time.Hour)
	falcons := createTraining(t, a.falcons, 48*time.Hour)
	coachToken := getToken(t, a.coach)

	queries := []struct {
		name    string
		path    string
		token   string
		wantIDs []string
	}{
		{name: "admin sees all", path: "/api/trainings", token: getToken(t, a.admin), wantIDs: []string{eagles.ID, falcons.ID}},
		{name: "coach sees their team", path: "/api/trainings", token: coachToken, wantIDs: []string{eagles.ID}},
		{name: "parent sees their child's team", path: "/api/trainings", token: getToken(t, a.parent), wantIDs: []string{eagles.ID}},
		{name: "team out of scope is ignored", path: "/api/trainings?team=" + a.falcons.ID, token: coachToken, wantIDs: []string{}},
		{name: "from", path: "/api/trainings?from=" + time.Now().Add(36*time.Hour).UTC().Format(time.RFC3339), token: getToken(t, a.admin), wantIDs: []string{falcons.ID}},
		{name: "limit", path: "/api/trainings?limit=1", token: getToken(t, a.admin), wantIDs: []string{eagles.ID}},
	}
	for _, tt := range queries {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodGet, tt.path, tt.token)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantIDs, ids(t, rec))
		})
	}

	start := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	newTraining := func(tm team.Team, end time.Time) []byte {
		return marchallObj(t, training.NewTraining{TeamID: tm.ID, Title: "Finishing", StartsAt: start, EndsAt: end})
	}
	tests := []httpTest{
		{name: "parent cannot plan", method: http.MethodPost, path: "/api/trainings", token: getToken(t, a.parent), body: newTraining(a.eagles, start.Add(time.Hour)), wantCode: http.StatusForbidden},
		{name: "coach cannot plan for other teams", method: http.MethodPost, path: "/api/trainings", token: coachToken, body: newTraining(a.falcons, start.Add(time.Hour)), wantCode: http.StatusForbidden},
		{name: "ends before start", method: http.MethodPost, path: "/api/trainings", token: coachToken, body: newTraining(a.eagles, start.Add(-time.Hour)), wantCode: http.StatusBadRequest},
		{name: "coach plans", method: http.MethodPost, path: "/api/trainings", token: coachToken, body: newTraining(a.eagles, start.Add(time.Hour)), wantCode: http.StatusCreated},
		{name: "out of scope is not found", path: "/api/trainings/" + falcons.ID, token: coachToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "parent retrieves", path: "/api/trainings/" + eagles.ID, token: getToken(t, a.parent)},
		{name: "parent cannot update", method: http.MethodPut, path: "/api/trainings/" + eagles.ID, token: getToken(t, a.parent), body: []byte(`{"title": "lol"}`), wantCode: http.StatusForbidden},
		{name: "coach moves location", method: http.MethodPut, path: "/api/trainings/" + eagles.ID, token: coachToken, body: []byte(`{"location": "Main pitch"}`)},
		{name: "coach deletes", method: http.MethodDelete, path: "/api/trainings/" + eagles.ID, token: coachToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/api/trainings/" + eagles.ID, token: coachToken, wantCode: http.StatusNotFound},
	}
	runHttpTests(t, app, tests)
}

func Test_trainingApi_attendance(t *testing.T) {
	app := setup(t)
	a := newAcademy(t)

	tr := createTraining(t, a.eagles, -time.Hour)
	path := "/api/trainings/" + tr.ID + "/attendance"
	coachToken := getToken(t, a.coach)

	record := func(entries ...training.AttendanceEntry) []byte {
		return marchallObj(t, training.RecordAttendance{Entries: entries})
	}

	tests := []httpTest{
		{name: "parent cannot record", method: http.MethodPut, path: path, token: getToken(t, a.parent), body: record(training.AttendanceEntry{PlayerID: a.child, Status: "present"}), wantCode: http.StatusForbidden},
		{name: "empty", method: http.MethodPut, path: path, token: coachToken, body: []byte(`{"entries": []}`), wantCode: http.StatusBadRequest},
		{
			name: "invalid status", method: http.MethodPut, path: path, token: coachToken, wantCode: http.StatusBadRequest,
			body: record(training.AttendanceEntry{PlayerID: a.child, Status: "asleep"}),
		},
		{
			name: "player of another team", method: http.MethodPut, path: path, token: coachToken, wantCode: http.StatusBadRequest,
			body:     record(training.AttendanceEntry{PlayerID: a.child, Status: "present"}, training.AttendanceEntry{PlayerID: a.own, Status: "present"}),
			wantData: marchallObj(t, map[string]string{"entries[1].player_id": "player does not belong to the training's team"}),
		},
		{
			name: "recorded", method: http.MethodPut, path: path, token: coachToken,
			body: record(training.AttendanceEntry{PlayerID: a.child, Status: " LATE "}, training.AttendanceEntry{PlayerID: a.teammate, Status: "excused", Note: "school trip"}),
		},
		{
			name: "recorded again", method: http.MethodPut, path: path, token: coachToken,
			body: record(training.AttendanceEntry{PlayerID: a.child, Status: "present"}),
		},
	}
	runHttpTests(t, app, tests)

	statuses := func(token string) map[string]string {
		rec := do(app, http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var list []training.Attendance
		decode(t, rec, &list)
		res := make(map[string]string, len(list))
		for _, att := range list {
			res[att.PlayerID] = att.Status
			assert.Equal(t, a.coach.ID, att.RecordedBy.String)
		}
		return res
	}
	assert.Equal(t, map[string]string{a.child: "present", a.teammate: "excused"}, statuses(coachToken))
	assert.Equal(t, map[string]string{a.child: "present"}, statuses(getToken(t, a.parent)))
	assert.Equal(t, map[string]string{a.child: "present", a.teammate: "excused"}, statuses(getToken(t, a.admin)))
}

func Test_trainingApi_checkIn(t *testing.T) {
	app := setup(t)
	a := newAcademy(t)

	eagles := createTraining(t, a.eagles, 10*time.Minute)
	falcons := createTraining(t, a.falcons, 10*time.Minute)
	later := createTraining(t, a.eagles, 48*time.Hour)

	token := func(tr training.Training, usrToken string) string {
		rec := do(app, http.MethodGet, "/api/trainings/"+tr.ID+"/checkin-token", usrToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.CheckInTokenResponse
		decode(t, rec, &resp)
		require.Equal(t, tr.ID, resp.TrainingID)
		require.NotEmpty(t, resp.Token)
		return resp.Token
	}
	eaglesToken := token(eagles, getToken(t, a.coach))
	falconsToken := token(falcons, getToken(t, a.coach2))
	laterToken := token(later, getToken(t, a.admin))

	checkIn := func(tr training.Training) string { return "/api/trainings/" + tr.ID + "/checkin" }
	body := func(token, playerID string) []byte {
		return marchallObj(t, training.CheckIn{Token: token, PlayerID: playerID})
	}
	parentToken := getToken(t, a.parent)
	playerToken := getToken(t, a.playerUsr)

	tests := []httpTest{
		{name: "parent cannot get a token", path: "/api/trainings/" + eagles.ID + "/checkin-token", token: parentToken, wantCode: http.StatusForbidden},
		{name: "coach of another team cannot get a token", path: "/api/trainings/" + eagles.ID + "/checkin-token", token: getToken(t, a.coach2), wantCode: http.StatusNotFound},
		{
			name: "token required", method: http.MethodPost, path: checkIn(falcons), token: playerToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "this field is required"}),
		},
		{
			name: "token of another training", method: http.MethodPost, path: checkIn(falcons), token: playerToken, body: body(eaglesToken, ""),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "invalid check-in token"}),
		},
		{
			name: "check-in not open yet", method: http.MethodPost, path: checkIn(later), token: parentToken, body: body(laterToken, a.child),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "check-in is closed for this training"}),
		},
		{name: "player checks in", method: http.MethodPost, path: checkIn(falcons), token: playerToken, body: body(falconsToken, "")},
		{
			name: "parent must name the child", method: http.MethodPost, path: checkIn(eagles), token: parentToken, body: body(eaglesToken, ""),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"player_id": "no player is linked to this account"}),
		},
		{name: "parent cannot check in others", method: http.MethodPost, path: checkIn(eagles), token: parentToken, body: body(eaglesToken, a.teammate), wantCode: http.StatusForbidden},
		{name: "parent checks in child", method: http.MethodPost, path: checkIn(eagles), token: parentToken, body: body(eaglesToken, a.child)},
		{name: "player cannot see other teams", method: http.MethodPost, path: checkIn(eagles), token: playerToken, body: body(eaglesToken, ""), wantCode: http.StatusNotFound},
	}
	runHttpTests(t, app, tests)

	list, err := trainingSvc.ListAttendance(context.Background(), eagles.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.child, list[0].PlayerID)
	assert.Equal(t, training.AttendancePresent, list[0].Status)
	assert.Equal(t, a.parent.ID, list[0].RecordedBy.String)

	// a staff record is never overridden by a later check-in
	rec := do(app, http.MethodPut, "/api/trainings/"+falcons.ID+"/attendance", getToken(t, a.coach2),
		marchallObj(t, training.RecordAttendance{Entries: []training.AttendanceEntry{{PlayerID: a.own, Status: "excused"}}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(app, http.MethodPost, checkIn(falcons), playerToken, body(falconsToken, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var att training.Attendance
	decode(t, rec, &att)
	assert.Equal(t, training.AttendanceExcused, att.Status)

	// no check-in for cancelled trainings
	rec = do(app, http.MethodPut, "/api/trainings/"+eagles.ID, getToken(t, a.coach), []byte(`{"status": "cancelled"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(app, http.MethodGet, "/api/trainings/"+eagles.ID+"/checkin-token", getToken(t, a.coach))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "training is cancelled"}`, rec.Body.String())
}
