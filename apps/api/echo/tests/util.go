package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	. "github.com/touchline/academy/apps/api/echo"
	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/dashboard"
	"github.com/touchline/academy/core/match"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/training"
	"github.com/touchline/academy/core/user"
	emailsvc "github.com/touchline/academy/services/email"
	sqlxrepos "github.com/touchline/academy/storage/database/sqlx"
	"github.com/touchline/academy/testutil"
)

var (
	db          *sqlx.DB
	usrRepo     user.Repository
	teamRepo    team.Repository
	plrRepo     player.Repository
	trainingSvc training.Service
	matchSvc    match.Service
	billingSvc  billing.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func setup(t *testing.T) Server {
	// set up DB & repos
	db = testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	teamRepo = sqlxrepos.NewTeamRepository(db)
	plrRepo = sqlxrepos.NewPlayerRepository(db)

	// set up services
	logger := &testutil.DiscardLogger{T: t}
	mailSvc := emailsvc.NewConsoleServiceMock(logger)
	emailsvc.SentMessages.Reset()

	usrSvc := user.NewServiceMock(usrRepo, mailSvc, logger)
	teamSvc := team.NewService(teamRepo, usrSvc)
	plrSvc := player.NewService(plrRepo, teamSvc, usrSvc)
	trainingSvc = training.NewService(db, sqlxrepos.NewTrainingRepository(db), teamSvc, plrSvc)
	matchSvc = match.NewService(sqlxrepos.NewMatchRepository(db), teamSvc)
	billingSvc = billing.NewServiceMock(db, sqlxrepos.NewBillingRepository(db), plrSvc, usrSvc, mailSvc, logger)
	dashSvc := dashboard.NewService(dashboard.Deps{
		Users:     usrSvc,
		Teams:     teamSvc,
		Players:   plrSvc,
		Trainings: trainingSvc,
		Matches:   matchSvc,
		Billing:   billingSvc,
		Logger:    logger,
	})

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	team.InitValidators(validate, translator)

	// set up server
	return NewServer(
		ServerDeps{
			Conf:           core.Conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			TeamSvc:        teamSvc,
			PlayerSvc:      plrSvc,
			TrainingSvc:    trainingSvc,
			MatchSvc:       matchSvc,
			BillingSvc:     billingSvc,
			DashboardSvc:   dashSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves a request and returns the recorder.
func do(app Server, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func runHttpTests(t *testing.T, app Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := do(app, method, tt.path, tt.token, tt.body)
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
