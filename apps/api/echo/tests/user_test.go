package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/touchline/academy/apps/api/echo"
	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/user"
	emailsvc "github.com/touchline/academy/services/email"
	"github.com/touchline/academy/testutil"
)

// ids decodes a list response into the IDs of its objects.
func ids(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var objs []struct {
		ID string `json:"id"`
	}
	decode(t, rec, &objs)
	list := make([]string, 0, len(objs))
	for _, o := range objs {
		list = append(list, o.ID)
	}
	return list
}

func Test_userApi_userQuery(t *testing.T) {
	app := setup(t)

	path := func(search, ordering string, isActive string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != "" {
			v.Add("is_active", isActive)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.test", "", []string{user.RoleAdminOwner}, true)
	coach := testutil.CreateUser(t, usrRepo, "Coach Carter", "carter", "carter@test.test", "", []string{user.RoleCoach}, true)
	head := testutil.CreateUser(t, usrRepo, "Head Coach", "headcoach", "head@test.test", "", []string{user.RoleCoachHead}, true)
	parent := testutil.CreateUser(t, usrRepo, "Grace", "grace", "grace@test.test", "", []string{user.RoleParent}, true)
	gone := testutil.CreateUser(t, usrRepo, "Zed", "zed", "zed@test.test", "", []string{user.RolePlayer}, false)

	adminToken := getToken(t, admin)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantIDs  []string
	}{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized},
		{name: "Admin required", path: "/api/users", token: getToken(t, coach), wantCode: http.StatusForbidden},
		{name: "Get all", path: "/api/users", token: adminToken, wantIDs: []string{admin.ID, coach.ID, parent.ID, head.ID, owner.ID, gone.ID}},
		{name: "search (unknown)", path: path("lol", "", ""), token: adminToken, wantIDs: []string{}},
		{name: "search=COACH", path: path("COACH", "", ""), token: adminToken, wantIDs: []string{coach.ID, head.ID}},
		{name: "role=coach:", path: path("", "", "", user.RoleCoach), token: adminToken, wantIDs: []string{coach.ID, head.ID}},
		{name: "role=admin:,parent:", path: path("", "", "", user.RoleAdmin, user.RoleParent), token: adminToken, wantIDs: []string{admin.ID, parent.ID, owner.ID}},
		{name: "is_active=false", path: path("", "", "false"), token: adminToken, wantIDs: []string{gone.ID}},
		{name: "order by -username", path: path("", "-username", "true"), token: adminToken, wantIDs: []string{owner.ID, head.ID, parent.ID, coach.ID, admin.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodGet, tt.path, tt.token)
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantIDs, ids(t, rec))
			}
		})
	}
}

func Test_userApi_userLogin(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, usrRepo, "Grace", "grace", "grace@test.test", "S3cret!pass", []string{user.RoleParent}, true)
	testutil.CreateUser(t, usrRepo, "Zed", "zed", "zed@test.test", "S3cret!pass", []string{user.RolePlayer}, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	reqMsg := "this field is required"

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Username: reqMsg, Password: reqMsg}),
		},
		{
			name: "unknown user", body: login("nobody", "S3cret!pass"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: login("grace", "nope"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", body: login("zed", "S3cret!pass"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", body: login("grace", "S3cret!pass")},
		{name: "by email, any case", body: login(" GRACE@test.test ", "S3cret!pass")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodPost, "/api/users/login", "", tt.body)
			if tt.wantCode == 0 {
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var resp echoapi.LoginResponse
				decode(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "grace@test.test"})
	require.NoError(t, err)
	assert.True(t, usr.LastLogin.Valid)
}

func Test_userApi_userRefreshToken(t *testing.T) {
	app := setup(t)

	gone := testutil.CreateUser(t, usrRepo, "Zed", "zed", "zed@test.test", "", []string{user.RolePlayer}, false)
	parent := testutil.CreateUser(t, usrRepo, "Grace", "grace", "grace@test.test", "", []string{user.RoleParent}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   parent.ID,
			Audience:  "Academy",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsParent:     true,
		Roles:        parent.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, gone), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, parent), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodPost, "/api/users/token-refresh", tt.token)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				require.Equal(t, tt.wantCode, rec.Code)
				var respData echoapi.LoginResponse
				decode(t, rec, &respData)
				assert.NotEmpty(t, respData.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

var resetLinkRegex = regexp.MustCompile(`/password-reset/([^/\s"]+)/([^/\s"<]+)`)

func Test_userApi_userResetPassword(t *testing.T) {
	app := setup(t)

	parent := testutil.CreateUser(t, usrRepo, "Grace", "grace", "grace@test.test", "", []string{user.RoleParent}, true)
	testutil.CreateUser(t, usrRepo, "Zed", "zed", "zed@test.test", "", []string{user.RolePlayer}, false)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If this address belongs to an active academy account, " +
		"you will shortly receive an email with a link to choose a new password."})

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "deactivated account", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "zed@test.test"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "GRACE@test.test"}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: parent.Name, Address: parent.Email}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages.Reset()

			rec := do(app, http.MethodPost, "/api/users/password-reset", "", tt.body)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				msgs := emailsvc.SentMessages.Messages()
				if !extra.emailSent {
					assert.Empty(t, msgs)
					return
				}
				require.Len(t, msgs, 1)
				msg := msgs[0]
				assert.Equal(t, extra.to, msg.To[0])
				assert.Contains(t, msg.TextContent, extra.to.Name)
				assert.Contains(t, msg.HTMLContent, extra.to.Name)
				assert.Regexp(t, resetLinkRegex, msg.TextContent)
				assert.Regexp(t, resetLinkRegex, msg.HTMLContent)
			}
		})
	}
}

func Test_userApi_userConfirmPasswordReset(t *testing.T) {
	app := setup(t)

	parent := testutil.CreateUser(t, usrRepo, "Grace", "grace", "grace@test.test", "", []string{user.RoleParent}, true)

	// get a genuine link the way users do
	emailsvc.SentMessages.Reset()
	rec := do(app, http.MethodPost, "/api/users/password-reset", "", marchallObj(t, echoapi.PasswordResetRequest{Email: parent.Email}))
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := emailsvc.SentMessages.To(parent.Email)
	require.Len(t, msgs, 1)
	match := resetLinkRegex.FindStringSubmatch(msgs[0].TextContent)
	require.Len(t, match, 3)
	validUID, validToken := match[1], strings.TrimSpace(match[2])

	reqMsg := "this field is required"
	invalidToken := marchallObj(t, user.ResetUserPassword{Token: "invalid or expired token"})
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: reqMsg, PasswordConfirm: reqMsg}),
		},
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: not all numeric", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "Kick0ff!Now", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: "bG9s", Password: "Kick0ff!Now", PasswordConfirm: "Kick0ff!Now"}),
			wantData: invalidToken,
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig", UID: validUID, Password: "Kick0ff!Now", PasswordConfirm: "Kick0ff!Now"}),
			wantData: invalidToken,
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: "Kick0ff!Now", PasswordConfirm: "Kick0ff!Now"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Your password has been changed, you can now sign in."}),
		},
		{
			name: "token is single use", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: "An0ther!Pass", PasswordConfirm: "An0ther!Pass"}),
			wantData: invalidToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodPost, "/api/users/password-reset-confirm", "", tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: parent.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("Kick0ff!Now"))
}

func Test_userApi_userCreate(t *testing.T) {
	app := setup(t)

	manager := testutil.CreateUser(t, usrRepo, "Manager", "manager", "manager@test.test", "", []string{user.RoleAdminManager}, true)
	coach := testutil.CreateUser(t, usrRepo, "Coach", "coach", "coach@test.test", "", []string{user.RoleCoach}, true)
	testutil.CreateUser(t, usrRepo, "Grace", "grace", "grace@test.test", "", []string{user.RoleParent}, true)

	newUser := func(uname, email string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New " + uname,
			Username:        uname,
			Email:           email,
			Password:        "Kick0ff!Now",
			PasswordConfirm: "Kick0ff!Now",
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{name: "Admin required", body: newUser("newbie", "", user.RoleParent), token: getToken(t, coach), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "cannot grant a higher role", body: newUser("boss", "", user.RoleAdminOwner), token: getToken(t, manager),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "invalid role", body: newUser("weird", "", "referee:"), token: getToken(t, manager),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "invalid roles"}),
		},
		{
			name: "email taken", body: newUser("other", "grace@test.test", user.RoleParent), token: getToken(t, manager),
			wantCode: http.StatusBadRequest,
		},
		{name: "created", body: newUser("newcoach", "newcoach@test.test", user.RoleCoach), token: getToken(t, manager), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodPost, "/api/users", tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	created, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "newcoach@test.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleCoach}, created.Roles)
	assert.True(t, created.IsActive)
}

func Test_userApi_userUpdateAndDelete(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, usrRepo, "Grace", "grace", "grace@test.test", "", []string{user.RoleParent}, true)
	other := testutil.CreateUser(t, usrRepo, "Henry", "henry", "henry@test.test", "", []string{user.RoleParent}, true)
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.test", "", []string{user.RoleAdminOwner}, true)

	adminToken := getToken(t, admin)
	parentToken := getToken(t, parent)
	path := func(u user.User) string { return "/api/users/" + u.ID }

	tests := []httpTest{
		{name: "others are not found", method: http.MethodGet, path: path(other), token: parentToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "me", method: http.MethodGet, path: "/api/users/me", token: parentToken},
		{
			name: "self cannot change roles", method: http.MethodPut, path: path(parent), token: parentToken,
			body: []byte(`{"roles": ["admin:owner"]}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "self renames", method: http.MethodPut, path: path(parent), token: parentToken, body: []byte(`{"name": "Grace O."}`)},
		{
			name: "admin cannot grant above own role", method: http.MethodPut, path: path(other), token: adminToken,
			body: []byte(`{"roles": ["admin:manager"]}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{name: "admin deactivates", method: http.MethodPut, path: path(other), token: adminToken, body: []byte(`{"is_active": false}`)},
		{name: "non admin cannot delete", method: http.MethodDelete, path: path(parent), token: parentToken, wantCode: http.StatusForbidden},
		{name: "cannot delete self", method: http.MethodDelete, path: path(admin), token: adminToken, wantCode: http.StatusForbidden},
		{name: "cannot delete a higher role", method: http.MethodDelete, path: path(owner), token: adminToken, wantCode: http.StatusForbidden},
		{name: "admin deletes", method: http.MethodDelete, path: path(other), token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted is gone", method: http.MethodGet, path: path(other), token: adminToken, wantCode: http.StatusNotFound},
		{name: "bulk delete cannot include self", method: http.MethodDelete, path: "/api/users?id=" + parent.ID + "," + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
	}
	runHttpTests(t, app, tests)

	renamed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: parent.ID})
	require.NoError(t, err)
	assert.Equal(t, "Grace O.", renamed.Name)
}
