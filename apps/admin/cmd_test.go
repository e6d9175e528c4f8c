package main

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/user"
	emailsvc "github.com/touchline/academy/services/email"
	"github.com/touchline/academy/storage/database"
	sqlxrepos "github.com/touchline/academy/storage/database/sqlx"
	"github.com/touchline/academy/testutil"
)

var (
	usrRepo user.Repository
	plrRepo player.Repository
)

func TestMain(m *testing.M) {
	core.Conf.TestMode = true
	core.Conf.Billing.Currency = "EUR"
	core.Conf.Billing.InvoiceDueDays = 14
	core.Conf.Billing.ReminderInterval = 7 * 24 * time.Hour
	if err := core.ParseEmailTemplates(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	plrRepo = sqlxrepos.NewPlayerRepository(db)
	provider, err := database.NewMigrationProvider(db)
	require.NoError(t, err)

	logger := &testutil.DiscardLogger{T: t}
	mailSvc := emailsvc.NewConsoleServiceMock(logger)
	emailsvc.SentMessages.Reset()
	usrSvc := user.NewService(usrRepo, mailSvc, logger)
	teamSvc := team.NewService(sqlxrepos.NewTeamRepository(db), usrSvc)
	plrSvc := player.NewService(plrRepo, teamSvc, usrSvc)

	// start CLI
	out := new(bytes.Buffer)
	return &commandLine{
		migrator:   provider,
		usrRepo:    usrRepo,
		usrSvc:     usrSvc,
		billingSvc: billing.NewSyncService(db, sqlxrepos.NewBillingRepository(db), plrSvc, usrSvc, mailSvc, logger),
		out:        out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string // substring
	pwd        string // typed at the password prompt
}

func runCliTests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			readPasswordFunc = func(int) ([]byte, error) {
				return []byte(tt.pwd), nil
			}

			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: "Available commands"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp, wantOut: "lol"},
		{name: "help", args: []string{"--help"}, wantErr: errHelp, wantOut: "migrate"},
		{name: "invoices needs a subcommand", args: []string{"invoices"}, wantErr: errHelp},
	}
	runCliTests(t, cli, out, tests)
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: admin migrate up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: admin migrate down-to VERSION"},
		{name: "version", args: []string{"migrate", "version"}, wantOut: "version 1"},
		{name: "status", args: []string{"migrate", "status"}, wantOut: "00001_init.sql"},
		{name: "up is a no-op", args: []string{"migrate", "up"}},
		{name: "up-by-one is a no-op", args: []string{"migrate", "up-by-one"}, wantOut: "no migration to apply"},
		{name: "down", args: []string{"migrate", "down"}, wantOut: "00001_init.sql"},
		{name: "version after down", args: []string{"migrate", "version"}, wantOut: "version 0"},
		{name: "pending", args: []string{"migrate", "status"}, wantOut: "pending"},
		{name: "nothing to roll back", args: []string{"migrate", "down"}, wantOut: "no migration to roll back"},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}, wantOut: "00001_init.sql"},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "up", args: []string{"migrate", "up"}, wantOut: "00001_init.sql"},
	}
	runCliTests(t, cli, out, tests)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "username required", args: []string{"adduser", "-e", "boss@test.test"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "-u", "boss", "-e", "boss@test.test", "-r", "king:"}, pwd: "lol", wantErrStr: "\"king:\": invalid role"},
		{name: "no password", args: []string{"adduser", "-u", "boss", "-e", "boss@test.test"}, wantErr: errHelp},
		{name: "created", args: []string{"adduser", "-u", " Boss ", "-e", "Boss@Test.test", "-n", "The Boss", "--admin"}, pwd: "S3cret!pwd", wantOut: "user boss"},
		{name: "updated by email", args: []string{"adduser", "-u", "other", "-e", "boss@test.test", "-r", "coach:head"}, pwd: "N3w!secret"},
	}
	runCliTests(t, cli, out, tests)

	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "boss@test.test"})
	require.NoError(t, err)
	assert.Equal(t, "boss", usr.Username)
	assert.Equal(t, "The Boss", usr.Name)
	assert.True(t, usr.IsActive)
	assert.Equal(t, []string{user.RoleCoachHead}, usr.Roles)
	assert.NoError(t, usr.CheckPassword("N3w!secret"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, out := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-u", "AWE@test.cd"}, pwd: "lmao"},
	}
	runCliTests(t, cli, out, tests)

	refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_invoices(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	parent := testutil.CreateUser(t, usrRepo, "Grace Okafor", "grace", "grace@test.test", "", []string{user.RoleParent}, true)
	ada := testutil.CreatePlayer(t, plrRepo, "Ada", "Okafor", testutil.PlayerOpts{Parent: &parent})
	start := core.NewDate(2024, time.January, 15)
	_, err := cli.billingSvc.CreateSubscription(ctx, billing.NewSubscription{
		PlayerID:  ada.ID,
		PlanName:  "Academy monthly",
		Amount:    decimal.RequireFromString("45"),
		Currency:  "EUR",
		Interval:  billing.IntervalMonthly,
		StartDate: start,
	})
	require.NoError(t, err)

	tests := []cliTest{
		{name: "bad time", args: []string{"invoices", "generate", "--at", "yesterday"}, wantErrStr: "--at must be an RFC3339 time (got 'yesterday')"},
		{name: "generate", args: []string{"invoices", "generate", "--at", "2024-02-20T08:00:00Z"}, wantOut: "generated: 2, skipped: 0, failed: 0"},
		{name: "generate again", args: []string{"invoices", "generate", "--at", "2024-02-20T08:00:00Z"}, wantOut: "generated: 0"},
		{name: "nothing overdue yet", args: []string{"invoices", "overdue", "--at", "2024-03-05T08:00:00Z"}, wantOut: "marked overdue: 0"},
		{name: "overdue", args: []string{"invoices", "overdue", "--at", "2024-03-06T08:00:00Z"}, wantOut: "marked overdue: 2"},
		{name: "remind", args: []string{"invoices", "remind", "--at", "2024-03-06T09:00:00Z"}, wantOut: "reminders sent: 2"},
		{name: "reminder interval not elapsed", args: []string{"invoices", "remind", "--at", "2024-03-07T09:00:00Z"}, wantOut: "reminders sent: 0"},
	}
	runCliTests(t, cli, out, tests)

	assert.Len(t, emailsvc.SentMessages.To(parent.Email), 4) // two issued, two reminders
}
