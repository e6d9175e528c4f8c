// Package dashboard assembles the role specific home page data.
// Each section is loaded on its own: a failing section is left empty and reported in Warnings.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/access"
	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/match"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/training"
	"github.com/touchline/academy/core/user"
)

const (
	upcomingWindow = 14 * 24 * time.Hour
	upcomingLimit  = 10
)

type Counts struct {
	Users         int `json:"users"`
	Coaches       int `json:"coaches"`
	Parents       int `json:"parents"`
	Teams         int `json:"teams"`
	ActivePlayers int `json:"active_players"`
}

type Dashboard struct {
	Role                string              `json:"role"`
	Counts              *Counts             `json:"counts,omitempty"`
	Teams               []team.Team         `json:"teams,omitempty"`
	Players             []player.Player     `json:"players,omitempty"`
	UpcomingTrainings   []training.Training `json:"upcoming_trainings"`
	UpcomingMatches     []match.Match       `json:"upcoming_matches"`
	TeamRecords         []match.Record      `json:"team_records,omitempty"`
	Billing             *billing.Summary    `json:"billing,omitempty"`
	OverdueInvoices     []billing.Invoice   `json:"overdue_invoices,omitempty"`
	OutstandingInvoices []billing.Invoice   `json:"outstanding_invoices,omitempty"`
	Attendance          map[string]int      `json:"attendance,omitempty"`
	Warnings            []string            `json:"warnings"`
}

type (
	Service interface {
		ForUser(ctx context.Context, usr user.User, scope access.Scope) Dashboard
	}

	Deps struct {
		Users     user.Service
		Teams     team.Service
		Players   player.Service
		Trainings training.Service
		Matches   match.Service
		Billing   billing.Service
		Logger    core.Logger
	}

	service struct {
		Deps
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Users, "Users"),
		vala.IsNotNil(deps.Teams, "Teams"),
		vala.IsNotNil(deps.Players, "Players"),
		vala.IsNotNil(deps.Trainings, "Trainings"),
		vala.IsNotNil(deps.Matches, "Matches"),
		vala.IsNotNil(deps.Billing, "Billing"),
		vala.IsNotNil(deps.Logger, "Logger"),
	).CheckAndPanic()

	return &service{Deps: deps}
}

// section runs load and turns its failure into a warning.
func (svc *service) section(d *Dashboard, usr user.User, name string, load func() error) {
	if err := load(); err != nil {
		svc.Logger.Error(fmt.Sprintf("dashboard section %q for %s: %v", name, usr.ID, err), err, usr)
		d.Warnings = append(d.Warnings, fmt.Sprintf("%s could not be loaded", name))
	}
}

func (svc *service) ForUser(ctx context.Context, usr user.User, scope access.Scope) Dashboard {
	d := Dashboard{Role: usr.PrimaryRole(), Warnings: []string{}}
	now := core.Now()

	svc.section(&d, usr, "upcoming trainings", func() (err error) {
		d.UpcomingTrainings, err = svc.Trainings.Query(ctx, &training.QueryFilter{
			TeamIDs: scope.TeamFilter(),
			Status:  training.StatusScheduled,
			From:    now,
			To:      now.Add(upcomingWindow),
			Limit:   upcomingLimit,
		})
		return err
	})
	svc.section(&d, usr, "upcoming matches", func() (err error) {
		d.UpcomingMatches, err = svc.Matches.Query(ctx, &match.QueryFilter{
			TeamIDs: scope.TeamFilter(),
			Status:  match.StatusScheduled,
			From:    now,
			To:      now.Add(upcomingWindow),
			Limit:   upcomingLimit,
		})
		return err
	})

	switch {
	case usr.IsAdmin():
		svc.adminSections(ctx, &d, usr)
	case usr.IsCoach():
		svc.coachSections(ctx, &d, usr, scope)
	case usr.IsParent():
		svc.parentSections(ctx, &d, usr, scope)
	case usr.IsPlayer():
		svc.playerSections(ctx, &d, usr, scope)
	}
	return d
}

func (svc *service) adminSections(ctx context.Context, d *Dashboard, usr user.User) {
	svc.section(d, usr, "counts", func() error {
		var (
			c   Counts
			err error
		)
		if c.Users, err = svc.Users.Count(ctx, ""); err != nil {
			return err
		}
		if c.Coaches, err = svc.Users.Count(ctx, user.RoleCoach); err != nil {
			return err
		}
		if c.Parents, err = svc.Users.Count(ctx, user.RoleParent); err != nil {
			return err
		}
		if c.Teams, err = svc.Teams.Count(ctx); err != nil {
			return err
		}
		if c.ActivePlayers, err = svc.Players.Count(ctx, player.StatusActive); err != nil {
			return err
		}
		d.Counts = &c
		return nil
	})
	svc.section(d, usr, "billing summary", func() error {
		sum, err := svc.Billing.Summary(ctx, nil)
		if err != nil {
			return err
		}
		d.Billing = &sum
		return nil
	})
	svc.section(d, usr, "overdue invoices", func() (err error) {
		d.OverdueInvoices, err = svc.Billing.QueryInvoices(ctx, &billing.InvoiceFilter{
			Statuses: []string{billing.InvoiceOverdue},
			Limit:    upcomingLimit,
		}, []core.DBOrdering{{Field: "due_date", Ascending: true}})
		return err
	})
}

func (svc *service) coachSections(ctx context.Context, d *Dashboard, usr user.User, scope access.Scope) {
	svc.section(d, usr, "teams", func() (err error) {
		d.Teams, err = svc.Teams.Query(ctx, &team.QueryFilter{IDs: scope.CoachedTeamIDs}, nil)
		return err
	})
	svc.section(d, usr, "team records", func() error {
		records := make([]match.Record, 0, len(scope.CoachedTeamIDs))
		for _, id := range scope.CoachedTeamIDs {
			rec, err := svc.Matches.TeamRecord(ctx, id)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		d.TeamRecords = records
		return nil
	})
}

func (svc *service) parentSections(ctx context.Context, d *Dashboard, usr user.User, scope access.Scope) {
	svc.section(d, usr, "children", func() (err error) {
		d.Players, err = svc.Players.Query(ctx, &player.QueryFilter{IDs: scope.ChildIDs}, nil)
		return err
	})
	svc.section(d, usr, "outstanding invoices", func() (err error) {
		d.OutstandingInvoices, err = svc.Billing.QueryInvoices(ctx, &billing.InvoiceFilter{
			PlayerIDs: scope.BillingFilter(),
			Statuses:  []string{billing.InvoicePending, billing.InvoicePartiallyPaid, billing.InvoiceOverdue},
		}, []core.DBOrdering{{Field: "due_date", Ascending: true}})
		return err
	})
	svc.section(d, usr, "billing summary", func() error {
		sum, err := svc.Billing.Summary(ctx, scope.BillingFilter())
		if err != nil {
			return err
		}
		d.Billing = &sum
		return nil
	})
}

func (svc *service) playerSections(ctx context.Context, d *Dashboard, usr user.User, scope access.Scope) {
	svc.section(d, usr, "profile", func() (err error) {
		d.Players, err = svc.Players.Query(ctx, &player.QueryFilter{IDs: scope.OwnPlayerIDs}, nil)
		return err
	})
	svc.section(d, usr, "attendance", func() error {
		total := make(map[string]int)
		for _, id := range scope.OwnPlayerIDs {
			summary, err := svc.Trainings.AttendanceSummary(ctx, id)
			if err != nil {
				return err
			}
			for status, n := range summary {
				total[status] += n
			}
		}
		d.Attendance = total
		return nil
	})
}
