// Package access resolves which teams and players a user may see or manage.
package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/user"
)

// Scope lists the resources visible to a user. All is set for admins, in which case the ID lists are nil.
type Scope struct {
	All bool
	// TeamIDs are the teams the user can see: coached teams, teams of their children or their own team.
	TeamIDs []string
	// PlayerIDs are the players the user can see.
	PlayerIDs []string
	// CoachedTeamIDs are the teams the user may manage as a coach.
	CoachedTeamIDs []string
	// ChildIDs are the players the user is the parent of.
	ChildIDs []string
	// OwnPlayerIDs are the players linked to the user account.
	OwnPlayerIDs []string
}

func (s Scope) CanSeeTeam(id string) bool {
	return s.All || core.StringIn(id, s.TeamIDs...)
}

func (s Scope) CanSeePlayer(id string) bool {
	return s.All || core.StringIn(id, s.PlayerIDs...)
}

func (s Scope) CanManageTeam(id string) bool {
	return s.All || core.StringIn(id, s.CoachedTeamIDs...)
}

// CanManagePlayer reports whether the user coaches the team of p.
func (s Scope) CanManagePlayer(p player.Player) bool {
	return s.All || (p.TeamID.Valid && s.CanManageTeam(p.TeamID.String))
}

// TeamFilter returns the team restriction to use in queries: nil for everything, a possibly empty list otherwise.
func (s Scope) TeamFilter() []string {
	if s.All {
		return nil
	}
	return nonNil(s.TeamIDs)
}

// PlayerFilter returns the player restriction to use in queries: nil for everything, a possibly empty list otherwise.
func (s Scope) PlayerFilter() []string {
	if s.All {
		return nil
	}
	return nonNil(s.PlayerIDs)
}

// BillingFilter restricts billing to the children of a parent and the user's own player records.
func (s Scope) BillingFilter() []string {
	if s.All {
		return nil
	}
	return nonNil(append(append([]string{}, s.ChildIDs...), s.OwnPlayerIDs...))
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

type set struct {
	ids  []string
	seen map[string]bool
}

func (s *set) add(ids ...string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	for _, id := range ids {
		if id != "" && !s.seen[id] {
			s.seen[id] = true
			s.ids = append(s.ids, id)
		}
	}
}

// Resolve builds the scope of usr. Roles combine: a coach who is also a parent sees both their teams and their children.
func Resolve(ctx context.Context, usr user.User, teamSvc team.Service, playerSvc player.Service) (Scope, error) {
	if usr.IsAdmin() {
		return Scope{All: true}, nil
	}

	var teams, players, coached, children, own set
	if usr.IsCoach() {
		ts, err := teamSvc.Query(ctx, &team.QueryFilter{CoachID: usr.ID}, nil)
		if err != nil {
			return Scope{}, errors.Wrap(err, "querying coached teams")
		}
		for _, t := range ts {
			coached.add(t.ID)
		}
		teams.add(coached.ids...)
		if len(coached.ids) > 0 {
			ps, err := playerSvc.Query(ctx, &player.QueryFilter{TeamIDs: coached.ids}, nil)
			if err != nil {
				return Scope{}, errors.Wrap(err, "querying coached players")
			}
			for _, p := range ps {
				players.add(p.ID)
			}
		}
	}

	linked := func(filter *player.QueryFilter, into *set) error {
		ps, err := playerSvc.Query(ctx, filter, nil)
		if err != nil {
			return err
		}
		for _, p := range ps {
			into.add(p.ID)
			players.add(p.ID)
			teams.add(p.TeamID.String)
		}
		return nil
	}
	if usr.IsParent() {
		if err := linked(&player.QueryFilter{ParentID: usr.ID}, &children); err != nil {
			return Scope{}, errors.Wrap(err, "querying children")
		}
	}
	if usr.IsPlayer() {
		if err := linked(&player.QueryFilter{UserID: usr.ID}, &own); err != nil {
			return Scope{}, errors.Wrap(err, "querying own player records")
		}
	}

	return Scope{
		TeamIDs:        nonNil(teams.ids),
		PlayerIDs:      nonNil(players.ids),
		CoachedTeamIDs: nonNil(coached.ids),
		ChildIDs:       nonNil(children.ids),
		OwnPlayerIDs:   nonNil(own.ids),
	}, nil
}
