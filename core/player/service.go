package player

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/user"
)

var (
	ErrNotFound    = errors.New("player not found")
	ErrJerseyTaken = errors.New("jersey number already taken in this team")
	ErrHasInvoices = errors.New("player has invoices and cannot be deleted")

	errInvalidTeam   = "team not found"
	errInvalidParent = "parent must be an active user with a parent role"
	errInvalidUser   = "account must be an active user with a player role"
)

type (
	Repository interface {
		CreatePlayer(ctx context.Context, p Player) (Player, error)
		QueryPlayers(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]Player, error)
		GetPlayer(ctx context.Context, id string, exec ...core.DBExecutor) (Player, error)
		UpdatePlayer(ctx context.Context, p Player) (Player, error)
		DeletePlayer(ctx context.Context, id string) error
		CountPlayers(ctx context.Context, status string) (int, error)
		// JerseyTaken reports whether another player of teamID wears number.
		JerseyTaken(ctx context.Context, teamID string, number int, excludedID string) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, np NewPlayer) (Player, error)
		Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Player, error)
		GetByID(ctx context.Context, id string) (Player, error)
		Update(ctx context.Context, p Player, up UpdatePlayer) (Player, error)
		Delete(ctx context.Context, id string) error
		Count(ctx context.Context, status string) (int, error)
	}

	service struct {
		repo    Repository
		teamSvc team.Service
		usrSvc  user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, teamSvc team.Service, usrSvc user.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(teamSvc, "teamSvc"),
		vala.IsNotNil(usrSvc, "usrSvc"),
	).CheckAndPanic()

	return &service{repo: repo, teamSvc: teamSvc, usrSvc: usrSvc}
}

func (svc *service) checkTeam(ctx context.Context, teamID string) error {
	if teamID == "" {
		return nil
	}
	if _, err := svc.teamSvc.GetByID(ctx, teamID); err != nil {
		if errors.Cause(err) == team.ErrNotFound {
			return core.NewFieldError("team_id", errInvalidTeam)
		}
		return errors.Wrap(err, "finding team")
	}
	return nil
}

// checkUser verifies userID is an active user with a role starting with rolePrefix.
func (svc *service) checkUser(ctx context.Context, field, userID, rolePrefix, msg string) error {
	if userID == "" {
		return nil
	}
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldError(field, msg)
		}
		return errors.Wrap(err, "finding user")
	}
	if !usr.IsActive || !usr.RoleStartsWith(rolePrefix) {
		return core.NewFieldError(field, msg)
	}
	return nil
}

func (svc *service) checkJersey(ctx context.Context, p Player) error {
	if !p.TeamID.Valid || !p.JerseyNumber.Valid {
		return nil
	}
	taken, err := svc.repo.JerseyTaken(ctx, p.TeamID.String, p.JerseyNumber.Int, p.ID)
	if err != nil {
		return errors.Wrap(err, "checking jersey number")
	}
	if taken {
		return core.NewValidationError(ErrJerseyTaken, core.FieldError{Field: "jersey_number", Error: ErrJerseyTaken.Error()})
	}
	return nil
}

func (svc *service) checkReferences(ctx context.Context, p Player) error {
	if err := svc.checkTeam(ctx, p.TeamID.String); err != nil {
		return err
	}
	if err := svc.checkUser(ctx, "parent_id", p.ParentID.String, user.RoleParent, errInvalidParent); err != nil {
		return err
	}
	if err := svc.checkUser(ctx, "user_id", p.UserID.String, user.RolePlayer, errInvalidUser); err != nil {
		return err
	}
	return svc.checkJersey(ctx, p)
}

func (svc *service) Create(ctx context.Context, np NewPlayer) (Player, error) {
	now := core.Now()
	p := Player{
		ID:        core.NewID(),
		FirstName: np.FirstName,
		LastName:  np.LastName,
		BirthDate: np.BirthDate,
		Position:  np.Position,
		Status:    np.Status,
		TeamID:    null.NewString(np.TeamID, np.TeamID != ""),
		ParentID:  null.NewString(np.ParentID, np.ParentID != ""),
		UserID:    null.NewString(np.UserID, np.UserID != ""),
		Notes:     np.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if np.JerseyNumber != nil && *np.JerseyNumber > 0 {
		p.JerseyNumber = null.IntFrom(*np.JerseyNumber)
	}
	if err := svc.checkReferences(ctx, p); err != nil {
		return Player{}, err
	}
	return svc.repo.CreatePlayer(ctx, p)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Player, error) {
	return svc.repo.QueryPlayers(ctx, filter, orderings)
}

func (svc *service) GetByID(ctx context.Context, id string) (Player, error) {
	if !core.IsValidID(id) {
		return Player{}, ErrNotFound
	}
	return svc.repo.GetPlayer(ctx, id)
}

func nullRef(s string) null.String {
	s = core.CleanString(s)
	return null.NewString(s, s != "")
}

func (svc *service) Update(ctx context.Context, p Player, up UpdatePlayer) (Player, error) {
	if up.FirstName != nil && core.CleanString(*up.FirstName) != "" {
		p.FirstName = core.CleanString(*up.FirstName)
	}
	if up.LastName != nil && core.CleanString(*up.LastName) != "" {
		p.LastName = core.CleanString(*up.LastName)
	}
	if up.BirthDate != nil && !up.BirthDate.IsZero() {
		p.BirthDate = *up.BirthDate
	}
	if up.Position != nil {
		p.Position = *up.Position
	}
	if up.JerseyNumber != nil {
		p.JerseyNumber = null.NewInt(*up.JerseyNumber, *up.JerseyNumber > 0)
	}
	if up.Status != nil && *up.Status != "" {
		p.Status = *up.Status
	}
	if up.TeamID != nil {
		p.TeamID = nullRef(*up.TeamID)
	}
	if up.ParentID != nil {
		p.ParentID = nullRef(*up.ParentID)
	}
	if up.UserID != nil {
		p.UserID = nullRef(*up.UserID)
	}
	if up.Notes != nil {
		p.Notes = core.CleanString(*up.Notes)
	}
	if err := svc.checkReferences(ctx, p); err != nil {
		return Player{}, err
	}
	p.UpdatedAt = core.Now()
	return svc.repo.UpdatePlayer(ctx, p)
}

// Delete removes a player. Players with billing history are kept, mark them inactive instead.
func (svc *service) Delete(ctx context.Context, id string) error {
	err := svc.repo.DeletePlayer(ctx, id)
	if errors.Cause(err) == ErrHasInvoices {
		return core.NewValidationError(ErrHasInvoices)
	}
	return err
}

func (svc *service) Count(ctx context.Context, status string) (int, error) {
	return svc.repo.CountPlayers(ctx, status)
}
