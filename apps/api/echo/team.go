package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/touchline/academy/core/match"
	"github.com/touchline/academy/core/team"
)

var errTeamNotFoundInCtx = errors.New("team object not found in echo.Context")

type teamApi struct {
	svc      team.Service
	matchSvc match.Service
	validate *validator.Validate
}

func registerTeamAPI(g *echo.Group, auth []echo.MiddlewareFunc, svc team.Service, matchSvc match.Service, validate *validator.Validate) {
	api := teamApi{svc: svc, matchSvc: matchSvc, validate: validate}

	tg := g.Group("/teams", auth...)
	tg.GET("", api.query)
	tg.POST("", api.create, adminMiddleware())

	dg := tg.Group("/:id", teamObjectMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/record", api.record)
}

func (api *teamApi) query(ctx echo.Context) error {
	filter := &team.QueryFilter{
		Search:   queryString(ctx, "search"),
		AgeGroup: queryString(ctx, "age_group"),
		Season:   queryString(ctx, "season"),
		CoachID:  queryString(ctx, "coach"),
		IDs:      getContextScope(ctx).TeamFilter(),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	teams, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying teams")
	}
	if teams == nil {
		teams = []team.Team{}
	}
	return ctx.JSON(http.StatusOK, teams)
}

func (api *teamApi) create(ctx echo.Context) error {
	var data team.NewTeam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating team")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teamApi) retrieve(ctx echo.Context) error {
	t, ok := ctx.Get("object").(team.Team)
	if !ok {
		return errors.Wrap(errTeamNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teamApi) update(ctx echo.Context) error {
	t, ok := ctx.Get("object").(team.Team)
	if !ok {
		return errors.Wrap(errTeamNotFoundInCtx, "retrieving object from context")
	}

	var data team.UpdateTeam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "updating team")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teamApi) destroy(ctx echo.Context) error {
	t, ok := ctx.Get("object").(team.Team)
	if !ok {
		return errors.Wrap(errTeamNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting team")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teamApi) record(ctx echo.Context) error {
	t, ok := ctx.Get("object").(team.Team)
	if !ok {
		return errors.Wrap(errTeamNotFoundInCtx, "retrieving object from context")
	}
	rec, err := api.matchSvc.TeamRecord(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "computing team record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// teamObjectMiddleware loads the team of the `id` path param. Teams out of the user's scope are not found.
func teamObjectMiddleware(svc team.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Param("id")
			if !getContextScope(ctx).CanSeeTeam(id) {
				return errHttpNotFound
			}
			t, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				if errors.Cause(err) == team.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding team by ID")
			}
			ctx.Set("object", t)
			return next(ctx)
		}
	}
}
