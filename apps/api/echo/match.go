package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/touchline/academy/core/match"
)

var errMatchNotFoundInCtx = errors.New("match object not found in echo.Context")

type matchApi struct {
	svc      match.Service
	validate *validator.Validate
}

func registerMatchAPI(g *echo.Group, auth []echo.MiddlewareFunc, svc match.Service, validate *validator.Validate) {
	api := matchApi{svc: svc, validate: validate}

	mg := g.Group("/matches", auth...)
	mg.GET("", api.query)
	mg.POST("", api.create, staffMiddleware())

	dg := mg.Group("/:id", matchObjectMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
	dg.POST("/result", api.recordResult, staffMiddleware())
}

// managedMatch returns the context match if the user may manage its team.
func managedMatch(ctx echo.Context) (match.Match, error) {
	m, ok := ctx.Get("object").(match.Match)
	if !ok {
		return match.Match{}, errors.Wrap(errMatchNotFoundInCtx, "retrieving object from context")
	}
	if !getContextScope(ctx).CanManageTeam(m.TeamID) {
		return match.Match{}, errHttpForbidden
	}
	return m, nil
}

func (api *matchApi) query(ctx echo.Context) error {
	filter := &match.QueryFilter{
		TeamIDs: scopedIDs(queryList(ctx, "team"), getContextScope(ctx).TeamFilter()),
		Status:  queryString(ctx, "status", true /* lower */),
		From:    queryTime(ctx, "from"),
		To:      queryTime(ctx, "to"),
		Limit:   queryInt(ctx, "limit"),
	}

	matches, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying matches")
	}
	if matches == nil {
		matches = []match.Match{}
	}
	return ctx.JSON(http.StatusOK, matches)
}

func (api *matchApi) create(ctx echo.Context) error {
	var data match.NewMatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if !getContextScope(ctx).CanManageTeam(data.TeamID) {
		return errHttpForbidden
	}

	m, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating match")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *matchApi) retrieve(ctx echo.Context) error {
	m, ok := ctx.Get("object").(match.Match)
	if !ok {
		return errors.Wrap(errMatchNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *matchApi) update(ctx echo.Context) error {
	m, err := managedMatch(ctx)
	if err != nil {
		return err
	}

	var data match.UpdateMatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err = api.svc.Update(ctx.Request().Context(), m, data)
	if err != nil {
		return errors.Wrap(err, "updating match")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *matchApi) recordResult(ctx echo.Context) error {
	m, err := managedMatch(ctx)
	if err != nil {
		return err
	}

	var data match.MatchResult
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MatchResult")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err = api.svc.RecordResult(ctx.Request().Context(), m, data)
	if err != nil {
		return errors.Wrap(err, "recording result")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *matchApi) destroy(ctx echo.Context) error {
	m, err := managedMatch(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), m.ID); err != nil {
		return errors.Wrap(err, "deleting match")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// matchObjectMiddleware loads the match of the `id` path param. Matches of teams out of scope are not found.
func matchObjectMiddleware(svc match.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == match.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding match by ID")
			}
			if !getContextScope(ctx).CanSeeTeam(m.TeamID) {
				return errHttpNotFound
			}
			ctx.Set("object", m)
			return next(ctx)
		}
	}
}
