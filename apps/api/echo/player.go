package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/training"
)

var errPlayerNotFoundInCtx = errors.New("player object not found in echo.Context")

type playerApi struct {
	svc         player.Service
	trainingSvc training.Service
	validate    *validator.Validate
}

func registerPlayerAPI(g *echo.Group, auth []echo.MiddlewareFunc, svc player.Service, trainingSvc training.Service, validate *validator.Validate) {
	api := playerApi{svc: svc, trainingSvc: trainingSvc, validate: validate}

	pg := g.Group("/players", auth...)
	pg.GET("", api.query)
	pg.POST("", api.create, adminMiddleware())

	dg := pg.Group("/:id", playerObjectMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/attendance", api.attendance)
}

// PlayerDetail adds the derived fields to a Player.
type PlayerDetail struct {
	player.Player
	Age      int    `json:"age"`
	AgeGroup string `json:"age_group"`
}

func newPlayerDetail(p player.Player) PlayerDetail {
	today := core.DateOf(core.Now())
	return PlayerDetail{Player: p, Age: p.AgeOn(today), AgeGroup: p.AgeGroupOn(today)}
}

func (api *playerApi) query(ctx echo.Context) error {
	filter := &player.QueryFilter{
		Search:   queryString(ctx, "search"),
		TeamIDs:  queryList(ctx, "team"),
		Status:   queryString(ctx, "status", true /* lower */),
		Position: queryString(ctx, "position", true /* lower */),
		ParentID: queryString(ctx, "parent"),
		IDs:      getContextScope(ctx).PlayerFilter(),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	players, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying players")
	}
	if players == nil {
		players = []player.Player{}
	}
	return ctx.JSON(http.StatusOK, players)
}

func (api *playerApi) create(ctx echo.Context) error {
	var data player.NewPlayer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPlayer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating player")
	}
	return ctx.JSON(http.StatusCreated, newPlayerDetail(p))
}

func (api *playerApi) retrieve(ctx echo.Context) error {
	p, ok := ctx.Get("object").(player.Player)
	if !ok {
		return errors.Wrap(errPlayerNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, newPlayerDetail(p))
}

func (api *playerApi) update(ctx echo.Context) error {
	p, ok := ctx.Get("object").(player.Player)
	if !ok {
		return errors.Wrap(errPlayerNotFoundInCtx, "retrieving object from context")
	}

	var data player.UpdatePlayer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePlayer")
	}

	// coaches only change the sporting details of the players of their teams
	scope := getContextScope(ctx)
	if !scope.All && (!scope.CanManagePlayer(p) || !data.IsCoachOnly()) {
		return errHttpForbidden
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating player")
	}
	return ctx.JSON(http.StatusOK, newPlayerDetail(p))
}

func (api *playerApi) destroy(ctx echo.Context) error {
	p, ok := ctx.Get("object").(player.Player)
	if !ok {
		return errors.Wrap(errPlayerNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting player")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *playerApi) attendance(ctx echo.Context) error {
	p, ok := ctx.Get("object").(player.Player)
	if !ok {
		return errors.Wrap(errPlayerNotFoundInCtx, "retrieving object from context")
	}
	summary, err := api.trainingSvc.AttendanceSummary(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, summary)
}

// playerObjectMiddleware loads the player of the `id` path param. Players out of the user's scope are not found.
func playerObjectMiddleware(svc player.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Param("id")
			if !getContextScope(ctx).CanSeePlayer(id) {
				return errHttpNotFound
			}
			p, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				if errors.Cause(err) == player.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding player by ID")
			}
			ctx.Set("object", p)
			return next(ctx)
		}
	}
}
