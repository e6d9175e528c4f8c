package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/training"
	"github.com/touchline/academy/core/user"
)

var errTrainingNotFoundInCtx = errors.New("training object not found in echo.Context")

type trainingApi struct {
	svc       training.Service
	playerSvc player.Service
	usrSvc    user.Service
	validate  *validator.Validate
}

func registerTrainingAPI(
	g *echo.Group,
	auth []echo.MiddlewareFunc,
	svc training.Service,
	playerSvc player.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := trainingApi{svc: svc, playerSvc: playerSvc, usrSvc: usrSvc, validate: validate}

	tg := g.Group("/trainings", auth...)
	tg.GET("", api.query)
	tg.POST("", api.create, staffMiddleware())

	dg := tg.Group("/:id", trainingObjectMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
	dg.GET("/attendance", api.listAttendance)
	dg.PUT("/attendance", api.recordAttendance, staffMiddleware())
	dg.GET("/checkin-token", api.checkInToken, staffMiddleware())
	dg.POST("/checkin", api.checkIn)
}

type CheckInTokenResponse struct {
	TrainingID string `json:"training_id"`
	Token      string `json:"token"`
}

func contextTraining(ctx echo.Context) (training.Training, error) {
	t, ok := ctx.Get("object").(training.Training)
	if !ok {
		return training.Training{}, errors.Wrap(errTrainingNotFoundInCtx, "retrieving object from context")
	}
	return t, nil
}

// managedTraining returns the context training if the user may manage its team.
func managedTraining(ctx echo.Context) (training.Training, error) {
	t, err := contextTraining(ctx)
	if err != nil {
		return training.Training{}, err
	}
	if !getContextScope(ctx).CanManageTeam(t.TeamID) {
		return training.Training{}, errHttpForbidden
	}
	return t, nil
}

func (api *trainingApi) query(ctx echo.Context) error {
	filter := &training.QueryFilter{
		TeamIDs: scopedIDs(queryList(ctx, "team"), getContextScope(ctx).TeamFilter()),
		Status:  queryString(ctx, "status", true /* lower */),
		From:    queryTime(ctx, "from"),
		To:      queryTime(ctx, "to"),
		Limit:   queryInt(ctx, "limit"),
	}

	trainings, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying trainings")
	}
	if trainings == nil {
		trainings = []training.Training{}
	}
	return ctx.JSON(http.StatusOK, trainings)
}

func (api *trainingApi) create(ctx echo.Context) error {
	var data training.NewTraining
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTraining")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if !getContextScope(ctx).CanManageTeam(data.TeamID) {
		return errHttpForbidden
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating training")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *trainingApi) retrieve(ctx echo.Context) error {
	t, err := contextTraining(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *trainingApi) update(ctx echo.Context) error {
	t, err := managedTraining(ctx)
	if err != nil {
		return err
	}

	var data training.UpdateTraining
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTraining")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err = api.svc.Update(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "updating training")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *trainingApi) destroy(ctx echo.Context) error {
	t, err := managedTraining(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting training")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *trainingApi) listAttendance(ctx echo.Context) error {
	t, err := contextTraining(ctx)
	if err != nil {
		return err
	}
	list, err := api.svc.ListAttendance(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}

	// families only see their own lines
	scope := getContextScope(ctx)
	result := make([]training.Attendance, 0, len(list))
	for _, att := range list {
		if scope.CanManageTeam(t.TeamID) || scope.CanSeePlayer(att.PlayerID) {
			result = append(result, att)
		}
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *trainingApi) recordAttendance(ctx echo.Context) error {
	t, err := managedTraining(ctx)
	if err != nil {
		return err
	}

	var data training.RecordAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.RecordAttendance(ctx.Request().Context(), t, data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	if list == nil {
		list = []training.Attendance{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *trainingApi) checkInToken(ctx echo.Context) error {
	t, err := managedTraining(ctx)
	if err != nil {
		return err
	}
	token, err := api.svc.CheckInToken(t)
	if err != nil {
		return errors.Wrap(err, "making check-in token")
	}
	return ctx.JSON(http.StatusOK, CheckInTokenResponse{TrainingID: t.ID, Token: token})
}

// checkIn marks a player present with the token shown at the training.
// Players check themselves in; parents may check in their children.
func (api *trainingApi) checkIn(ctx echo.Context) error {
	t, err := contextTraining(ctx)
	if err != nil {
		return err
	}

	var data training.CheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckIn")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	scope := getContextScope(ctx)
	allowed := append(append([]string{}, scope.OwnPlayerIDs...), scope.ChildIDs...)
	playerID := data.PlayerID
	if playerID == "" {
		if len(scope.OwnPlayerIDs) != 1 {
			return core.NewValidationError(training.ErrNoPlayerForAccount, core.FieldError{
				Field: "player_id",
				Error: training.ErrNoPlayerForAccount.Error(),
			})
		}
		playerID = scope.OwnPlayerIDs[0]
	}
	if !core.StringIn(playerID, allowed...) {
		return errHttpForbidden
	}

	rctx := ctx.Request().Context()
	plr, err := api.playerSvc.GetByID(rctx, playerID)
	if err != nil {
		return errors.Wrap(err, "finding player")
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	att, err := api.svc.CheckIn(rctx, t, data.Token, plr, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "checking in")
	}
	return ctx.JSON(http.StatusOK, att)
}

// trainingObjectMiddleware loads the training of the `id` path param. Trainings of teams out of scope are not found.
func trainingObjectMiddleware(svc training.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			t, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == training.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding training by ID")
			}
			if !getContextScope(ctx).CanSeeTeam(t.TeamID) {
				return errHttpNotFound
			}
			ctx.Set("object", t)
			return next(ctx)
		}
	}
}
