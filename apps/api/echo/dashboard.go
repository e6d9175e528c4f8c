package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/touchline/academy/core/dashboard"
	"github.com/touchline/academy/core/user"
)

type dashboardApi struct {
	svc    dashboard.Service
	usrSvc user.Service
}

func registerDashboardAPI(g *echo.Group, auth []echo.MiddlewareFunc, svc dashboard.Service, usrSvc user.Service) {
	api := dashboardApi{svc: svc, usrSvc: usrSvc}
	g.GET("/dashboard", api.retrieve, auth...)
}

// retrieve never fails on a single section: see dashboard.Dashboard.Warnings.
func (api *dashboardApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	d := api.svc.ForUser(ctx.Request().Context(), usr, getContextScope(ctx))
	return ctx.JSON(http.StatusOK, d)
}
