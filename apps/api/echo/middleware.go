package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/touchline/academy/core/access"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/team"
	"github.com/touchline/academy/core/user"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware lets admins and coaches through.
func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || claims.IsCoach {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// scopeMiddleware loads the context user, rejects deactivated accounts and resolves what they can see.
func scopeMiddleware(usrSvc user.Service, teamSvc team.Service, playerSvc player.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			scope, err := access.Resolve(ctx.Request().Context(), usr, teamSvc, playerSvc)
			if err != nil {
				return errors.Wrap(err, "resolving access scope")
			}
			ctx.Set(contextScopeKey, scope)
			return next(ctx)
		}
	}
}
