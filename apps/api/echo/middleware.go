package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mwalimu/core/user"
	metricsvc "github.com/trezcool/mwalimu/services/metrics"
)

// roleMiddleware only lets through users holding one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return err
			}
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc   { return roleMiddleware(user.RoleAdmin) }
func tutorMiddleware() echo.MiddlewareFunc   { return roleMiddleware(user.RoleTutor) }
func studentMiddleware() echo.MiddlewareFunc { return roleMiddleware(user.RoleStudent) }

// metricsMiddleware records every request by method, route & status.
func metricsMiddleware(m *metricsvc.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// let the error handler write the final status
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTPRequest(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
