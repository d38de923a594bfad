package echoapi

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/umoja/academy/core/auth"
)

// requireRole lets through principals holding one of roles; others get a 403.
func requireRole(roles ...auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return err
			}
			if err = p.Require(roles...); err != nil {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// requestTimeout bounds the request context; queries abort once it expires.
func requestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if timeout <= 0 {
				return next(ctx)
			}
			c, cancel := context.WithTimeout(ctx.Request().Context(), timeout)
			defer cancel()
			ctx.SetRequest(ctx.Request().WithContext(c))
			return next(ctx)
		}
	}
}
