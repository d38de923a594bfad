package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/core/user"
)

type userApi struct {
	*Server
}

func registerUserAPI(g *echo.Group, s *Server) {
	api := userApi{s}

	ug := g.Group("/users")

	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)
}

type SuccessResponse struct {
	Success string `json:"success"`
}

func (api userApi) resetPassword(ctx echo.Context) error {
	var data user.RequestPasswordReset
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RequestPasswordReset")
	}
	data.Email = core.CleanString(data.Email, true /* lower */)
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	if err := api.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		api.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	if err := api.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
