package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/umoja/academy/core"
)

// bind decodes the request body into data and validates it.
func (s *Server) bind(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	return s.Validate.Struct(data)
}

func paramID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// parseDate reads a YYYY-MM-DD value; an empty value is the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t, nil
}

func queryDate(ctx echo.Context, name string) (time.Time, error) {
	return parseDate(ctx.QueryParam(name))
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
