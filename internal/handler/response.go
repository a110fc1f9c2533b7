package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/middleware"
	"github.com/iliyamo/fixmybike-booking/internal/service"
)

// ok writes {"success": true, "message": msg, ...data}.  An empty msg is
// left out.
func ok(c echo.Context, status int, msg string, data echo.Map) error {
	body := echo.Map{"success": true}
	if msg != "" {
		body["message"] = msg
	}
	for k, v := range data {
		body[k] = v
	}
	return c.JSON(status, body)
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrValidation, apperr.ErrInvalidTransition, apperr.ErrInvalidState:
		return http.StatusBadRequest
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders every error returned by a handler or middleware as
// the JSON envelope.  Unclassified errors become a 500 whose details are
// only shown outside production.
func ErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		body := echo.Map{"success": false}

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			body["message"] = fmt.Sprint(he.Message)
			if status == http.StatusNotFound {
				body["message"] = "Route not found"
			}
		case apperr.Kind(err) != nil:
			status = statusOf(err)
			body["message"] = apperr.Message(err)
		default:
			logger.Error(fmt.Sprintf("%s %s", c.Request().Method, c.Path()), err)
			body["message"] = "Internal server error"
			if !production {
				body["details"] = err.Error()
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error("write error response", werr)
		}
	}
}

// Validator plugs go-playground/validator into echo.  A field may carry a
// `msg` tag with the message to return when it fails.
type Validator struct {
	v *validator.Validate
}

// NewValidator reports fields by their json names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate returns an apperr validation error describing the first
// failed field.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.New(apperr.ErrValidation, err.Error())
	}
	return apperr.New(apperr.ErrValidation, fieldMessage(i, verrs[0]))
}

func fieldMessage(i any, fe validator.FieldError) string {
	t := reflect.TypeOf(i)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if m := f.Tag.Get("msg"); m != "" {
				return m
			}
		}
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Please enter a valid email"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "gt", "gte", "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max", "lte":
		return fe.Field() + " must be at most " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.New(apperr.ErrValidation, "Invalid request body")
	}
	return c.Validate(req)
}

// actor is the authenticated caller.
func actor(c echo.Context) service.Actor {
	return service.Actor{ID: middleware.UserID(c), Role: middleware.Role(c), Username: middleware.Username(c)}
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name, what string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Newf(apperr.ErrValidation, "Invalid %s ID format", what)
	}
	return id, nil
}

func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return def
}
