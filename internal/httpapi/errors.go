package httpapi

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/internal/logger"
	"github.com/labstack/echo/v4"
)

// errorHandler renders every handler error as a {success:false} result.
// Messages come from the public error values only; causes of internal
// failures were already logged by the engine.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := classify(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request().Context()).LogAttrs(c.Request().Context(), slog.LevelError,
			"request failed", slog.String("error", err.Error()))
	}

	var rl *tokenauth.RateLimitedError
	if errors.As(err, &rl) {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}

func classify(err error) (int, result) {
	fail := func(status int, code string, msg string) (int, result) {
		return status, result{Error: msg, Code: code}
	}

	var reqErr RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, result{Error: "invalid request body", Code: "validation_error", Details: reqErr.Errors}
	}
	var valErr *tokenauth.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, result{
			Error:   valErr.Error(),
			Code:    "validation_error",
			Details: []FieldError{{Field: valErr.Field, Tag: "policy", Message: valErr.Reason}},
		}
	}

	switch {
	case errors.Is(err, tokenauth.ErrInvalidCredentials):
		return fail(http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, tokenauth.ErrAccountLocked):
		return fail(http.StatusLocked, "account_locked", err.Error())
	case errors.Is(err, tokenauth.ErrEmailNotVerified):
		return fail(http.StatusForbidden, "email_not_verified", err.Error())
	case errors.Is(err, tokenauth.ErrAccountDisabled):
		return fail(http.StatusForbidden, "account_disabled", err.Error())
	case errors.Is(err, tokenauth.ErrTokenExpired):
		return fail(http.StatusUnauthorized, "token_expired", err.Error())
	case errors.Is(err, tokenauth.ErrTokenInvalid):
		return fail(http.StatusUnauthorized, "invalid_token", err.Error())
	case errors.Is(err, tokenauth.ErrLoginRateLimited), errors.Is(err, tokenauth.ErrPasswordResetRateLimited):
		return fail(http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, tokenauth.ErrPasswordResetInvalid):
		return fail(http.StatusBadRequest, "reset_invalid", err.Error())
	case errors.Is(err, tokenauth.ErrPasswordReuse):
		return fail(http.StatusUnprocessableEntity, "password_reuse", err.Error())
	case errors.Is(err, tokenauth.ErrUserNotFound):
		return fail(http.StatusNotFound, "user_not_found", err.Error())
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, _ := httpErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		return fail(httpErr.Code, "http_error", msg)
	}

	return fail(http.StatusInternalServerError, "internal_error", "internal error")
}
