package httpapi

import (
	"net/http"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/middleware"
	"github.com/labstack/echo/v4"
)

type handler struct {
	svc Service
}

// bind decodes and validates the body. Decode failures become a 400
// echo.HTTPError.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return c.Validate(dst)
}

func (h *handler) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.LoginUser(c.Request().Context(), req.Email, req.Password, tokenauth.DeviceInfo{DeviceID: req.DeviceID})
	if err != nil {
		return err
	}

	out := ok()
	out.User = &res.User
	out.Tokens = res.Tokens
	out.RequiresMFA = res.RequiresMFA
	out.MFAToken = res.MFAToken
	return c.JSON(http.StatusOK, out)
}

func (h *handler) refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.svc.RefreshAuthTokens(c.Request().Context(), req.RefreshToken, tokenauth.DeviceInfo{DeviceID: req.DeviceID})
	if err != nil {
		return err
	}
	out := ok()
	out.Tokens = &pair
	return c.JSON(http.StatusOK, out)
}

func (h *handler) logout(c echo.Context) error {
	var req logoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.LogoutUser(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *handler) changePassword(c echo.Context) error {
	claims, found := middleware.ClaimsFromContext(c.Request().Context())
	if !found {
		return tokenauth.ErrTokenInvalid
	}
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok())
}

// requestReset answers 200 whether or not the email exists.
func (h *handler) requestReset(c echo.Context) error {
	var req resetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *handler) confirmReset(c echo.Context) error {
	var req resetConfirmRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ConfirmPasswordReset(c.Request().Context(), req.Email, req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *handler) me(c echo.Context) error {
	claims, found := middleware.ClaimsFromContext(c.Request().Context())
	if !found {
		return tokenauth.ErrTokenInvalid
	}
	user, err := h.svc.LookupUser(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}
	out := ok()
	out.User = &user
	out.SessionID = claims.SessionID
	return c.JSON(http.StatusOK, out)
}
