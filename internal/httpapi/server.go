// Package httpapi exposes the engine's login, refresh, logout and password
// operations as a JSON API on echo.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/internal/logger"
	"github.com/MrEthical07/tokenauth/middleware"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Service is the slice of *tokenauth.Engine the API calls.
type Service interface {
	LoginUser(ctx context.Context, email, password string, device tokenauth.DeviceInfo) (tokenauth.LoginResult, error)
	RefreshAuthTokens(ctx context.Context, refreshToken string, device tokenauth.DeviceInfo) (tokenauth.TokenPair, error)
	LogoutUser(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) error
	LookupUser(ctx context.Context, userID string) (tokenauth.UserSummary, error)
	ValidateAccessToken(token string) (tokenauth.IdentityClaims, error)
}

var _ Service = (*tokenauth.Engine)(nil)

type Options struct {
	Logger *slog.Logger
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// Metrics is mounted at GET /metrics when set.
	Metrics   http.Handler
	BodyLimit string
}

// New returns an echo instance with every route registered.
func New(svc Service, opts Options) *echo.Echo {
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = "64KB"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomw.BodyLimit(opts.BodyLimit))
	e.Use(contextLogger(base))
	e.Use(requestLogger())
	e.Use(echo.WrapMiddleware(middleware.ClientInfo(opts.TrustProxy)))

	h := &handler{svc: svc}
	guard := echo.WrapMiddleware(middleware.Guard(svc))

	g := e.Group("/auth")
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/logout", h.logout)
	g.POST("/password/reset", h.requestReset)
	g.POST("/password/reset/confirm", h.confirmReset)
	g.POST("/password/change", h.changePassword, guard)
	g.GET("/me", h.me, guard)

	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}
	return e
}

// contextLogger stores a logger carrying the request id in the request
// context, where the engine and the request logger pick it up.
func contextLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			l := base.With(slog.String("request_id", requestID))
			c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), l)))
			return next(c)
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ctx := c.Request().Context()
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.FromContext(ctx).LogAttrs(ctx, level, "http request", attrs...)
			return nil
		},
	})
}
