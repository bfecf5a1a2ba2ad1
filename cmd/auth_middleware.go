package cmd

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/releaseservice/auth"
)

// APIKeyMiddleware guards an endpoint with a shared key carried in the
// X-API-Key header. An empty configured key disables the check.
func APIKeyMiddleware(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}
			if c.Request().Header.Get("X-API-Key") != apiKey {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}
			return next(c)
		}
	}
}

// AuthMiddleware validates the bearer token on the release API. With auth
// mode none the API is open.
func AuthMiddleware(mode auth.AuthMode, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if mode == auth.AuthModeNone {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set("user_id", claims.UserID)
			c.Set("username", claims.Username)
			c.Set("role", claims.Role)

			return next(c)
		}
	}
}

// AdminOnlyMiddleware restricts an endpoint to admin operators. With auth
// mode none the role check is skipped as well.
func AdminOnlyMiddleware(mode auth.AuthMode) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if mode == auth.AuthModeNone {
				return next(c)
			}
			role, _ := c.Get("role").(string)
			if role != auth.RoleAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
			return next(c)
		}
	}
}
