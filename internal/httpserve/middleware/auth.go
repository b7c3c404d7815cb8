package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/auth"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/server"
)

// UserContextKey is where RequireAuth stores the authenticated user.
const UserContextKey = "auth_user"

// RequireAuth validates the Bearer access token and loads the user into the
// request context. Inactive accounts are rejected.
func RequireAuth(a *server.App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := auth.ParseToken(a.Config, token, auth.TokenTypeAccess)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			user, err := queries.GetUserByID(a.DB, claims.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
			}
			if !user.IsActive {
				return echo.NewHTTPError(http.StatusForbidden, "account is deactivated")
			}

			c.Set(UserContextKey, user)
			return next(c)
		}
	}
}

// RequireRole gates a route on a minimum role. Must run after RequireAuth.
func RequireRole(minimum string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			if !auth.RoleAtLeast(user.Role, minimum) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient privileges")
			}
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user, or nil outside auth routes.
func CurrentUser(c echo.Context) *db.User {
	user, _ := c.Get(UserContextKey).(*db.User)
	return user
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
