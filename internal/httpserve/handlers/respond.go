// Package handlers implements every API endpoint. Handlers take the echo
// context plus the app and are bound by the router.
package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/httpserve/middleware"
)

// sendJSONResponse is a helper function to send JSON responses
func sendJSONResponse(c echo.Context, statusCode int, response interface{}) error {
	return c.JSON(statusCode, response)
}

// httpError maps storage errors onto HTTP codes. Not-found stays 404,
// everything else bubbles up to the global handler.
func httpError(err error, notFoundMsg string) error {
	if errors.Is(err, queries.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	}
	return err
}

// requestUser returns the authenticated user. Auth middleware guarantees it
// on the routes that call this.
func requestUser(c echo.Context) (*db.User, error) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	return user, nil
}
