package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/server"
)

// VerifyWeather handles GET /api/weather/verify?date=&lat=&lon=.
func VerifyWeather(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}
	if !a.Config.Features.EnableWeatherAPI {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "weather verification is disabled")
	}

	date := c.QueryParam("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date parameter is required (YYYY-MM-DD)")
	}
	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return echo.NewHTTPError(http.StatusBadRequest, "lat must be a latitude between -90 and 90")
	}
	lon, err := strconv.ParseFloat(c.QueryParam("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return echo.NewHTTPError(http.StatusBadRequest, "lon must be a longitude between -180 and 180")
	}

	verification, err := a.Weather.VerifyStorm(c.Request().Context(), a.DB, user.ID,
		date, lat, lon, c.QueryParam("event_type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return sendJSONResponse(c, http.StatusOK, verification)
}

// WeatherHistory handles GET /api/weather/history.
func WeatherHistory(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	limit := queryInt(c, "limit", 20)
	events, err := a.Weather.History(a.DB, user.ID, limit)
	if err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{"lookups": events})
}
