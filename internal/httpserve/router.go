// Package httpserve wires the echo router: middleware chain, error
// handling and every API route group.
package httpserve

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/httpserve/handlers"
	"github.com/roofdocs/nexus/internal/httpserve/middleware"
	"github.com/roofdocs/nexus/internal/server"
	"github.com/roofdocs/nexus/pkg/logger"
)

// NewRouter builds the echo instance with the full middleware chain and
// every route registered.
func NewRouter(a *server.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(a)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.Config.CORSOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(echomw.GzipWithConfig(echomw.GzipConfig{MinLength: 1024}))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", a.Config.Upload.MaxSizeMB)))
	e.Use(middleware.SecureHeaders(a))
	// Request metrics get their own registry so building a second router
	// never collides with the default registrar. The AI counters live on
	// the default registry and are gathered alongside.
	registry := prometheus.NewRegistry()
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "nexus",
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(middleware.RateLimit(a))

	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{registry, prometheus.DefaultGatherer},
	}))

	RegisterRoutes(e, a)
	return e
}

// RegisterRoutes binds every endpoint onto the echo instance.
func RegisterRoutes(e *echo.Echo, a *server.App) *echo.Echo {
	bind := func(h func(echo.Context, *server.App) error) echo.HandlerFunc {
		return func(c echo.Context) error { return h(c, a) }
	}

	e.GET("/", bind(handlers.Banner))
	e.GET("/health", bind(handlers.Health))
	e.GET("/health/quick", bind(handlers.HealthQuick))
	e.GET("/health/ai", bind(handlers.HealthAI))

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", bind(handlers.Register))
	authGroup.POST("/login", bind(handlers.Login))
	authGroup.POST("/refresh", bind(handlers.Refresh))

	authed := api.Group("", middleware.RequireAuth(a))
	authed.GET("/auth/me", bind(handlers.Me))
	authed.PUT("/auth/me", bind(handlers.UpdateProfile))
	authed.POST("/auth/change-password", bind(handlers.ChangePassword))

	susanGroup := authed.Group("/susan")
	susanGroup.POST("/chat", bind(handlers.SusanChat))
	susanGroup.POST("/route", bind(handlers.SusanRoute))
	susanGroup.GET("/conversations", bind(handlers.ListConversations))
	susanGroup.GET("/conversations/:id", bind(handlers.GetConversation))
	susanGroup.DELETE("/conversations/:id", bind(handlers.DeleteConversation))
	susanGroup.GET("/knowledge/search", bind(handlers.SearchKnowledge))
	susanGroup.POST("/knowledge", bind(handlers.AddKnowledge), middleware.RequireRole(db.RoleAdmin))
	susanGroup.GET("/knowledge", bind(handlers.ListKnowledge), middleware.RequireRole(db.RoleAdmin))
	susanGroup.DELETE("/knowledge/:id", bind(handlers.DeleteKnowledge), middleware.RequireRole(db.RoleAdmin))

	agnesGroup := authed.Group("/agnes")
	agnesGroup.GET("/scenarios", bind(handlers.ListScenarios))
	agnesGroup.GET("/scenarios/recommended", bind(handlers.RecommendedScenario))
	agnesGroup.POST("/sessions", bind(handlers.StartSession))
	agnesGroup.GET("/sessions/:id", bind(handlers.GetSession))
	agnesGroup.POST("/sessions/:id/messages", bind(handlers.SessionMessage))
	agnesGroup.POST("/sessions/:id/complete", bind(handlers.CompleteSession))
	agnesGroup.GET("/progress", bind(handlers.Progress))
	agnesGroup.GET("/badges", bind(handlers.Badges))
	agnesGroup.GET("/leaderboard", bind(handlers.LeaderboardHandler))
	agnesGroup.GET("/daily-challenge", bind(handlers.DailyChallenge))

	emailGroup := authed.Group("/email")
	emailGroup.GET("/templates", bind(handlers.EmailTemplates))
	emailGroup.POST("/generate", bind(handlers.GenerateEmail))
	emailGroup.GET("/history", bind(handlers.EmailHistory))

	docGroup := authed.Group("/documents")
	docGroup.POST("/upload", bind(handlers.UploadDocument))
	docGroup.POST("/ocr", bind(handlers.OCRImage))
	docGroup.GET("", bind(handlers.ListDocuments))
	docGroup.GET("/:id", bind(handlers.GetDocument))
	docGroup.DELETE("/:id", bind(handlers.DeleteDocument))

	weatherGroup := authed.Group("/weather")
	weatherGroup.GET("/verify", bind(handlers.VerifyWeather))
	weatherGroup.GET("/history", bind(handlers.WeatherHistory))

	analyticsGroup := authed.Group("/analytics")
	analyticsGroup.GET("/usage", bind(handlers.UsageAnalytics))
	analyticsGroup.GET("/costs", bind(handlers.CostAnalytics), middleware.RequireRole(db.RoleAdmin))
	analyticsGroup.GET("/providers", bind(handlers.ProviderAnalytics), middleware.RequireRole(db.RoleAdmin))
	analyticsGroup.GET("/team", bind(handlers.TeamAnalytics), middleware.RequireRole(db.RoleManager))
	analyticsGroup.GET("/health", bind(handlers.SystemHealth), middleware.RequireRole(db.RoleAdmin))

	return e
}

// errorHandler keeps HTTPError codes, turns everything else into a 500 and
// hides internal detail in production.
func errorHandler(a *server.App) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, map[string]any{"error": he.Message})
			return
		}

		logger.Error("Unhandled request error", "path", c.Path(), "error", err)
		detail := err.Error()
		if a.Config.IsProduction() {
			detail = "internal server error"
		}
		_ = c.JSON(http.StatusInternalServerError, map[string]any{"error": detail})
	}
}
