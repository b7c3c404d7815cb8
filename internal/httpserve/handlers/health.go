package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/documents"
	"github.com/roofdocs/nexus/internal/server"
)

// Banner handles GET /.
func Banner(c echo.Context, a *server.App) error {
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"name":    a.Config.App.Name,
		"version": a.Config.App.Version,
		"status":  "online",
		"health":  "/health",
		"metrics": "/metrics",
	})
}

// Health handles GET /health: database reachability, AI availability and
// feature flags. Returns 503 when the database is down.
func Health(c echo.Context, a *server.App) error {
	dbStatus := "up"
	start := time.Now()
	if err := a.DB.Ping(); err != nil {
		dbStatus = "down"
	}
	var one int
	if err := a.DB.QueryRow("SELECT 1").Scan(&one); err != nil {
		dbStatus = "down"
	}
	dbLatency := time.Since(start)

	resp := map[string]any{
		"status":  "healthy",
		"version": a.Config.App.Version,
		"uptime":  a.GetUptime(),
		"database": map[string]any{
			"status":     dbStatus,
			"latency_ms": dbLatency.Milliseconds(),
		},
		"ai": map[string]any{
			"available": a.AI.Available(),
			"providers": a.AI.ProviderNames(),
		},
		"features": map[string]bool{
			"rag":                 a.Config.Features.EnableRAG,
			"email_generator":     a.Config.Features.EnableEmailGenerator,
			"document_processing": a.Config.Features.EnableDocumentProcessing,
			"weather_api":         a.Config.Features.EnableWeatherAPI,
			"ocr":                 documents.OCRAvailable(),
		},
	}

	if dbStatus == "down" {
		resp["status"] = "unhealthy"
		return sendJSONResponse(c, http.StatusServiceUnavailable, resp)
	}
	return sendJSONResponse(c, http.StatusOK, resp)
}

// HealthQuick handles GET /health/quick, the liveness probe.
func HealthQuick(c echo.Context, a *server.App) error {
	return sendJSONResponse(c, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthAI handles GET /health/ai with per-provider runtime stats.
func HealthAI(c echo.Context, a *server.App) error {
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"available": a.AI.Available(),
		"providers": a.AI.Stats(),
	})
}
