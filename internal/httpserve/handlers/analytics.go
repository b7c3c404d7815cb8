package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/server"
)

func windowStart(c echo.Context) time.Time {
	days := queryInt(c, "days", 30)
	if days <= 0 || days > 365 {
		days = 30
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}

// UsageAnalytics handles GET /api/analytics/usage.
func UsageAnalytics(c echo.Context, a *server.App) error {
	if _, err := requestUser(c); err != nil {
		return err
	}

	since := windowStart(c)
	totals, err := queries.GetUsageTotals(a.DB, since)
	if err != nil {
		return err
	}
	byFeature, err := queries.UsageByFeature(a.DB, since)
	if err != nil {
		return err
	}
	byDay, err := queries.UsageByDay(a.DB, since)
	if err != nil {
		return err
	}
	featureUsage, err := queries.FeatureUsageTotals(a.DB, since)
	if err != nil {
		return err
	}

	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"totals":         totals,
		"by_feature":     byFeature,
		"by_day":         byDay,
		"feature_usage":  featureUsage,
		"window_started": since.Format("2006-01-02"),
	})
}

// CostAnalytics handles GET /api/analytics/costs (admin).
func CostAnalytics(c echo.Context, a *server.App) error {
	since := windowStart(c)

	totals, err := queries.GetUsageTotals(a.DB, since)
	if err != nil {
		return err
	}
	byProvider, err := queries.UsageByProvider(a.DB, since)
	if err != nil {
		return err
	}
	byFeature, err := queries.UsageByFeature(a.DB, since)
	if err != nil {
		return err
	}
	byDay, err := queries.UsageByDay(a.DB, since)
	if err != nil {
		return err
	}
	costToday, err := queries.CostToday(a.DB)
	if err != nil {
		return err
	}

	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"total_cost":  totals.TotalCost,
		"cost_today":  costToday,
		"by_provider": byProvider,
		"by_feature":  byFeature,
		"by_day":      byDay,
	})
}

// ProviderAnalytics handles GET /api/analytics/providers (admin).
func ProviderAnalytics(c echo.Context, a *server.App) error {
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"providers": a.AI.Stats(),
		"order":     a.AI.ProviderNames(),
	})
}

// TeamAnalytics handles GET /api/analytics/team (managers).
func TeamAnalytics(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}
	if !user.CompanyID.Valid {
		return echo.NewHTTPError(http.StatusBadRequest, "user has no company")
	}

	members, err := queries.ListUsersByCompany(a.DB, user.CompanyID.String)
	if err != nil {
		return err
	}

	type memberView struct {
		UserID             string  `json:"user_id"`
		FullName           string  `json:"full_name"`
		Role               string  `json:"role"`
		ScenariosCompleted int     `json:"scenarios_completed"`
		AverageScore       float64 `json:"average_score"`
		CurrentStreak      int     `json:"current_streak_days"`
		Badges             int     `json:"badges"`
	}
	views := make([]*memberView, 0, len(members))
	for _, m := range members {
		progress, err := queries.GetProgress(a.DB, m.ID)
		if err != nil {
			return err
		}
		badges, err := queries.CountBadges(a.DB, m.ID)
		if err != nil {
			return err
		}
		views = append(views, &memberView{
			UserID:             m.ID,
			FullName:           m.FullName,
			Role:               m.Role,
			ScenariosCompleted: progress.TotalScenarios,
			AverageScore:       progress.AverageScore,
			CurrentStreak:      progress.CurrentStreakDays,
			Badges:             badges,
		})
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"company_id": user.CompanyID.String,
		"members":    views,
	})
}

// SystemHealth handles GET /api/analytics/health (admin). Alert thresholds
// follow operations practice for this service: AI success below 95% or
// latency above 5s warns, daily spend above $10 warns, active-user ratio
// below 10% is informational.
func SystemHealth(c echo.Context, a *server.App) error {
	since := time.Now().UTC().AddDate(0, 0, -1)
	totals, err := queries.GetUsageTotals(a.DB, since)
	if err != nil {
		return err
	}
	costToday, err := queries.CostToday(a.DB)
	if err != nil {
		return err
	}
	totalUsers, err := queries.CountUsers(a.DB)
	if err != nil {
		return err
	}
	activeUsers, err := queries.CountActiveUsersSince(a.DB, since)
	if err != nil {
		return err
	}

	type alert struct {
		Severity string `json:"severity"`
		Message  string `json:"message"`
	}
	var alerts []alert

	if totals.TotalRequests > 0 && totals.SuccessRate < 95 {
		alerts = append(alerts, alert{"warning", "AI success rate below 95%"})
	}
	if totals.AvgLatencyMs > 5000 {
		alerts = append(alerts, alert{"warning", "AI average latency above 5000ms"})
	}
	if costToday > 10 {
		alerts = append(alerts, alert{"warning", "daily AI cost above $10"})
	}
	if totalUsers > 0 && float64(activeUsers)/float64(totalUsers) < 0.10 {
		alerts = append(alerts, alert{"info", "active-user ratio below 10%"})
	}

	status := "healthy"
	switch {
	case len(alerts) > 2:
		status = "critical"
	case len(alerts) > 0:
		status = "warning"
	}

	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"status":       status,
		"alerts":       alerts,
		"ai_totals":    totals,
		"cost_today":   costToday,
		"total_users":  totalUsers,
		"active_users": activeUsers,
	})
}
