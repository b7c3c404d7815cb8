package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/agnes"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/server"
	"github.com/roofdocs/nexus/pkg/validation"
)

type startSessionRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type sessionMessageRequest struct {
	Message string `json:"message"`
}

// ListScenarios handles GET /api/agnes/scenarios.
func ListScenarios(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	scenarios, err := queries.ListScenarios(a.DB, c.QueryParam("category"), c.QueryParam("difficulty"))
	if err != nil {
		return err
	}
	completed, err := queries.CompletedScenarioIDs(a.DB, user.ID)
	if err != nil {
		return err
	}

	type scenarioView struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Difficulty  string   `json:"difficulty"`
		Objectives  []string `json:"objectives"`
		Completed   bool     `json:"completed"`
	}
	views := make([]*scenarioView, 0, len(scenarios))
	for _, s := range scenarios {
		var objectives []string
		if err := json.Unmarshal([]byte(s.Objectives), &objectives); err != nil {
			objectives = nil
		}
		views = append(views, &scenarioView{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			Category:    s.Category,
			Difficulty:  s.Difficulty,
			Objectives:  objectives,
			Completed:   completed[s.ID],
		})
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"scenarios": views,
		"total":     len(views),
	})
}

// RecommendedScenario handles GET /api/agnes/scenarios/recommended.
func RecommendedScenario(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	rec, err := agnes.RecommendNext(a.DB, user.ID)
	if err != nil {
		return httpError(err, "no scenarios available")
	}
	return sendJSONResponse(c, http.StatusOK, rec)
}

// StartSession handles POST /api/agnes/sessions.
func StartSession(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	req := new(startSessionRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !validation.ValidScenarioID(req.ScenarioID) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid scenario id")
	}

	if active, err := queries.GetActiveSession(a.DB, user.ID); err == nil {
		return echo.NewHTTPError(http.StatusConflict,
			"an active session already exists: "+active.ID)
	} else if err != queries.ErrNotFound {
		return err
	}

	start, err := a.Training.StartSession(c.Request().Context(), user.ID, req.ScenarioID)
	if err != nil {
		return httpError(err, "scenario not found")
	}
	return sendJSONResponse(c, http.StatusCreated, start)
}

// GetSession handles GET /api/agnes/sessions/:id.
func GetSession(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	session, err := queries.GetSession(a.DB, c.Param("id"), user.ID)
	if err != nil {
		return httpError(err, "session not found")
	}
	messages, err := queries.ListSessionMessages(a.DB, session.ID)
	if err != nil {
		return err
	}

	type messageView struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		CreatedAt string `json:"created_at"`
	}
	views := make([]*messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, &messageView{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"session":  session,
		"messages": views,
	})
}

// SessionMessage handles POST /api/agnes/sessions/:id/messages.
func SessionMessage(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	req := new(sessionMessageRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	if err := requireActiveSession(a, c.Param("id"), user.ID); err != nil {
		return err
	}

	turn, err := a.Training.ProcessMessage(c.Request().Context(), user.ID, c.Param("id"), message)
	if err != nil {
		return httpError(err, "session not found")
	}
	return sendJSONResponse(c, http.StatusOK, turn)
}

// CompleteSession handles POST /api/agnes/sessions/:id/complete.
func CompleteSession(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	if err := requireActiveSession(a, c.Param("id"), user.ID); err != nil {
		return err
	}

	result, err := a.Training.CompleteSession(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return httpError(err, "session not found")
	}
	return sendJSONResponse(c, http.StatusOK, result)
}

func requireActiveSession(a *server.App, sessionID, userID string) error {
	session, err := queries.GetSession(a.DB, sessionID, userID)
	if err != nil {
		return httpError(err, "session not found")
	}
	if session.Status != db.SessionActive {
		return echo.NewHTTPError(http.StatusConflict, "session is "+session.Status)
	}
	return nil
}

// Progress handles GET /api/agnes/progress.
func Progress(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	progress, err := queries.GetProgress(a.DB, user.ID)
	if err != nil {
		return err
	}

	resp := map[string]any{
		"progress":               progress,
		"recommended_difficulty": agnes.RecommendedDifficulty(progress),
	}

	var averages map[string]float64
	if err := json.Unmarshal([]byte(progress.CategoryAverages), &averages); err == nil && len(averages) > 0 {
		g := &agnes.Grading{OverallScore: progress.AverageScore, CategoryScores: averages}
		resp["insights"] = agnes.PerformanceInsights(g)
	}
	return sendJSONResponse(c, http.StatusOK, resp)
}

// Badges handles GET /api/agnes/badges.
func Badges(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	badges, err := queries.ListBadges(a.DB)
	if err != nil {
		return err
	}
	earned, err := queries.EarnedBadgeIDs(a.DB, user.ID)
	if err != nil {
		return err
	}

	type badgeView struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Rarity      string `json:"rarity"`
		Icon        string `json:"icon"`
		Earned      bool   `json:"earned"`
		EarnedAt    string `json:"earned_at,omitempty"`
	}
	views := make([]*badgeView, 0, len(badges))
	earnedCount := 0
	for _, b := range badges {
		v := &badgeView{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			Category:    b.Category,
			Rarity:      b.Rarity,
			Icon:        b.Icon,
		}
		if at, ok := earned[b.ID]; ok {
			v.Earned = true
			v.EarnedAt = at.Format("2006-01-02T15:04:05Z07:00")
			earnedCount++
		}
		views = append(views, v)
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"badges": views,
		"earned": earnedCount,
		"total":  len(views),
	})
}

// LeaderboardHandler handles GET /api/agnes/leaderboard.
func LeaderboardHandler(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	period := c.QueryParam("period")
	var since time.Time
	switch period {
	case "weekly":
		since = time.Now().UTC().AddDate(0, 0, -7)
	case "monthly":
		since = time.Now().UTC().AddDate(0, -1, 0)
	case "", "all_time":
		period = "all_time"
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "period must be weekly, monthly or all_time")
	}

	limit := queryInt(c, "limit", 25)
	entries, err := queries.Leaderboard(a.DB, since, limit)
	if err != nil {
		return err
	}

	resp := map[string]any{
		"period":  period,
		"entries": entries,
	}
	for _, e := range entries {
		if e.UserID == user.ID {
			resp["your_rank"] = e.Rank
			break
		}
	}
	return sendJSONResponse(c, http.StatusOK, resp)
}

// DailyChallenge handles GET /api/agnes/daily-challenge.
func DailyChallenge(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	status, err := a.Training.TodayChallenge(user.ID)
	if err != nil {
		return httpError(err, "no challenge available")
	}
	return sendJSONResponse(c, http.StatusOK, status)
}
