package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/emailgen"
	"github.com/roofdocs/nexus/internal/server"
)

type generateEmailRequest struct {
	TemplateType string                `json:"template_type"`
	Context      map[string]any        `json:"context"`
	Customize    bool                  `json:"customize"`
	Custom       *emailgen.CustomRequest `json:"custom,omitempty"`
}

// EmailTemplates handles GET /api/email/templates.
func EmailTemplates(c echo.Context, a *server.App) error {
	if _, err := requestUser(c); err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"templates": emailgen.TemplateNames(),
	})
}

// GenerateEmail handles POST /api/email/generate. template_type "custom"
// drafts from scratch; anything else renders a stock template.
func GenerateEmail(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}
	if !a.Config.Features.EnableEmailGenerator {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "email generation is disabled")
	}

	req := new(generateEmailRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.TemplateType == "custom" {
		if req.Custom == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "custom email details are required")
		}
		custom := *req.Custom
		custom.SenderName = user.FullName
		email, err := a.Emails.Custom(c.Request().Context(), a.DB, user.ID, custom)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return sendJSONResponse(c, http.StatusOK, email)
	}

	if !emailgen.HasTemplate(req.TemplateType) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown template type: "+req.TemplateType)
	}

	email, err := a.Emails.FromTemplate(c.Request().Context(), a.DB, user.ID,
		req.TemplateType, req.Context, req.Customize)
	if err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusOK, email)
}

// EmailHistory handles GET /api/email/history.
func EmailHistory(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	limit := queryInt(c, "limit", 20)
	emails, err := queries.ListGeneratedEmails(a.DB, user.ID, limit)
	if err != nil {
		return err
	}

	type emailView struct {
		ID           string `json:"id"`
		TemplateType string `json:"template_type"`
		Subject      string `json:"subject"`
		CreatedAt    string `json:"created_at"`
	}
	views := make([]*emailView, 0, len(emails))
	for _, e := range emails {
		views = append(views, &emailView{
			ID:           e.ID,
			TemplateType: e.TemplateType,
			Subject:      e.Subject,
			CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{"emails": views})
}
