package emailgen

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roofdocs/nexus/internal/ai"
	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/pkg/logger"
)

// Generator produces professional claim correspondence from stock templates,
// optionally polished by the model, or written from scratch by it.
type Generator struct {
	cfg *config.Config
	ai  *ai.Manager
}

func NewGenerator(cfg *config.Config, manager *ai.Manager) *Generator {
	return &Generator{cfg: cfg, ai: manager}
}

// Email is a drafted message ready for the rep to review and send.
type Email struct {
	ID           string `json:"id"`
	TemplateType string `json:"template_type"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	Customized   bool   `json:"customized"`
	Provider     string `json:"provider,omitempty"`
}

// FromTemplate renders a stock template with the claim variables and, when
// requested and a provider is available, has the model polish the draft.
// Customization failures fall back to the plain rendered template.
func (g *Generator) FromTemplate(ctx context.Context, d *sql.DB, userID, templateName string, vars map[string]any, customize bool) (*Email, error) {
	rendered, err := renderTemplate(templateName, vars)
	if err != nil {
		return nil, err
	}

	subject, body := splitSubjectBody(rendered)

	email := &Email{TemplateType: templateName, Subject: subject, Body: body}

	if customize && g.ai != nil && g.ai.Available() {
		improved, provider, err := g.customize(ctx, userID, subject, body, vars)
		if err != nil {
			logger.Warn("AI email customization failed, keeping template draft",
				"template", templateName, "error", err)
		} else {
			email.Subject = improved.Subject
			email.Body = improved.Body
			email.Customized = true
			email.Provider = provider
		}
	}

	if err := g.save(d, userID, email, vars); err != nil {
		return nil, err
	}

	logger.Info("Email drafted from template", "template", templateName, "user", userID, "customized", email.Customized)
	return email, nil
}

// CustomRequest describes an email to write from scratch.
type CustomRequest struct {
	Purpose       string            `json:"purpose"`
	KeyPoints     []string          `json:"key_points"`
	RecipientInfo map[string]string `json:"recipient_info"`
	ClaimInfo     map[string]string `json:"claim_info,omitempty"`
	Tone          string            `json:"tone,omitempty"`
	SenderName    string            `json:"-"`
}

// Custom asks the model to draft an email with no template, built from the
// stated purpose and key points.
func (g *Generator) Custom(ctx context.Context, d *sql.DB, userID string, req CustomRequest) (*Email, error) {
	if req.Purpose == "" {
		return nil, fmt.Errorf("email purpose is required")
	}
	tone := req.Tone
	if tone == "" {
		tone = "professional"
	}

	var points strings.Builder
	for _, p := range req.KeyPoints {
		fmt.Fprintf(&points, "- %s\n", p)
	}

	prompt := fmt.Sprintf(`Generate a professional insurance claim email with the following requirements:

**Purpose:** %s

**Key Points to Include:**
%s
**Recipient Information:**
%s

**Claim Information:**
%s

**Tone:** %s

**Sender Information:**
- Name: %s
- Company: RoofDocs
- Role: Roofing Insurance Specialist

**Requirements:**
1. Professional and respectful tone
2. Clear and concise
3. Include all key points naturally
4. Proper email formatting
5. Appropriate subject line
6. Professional closing

Generate the complete email with subject line and body.

Format:
SUBJECT: [subject line]

BODY:
[complete email body]`,
		req.Purpose, points.String(), formatInfo(req.RecipientInfo), formatInfo(req.ClaimInfo), tone, req.SenderName)

	resp, err := g.ai.Chat(ctx, ai.ChatRequest{
		Messages: []ai.Message{
			{Role: "system", Content: "You are an expert insurance correspondence specialist. Write professional, clear, and effective emails for roofing insurance claims."},
			{Role: "user", Content: prompt},
		},
		Feature: "email_generation",
		UserID:  userID,
	})
	if err != nil {
		return nil, fmt.Errorf("custom email generation failed: %w", err)
	}

	subject, body := parseModelEmail(resp.Content, "Insurance Claim Correspondence", resp.Content)

	email := &Email{
		TemplateType: "custom_ai_generated",
		Subject:      subject,
		Body:         body,
		Customized:   true,
		Provider:     resp.Provider,
	}

	vars := map[string]any{
		"purpose":        req.Purpose,
		"key_points":     req.KeyPoints,
		"recipient_info": req.RecipientInfo,
		"claim_info":     req.ClaimInfo,
	}
	if err := g.save(d, userID, email, vars); err != nil {
		return nil, err
	}

	logger.Info("Custom email drafted", "user", userID, "purpose", req.Purpose, "provider", resp.Provider)
	return email, nil
}

// customize asks the model to improve a rendered draft while keeping its
// facts and citations intact.
func (g *Generator) customize(ctx context.Context, userID, subject, body string, vars map[string]any) (*Email, string, error) {
	contextJSON, _ := json.Marshal(vars)

	prompt := fmt.Sprintf(`You are an expert at writing professional insurance claim correspondence.

Review and improve this email while maintaining its core message and professional tone.

**Current Email:**
Subject: %s

%s

**Context:**
%s

**Instructions:**
1. Maintain the professional, respectful tone
2. Keep all factual information and citations
3. Improve clarity and flow if needed
4. Add any relevant details from context
5. Ensure proper formatting
6. Keep it concise but complete

Return ONLY the improved email in this exact format:
SUBJECT: [improved subject line]

BODY:
[improved body]`, subject, body, contextJSON)

	resp, err := g.ai.Chat(ctx, ai.ChatRequest{
		Messages: []ai.Message{
			{Role: "system", Content: "You are a professional insurance correspondence specialist."},
			{Role: "user", Content: prompt},
		},
		Feature: "email_generation",
		UserID:  userID,
	})
	if err != nil {
		return nil, "", err
	}

	improvedSubject, improvedBody := parseModelEmail(resp.Content, subject, body)
	return &Email{Subject: improvedSubject, Body: improvedBody}, resp.Provider, nil
}

func (g *Generator) save(d *sql.DB, userID string, email *Email, vars map[string]any) error {
	contextJSON, err := json.Marshal(vars)
	if err != nil {
		return err
	}
	row := &db.GeneratedEmail{
		UserID:       userID,
		TemplateType: email.TemplateType,
		Subject:      email.Subject,
		Body:         email.Body,
		Context:      string(contextJSON),
		Customized:   email.Customized,
	}
	if err := queries.CreateGeneratedEmail(d, row); err != nil {
		return err
	}
	email.ID = row.ID
	return nil
}

// splitSubjectBody separates the "Subject:" first line of a rendered
// template from the body.
func splitSubjectBody(rendered string) (subject, body string) {
	parts := strings.SplitN(rendered, "\n", 2)
	subject = strings.TrimSpace(strings.TrimPrefix(parts[0], "Subject:"))
	if len(parts) > 1 {
		body = strings.TrimSpace(parts[1])
	}
	return subject, body
}

// parseModelEmail extracts SUBJECT: and BODY: sections from a model reply,
// keeping the fallbacks when a marker is missing.
func parseModelEmail(content, fallbackSubject, fallbackBody string) (subject, body string) {
	subject, body = fallbackSubject, fallbackBody

	if idx := strings.Index(content, "SUBJECT:"); idx >= 0 {
		rest := content[idx+len("SUBJECT:"):]
		if bodyIdx := strings.Index(rest, "BODY:"); bodyIdx >= 0 {
			subject = strings.TrimSpace(rest[:bodyIdx])
		} else {
			subject = strings.TrimSpace(strings.SplitN(rest, "\n", 2)[0])
		}
	}
	if idx := strings.Index(content, "BODY:"); idx >= 0 {
		body = strings.TrimSpace(content[idx+len("BODY:"):])
	}
	return subject, body
}

func formatInfo(info map[string]string) string {
	if len(info) == 0 {
		return "N/A"
	}
	var b strings.Builder
	for k, v := range info {
		fmt.Fprintf(&b, "- %s: %s\n", k, v)
	}
	return strings.TrimRight(b.String(), "\n")
}
