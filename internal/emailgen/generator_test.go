package emailgen

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/roofdocs/nexus/internal/db/queries"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	_, err = d.Exec(`CREATE TABLE generated_emails (
		id TEXT PRIMARY KEY, user_id TEXT NOT NULL, template_type TEXT NOT NULL,
		subject TEXT NOT NULL, body TEXT NOT NULL, context TEXT NOT NULL DEFAULT '{}',
		customized BOOLEAN NOT NULL DEFAULT 0, created_at TIMESTAMP NOT NULL)`)
	require.NoError(t, err)
	return d
}

func TestRenderAdjusterInitialContact(t *testing.T) {
	out, err := renderTemplate("adjuster_initial_contact", map[string]any{
		"homeowner_name":     "Jane Smith",
		"property_address":   "123 Oak Lane",
		"adjuster_name":      "Mr. Reynolds",
		"claim_number":       "CLM-2026-0042",
		"loss_date":          "2026-03-14",
		"damage_summary":     "Hail impact across both south slopes.",
		"attached_documents": []string{"Photo report", "Scope sheet"},
		"next_steps":         "Schedule a joint inspection.",
		"rep_name":           "Alex Carter",
		"company_name":       "RoofDocs",
		"rep_phone":          "555-0100",
		"rep_email":          "alex@roofdocs.com",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Subject: Insurance Claim Documentation - Jane Smith at 123 Oak Lane"))
	assert.Contains(t, out, "Dear Mr. Reynolds,")
	assert.Contains(t, out, "- Claim Number: CLM-2026-0042")
	assert.Contains(t, out, "- Photo report\n- Scope sheet")
	assert.Contains(t, out, "Alex Carter")
}

func TestRenderEscalationNumbersIssues(t *testing.T) {
	out, err := renderTemplate("escalation_request", map[string]any{
		"claim_number":      "CLM-1",
		"adjuster_name":     "A",
		"homeowner_name":    "H",
		"property_address":  "P",
		"loss_date":         "2026-01-01",
		"current_status":    "stalled",
		"escalation_reason": "No response in five weeks.",
		"supporting_documents": []string{"Timeline"},
		"unresolved_issues":    []string{"Missing drip edge", "Labor rate dispute"},
		"requested_resolution": "Supervisor review",
		"rep_name":             "R", "company_name": "C", "rep_phone": "", "rep_email": "",
		"cc_recipients": "manager@carrier.com",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "1. Missing drip edge")
	assert.Contains(t, out, "2. Labor rate dispute")
	assert.Contains(t, out, "cc: manager@carrier.com")
}

func TestRenderCodeCitationNestedItems(t *testing.T) {
	out, err := renderTemplate("code_citation_support", map[string]any{
		"claim_number":     "CLM-2",
		"adjuster_name":    "A",
		"property_address": "P",
		"building_codes": []map[string]any{
			{"code_type": "IRC", "code_number": "R905.2.8.5", "description": "Drip edge required"},
		},
		"manufacturer_requirements": []map[string]any{
			{"manufacturer": "GAF", "requirement": "Matched starter course"},
		},
		"required_scope":     "full drip edge installation",
		"attached_documents": []string{"Code excerpt"},
		"rep_name":           "R", "company_name": "C", "rep_phone": "", "rep_email": "",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "**IRC R905.2.8.5:** Drip edge required")
	assert.Contains(t, out, "**GAF:** Matched starter course")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := renderTemplate("does_not_exist", nil)
	assert.Error(t, err)
}

func TestTemplateCatalog(t *testing.T) {
	names := TemplateNames()
	assert.Len(t, names, 8)
	for _, name := range names {
		assert.True(t, HasTemplate(name))
	}
	assert.False(t, HasTemplate("nope"))
}

func TestSplitSubjectBody(t *testing.T) {
	subject, body := splitSubjectBody("Subject: Hello There\n\nDear someone,\n\nBody text.")
	assert.Equal(t, "Hello There", subject)
	assert.Equal(t, "Dear someone,\n\nBody text.", body)
}

func TestParseModelEmail(t *testing.T) {
	subject, body := parseModelEmail("SUBJECT: Improved Subject\n\nBODY:\nImproved body text.", "old subject", "old body")
	assert.Equal(t, "Improved Subject", subject)
	assert.Equal(t, "Improved body text.", body)

	// Missing markers keep the fallbacks.
	subject, body = parseModelEmail("I couldn't help with that.", "old subject", "old body")
	assert.Equal(t, "old subject", subject)
	assert.Equal(t, "old body", body)

	// Subject only.
	subject, body = parseModelEmail("SUBJECT: Just a subject\nand some trailing text", "old subject", "old body")
	assert.Equal(t, "Just a subject", subject)
	assert.Equal(t, "old body", body)
}

func TestFromTemplatePersistsDraft(t *testing.T) {
	d := newTestDB(t)
	g := NewGenerator(nil, nil)

	email, err := g.FromTemplate(context.Background(), d, "u1", "photo_report_transmittal", map[string]any{
		"property_address": "123 Oak Lane",
		"claim_number":     "CLM-3",
		"adjuster_name":    "A",
		"inspection_date":  "2026-04-01",
		"photo_count":      48,
		"inspector_name":   "R",
		"report_sections":  []map[string]any{{"name": "Elevations", "photo_count": 4}},
		"rep_name":         "R", "company_name": "C", "rep_phone": "", "rep_email": "",
	}, true)
	require.NoError(t, err)

	assert.NotEmpty(t, email.ID)
	assert.Equal(t, "Photo Report - 123 Oak Lane", email.Subject)
	// No provider configured, so the draft stays uncustomized.
	assert.False(t, email.Customized)

	saved, err := queries.ListGeneratedEmails(d, "u1", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "photo_report_transmittal", saved[0].TemplateType)
	assert.Equal(t, email.Subject, saved[0].Subject)
}
