package emailgen

import (
	"bytes"
	"fmt"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// defaultTemplates are the stock claim correspondence templates. Each renders
// to "Subject: ..." on the first line followed by the body. Variables come in
// as a map so callers can pass arbitrary claim context.
var defaultTemplates = map[string]string{
	"adjuster_initial_contact": `Subject: Insurance Claim Documentation - {{.homeowner_name}} at {{.property_address}}

Dear {{.adjuster_name}},

I am writing on behalf of {{.homeowner_name}} regarding the insurance claim for storm damage at {{.property_address}}.

**Claim Details:**
- Claim Number: {{.claim_number}}
- Date of Loss: {{.loss_date}}
- Property Address: {{.property_address}}
- Policyholder: {{.homeowner_name}}

**Damage Summary:**
{{.damage_summary}}

I have completed a thorough inspection and documented all damage following industry standards. Attached you will find:
{{range .attached_documents}}- {{.}}
{{end}}
**Next Steps:**
{{.next_steps}}

I am available to meet at your earliest convenience to review the damage together. Please let me know your availability for a joint inspection.

Thank you for your time and attention to this matter.

Best regards,
{{.rep_name}}
{{.company_name}}
{{.rep_phone}}
{{.rep_email}}`,

	"code_citation_support": `Subject: Building Code Requirements - {{.claim_number}}

Dear {{.adjuster_name}},

Following our conversation regarding the claim at {{.property_address}}, I wanted to provide specific building code references that support the scope of work.

**Applicable Building Codes:**
{{range .building_codes}}- **{{.code_type}} {{.code_number}}:** {{.description}}
{{end}}
**Manufacturer Requirements:**
{{range .manufacturer_requirements}}- **{{.manufacturer}}:** {{.requirement}}
{{end}}
These requirements mandate {{.required_scope}}, which is reflected in our estimate.

I have attached detailed documentation including:
{{range .attached_documents}}- {{.}}
{{end}}
Please let me know if you need any additional information or clarification regarding these code requirements.

Best regards,
{{.rep_name}}
{{.company_name}}
{{.rep_phone}}
{{.rep_email}}`,

	"repair_attempt_notification": `Subject: Repair Attempt Documentation - {{.claim_number}}

Dear {{.adjuster_name}},

Per our discussion, I am providing documentation of the repair attempt at {{.property_address}}.

**Repair Attempt Summary:**
- Date of Attempt: {{.attempt_date}}
- Work Attempted: {{.work_attempted}}
- Outcome: {{.outcome}}
- Reason for Failure: {{.failure_reason}}

**Documented Evidence:**
{{range .evidence_items}}- {{.}}
{{end}}
This repair attempt demonstrates that {{.conclusion}}.

We have thoroughly documented:
1. Initial damage assessment
2. Repair methodology attempted
3. Materials used
4. Photographic evidence of failure
5. Expert opinion on viability

Based on this documentation, we recommend proceeding with {{.recommended_action}}.

I have completed the formal repair attempt report and attached it for your review.

Please let me know if you require any additional information.

Best regards,
{{.rep_name}}
{{.company_name}}
{{.rep_phone}}
{{.rep_email}}`,

	"escalation_request": `Subject: Request for Escalation - Claim {{.claim_number}}

Dear {{.adjuster_name}},

I am writing to formally request escalation of the claim for {{.homeowner_name}} at {{.property_address}}.

**Claim Information:**
- Claim Number: {{.claim_number}}
- Date of Loss: {{.loss_date}}
- Current Status: {{.current_status}}

**Reason for Escalation:**
{{.escalation_reason}}

**Supporting Documentation:**
{{range .supporting_documents}}- {{.}}
{{end}}
**Unresolved Issues:**
{{range $i, $issue := .unresolved_issues}}{{inc $i}}. {{$issue}}
{{end}}
Despite multiple attempts to resolve these issues, we have been unable to reach an agreement that adequately addresses the documented damage and applicable code requirements.

**Requested Resolution:**
{{.requested_resolution}}

I respectfully request that this claim be reviewed by your supervisor or the appropriate level of management. I am available to provide any additional information or documentation that may be helpful.

I appreciate your assistance in this matter and look forward to a prompt resolution.

Best regards,
{{.rep_name}}
{{.company_name}}
{{.rep_phone}}
{{.rep_email}}

cc: {{.cc_recipients}}`,

	"supplemental_request": `Subject: Supplemental Damage Documentation - {{.claim_number}}

Dear {{.adjuster_name}},

During the course of work at {{.property_address}}, we have discovered additional damage that was not visible during the initial inspection.

**Original Claim Scope:**
{{.original_scope}}

**Newly Discovered Damage:**
{{range .new_damage_items}}- **{{.component}}:** {{.description}}
  - Cause: {{.cause}}
  - Repair Required: {{.repair}}
  - Cost: ${{.cost}}
{{end}}
**Total Supplemental Amount:** ${{.supplemental_total}}

**Documentation Provided:**
{{range .attached_documents}}- {{.}}
{{end}}
This supplemental damage is directly related to the original loss event on {{.loss_date}} and was not visible until {{.discovery_circumstances}}.

I am available to meet and review this additional damage at your convenience.

Thank you for your prompt attention to this matter.

Best regards,
{{.rep_name}}
{{.company_name}}
{{.rep_phone}}
{{.rep_email}}`,

	"photo_report_transmittal": `Subject: Photo Report - {{.property_address}}

Dear {{.adjuster_name}},

Please find attached the comprehensive photo report for the property at {{.property_address}}.

**Report Details:**
- Claim Number: {{.claim_number}}
- Inspection Date: {{.inspection_date}}
- Total Photos: {{.photo_count}}
- Inspector: {{.inspector_name}}

**Photo Report Contents:**
{{range .report_sections}}- {{.name}} ({{.photo_count}} photos)
{{end}}
The report includes:
1. Property overview and context
2. Detailed damage documentation
3. Close-up shots of affected areas
4. Reference measurements and markers
5. Surrounding property conditions

All photos are timestamped, geotagged, and include detailed descriptions.

Please review and let me know if you need any additional photographs or clarification.

Best regards,
{{.rep_name}}
{{.company_name}}
{{.rep_phone}}
{{.rep_email}}`,

	"weather_verification": `Subject: Weather Event Verification - {{.claim_number}}

Dear {{.adjuster_name}},

I am providing official weather data verification for the loss event at {{.property_address}}.

**Claim Information:**
- Claim Number: {{.claim_number}}
- Reported Date of Loss: {{.loss_date}}
- Property Location: {{.property_address}}

**Weather Event Verification:**
- **Event Type:** {{.event_type}}
- **Event Date:** {{.event_date}}
- **Location:** {{.event_location}}
- **Severity:** {{.severity_details}}

**Official Sources:**
{{range .weather_sources}}- **{{.name}}:** {{.details}}
  - Source: {{.reference}}
{{end}}
**Damage Correlation:**
{{.damage_correlation}}

The documented damage at this property is consistent with {{.event_type}} events of this magnitude occurring on {{.event_date}}.

Attached please find:
{{range .attached_documents}}- {{.}}
{{end}}
This verification supports the causal relationship between the weather event and the documented damage.

Best regards,
{{.rep_name}}
{{.company_name}}
{{.rep_phone}}
{{.rep_email}}`,

	"itel_submission": `Subject: ITEL Documentation - {{.claim_number}}

Dear {{.adjuster_name}},

I am submitting completed ITEL documentation for {{.property_address}}.

**ITEL Submission Details:**
- Claim Number: {{.claim_number}}
- Submission Date: {{.submission_date}}
- Property: {{.property_address}}
- Policyholder: {{.homeowner_name}}

**Documentation Included:**
{{range $i, $item := .documentation_items}}{{inc $i}}. {{$item.name}}
   - Status: {{$item.status}}
   - Details: {{$item.details}}
{{end}}
**Estimate Summary:**
- Total Claim Amount: ${{.total_amount}}
- Depreciation: ${{.depreciation}}
- Deductible: ${{.deductible}}
- Net Payment: ${{.net_payment}}

All documentation has been uploaded to the ITEL system and is available for your review.

**System Reference:**
- ITEL Reference Number: {{.itel_reference}}
- Upload Date/Time: {{.upload_timestamp}}

Please confirm receipt and let me know if any additional information is required.

Best regards,
{{.rep_name}}
{{.company_name}}
{{.rep_phone}}
{{.rep_email}}`,
}

// TemplateNames lists the available stock templates.
func TemplateNames() []string {
	names := make([]string, 0, len(defaultTemplates))
	for name := range defaultTemplates {
		names = append(names, name)
	}
	return names
}

// HasTemplate reports whether a stock template exists.
func HasTemplate(name string) bool {
	_, ok := defaultTemplates[name]
	return ok
}

// renderTemplate substitutes variables into a stock template. Missing keys
// render as "<no value>", which callers should treat as a filled-in-later
// placeholder rather than an error.
func renderTemplate(name string, vars map[string]any) (string, error) {
	content, ok := defaultTemplates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}

	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse email template %q: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render email template %q: %w", name, err)
	}
	return buf.String(), nil
}
