package documents

import (
	"regexp"
	"strings"
)

// KeyInfo is the claim-relevant data pulled from a document's text.
type KeyInfo struct {
	ClaimNumbers   []string `json:"claim_numbers"`
	Dates          []string `json:"dates"`
	Amounts        []string `json:"amounts"`
	Addresses      []string `json:"addresses"`
	PhoneNumbers   []string `json:"phone_numbers"`
	EmailAddresses []string `json:"email_addresses"`
}

const maxKeyInfoItems = 10

var (
	claimPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Claim\s*(?:Number|#|No\.?):\s*([A-Z0-9\-]+)`),
		regexp.MustCompile(`(?i)Claim\s*([A-Z0-9\-]{5,})`),
		regexp.MustCompile(`(?i)Policy\s*(?:Number|#):\s*([A-Z0-9\-]+)`),
	}
	datePattern    = regexp.MustCompile(`\b\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`)
	amountPattern  = regexp.MustCompile(`\$[\d,]+\.?\d{0,2}`)
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	phonePattern   = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	addressPattern = regexp.MustCompile(`[A-Z][a-z]+,\s+[A-Z]{2}\s+\d{5}`)
)

// ExtractKeyInfo scans text for the identifiers that claim paperwork leans
// on: claim and policy numbers, dates, dollar amounts, and contact details.
func ExtractKeyInfo(text string) *KeyInfo {
	info := &KeyInfo{}

	for _, pattern := range claimPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			info.ClaimNumbers = append(info.ClaimNumbers, m[1])
		}
	}
	info.ClaimNumbers = dedupe(info.ClaimNumbers)
	info.Dates = dedupe(datePattern.FindAllString(text, -1))
	info.Amounts = dedupe(amountPattern.FindAllString(text, -1))
	info.EmailAddresses = dedupe(emailPattern.FindAllString(text, -1))
	info.PhoneNumbers = dedupe(phonePattern.FindAllString(text, -1))
	info.Addresses = dedupe(addressPattern.FindAllString(text, -1))

	return info
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
		if len(out) == maxKeyInfoItems {
			break
		}
	}
	return out
}

// docTypeKeywords maps document types to the words that signal them, in
// priority order.
var docTypeKeywords = []struct {
	docType  string
	keywords []string
}{
	{"estimate", []string{"estimate", "quote", "proposal"}},
	{"policy", []string{"policy", "coverage", "insured"}},
	{"claim_document", []string{"claim", "adjuster", "loss"}},
	{"invoice", []string{"invoice", "bill", "payment"}},
	{"inspection_report", []string{"inspection", "report", "assessment"}},
	{"photo_documentation", []string{"photo", "image", "damage"}},
}

// DetectDocType guesses what kind of claim document the text is.
func DetectDocType(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range docTypeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.docType
			}
		}
	}
	return "unknown"
}

// EstimateAnalysis breaks an estimate document into line items and totals.
type EstimateAnalysis struct {
	LineItems []EstimateLineItem `json:"line_items"`
	Subtotal  string             `json:"subtotal,omitempty"`
	Tax       string             `json:"tax,omitempty"`
	Total     string             `json:"total,omitempty"`
}

type EstimateLineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Amount      string `json:"amount"`
}

var (
	totalPattern    = regexp.MustCompile(`(?i)(?:Grand\s+)?\bTotal:\s*\$?([\d,]+\.?\d{0,2})`)
	subtotalPattern = regexp.MustCompile(`(?i)Subtotal:\s*\$?([\d,]+\.?\d{0,2})`)
	taxPattern      = regexp.MustCompile(`(?i)Tax:\s*\$?([\d,]+\.?\d{0,2})`)
)

// AnalyzeEstimate extracts line items from spreadsheet grids and totals from
// the text. Sheets named like an estimate contribute line items, assuming a
// header row followed by description/quantity/amount columns.
func AnalyzeEstimate(text string, sheets map[string][][]string) *EstimateAnalysis {
	a := &EstimateAnalysis{}

	for name, rows := range sheets {
		lowerName := strings.ToLower(name)
		if !strings.Contains(lowerName, "estimate") && !strings.Contains(lowerName, "line") {
			continue
		}
		if len(rows) < 2 {
			continue
		}
		for _, row := range rows[1:] {
			if len(row) < 3 {
				continue
			}
			a.LineItems = append(a.LineItems, EstimateLineItem{
				Description: row[0],
				Quantity:    row[1],
				Amount:      row[2],
			})
		}
	}

	if m := subtotalPattern.FindStringSubmatch(text); m != nil {
		a.Subtotal = m[1]
	}
	if m := taxPattern.FindStringSubmatch(text); m != nil {
		a.Tax = m[1]
	}
	if m := totalPattern.FindStringSubmatch(text); m != nil {
		a.Total = m[1]
	}
	return a
}
