package documents

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"

	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db/queries"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	_, err = d.Exec(`CREATE TABLE processed_documents (
		id TEXT PRIMARY KEY, user_id TEXT NOT NULL, filename TEXT NOT NULL,
		file_type TEXT NOT NULL, size_bytes INTEGER NOT NULL,
		text TEXT NOT NULL DEFAULT '', doc_type TEXT NOT NULL DEFAULT 'unknown',
		key_info TEXT NOT NULL DEFAULT '{}', estimate TEXT,
		created_at TIMESTAMP NOT NULL)`)
	require.NoError(t, err)
	return d
}

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return NewProcessor(cfg)
}

func buildDOCX(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)

	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0"?><document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><body>`)
	for _, p := range paragraphs {
		doc.WriteString("<p><r><t>" + p + "</t></r></p>")
	}
	doc.WriteString(`</body></document>`)
	_, err = w.Write(doc.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildXLSX(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestProcessTXT(t *testing.T) {
	d := newTestDB(t)
	p := newTestProcessor(t)

	text := "Claim Number: CLM-2026-0099\nInspection report for the property.\nTotal: $12,400.00\nContact: rep@roofdocs.com or 555-123-4567"
	res, err := p.Process(d, "u1", "notes.txt", []byte(text), "")
	require.NoError(t, err)

	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, "txt", res.FileType)
	assert.Equal(t, "claim_document", res.DocType)
	assert.Equal(t, 1, res.PageCount)
	assert.Contains(t, res.KeyInfo.ClaimNumbers, "CLM-2026-0099")
	assert.Contains(t, res.KeyInfo.EmailAddresses, "rep@roofdocs.com")
	assert.Contains(t, res.KeyInfo.PhoneNumbers, "555-123-4567")

	saved, err := queries.GetDocument(d, res.DocumentID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", saved.Filename)
	assert.Equal(t, int64(len(text)), saved.SizeBytes)
}

func TestProcessDOCX(t *testing.T) {
	d := newTestDB(t)
	p := newTestProcessor(t)

	data := buildDOCX(t, []string{
		"Inspection assessment for 123 Oak Lane.",
		"The adjuster approved the north slope only.",
	})

	res, err := p.Process(d, "u1", "report.docx", data, "")
	require.NoError(t, err)

	assert.Equal(t, "docx", res.FileType)
	assert.Contains(t, res.Text, "Inspection assessment for 123 Oak Lane.")
	assert.Contains(t, res.Text, "north slope")
	assert.Equal(t, 2, res.PageCount)
}

func TestProcessXLSXEstimate(t *testing.T) {
	d := newTestDB(t)
	p := newTestProcessor(t)

	data := buildXLSX(t, "Estimate", [][]any{
		{"Description", "Qty", "Amount"},
		{"Tear off two layers", "28 SQ", "3200.00"},
		{"Architectural shingles", "28 SQ", "8400.00"},
		{"Subtotal:", "", "$11,600.00"},
	})

	res, err := p.Process(d, "u1", "estimate.xlsx", data, "estimate")
	require.NoError(t, err)

	assert.Equal(t, "estimate", res.DocType)
	require.NotNil(t, res.Estimate)
	require.Len(t, res.Estimate.LineItems, 3)
	assert.Equal(t, "Tear off two layers", res.Estimate.LineItems[0].Description)
	assert.Equal(t, "28 SQ", res.Estimate.LineItems[0].Quantity)

	saved, err := queries.GetDocument(d, res.DocumentID, "u1")
	require.NoError(t, err)
	assert.True(t, saved.Estimate.Valid)
}

func TestProcessRejectsBadInput(t *testing.T) {
	d := newTestDB(t)
	p := newTestProcessor(t)

	_, err := p.Process(d, "u1", "malware.exe", []byte("x"), "")
	assert.Error(t, err)

	_, err = p.Process(d, "u1", "../escape.txt", []byte("x"), "")
	assert.Error(t, err)

	big := make([]byte, p.cfg.MaxUploadBytes()+1)
	_, err = p.Process(d, "u1", "big.txt", big, "")
	assert.Error(t, err)
}

func TestExtractKeyInfoDedupes(t *testing.T) {
	text := "Claim #: ABC-123 and again Claim #: ABC-123. Paid $500.00 then $500.00 and $750.25."
	info := ExtractKeyInfo(text)

	assert.Equal(t, []string{"ABC-123"}, info.ClaimNumbers)
	assert.ElementsMatch(t, []string{"$500.00", "$750.25"}, info.Amounts)
}

func TestDetectDocType(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"This estimate covers the full roof replacement", "estimate"},
		{"Your policy provides coverage for wind events", "policy"},
		{"The adjuster reviewed the claim after the loss", "claim_document"},
		{"Invoice for services rendered", "invoice"},
		{"Inspection report and assessment", "inspection_report"},
		{"Nothing relevant here", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDocType(tt.text), tt.text)
	}
}

func TestAnalyzeEstimateTotalsFromText(t *testing.T) {
	text := "Scope of work...\nSubtotal: $10,000.00\nTax: $530.00\nGrand Total: $10,530.00"
	a := AnalyzeEstimate(text, nil)

	assert.Equal(t, "10,000.00", a.Subtotal)
	assert.Equal(t, "530.00", a.Tax)
	assert.Equal(t, "10,530.00", a.Total)
}

func TestAnalyzeEstimateIgnoresNonEstimateSheets(t *testing.T) {
	sheets := map[string][][]string{
		"Notes": {{"a", "b", "c"}, {"d", "e", "f"}},
	}
	a := AnalyzeEstimate("", sheets)
	assert.Empty(t, a.LineItems)
}
