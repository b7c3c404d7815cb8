package documents

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/pkg/logger"
	"github.com/roofdocs/nexus/pkg/validation"
)

// Processor extracts text and claim data from uploaded documents.
type Processor struct {
	cfg *config.Config
}

func NewProcessor(cfg *config.Config) *Processor {
	return &Processor{cfg: cfg}
}

// Result is the outcome of processing one uploaded file.
type Result struct {
	DocumentID string            `json:"document_id"`
	Filename   string            `json:"filename"`
	FileType   string            `json:"file_type"`
	DocType    string            `json:"document_type"`
	Text       string            `json:"text"`
	PageCount  int               `json:"page_count"`
	WordCount  int               `json:"word_count"`
	KeyInfo    *KeyInfo          `json:"extracted_info"`
	Estimate   *EstimateAnalysis `json:"estimate_analysis,omitempty"`
}

// Process extracts a document's text, pulls key claim information, runs
// estimate analysis when the content looks like an estimate, and persists
// the record.
func (p *Processor) Process(d *sql.DB, userID, filename string, data []byte, docTypeHint string) (*Result, error) {
	if err := validation.SafeFilename(filename, p.cfg.Upload.AllowedExtensions); err != nil {
		return nil, err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if max := p.cfg.MaxUploadBytes(); int64(len(data)) > max {
		return nil, fmt.Errorf("file exceeds the %d MB upload limit", p.cfg.Upload.MaxSizeMB)
	}

	var (
		text      string
		pageCount int
		sheets    map[string][][]string
		err       error
	)
	switch ext {
	case "pdf":
		text, pageCount, err = extractPDF(data)
	case "docx":
		text, pageCount, err = extractDOCX(data)
	case "xlsx":
		text, sheets, err = extractXLSX(data)
		pageCount = len(sheets)
	case "txt":
		text = string(bytes.ToValidUTF8(data, nil))
		pageCount = 1
	default:
		// Image uploads go through OCR, not document processing.
		return nil, fmt.Errorf("file type %q is not a processable document", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s content: %w", ext, err)
	}

	keyInfo := ExtractKeyInfo(text)

	docType := docTypeHint
	if docType == "" {
		docType = DetectDocType(text)
	}

	res := &Result{
		Filename:  filename,
		FileType:  ext,
		DocType:   docType,
		Text:      text,
		PageCount: pageCount,
		WordCount: len(strings.Fields(text)),
		KeyInfo:   keyInfo,
	}

	if docType == "estimate" {
		res.Estimate = AnalyzeEstimate(text, sheets)
	}

	keyInfoJSON, err := json.Marshal(keyInfo)
	if err != nil {
		return nil, err
	}

	doc := &db.ProcessedDocument{
		UserID:    userID,
		Filename:  filename,
		FileType:  ext,
		SizeBytes: int64(len(data)),
		Text:      text,
		DocType:   docType,
		KeyInfo:   string(keyInfoJSON),
	}
	if res.Estimate != nil {
		estimateJSON, err := json.Marshal(res.Estimate)
		if err != nil {
			return nil, err
		}
		doc.Estimate = sql.NullString{String: string(estimateJSON), Valid: true}
	}
	if err := queries.CreateDocument(d, doc); err != nil {
		return nil, err
	}
	res.DocumentID = doc.ID

	logger.Info("Document processed",
		"filename", res.Filename, "type", ext, "doc_type", docType,
		"pages", pageCount, "words", res.WordCount, "user", userID)

	return res, nil
}

// extractPDF pulls plain text from every page, with page markers preserved
// so citations can point back to a page.
func extractPDF(data []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	var sb strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Failed to extract PDF page", "page", i, "error", err)
			continue
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n%s\n\n", i, text)
	}
	return sb.String(), pages, nil
}

// docx paragraph XML, just enough structure to collect the text runs.
type docxDocument struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

// extractDOCX reads the main document part of the DOCX zip container.
func extractDOCX(data []byte) (string, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", 0, err
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", 0, err
			}
			break
		}
	}
	if docXML == nil {
		return "", 0, fmt.Errorf("document.xml not found in archive")
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", 0, err
	}

	var paragraphs []string
	for _, para := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, run := range para.Runs {
			sb.WriteString(run.Text)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n"), len(paragraphs), nil
}

// extractXLSX flattens every sheet into pipe-delimited rows and returns the
// structured grid for estimate analysis.
func extractXLSX(data []byte) (string, map[string][][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheets := make(map[string][][]string)
	var lines []string

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", nil, err
		}

		var kept [][]string
		for _, row := range rows {
			empty := true
			for _, cell := range row {
				if strings.TrimSpace(cell) != "" {
					empty = false
					break
				}
			}
			if empty {
				continue
			}
			kept = append(kept, row)
			lines = append(lines, strings.Join(row, " | "))
		}
		sheets[name] = kept
	}
	return strings.Join(lines, "\n"), sheets, nil
}
