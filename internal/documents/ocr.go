package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/roofdocs/nexus/pkg/logger"
	"github.com/roofdocs/nexus/pkg/validation"
)

// ErrOCRUnavailable means no tesseract binary is installed on this host.
var ErrOCRUnavailable = errors.New("ocr: tesseract binary not found")

var ocrImageExtensions = []string{"jpg", "jpeg", "png", "tiff", "tif", "bmp"}

// OCRResult is the text extraction outcome for one image.
type OCRResult struct {
	Filename  string `json:"filename"`
	Text      string `json:"text"`
	DocType   string `json:"document_type"`
	WordCount int    `json:"word_count"`
	CharCount int    `json:"char_count"`
}

// OCRAvailable reports whether image text extraction can run on this host.
func OCRAvailable() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

// ExtractImageText runs tesseract on an uploaded image and classifies the
// resulting text.
func (p *Processor) ExtractImageText(ctx context.Context, filename string, data []byte, language string) (*OCRResult, error) {
	if err := validation.SafeFilename(filename, ocrImageExtensions); err != nil {
		return nil, err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if max := p.cfg.MaxUploadBytes(); int64(len(data)) > max {
		return nil, fmt.Errorf("image exceeds the %d MB upload limit", p.cfg.Upload.MaxSizeMB)
	}

	binary, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, ErrOCRUnavailable
	}
	if language == "" {
		language = "eng"
	}

	tmp, err := os.CreateTemp("", "nexus-ocr-*."+ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, binary, tmp.Name(), "stdout", "-l", language)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	res := &OCRResult{
		Filename:  filename,
		Text:      text,
		DocType:   DetectDocType(text),
		WordCount: len(strings.Fields(text)),
		CharCount: len(text),
	}

	logger.Info("OCR extraction completed",
		"filename", res.Filename, "chars", res.CharCount, "doc_type", res.DocType)
	return res, nil
}
