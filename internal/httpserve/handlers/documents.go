package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/documents"
	"github.com/roofdocs/nexus/internal/server"
)

// UploadDocument handles POST /api/documents/upload (multipart).
func UploadDocument(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}
	if !a.Config.Features.EnableDocumentProcessing {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "document processing is disabled")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, a.Config.MaxUploadBytes()+1))
	if err != nil {
		return err
	}

	result, err := a.Docs.Process(a.DB, user.ID, fileHeader.Filename, data, c.FormValue("doc_type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	_ = queries.BumpFeatureUsage(a.DB, user.ID, "document_processing")
	_ = queries.LogActivity(a.DB, user.ID, "document_uploaded", result.Filename)
	return sendJSONResponse(c, http.StatusCreated, result)
}

// OCRImage handles POST /api/documents/ocr (multipart image).
func OCRImage(c echo.Context, a *server.App) error {
	if _, err := requestUser(c); err != nil {
		return err
	}
	if !a.Config.Features.EnableDocumentProcessing {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "document processing is disabled")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, a.Config.MaxUploadBytes()+1))
	if err != nil {
		return err
	}

	language := c.FormValue("language")
	if language == "" {
		language = "eng"
	}

	result, err := a.Docs.ExtractImageText(c.Request().Context(), fileHeader.Filename, data, language)
	if err != nil {
		if errors.Is(err, documents.ErrOCRUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "OCR is not available on this server")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return sendJSONResponse(c, http.StatusOK, result)
}

// ListDocuments handles GET /api/documents.
func ListDocuments(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	docs, err := queries.ListDocuments(a.DB, user.ID, limit, offset)
	if err != nil {
		return err
	}

	type docView struct {
		ID        string `json:"id"`
		Filename  string `json:"filename"`
		FileType  string `json:"file_type"`
		DocType   string `json:"doc_type"`
		SizeBytes int64  `json:"size_bytes"`
		CreatedAt string `json:"created_at"`
	}
	views := make([]*docView, 0, len(docs))
	for _, d := range docs {
		views = append(views, &docView{
			ID:        d.ID,
			Filename:  d.Filename,
			FileType:  d.FileType,
			DocType:   d.DocType,
			SizeBytes: d.SizeBytes,
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{"documents": views})
}

// GetDocument handles GET /api/documents/:id.
func GetDocument(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	doc, err := queries.GetDocument(a.DB, c.Param("id"), user.ID)
	if err != nil {
		return httpError(err, "document not found")
	}

	resp := map[string]any{
		"id":         doc.ID,
		"filename":   doc.Filename,
		"file_type":  doc.FileType,
		"doc_type":   doc.DocType,
		"size_bytes": doc.SizeBytes,
		"text":       doc.Text,
		"created_at": doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	var keyInfo documents.KeyInfo
	if err := json.Unmarshal([]byte(doc.KeyInfo), &keyInfo); err == nil {
		resp["extracted_info"] = keyInfo
	}
	if doc.Estimate.Valid {
		var estimate documents.EstimateAnalysis
		if err := json.Unmarshal([]byte(doc.Estimate.String), &estimate); err == nil {
			resp["estimate_analysis"] = estimate
		}
	}
	return sendJSONResponse(c, http.StatusOK, resp)
}

// DeleteDocument handles DELETE /api/documents/:id.
func DeleteDocument(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}
	if err := queries.DeleteDocument(a.DB, c.Param("id"), user.ID); err != nil {
		return httpError(err, "document not found")
	}
	return sendJSONResponse(c, http.StatusOK, map[string]string{"status": "deleted"})
}
