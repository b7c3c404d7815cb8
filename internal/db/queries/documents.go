package queries

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// CreateDocument stores a processed upload.
func CreateDocument(d *sql.DB, doc *db.ProcessedDocument) error {
	if doc.ID == "" {
		doc.ID = generateUUID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := d.Exec(`INSERT INTO processed_documents
		(id, user_id, filename, file_type, size_bytes, text, doc_type, key_info, estimate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Filename, doc.FileType, doc.SizeBytes,
		doc.Text, doc.DocType, doc.KeyInfo, doc.Estimate, doc.CreatedAt)
	return err
}

const documentColumns = "id, user_id, filename, file_type, size_bytes, text, doc_type, key_info, estimate, created_at"

func scanDocument(row interface{ Scan(...any) error }) (*db.ProcessedDocument, error) {
	doc := &db.ProcessedDocument{}
	err := row.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.SizeBytes,
		&doc.Text, &doc.DocType, &doc.KeyInfo, &doc.Estimate, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func GetDocument(d *sql.DB, id, userID string) (*db.ProcessedDocument, error) {
	row := d.QueryRow("SELECT "+documentColumns+" FROM processed_documents WHERE id = ? AND user_id = ?", id, userID)
	return scanDocument(row)
}

func ListDocuments(d *sql.DB, userID string, limit, offset int) ([]*db.ProcessedDocument, error) {
	rows, err := d.Query("SELECT "+documentColumns+` FROM processed_documents
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.ProcessedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func DeleteDocument(d *sql.DB, id, userID string) error {
	res, err := d.Exec("DELETE FROM processed_documents WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
