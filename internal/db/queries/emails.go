package queries

import (
	"database/sql"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// CreateGeneratedEmail persists a drafted email.
func CreateGeneratedEmail(d *sql.DB, e *db.GeneratedEmail) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := d.Exec(`INSERT INTO generated_emails
		(id, user_id, template_type, subject, body, context, customized, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.TemplateType, e.Subject, e.Body, e.Context, e.Customized, e.CreatedAt)
	return err
}

func ListGeneratedEmails(d *sql.DB, userID string, limit int) ([]*db.GeneratedEmail, error) {
	rows, err := d.Query(`SELECT id, user_id, template_type, subject, body, context, customized, created_at
		FROM generated_emails WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.GeneratedEmail
	for rows.Next() {
		e := &db.GeneratedEmail{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.TemplateType, &e.Subject, &e.Body,
			&e.Context, &e.Customized, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
