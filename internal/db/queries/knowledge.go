package queries

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// CreateKnowledgeEntry stores a KB entry with its embedding vector.
func CreateKnowledgeEntry(d *sql.DB, title, content, category, source, tagsJSON string, embedding []byte) (*db.KnowledgeEntry, error) {
	e := &db.KnowledgeEntry{
		ID:        generateUUID(),
		Title:     title,
		Content:   content,
		Category:  category,
		Tags:      tagsJSON,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
	if source != "" {
		e.Source = sql.NullString{String: source, Valid: true}
	}
	_, err := d.Exec(`INSERT INTO knowledge_entries (id, title, content, category, source, tags, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Content, e.Category, e.Source, e.Tags, e.Embedding, e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func GetKnowledgeEntry(d *sql.DB, id string) (*db.KnowledgeEntry, error) {
	e := &db.KnowledgeEntry{}
	err := d.QueryRow(`SELECT id, title, content, category, source, tags, embedding, created_at
		FROM knowledge_entries WHERE id = ?`, id).
		Scan(&e.ID, &e.Title, &e.Content, &e.Category, &e.Source, &e.Tags, &e.Embedding, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListKnowledgeEntries returns every KB entry. The knowledge base is small
// enough to rank in memory.
func ListKnowledgeEntries(d *sql.DB) ([]*db.KnowledgeEntry, error) {
	rows, err := d.Query(`SELECT id, title, content, category, source, tags, embedding, created_at
		FROM knowledge_entries ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.KnowledgeEntry
	for rows.Next() {
		e := &db.KnowledgeEntry{}
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &e.Category, &e.Source, &e.Tags, &e.Embedding, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func CountKnowledgeEntries(d *sql.DB) (int, error) {
	var n int
	err := d.QueryRow("SELECT COUNT(*) FROM knowledge_entries").Scan(&n)
	return n, err
}

func DeleteKnowledgeEntry(d *sql.DB, id string) error {
	res, err := d.Exec("DELETE FROM knowledge_entries WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
