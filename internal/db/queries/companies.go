package queries

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

func CreateCompany(d *sql.DB, name string) (*db.Company, error) {
	c := &db.Company{
		ID:        generateUUID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := d.Exec("INSERT INTO companies (id, name, created_at) VALUES (?, ?, ?)",
		c.ID, c.Name, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func GetCompany(d *sql.DB, id string) (*db.Company, error) {
	c := &db.Company{}
	err := d.QueryRow("SELECT id, name, created_at FROM companies WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
