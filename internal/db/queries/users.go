package queries

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roofdocs/nexus/internal/db"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

func generateUUID() string {
	return uuid.New().String()
}

const userColumns = `id, email, hashed_password, full_name, role, company_id,
	is_active, avatar_url, preferences, created_at, updated_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*db.User, error) {
	u := &db.User{}
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role,
		&u.CompanyID, &u.IsActive, &u.AvatarURL, &u.Preferences,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a new user. The email must be unique.
func CreateUser(d *sql.DB, email, hashedPassword, fullName, role string, companyID string) (*db.User, error) {
	exists, err := UserEmailExists(d, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	now := time.Now().UTC()
	u := &db.User{
		ID:             generateUUID(),
		Email:          email,
		HashedPassword: hashedPassword,
		FullName:       fullName,
		Role:           role,
		IsActive:       true,
		Preferences:    "{}",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if companyID != "" {
		u.CompanyID = sql.NullString{String: companyID, Valid: true}
	}

	_, err = d.Exec(`INSERT INTO users
		(id, email, hashed_password, full_name, role, company_id, is_active, preferences, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.HashedPassword, u.FullName, u.Role, u.CompanyID,
		u.IsActive, u.Preferences, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func UserEmailExists(d *sql.DB, email string) (bool, error) {
	var id string
	err := d.QueryRow("SELECT id FROM users WHERE email = ?", email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func GetUserByID(d *sql.DB, id string) (*db.User, error) {
	row := d.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

func GetUserByEmail(d *sql.DB, email string) (*db.User, error) {
	row := d.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

// UpdateUserProfile updates the mutable profile fields. Empty strings leave
// the current value in place, except preferences which is a JSON document.
func UpdateUserProfile(d *sql.DB, id, fullName, avatarURL, preferences string) error {
	_, err := d.Exec(`UPDATE users SET
		full_name = COALESCE(NULLIF(?, ''), full_name),
		avatar_url = COALESCE(NULLIF(?, ''), avatar_url),
		preferences = COALESCE(NULLIF(?, ''), preferences),
		updated_at = ?
		WHERE id = ?`,
		fullName, avatarURL, preferences, time.Now().UTC(), id)
	return err
}

func UpdateUserPassword(d *sql.DB, id, hashedPassword string) error {
	_, err := d.Exec("UPDATE users SET hashed_password = ?, updated_at = ? WHERE id = ?",
		hashedPassword, time.Now().UTC(), id)
	return err
}

func TouchLastLogin(d *sql.DB, id string) error {
	_, err := d.Exec("UPDATE users SET last_login = ? WHERE id = ?", time.Now().UTC(), id)
	return err
}

func CountUsers(d *sql.DB) (int, error) {
	var n int
	err := d.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

func CountActiveUsersSince(d *sql.DB, since time.Time) (int, error) {
	var n int
	err := d.QueryRow("SELECT COUNT(*) FROM users WHERE last_login >= ?", since).Scan(&n)
	return n, err
}

// ListUsersByCompany returns all users in a company, for team analytics.
func ListUsersByCompany(d *sql.DB, companyID string) ([]*db.User, error) {
	rows, err := d.Query("SELECT "+userColumns+" FROM users WHERE company_id = ? ORDER BY full_name", companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*db.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
