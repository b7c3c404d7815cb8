package queries

import (
	"database/sql"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// UpsertBadge installs or refreshes a badge definition.
func UpsertBadge(d *sql.DB, b *db.Badge) error {
	_, err := d.Exec(`INSERT INTO badges (id, name, description, category, rarity, icon, criteria)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description, category=excluded.category,
			rarity=excluded.rarity, icon=excluded.icon, criteria=excluded.criteria`,
		b.ID, b.Name, b.Description, b.Category, b.Rarity, b.Icon, b.Criteria)
	return err
}

func ListBadges(d *sql.DB) ([]*db.Badge, error) {
	rows, err := d.Query("SELECT id, name, description, category, rarity, icon, criteria FROM badges ORDER BY category, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.Badge
	for rows.Next() {
		b := &db.Badge{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Category, &b.Rarity, &b.Icon, &b.Criteria); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// EarnedBadgeIDs returns the set of badge ids a user has earned.
func EarnedBadgeIDs(d *sql.DB, userID string) (map[string]time.Time, error) {
	rows, err := d.Query("SELECT badge_id, earned_at FROM user_badges WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	earned := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		earned[id] = at
	}
	return earned, rows.Err()
}

// AwardBadge grants a badge once; a second award is a no-op returning false.
func AwardBadge(d *sql.DB, userID, badgeID string) (bool, error) {
	res, err := d.Exec(`INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, badge_id) DO NOTHING`,
		userID, badgeID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func CountBadges(d *sql.DB, userID string) (int, error) {
	var n int
	err := d.QueryRow("SELECT COUNT(*) FROM user_badges WHERE user_id = ?", userID).Scan(&n)
	return n, err
}
