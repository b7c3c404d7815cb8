package queries

import (
	"database/sql"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// CreateWeatherEvent stores a storm verification lookup and its outcome.
func CreateWeatherEvent(d *sql.DB, w *db.WeatherEvent) error {
	if w.ID == "" {
		w.ID = generateUUID()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	_, err := d.Exec(`INSERT INTO weather_events
		(id, user_id, claim_date, latitude, longitude, verified, confidence, events, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, w.ClaimDate, w.Latitude, w.Longitude, w.Verified,
		w.Confidence, w.Events, w.CreatedAt)
	return err
}

func ListWeatherEvents(d *sql.DB, userID string, limit int) ([]*db.WeatherEvent, error) {
	rows, err := d.Query(`SELECT id, user_id, claim_date, latitude, longitude, verified, confidence, events, created_at
		FROM weather_events WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.WeatherEvent
	for rows.Next() {
		w := &db.WeatherEvent{}
		if err := rows.Scan(&w.ID, &w.UserID, &w.ClaimDate, &w.Latitude, &w.Longitude,
			&w.Verified, &w.Confidence, &w.Events, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
