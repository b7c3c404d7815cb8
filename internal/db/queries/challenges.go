package queries

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// GetDailyChallenge returns the challenge for a date (YYYY-MM-DD).
func GetDailyChallenge(d *sql.DB, date string) (*db.DailyChallenge, error) {
	c := &db.DailyChallenge{}
	err := d.QueryRow(`SELECT date, scenario_id, bonus_points, description
		FROM daily_challenges WHERE date = ?`, date).
		Scan(&c.Date, &c.ScenarioID, &c.BonusPoints, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func CreateDailyChallenge(d *sql.DB, c *db.DailyChallenge) error {
	_, err := d.Exec(`INSERT INTO daily_challenges (date, scenario_id, bonus_points, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO NOTHING`,
		c.Date, c.ScenarioID, c.BonusPoints, c.Description)
	return err
}

// MarkChallengeComplete records a completion; returns false when already done.
func MarkChallengeComplete(d *sql.DB, userID, date string) (bool, error) {
	res, err := d.Exec(`INSERT INTO daily_challenge_completions (user_id, date, completed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, date) DO NOTHING`,
		userID, date, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func ChallengeCompleted(d *sql.DB, userID, date string) (bool, error) {
	var one int
	err := d.QueryRow("SELECT 1 FROM daily_challenge_completions WHERE user_id = ? AND date = ?", userID, date).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
