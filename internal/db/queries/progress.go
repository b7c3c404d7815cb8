package queries

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// GetProgress returns a user's training progress, or a zeroed row when the
// user has no training history yet.
func GetProgress(d *sql.DB, userID string) (*db.TrainingProgress, error) {
	p := &db.TrainingProgress{}
	err := d.QueryRow(`SELECT user_id, total_scenarios, total_score, average_score,
		category_counts, category_averages, current_streak_days, longest_streak_days,
		last_session_date, perfect_scores, challenges_done, updated_at
		FROM user_training_progress WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.TotalScenarios, &p.TotalScore, &p.AverageScore,
			&p.CategoryCounts, &p.CategoryAverages, &p.CurrentStreakDays,
			&p.LongestStreakDays, &p.LastSessionDate, &p.PerfectScores,
			&p.ChallengesDone, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &db.TrainingProgress{
			UserID:           userID,
			CategoryCounts:   "{}",
			CategoryAverages: "{}",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveProgress upserts the training progress row.
func SaveProgress(d *sql.DB, p *db.TrainingProgress) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := d.Exec(`INSERT INTO user_training_progress
		(user_id, total_scenarios, total_score, average_score, category_counts,
		 category_averages, current_streak_days, longest_streak_days,
		 last_session_date, perfect_scores, challenges_done, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_scenarios=excluded.total_scenarios,
			total_score=excluded.total_score,
			average_score=excluded.average_score,
			category_counts=excluded.category_counts,
			category_averages=excluded.category_averages,
			current_streak_days=excluded.current_streak_days,
			longest_streak_days=excluded.longest_streak_days,
			last_session_date=excluded.last_session_date,
			perfect_scores=excluded.perfect_scores,
			challenges_done=excluded.challenges_done,
			updated_at=excluded.updated_at`,
		p.UserID, p.TotalScenarios, p.TotalScore, p.AverageScore, p.CategoryCounts,
		p.CategoryAverages, p.CurrentStreakDays, p.LongestStreakDays,
		p.LastSessionDate, p.PerfectScores, p.ChallengesDone, p.UpdatedAt)
	return err
}

// LeaderboardEntry is an aggregate row for ranking users.
type LeaderboardEntry struct {
	UserID             string  `json:"user_id"`
	FullName           string  `json:"full_name"`
	TotalScore         float64 `json:"total_score"`
	ScenariosCompleted int     `json:"scenarios_completed"`
	AverageScore       float64 `json:"average_score"`
	BadgeCount         int     `json:"badge_count"`
	Rank               int     `json:"rank"`
}

// Leaderboard ranks users by total score over a period. since is zero for
// all-time rankings.
func Leaderboard(d *sql.DB, since time.Time, limit int) ([]*LeaderboardEntry, error) {
	rows, err := d.Query(`SELECT r.user_id, u.full_name,
			SUM(r.overall_score) AS total_score,
			COUNT(*) AS scenarios_completed,
			AVG(r.overall_score) AS average_score,
			(SELECT COUNT(*) FROM user_badges b WHERE b.user_id = r.user_id) AS badge_count
		FROM scenario_results r
		JOIN users u ON u.id = r.user_id
		WHERE r.completed_at >= ?
		GROUP BY r.user_id
		ORDER BY total_score DESC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LeaderboardEntry
	rank := 0
	for rows.Next() {
		e := &LeaderboardEntry{}
		if err := rows.Scan(&e.UserID, &e.FullName, &e.TotalScore, &e.ScenariosCompleted,
			&e.AverageScore, &e.BadgeCount); err != nil {
			return nil, err
		}
		rank++
		e.Rank = rank
		out = append(out, e)
	}
	return out, rows.Err()
}
