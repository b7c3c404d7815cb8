package queries

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

var ErrActiveSessionExists = errors.New("an active training session already exists")

const sessionColumns = "id, user_id, scenario_id, status, message_count, started_at, last_activity, completed_at"

func scanSession(row interface{ Scan(...any) error }) (*db.TrainingSession, error) {
	s := &db.TrainingSession{}
	err := row.Scan(&s.ID, &s.UserID, &s.ScenarioID, &s.Status, &s.MessageCount,
		&s.StartedAt, &s.LastActivity, &s.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// CreateSession starts a training session. Only one active session per user.
func CreateSession(d *sql.DB, userID, scenarioID string) (*db.TrainingSession, error) {
	if active, err := GetActiveSession(d, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	} else if active != nil {
		return nil, ErrActiveSessionExists
	}

	now := time.Now().UTC()
	s := &db.TrainingSession{
		ID:           generateUUID(),
		UserID:       userID,
		ScenarioID:   scenarioID,
		Status:       db.SessionActive,
		StartedAt:    now,
		LastActivity: now,
	}
	_, err := d.Exec(`INSERT INTO training_sessions
		(id, user_id, scenario_id, status, message_count, started_at, last_activity)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		s.ID, s.UserID, s.ScenarioID, s.Status, s.StartedAt, s.LastActivity)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func GetSession(d *sql.DB, id, userID string) (*db.TrainingSession, error) {
	row := d.QueryRow("SELECT "+sessionColumns+" FROM training_sessions WHERE id = ? AND user_id = ?", id, userID)
	return scanSession(row)
}

func GetActiveSession(d *sql.DB, userID string) (*db.TrainingSession, error) {
	row := d.QueryRow("SELECT "+sessionColumns+" FROM training_sessions WHERE user_id = ? AND status = ?",
		userID, db.SessionActive)
	return scanSession(row)
}

// TouchSession bumps last_activity and the message counter.
func TouchSession(d *sql.DB, id string, addMessages int) error {
	_, err := d.Exec(`UPDATE training_sessions
		SET last_activity = ?, message_count = message_count + ?
		WHERE id = ?`, time.Now().UTC(), addMessages, id)
	return err
}

func CompleteSession(d *sql.DB, id string) error {
	now := time.Now().UTC()
	_, err := d.Exec(`UPDATE training_sessions SET status = ?, completed_at = ?, last_activity = ? WHERE id = ?`,
		db.SessionCompleted, now, now, id)
	return err
}

// ExpireStaleSessions marks active sessions idle past the timeout as expired.
// Returns the number of sessions expired.
func ExpireStaleSessions(d *sql.DB, timeout time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	res, err := d.Exec(`UPDATE training_sessions SET status = ? WHERE status = ? AND last_activity < ?`,
		db.SessionExpired, db.SessionActive, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddSessionMessage appends a roleplay turn to the session transcript.
func AddSessionMessage(d *sql.DB, sessionID, role, content string) (*db.SessionMessage, error) {
	m := &db.SessionMessage{
		ID:        generateUUID(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := d.Exec(`INSERT INTO session_messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func ListSessionMessages(d *sql.DB, sessionID string) ([]*db.SessionMessage, error) {
	rows, err := d.Query(`SELECT id, session_id, role, content, created_at
		FROM session_messages WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.SessionMessage
	for rows.Next() {
		m := &db.SessionMessage{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateScenarioResult stores the grading outcome for a completed session.
func CreateScenarioResult(d *sql.DB, r *db.ScenarioResult) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now().UTC()
	}
	_, err := d.Exec(`INSERT INTO scenario_results
		(id, session_id, user_id, scenario_id, overall_score, category_scores,
		 strengths, improvements, feedback, tier, duration_seconds, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.UserID, r.ScenarioID, r.OverallScore, r.CategoryScores,
		r.Strengths, r.Improvements, r.Feedback, r.Tier, r.DurationSeconds, r.CompletedAt)
	return err
}

const resultColumns = `id, session_id, user_id, scenario_id, overall_score, category_scores,
	strengths, improvements, feedback, tier, duration_seconds, completed_at`

func scanResult(row interface{ Scan(...any) error }) (*db.ScenarioResult, error) {
	r := &db.ScenarioResult{}
	err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &r.ScenarioID, &r.OverallScore,
		&r.CategoryScores, &r.Strengths, &r.Improvements, &r.Feedback, &r.Tier,
		&r.DurationSeconds, &r.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListResults returns a user's results, newest first, up to limit (0 = all).
func ListResults(d *sql.DB, userID string, limit int) ([]*db.ScenarioResult, error) {
	q := "SELECT " + resultColumns + " FROM scenario_results WHERE user_id = ? ORDER BY completed_at DESC"
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = d.Query(q+" LIMIT ?", userID, limit)
	} else {
		rows, err = d.Query(q, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.ScenarioResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountChallengeResults counts results on challenge-difficulty scenarios.
func CountChallengeResults(d *sql.DB, userID string) (int, error) {
	var n int
	err := d.QueryRow(`SELECT COUNT(*) FROM scenario_results r
		JOIN scenarios s ON s.id = r.scenario_id
		WHERE r.user_id = ? AND s.difficulty = 'challenge'`, userID).Scan(&n)
	return n, err
}

// CountPerfectScores counts results at 100 or above for a user.
func CountPerfectScores(d *sql.DB, userID string) (int, error) {
	var n int
	err := d.QueryRow("SELECT COUNT(*) FROM scenario_results WHERE user_id = ? AND overall_score >= 100", userID).Scan(&n)
	return n, err
}

// CompletedCategoryCount counts distinct completed scenarios in a category.
func CompletedCategoryCount(d *sql.DB, userID, category string) (int, error) {
	var n int
	err := d.QueryRow(`SELECT COUNT(DISTINCT r.scenario_id) FROM scenario_results r
		JOIN scenarios s ON s.id = r.scenario_id
		WHERE r.user_id = ? AND s.category = ?`, userID, category).Scan(&n)
	return n, err
}
