package queries

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

const scenarioColumns = "id, title, category, difficulty, description, persona, situation, opening_line, objectives, created_at"

func scanScenario(row interface{ Scan(...any) error }) (*db.Scenario, error) {
	s := &db.Scenario{}
	err := row.Scan(&s.ID, &s.Title, &s.Category, &s.Difficulty, &s.Description,
		&s.Persona, &s.Situation, &s.OpeningLine, &s.Objectives, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// UpsertScenario inserts or replaces a scenario by id (pack reseeds overwrite).
func UpsertScenario(d *sql.DB, s *db.Scenario) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := d.Exec(`INSERT INTO scenarios
		(id, title, category, difficulty, description, persona, situation, opening_line, objectives, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, category=excluded.category, difficulty=excluded.difficulty,
			description=excluded.description, persona=excluded.persona, situation=excluded.situation,
			opening_line=excluded.opening_line, objectives=excluded.objectives`,
		s.ID, s.Title, s.Category, s.Difficulty, s.Description,
		s.Persona, s.Situation, s.OpeningLine, s.Objectives, s.CreatedAt)
	return err
}

func GetScenario(d *sql.DB, id string) (*db.Scenario, error) {
	row := d.QueryRow("SELECT "+scenarioColumns+" FROM scenarios WHERE id = ?", id)
	return scanScenario(row)
}

// ListScenarios filters by category and/or difficulty; empty filters match all.
func ListScenarios(d *sql.DB, category, difficulty string) ([]*db.Scenario, error) {
	rows, err := d.Query(`SELECT `+scenarioColumns+` FROM scenarios
		WHERE (? = '' OR category = ?) AND (? = '' OR difficulty = ?)
		ORDER BY category, difficulty, id`,
		category, category, difficulty, difficulty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func CountScenarios(d *sql.DB) (int, error) {
	var n int
	err := d.QueryRow("SELECT COUNT(*) FROM scenarios").Scan(&n)
	return n, err
}

func CountScenariosByCategory(d *sql.DB, category string) (int, error) {
	var n int
	err := d.QueryRow("SELECT COUNT(*) FROM scenarios WHERE category = ?", category).Scan(&n)
	return n, err
}

// CompletedScenarioIDs returns scenario ids the user has a result for.
func CompletedScenarioIDs(d *sql.DB, userID string) (map[string]bool, error) {
	rows, err := d.Query("SELECT DISTINCT scenario_id FROM scenario_results WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}
