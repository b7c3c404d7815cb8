package server

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

// ensureDBDir ensures that the database directory exists.
func (a *App) ensureDBDir() error {
	dir := filepath.Dir(a.Config.Database.Path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Debug("Creating database directory", "dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// InitializeDB opens the database, bootstraps the schema and applies the
// connection pool settings.
func InitializeDB(a *App) (*sql.DB, error) {
	log.Debug("Initializing database", "path", a.Config.Database.Path)
	if err := a.ensureDBDir(); err != nil {
		return nil, fmt.Errorf("failed to ensure DB directory: %w", err)
	}

	db, err := sql.Open("sqlite", a.Config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(a.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(a.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(a.Config.Database.ConnLifetimeMin) * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := bootstrapDB(db); err != nil {
		return nil, fmt.Errorf("failed to bootstrap DB: %w", err)
	}

	a.DB = db
	return db, nil
}

// bootstrapDB creates every table the application uses. All statements are
// idempotent so this runs on every startup.
func bootstrapDB(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			full_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'rep',
			company_id TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			avatar_url TEXT,
			preferences TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_login TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			assistant TEXT NOT NULL DEFAULT 'susan',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at);
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0,
			provider TEXT,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
		CREATE TABLE IF NOT EXISTS knowledge_entries (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			source TEXT,
			tags TEXT NOT NULL DEFAULT '[]',
			embedding BLOB,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS scenarios (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			category TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			description TEXT NOT NULL,
			persona TEXT NOT NULL,
			situation TEXT NOT NULL,
			opening_line TEXT NOT NULL,
			objectives TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scenarios_category ON scenarios(category, difficulty);
		CREATE TABLE IF NOT EXISTS training_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			scenario_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			message_count INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			last_activity TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON training_sessions(user_id, status);
		CREATE TABLE IF NOT EXISTS session_messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_session_messages ON session_messages(session_id, created_at);
		CREATE TABLE IF NOT EXISTS scenario_results (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			scenario_id TEXT NOT NULL,
			overall_score REAL NOT NULL,
			category_scores TEXT NOT NULL DEFAULT '{}',
			strengths TEXT NOT NULL DEFAULT '[]',
			improvements TEXT NOT NULL DEFAULT '[]',
			feedback TEXT NOT NULL DEFAULT '',
			tier TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			completed_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_results_user ON scenario_results(user_id, completed_at);
		CREATE TABLE IF NOT EXISTS user_training_progress (
			user_id TEXT PRIMARY KEY,
			total_scenarios INTEGER NOT NULL DEFAULT 0,
			total_score REAL NOT NULL DEFAULT 0,
			average_score REAL NOT NULL DEFAULT 0,
			category_counts TEXT NOT NULL DEFAULT '{}',
			category_averages TEXT NOT NULL DEFAULT '{}',
			current_streak_days INTEGER NOT NULL DEFAULT 0,
			longest_streak_days INTEGER NOT NULL DEFAULT 0,
			last_session_date TEXT,
			perfect_scores INTEGER NOT NULL DEFAULT 0,
			challenges_done INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS badges (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			rarity TEXT NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			criteria TEXT NOT NULL DEFAULT '{}'
		);
		CREATE TABLE IF NOT EXISTS user_badges (
			user_id TEXT NOT NULL,
			badge_id TEXT NOT NULL,
			earned_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, badge_id)
		);
		CREATE TABLE IF NOT EXISTS daily_challenges (
			date TEXT PRIMARY KEY,
			scenario_id TEXT NOT NULL,
			bonus_points INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS daily_challenge_completions (
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			completed_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, date)
		);
		CREATE TABLE IF NOT EXISTS ai_requests (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			feature TEXT NOT NULL,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 1,
			error TEXT,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ai_requests_created ON ai_requests(created_at);
		CREATE TABLE IF NOT EXISTS activity_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_logs(created_at);
		CREATE TABLE IF NOT EXISTS feature_usage (
			user_id TEXT NOT NULL,
			feature TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			last_used TIMESTAMP NOT NULL,
			UNIQUE(user_id, feature)
		);
		CREATE TABLE IF NOT EXISTS processed_documents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			file_type TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			text TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			key_info TEXT NOT NULL DEFAULT '{}',
			estimate TEXT,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS generated_emails (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			template_type TEXT NOT NULL,
			subject TEXT NOT NULL,
			body TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '{}',
			customized INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS weather_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			claim_date TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			verified INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			events TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS app_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return fmt.Errorf("error creating tables: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	log.Debug("Database schema ready")
	return nil
}

// CloseDB closes the database connection.
func CloseDB(a *App) error {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
