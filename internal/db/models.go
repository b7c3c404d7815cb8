package db

import (
	"database/sql"
	"time"
)

// User roles, least to most privileged.
const (
	RoleRep          = "rep"
	RoleTeamLeader   = "team_leader"
	RoleSalesManager = "sales_manager"
	RoleManager      = "manager"
	RoleAdmin        = "admin"
)

type User struct {
	ID             string
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CompanyID      sql.NullString
	IsActive       bool
	AvatarURL      sql.NullString
	Preferences    string // JSON blob
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLogin      sql.NullTime
}

type Company struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Assistant string // susan or agnes
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID             string
	ConversationID string
	Role           string // user, assistant, system
	Content        string
	TokensUsed     int
	Cost           float64
	Provider       sql.NullString
	CreatedAt      time.Time
}

type KnowledgeEntry struct {
	ID        string
	Title     string
	Content   string
	Category  string
	Source    sql.NullString
	Tags      string // JSON array
	Embedding []byte // float32 little-endian
	CreatedAt time.Time
}

type Scenario struct {
	ID          string
	Title       string
	Category    string
	Difficulty  string
	Description string
	Persona     string
	Situation   string
	OpeningLine string
	Objectives  string // JSON array
	CreatedAt   time.Time
}

// Training session states.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionExpired   = "expired"
)

type TrainingSession struct {
	ID           string
	UserID       string
	ScenarioID   string
	Status       string
	MessageCount int
	StartedAt    time.Time
	LastActivity time.Time
	CompletedAt  sql.NullTime
}

type SessionMessage struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

type ScenarioResult struct {
	ID              string
	SessionID       string
	UserID          string
	ScenarioID      string
	OverallScore    float64
	CategoryScores  string // JSON object per grading category
	Strengths       string // JSON array
	Improvements    string // JSON array
	Feedback        string
	Tier            string
	DurationSeconds int
	CompletedAt     time.Time
}

type TrainingProgress struct {
	UserID            string
	TotalScenarios    int
	TotalScore        float64
	AverageScore      float64
	CategoryCounts    string // JSON map category -> completed
	CategoryAverages  string // JSON map grading category -> avg
	CurrentStreakDays int
	LongestStreakDays int
	LastSessionDate   sql.NullString // YYYY-MM-DD
	PerfectScores     int
	ChallengesDone    int
	UpdatedAt         time.Time
}

type Badge struct {
	ID          string
	Name        string
	Description string
	Category    string // milestone, skill, streak, special, mastery
	Rarity      string
	Icon        string
	Criteria    string // JSON criteria document
}

type UserBadge struct {
	UserID   string
	BadgeID  string
	EarnedAt time.Time
}

type DailyChallenge struct {
	Date        string // YYYY-MM-DD
	ScenarioID  string
	BonusPoints int
	Description string
}

type AIRequest struct {
	ID         string
	UserID     sql.NullString
	Provider   string
	Model      string
	Feature    string
	TokensUsed int
	Cost       float64
	LatencyMs  int
	Success    bool
	Error      sql.NullString
	CreatedAt  time.Time
}

type ActivityLog struct {
	ID        string
	UserID    string
	Action    string
	Detail    sql.NullString
	CreatedAt time.Time
}

type FeatureUsage struct {
	UserID   string
	Feature  string
	Count    int
	LastUsed time.Time
}

type ProcessedDocument struct {
	ID        string
	UserID    string
	Filename  string
	FileType  string
	SizeBytes int64
	Text      string
	DocType   string
	KeyInfo   string         // JSON key-info extraction
	Estimate  sql.NullString // JSON estimate analysis, estimates only
	CreatedAt time.Time
}

type GeneratedEmail struct {
	ID           string
	UserID       string
	TemplateType string
	Subject      string
	Body         string
	Context      string // JSON claim context
	Customized   bool
	CreatedAt    time.Time
}

type WeatherEvent struct {
	ID         string
	UserID     string
	ClaimDate  string // YYYY-MM-DD
	Latitude   float64
	Longitude  float64
	Verified   bool
	Confidence float64
	Events     string // JSON matched events
	CreatedAt  time.Time
}
