package agnes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/roofdocs/nexus/internal/ai"
	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/pkg/logger"
)

// Engine runs Agnes training sessions: scenario roleplay, grading, progress
// tracking, and badge awards.
type Engine struct {
	cfg *config.Config
	db  *sql.DB
	ai  *ai.Manager
}

func NewEngine(cfg *config.Config, database *sql.DB, manager *ai.Manager) *Engine {
	return &Engine{cfg: cfg, db: database, ai: manager}
}

// Seed installs the scenario catalog and badge definitions.
func (e *Engine) Seed() error {
	if err := SeedScenarios(e.db); err != nil {
		return err
	}
	return SeedBadges(e.db)
}

// SessionStart is returned when a scenario session begins.
type SessionStart struct {
	Session  *db.TrainingSession `json:"session"`
	Scenario *db.Scenario        `json:"scenario"`
	Opening  string              `json:"opening_message"`
	Tips     []string            `json:"tips"`
}

// StartSession opens a roleplay session for a scenario. The opening line
// comes from the model when a provider is available, otherwise from the
// scenario's scripted opener.
func (e *Engine) StartSession(ctx context.Context, userID, scenarioID string) (*SessionStart, error) {
	scenario, err := queries.GetScenario(e.db, scenarioID)
	if err != nil {
		return nil, err
	}

	session, err := queries.CreateSession(e.db, userID, scenarioID)
	if err != nil {
		return nil, err
	}

	opening := scenario.OpeningLine
	if e.ai != nil && e.ai.Available() {
		resp, err := e.ai.Chat(ctx, ai.ChatRequest{
			Messages: []ai.Message{
				{Role: "system", Content: scenarioSystemPrompt(scenario)},
				{Role: "user", Content: scenarioStartMessage},
			},
			Feature: "agnes_training",
			UserID:  userID,
		})
		if err != nil {
			logger.Warn("AI opening failed, using scripted opener", "scenario", scenarioID, "error", err)
		} else {
			opening = resp.Content
		}
	}

	if _, err := queries.AddSessionMessage(e.db, session.ID, "assistant", opening); err != nil {
		return nil, err
	}
	if err := queries.TouchSession(e.db, session.ID, 1); err != nil {
		return nil, err
	}
	session.MessageCount = 1

	queries.LogActivity(e.db, userID, "training_session_started", scenarioID)

	return &SessionStart{
		Session:  session,
		Scenario: scenario,
		Opening:  opening,
		Tips:     ScenarioTips(scenario),
	}, nil
}

// Turn is one roleplay exchange: the character's reply plus session state.
type Turn struct {
	Reply               string `json:"reply"`
	MessageCount        int    `json:"message_count"`
	CompletionSuggested bool   `json:"completion_suggested"`
	Provider            string `json:"provider,omitempty"`
}

// ProcessMessage runs one roleplay turn. The model sees the scenario system
// prompt plus the most recent transcript window.
func (e *Engine) ProcessMessage(ctx context.Context, userID, sessionID, message string) (*Turn, error) {
	session, err := queries.GetSession(e.db, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != db.SessionActive {
		return nil, fmt.Errorf("session %s is %s, not active", sessionID, session.Status)
	}

	scenario, err := queries.GetScenario(e.db, session.ScenarioID)
	if err != nil {
		return nil, err
	}

	if _, err := queries.AddSessionMessage(e.db, sessionID, "user", message); err != nil {
		return nil, err
	}

	transcript, err := queries.ListSessionMessages(e.db, sessionID)
	if err != nil {
		return nil, err
	}

	window := e.cfg.RAG.MaxHistoryMessages
	if window <= 0 {
		window = 10
	}
	recent := transcript
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	msgs := make([]ai.Message, 0, len(recent)+1)
	msgs = append(msgs, ai.Message{Role: "system", Content: scenarioSystemPrompt(scenario)})
	for _, m := range recent {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := e.ai.Chat(ctx, ai.ChatRequest{
		Messages: msgs,
		Feature:  "agnes_training",
		UserID:   userID,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario roleplay failed: %w", err)
	}

	if _, err := queries.AddSessionMessage(e.db, sessionID, "assistant", resp.Content); err != nil {
		return nil, err
	}
	if err := queries.TouchSession(e.db, sessionID, 2); err != nil {
		return nil, err
	}

	messageCount := session.MessageCount + 2
	return &Turn{
		Reply:               resp.Content,
		MessageCount:        messageCount,
		CompletionSuggested: detectCompletion(messageCount, message),
		Provider:            resp.Provider,
	}, nil
}

// CompletionResult is the full outcome of a graded session.
type CompletionResult struct {
	Result         *db.ScenarioResult   `json:"result"`
	Grading        *Grading             `json:"grading"`
	Insights       *Insights            `json:"insights"`
	Medal          string               `json:"medal"`
	Progress       *db.TrainingProgress `json:"progress"`
	NewBadges      []*db.Badge          `json:"new_badges"`
	ChallengeBonus int                  `json:"challenge_bonus,omitempty"`
}

// CompleteSession grades the transcript, stores the result, updates progress
// and streaks, and evaluates badges and the daily challenge.
func (e *Engine) CompleteSession(ctx context.Context, userID, sessionID string) (*CompletionResult, error) {
	session, err := queries.GetSession(e.db, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != db.SessionActive {
		return nil, fmt.Errorf("session %s is %s, not active", sessionID, session.Status)
	}

	scenario, err := queries.GetScenario(e.db, session.ScenarioID)
	if err != nil {
		return nil, err
	}

	transcript, err := queries.ListSessionMessages(e.db, sessionID)
	if err != nil {
		return nil, err
	}

	grading := GradeTranscript(ctx, e.ai, userID, scenario, transcript)

	if err := queries.CompleteSession(e.db, sessionID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	durationSec := int(now.Sub(session.StartedAt).Seconds())

	categoryScores, _ := json.Marshal(grading.CategoryScores)
	strengths, _ := json.Marshal(grading.Strengths)
	improvements, _ := json.Marshal(grading.Improvements)

	result := &db.ScenarioResult{
		SessionID:       sessionID,
		UserID:          userID,
		ScenarioID:      scenario.ID,
		OverallScore:    grading.OverallScore,
		CategoryScores:  string(categoryScores),
		Strengths:       string(strengths),
		Improvements:    string(improvements),
		Feedback:        grading.NextSteps,
		Tier:            grading.PerformanceTier,
		DurationSeconds: durationSec,
		CompletedAt:     now,
	}
	if err := queries.CreateScenarioResult(e.db, result); err != nil {
		return nil, err
	}

	progress, err := UpdateProgress(e.db, userID, scenario, grading, now)
	if err != nil {
		return nil, err
	}

	out := &CompletionResult{
		Result:   result,
		Grading:  grading,
		Insights: PerformanceInsights(grading),
		Medal:    MedalForScore(grading.OverallScore),
		Progress: progress,
	}

	if e.cfg.Training.BadgesEnabled {
		badges, err := EvaluateBadges(e.db, badgeContext{
			userID:      userID,
			progress:    progress,
			grading:     grading,
			durationSec: durationSec,
			completedAt: now,
		})
		if err != nil {
			logger.Error("Badge evaluation failed", "user", userID, "error", err)
		} else {
			out.NewBadges = badges
		}
	}

	if bonus := e.applyDailyChallenge(userID, scenario.ID, now); bonus > 0 {
		out.ChallengeBonus = bonus
	}

	queries.LogActivity(e.db, userID, "training_session_completed", scenario.ID)
	logger.Info("Training session completed",
		"user", userID, "scenario", scenario.ID,
		"score", grading.OverallScore, "tier", grading.PerformanceTier)

	return out, nil
}

// applyDailyChallenge awards the daily bonus when the completed scenario is
// today's challenge and the user hasn't claimed it yet.
func (e *Engine) applyDailyChallenge(userID, scenarioID string, now time.Time) int {
	today := now.Format(dateLayout)
	challenge, err := queries.GetDailyChallenge(e.db, today)
	if err != nil || challenge.ScenarioID != scenarioID {
		return 0
	}
	marked, err := queries.MarkChallengeComplete(e.db, userID, today)
	if err != nil || !marked {
		return 0
	}
	return challenge.BonusPoints
}

// DailyChallengeStatus is today's challenge with the caller's completion
// state.
type DailyChallengeStatus struct {
	Challenge *db.DailyChallenge `json:"challenge"`
	Scenario  *db.Scenario       `json:"scenario"`
	Completed bool               `json:"completed"`
}

// TodayChallenge returns today's challenge, creating one deterministically
// from the date when none exists yet.
func (e *Engine) TodayChallenge(userID string) (*DailyChallengeStatus, error) {
	today := time.Now().UTC().Format(dateLayout)

	challenge, err := queries.GetDailyChallenge(e.db, today)
	if err == queries.ErrNotFound {
		challenge, err = e.createDailyChallenge(today)
	}
	if err != nil {
		return nil, err
	}

	scenario, err := queries.GetScenario(e.db, challenge.ScenarioID)
	if err != nil {
		return nil, err
	}

	completed, err := queries.ChallengeCompleted(e.db, userID, today)
	if err != nil {
		return nil, err
	}

	return &DailyChallengeStatus{
		Challenge: challenge,
		Scenario:  scenario,
		Completed: completed,
	}, nil
}

// createDailyChallenge picks a harder scenario for the date. The pick hashes
// the date so every instance of the server agrees without coordination.
func (e *Engine) createDailyChallenge(date string) (*db.DailyChallenge, error) {
	pool, err := queries.ListScenarios(e.db, "", DifficultyExpert)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		pool, err = queries.ListScenarios(e.db, "", "")
		if err != nil {
			return nil, err
		}
	}
	if len(pool) == 0 {
		return nil, queries.ErrNotFound
	}

	h := fnv.New32a()
	h.Write([]byte(date))
	pick := pool[int(h.Sum32())%len(pool)]

	challenge := &db.DailyChallenge{
		Date:        date,
		ScenarioID:  pick.ID,
		BonusPoints: 50,
		Description: fmt.Sprintf("Today's challenge: %s. Complete it for %d bonus points.", pick.Title, 50),
	}
	if err := queries.CreateDailyChallenge(e.db, challenge); err != nil {
		return nil, err
	}
	// Another instance may have won the insert race; read back the winner.
	return queries.GetDailyChallenge(e.db, date)
}
