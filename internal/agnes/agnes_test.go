package agnes

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	stmts := []string{
		`CREATE TABLE scenarios (
			id TEXT PRIMARY KEY, title TEXT NOT NULL, category TEXT NOT NULL,
			difficulty TEXT NOT NULL, description TEXT NOT NULL DEFAULT '',
			persona TEXT NOT NULL DEFAULT '', situation TEXT NOT NULL DEFAULT '',
			opening_line TEXT NOT NULL DEFAULT '', objectives TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE badges (
			id TEXT PRIMARY KEY, name TEXT NOT NULL, description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '', rarity TEXT NOT NULL DEFAULT 'common',
			icon TEXT NOT NULL DEFAULT '', criteria TEXT NOT NULL DEFAULT '{}')`,
		`CREATE TABLE user_badges (
			user_id TEXT NOT NULL, badge_id TEXT NOT NULL, earned_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, badge_id))`,
		`CREATE TABLE training_sessions (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, scenario_id TEXT NOT NULL,
			status TEXT NOT NULL, message_count INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL, last_activity TIMESTAMP NOT NULL,
			completed_at TIMESTAMP)`,
		`CREATE TABLE session_messages (
			id TEXT PRIMARY KEY, session_id TEXT NOT NULL, role TEXT NOT NULL,
			content TEXT NOT NULL, created_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE scenario_results (
			id TEXT PRIMARY KEY, session_id TEXT NOT NULL, user_id TEXT NOT NULL,
			scenario_id TEXT NOT NULL, overall_score REAL NOT NULL,
			category_scores TEXT NOT NULL DEFAULT '{}', strengths TEXT NOT NULL DEFAULT '[]',
			improvements TEXT NOT NULL DEFAULT '[]', feedback TEXT NOT NULL DEFAULT '',
			tier TEXT NOT NULL DEFAULT '', duration_seconds INTEGER NOT NULL DEFAULT 0,
			completed_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE user_training_progress (
			user_id TEXT PRIMARY KEY, total_scenarios INTEGER NOT NULL DEFAULT 0,
			total_score REAL NOT NULL DEFAULT 0, average_score REAL NOT NULL DEFAULT 0,
			category_counts TEXT NOT NULL DEFAULT '{}', category_averages TEXT NOT NULL DEFAULT '{}',
			current_streak_days INTEGER NOT NULL DEFAULT 0, longest_streak_days INTEGER NOT NULL DEFAULT 0,
			last_session_date TEXT, perfect_scores INTEGER NOT NULL DEFAULT 0,
			challenges_done INTEGER NOT NULL DEFAULT 0, updated_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE daily_challenges (
			date TEXT PRIMARY KEY, scenario_id TEXT NOT NULL,
			bonus_points INTEGER NOT NULL DEFAULT 0, description TEXT NOT NULL DEFAULT '')`,
		`CREATE TABLE daily_challenge_completions (
			user_id TEXT NOT NULL, date TEXT NOT NULL, completed_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, date))`,
		`CREATE TABLE activity_logs (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '', created_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE app_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	}
	for _, stmt := range stmts {
		_, err := d.Exec(stmt)
		require.NoError(t, err)
	}
	return d
}

func TestParseGradingPlainJSON(t *testing.T) {
	g, err := parseGrading(`{"overall_score": 88, "category_scores": {"professionalism": 90},
		"performance_tier": "good", "strengths": ["clear"], "areas_for_improvement": ["pace"]}`)
	require.NoError(t, err)
	assert.Equal(t, 88.0, g.OverallScore)
	assert.Equal(t, 90.0, g.CategoryScores["professionalism"])
}

func TestParseGradingStripsCodeFence(t *testing.T) {
	g, err := parseGrading("Here is the evaluation:\n```json\n{\"overall_score\": 72}\n```\nDone.")
	require.NoError(t, err)
	assert.Equal(t, 72.0, g.OverallScore)
}

func TestParseGradingInvalid(t *testing.T) {
	_, err := parseGrading("I cannot grade this conversation.")
	assert.Error(t, err)
}

func TestValidateGradingFillsAndClamps(t *testing.T) {
	g := &Grading{
		OverallScore: 120,
		CategoryScores: map[string]float64{
			"professionalism": -5,
			"communication":   150,
		},
	}
	validateGrading(g)

	assert.Equal(t, 100.0, g.OverallScore)
	assert.Equal(t, 0.0, g.CategoryScores["professionalism"])
	assert.Equal(t, 100.0, g.CategoryScores["communication"])
	// Missing categories default to a neutral score.
	assert.Equal(t, 75.0, g.CategoryScores["documentation"])
	assert.Equal(t, TierExcellent, g.PerformanceTier)
	assert.NotEmpty(t, g.Strengths)
	assert.NotEmpty(t, g.Improvements)
}

func TestValidateGradingComputesOverallFromCategories(t *testing.T) {
	g := &Grading{
		CategoryScores: map[string]float64{
			"professionalism":    80,
			"technical_accuracy": 80,
			"communication":      80,
			"problem_solving":    80,
			"documentation":      80,
		},
	}
	validateGrading(g)
	assert.Equal(t, 80.0, g.OverallScore)
	assert.Equal(t, TierGood, g.PerformanceTier)
}

func TestFallbackGrading(t *testing.T) {
	g := fallbackGrading()
	assert.True(t, g.Fallback)
	assert.Equal(t, 75.0, g.OverallScore)
	for _, cat := range GradingCategories {
		assert.Equal(t, 75.0, g.CategoryScores[cat])
	}
	assert.Equal(t, TierGood, g.PerformanceTier)
}

func TestTierForScore(t *testing.T) {
	assert.Equal(t, TierExcellent, TierForScore(90))
	assert.Equal(t, TierGood, TierForScore(75))
	assert.Equal(t, TierNeedsImprovement, TierForScore(74.9))
}

func TestMedalForScore(t *testing.T) {
	tests := []struct {
		score float64
		medal string
	}{
		{50, "bronze"}, {69, "bronze"}, {70, "silver"}, {84, "silver"},
		{85, "gold"}, {94, "gold"}, {95, "platinum"}, {100, "platinum"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.medal, MedalForScore(tt.score), "score %v", tt.score)
	}
}

func TestPerformanceInsights(t *testing.T) {
	g := &Grading{
		OverallScore: 82,
		CategoryScores: map[string]float64{
			"professionalism":    95,
			"technical_accuracy": 70,
			"communication":      85,
			"problem_solving":    80,
			"documentation":      80,
		},
	}
	ins := PerformanceInsights(g)

	assert.Equal(t, "professionalism", ins.StrongestSkill)
	assert.Equal(t, "technical_accuracy", ins.WeakestSkill)
	assert.Equal(t, 25.0, ins.ScoreVariance)
	assert.Equal(t, "low", ins.Consistency)
	assert.Equal(t, "strong", ins.OverallTrend)
}

func TestInsightsConsistencyBands(t *testing.T) {
	flat := &Grading{OverallScore: 80, CategoryScores: map[string]float64{
		"professionalism": 80, "technical_accuracy": 82, "communication": 81,
		"problem_solving": 79, "documentation": 80,
	}}
	assert.Equal(t, "high", PerformanceInsights(flat).Consistency)

	medium := &Grading{OverallScore: 80, CategoryScores: map[string]float64{
		"professionalism": 90, "technical_accuracy": 75, "communication": 80,
		"problem_solving": 80, "documentation": 80,
	}}
	assert.Equal(t, "medium", PerformanceInsights(medium).Consistency)
}

func TestDetectCompletion(t *testing.T) {
	assert.False(t, detectCompletion(4, "let's keep going"))
	assert.True(t, detectCompletion(20, "anything at all"))
	assert.True(t, detectCompletion(8, "Sounds good, thank you for your help"))
	assert.False(t, detectCompletion(7, "Sounds good, thank you for your help"))
}

func TestScenarioPackLoadsAndExpands(t *testing.T) {
	pack, err := loadScenarioPack()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", pack.Version)

	scenarios, err := expandPack(pack)
	require.NoError(t, err)
	assert.Len(t, scenarios, 115)

	byCategory := map[string]int{}
	byDifficulty := map[string]int{}
	seen := map[string]bool{}
	for _, s := range scenarios {
		require.False(t, seen[s.ID], "duplicate scenario id %s", s.ID)
		seen[s.ID] = true
		byCategory[s.Category]++
		byDifficulty[s.Difficulty]++

		var objectives []string
		require.NoError(t, json.Unmarshal([]byte(s.Objectives), &objectives))
		assert.NotEmpty(t, objectives, "scenario %s has no objectives", s.ID)
		assert.NotEmpty(t, s.Persona)
		assert.NotEmpty(t, s.OpeningLine)
	}

	assert.Equal(t, 20, byCategory[CategoryInitialContact])
	assert.Equal(t, 30, byCategory[CategoryAdjusterRelations])
	assert.Equal(t, 20, byCategory[CategoryTemplateUsage])
	assert.Equal(t, 15, byCategory[CategoryCodeCitations])
	assert.Equal(t, 20, byCategory[CategoryEscalation])
	assert.Equal(t, 10, byCategory[CategoryDocumentation])

	for _, d := range []string{DifficultyBeginner, DifficultyIntermediate, DifficultyExpert, DifficultyChallenge} {
		assert.Greater(t, byDifficulty[d], 0, "no %s scenarios", d)
	}
}

func TestSeedScenariosIdempotent(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, SeedScenarios(d))
	count, err := queries.CountScenarios(d)
	require.NoError(t, err)
	assert.Equal(t, 115, count)

	version, err := queries.GetMeta(d, packVersionKey)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)

	// Re-seeding with the same pack version changes nothing.
	require.NoError(t, SeedScenarios(d))
	count, err = queries.CountScenarios(d)
	require.NoError(t, err)
	assert.Equal(t, 115, count)
}

func TestDifficultyFor(t *testing.T) {
	total := 20
	assert.Equal(t, DifficultyBeginner, difficultyFor(0, total))
	assert.Equal(t, DifficultyBeginner, difficultyFor(5, total))
	assert.Equal(t, DifficultyIntermediate, difficultyFor(6, total))
	assert.Equal(t, DifficultyExpert, difficultyFor(13, total))
	assert.Equal(t, DifficultyChallenge, difficultyFor(18, total))
	assert.Equal(t, DifficultyChallenge, difficultyFor(19, total))
}

func TestUpdateProgressFirstResult(t *testing.T) {
	d := newTestDB(t)
	scenario := &db.Scenario{ID: "s1", Category: CategoryInitialContact, Difficulty: DifficultyBeginner}
	grading := &Grading{
		OverallScore: 80,
		CategoryScores: map[string]float64{
			"professionalism": 85, "technical_accuracy": 75, "communication": 80,
			"problem_solving": 80, "documentation": 80,
		},
	}

	p, err := UpdateProgress(d, "u1", scenario, grading, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 1, p.TotalScenarios)
	assert.Equal(t, 80.0, p.AverageScore)
	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, "2026-03-10", p.LastSessionDate.String)

	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(p.CategoryCounts), &counts))
	assert.Equal(t, 1, counts[CategoryInitialContact])

	var averages map[string]float64
	require.NoError(t, json.Unmarshal([]byte(p.CategoryAverages), &averages))
	assert.Equal(t, 85.0, averages["professionalism"])
}

func TestUpdateProgressStreaks(t *testing.T) {
	d := newTestDB(t)
	scenario := &db.Scenario{ID: "s1", Category: CategoryEscalation, Difficulty: DifficultyBeginner}
	grading := fallbackGrading()

	day := func(dom int) time.Time { return time.Date(2026, 4, dom, 12, 0, 0, 0, time.UTC) }

	p, err := UpdateProgress(d, "u1", scenario, grading, day(1))
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreakDays)

	// Same day does not extend the streak.
	p, err = UpdateProgress(d, "u1", scenario, grading, day(1))
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreakDays)

	// Next day extends.
	p, err = UpdateProgress(d, "u1", scenario, grading, day(2))
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentStreakDays)

	p, err = UpdateProgress(d, "u1", scenario, grading, day(3))
	require.NoError(t, err)
	assert.Equal(t, 3, p.CurrentStreakDays)
	assert.Equal(t, 3, p.LongestStreakDays)

	// A gap resets the current streak but keeps the longest.
	p, err = UpdateProgress(d, "u1", scenario, grading, day(7))
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 3, p.LongestStreakDays)
}

func TestUpdateProgressPerfectAndChallenge(t *testing.T) {
	d := newTestDB(t)
	scenario := &db.Scenario{ID: "c1", Category: CategoryEscalation, Difficulty: DifficultyChallenge}
	grading := fallbackGrading()
	grading.OverallScore = 100

	p, err := UpdateProgress(d, "u1", scenario, grading, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, p.PerfectScores)
	assert.Equal(t, 1, p.ChallengesDone)
}

func TestRecommendedDifficulty(t *testing.T) {
	tests := []struct {
		completed int
		avg       float64
		want      string
	}{
		{0, 0, DifficultyBeginner},
		{2, 95, DifficultyBeginner},
		{5, 60, DifficultyBeginner},
		{5, 85, DifficultyIntermediate},
		{15, 55, DifficultyBeginner},
		{15, 70, DifficultyIntermediate},
		{15, 90, DifficultyExpert},
		{30, 60, DifficultyIntermediate},
		{30, 75, DifficultyExpert},
		{30, 88, DifficultyChallenge},
	}
	for _, tt := range tests {
		p := &db.TrainingProgress{TotalScenarios: tt.completed, AverageScore: tt.avg}
		assert.Equal(t, tt.want, RecommendedDifficulty(p), "completed=%d avg=%v", tt.completed, tt.avg)
	}
}

func TestRecommendNextTargetsWeakestSkill(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, SeedScenarios(d))

	// Low technical accuracy should steer recommendations toward code
	// citation scenarios.
	scenario := &db.Scenario{ID: "initial_contact_01", Category: CategoryInitialContact, Difficulty: DifficultyBeginner}
	grading := &Grading{
		OverallScore: 75,
		CategoryScores: map[string]float64{
			"professionalism": 90, "technical_accuracy": 40, "communication": 85,
			"problem_solving": 80, "documentation": 80,
		},
	}
	_, err := UpdateProgress(d, "u1", scenario, grading, time.Now().UTC())
	require.NoError(t, err)

	rec, err := RecommendNext(d, "u1")
	require.NoError(t, err)
	assert.Equal(t, CategoryCodeCitations, rec.Scenario.Category)
	assert.Equal(t, "technical_accuracy", rec.FocusSkill)
	assert.Equal(t, DifficultyBeginner, rec.Difficulty)
}

func TestSeedBadges(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, SeedBadges(d))

	badges, err := queries.ListBadges(d)
	require.NoError(t, err)
	assert.Len(t, badges, len(badgeCatalog))

	for _, b := range badges {
		var c badgeCriteria
		require.NoError(t, json.Unmarshal([]byte(b.Criteria), &c), "badge %s criteria", b.ID)
		assert.NotEmpty(t, c.Type)
	}
}

func TestEvaluateBadgesMilestonesAndSkills(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, SeedBadges(d))

	ctx := badgeContext{
		userID: "u1",
		progress: &db.TrainingProgress{
			TotalScenarios:    5,
			AverageScore:      88,
			CurrentStreakDays: 3,
		},
		grading: &Grading{
			OverallScore: 92,
			CategoryScores: map[string]float64{
				"communication": 93, "professionalism": 88, "technical_accuracy": 85,
				"problem_solving": 80, "documentation": 82,
			},
		},
		durationSec: 8 * 60,
		completedAt: time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC),
	}

	earned, err := EvaluateBadges(d, ctx)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, b := range earned {
		ids[b.ID] = true
	}
	assert.True(t, ids["first_steps"])
	assert.True(t, ids["getting_started"])
	assert.True(t, ids["smooth_talker"], "communication 93 earns smooth_talker")
	assert.True(t, ids["on_a_roll"])
	assert.True(t, ids["quick_study"], "8 minutes at 92 earns quick_study")
	assert.False(t, ids["flawless"])
	assert.False(t, ids["early_bird"], "2 PM is not early")

	// Second evaluation awards nothing new.
	again, err := EvaluateBadges(d, ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestEvaluateBadgesSpecialTimes(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, SeedBadges(d))

	base := badgeContext{
		userID:   "u1",
		progress: &db.TrainingProgress{TotalScenarios: 1, AverageScore: 70},
		grading:  fallbackGrading(),
	}

	base.completedAt = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	earned, err := EvaluateBadges(d, base)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, b := range earned {
		ids[b.ID] = true
	}
	assert.True(t, ids["early_bird"])
	assert.False(t, ids["night_owl"])

	base.userID = "u2"
	base.completedAt = time.Date(2026, 5, 1, 22, 15, 0, 0, time.UTC)
	earned, err = EvaluateBadges(d, base)
	require.NoError(t, err)
	ids = map[string]bool{}
	for _, b := range earned {
		ids[b.ID] = true
	}
	assert.True(t, ids["night_owl"])
	assert.False(t, ids["early_bird"])
}

func TestScenarioTips(t *testing.T) {
	s := &db.Scenario{Category: CategoryCodeCitations, Difficulty: DifficultyBeginner}
	tips := ScenarioTips(s)
	assert.NotEmpty(t, tips)
	assert.LessOrEqual(t, len(tips), 3)
}
