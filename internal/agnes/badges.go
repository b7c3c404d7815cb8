package agnes

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/pkg/logger"
)

// Badge criteria types.
const (
	criteriaScenariosCompleted = "scenarios_completed"
	criteriaSkillScore         = "skill_score"
	criteriaStreakDays         = "streak_days"
	criteriaPerfectScore       = "perfect_score"
	criteriaCategoryComplete   = "category_complete"
	criteriaMinAverageScore    = "min_average_score"
	criteriaChallengeScenarios = "challenge_scenarios"
	criteriaMaxDuration        = "max_duration_minutes"
	criteriaSpecial            = "special"
)

type badgeCriteria struct {
	Type       string  `json:"type"`
	Count      int     `json:"count,omitempty"`
	Skill      string  `json:"skill,omitempty"`
	MinScore   float64 `json:"min_score,omitempty"`
	Days       int     `json:"days,omitempty"`
	Category   string  `json:"category,omitempty"`
	MaxMinutes int     `json:"max_minutes,omitempty"`
	Special    string  `json:"special,omitempty"`
}

type badgeDef struct {
	ID          string
	Name        string
	Description string
	Category    string
	Icon        string
	Rarity      string
	Criteria    badgeCriteria
}

func (d badgeDef) toModel() (*db.Badge, error) {
	criteria, err := json.Marshal(d.Criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria for badge %s: %w", d.ID, err)
	}
	return &db.Badge{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Rarity:      d.Rarity,
		Icon:        d.Icon,
		Criteria:    string(criteria),
	}, nil
}

// badgeCatalog is the full set of earnable badges. Seeded into the badges
// table at startup so the API can list them with earned state.
var badgeCatalog = []badgeDef{
	{"first_steps", "First Steps", "Complete your first training scenario", "milestone", "👣", "common",
		badgeCriteria{Type: criteriaSpecial, Special: "first_scenario"}},
	{"getting_started", "Getting Started", "Complete 5 training scenarios", "milestone", "🚀", "common",
		badgeCriteria{Type: criteriaScenariosCompleted, Count: 5}},
	{"committed", "Committed", "Complete 25 training scenarios", "milestone", "💪", "uncommon",
		badgeCriteria{Type: criteriaScenariosCompleted, Count: 25}},
	{"dedicated", "Dedicated", "Complete 50 training scenarios", "milestone", "🏆", "rare",
		badgeCriteria{Type: criteriaScenariosCompleted, Count: 50}},
	{"centurion", "Centurion", "Complete 100 training scenarios", "milestone", "⚔️", "legendary",
		badgeCriteria{Type: criteriaScenariosCompleted, Count: 100}},

	{"smooth_talker", "Smooth Talker", "Score 90+ in communication", "skill", "🗣️", "uncommon",
		badgeCriteria{Type: criteriaSkillScore, Skill: "communication", MinScore: 90}},
	{"code_master", "Code Master", "Score 90+ in technical accuracy", "skill", "📐", "uncommon",
		badgeCriteria{Type: criteriaSkillScore, Skill: "technical_accuracy", MinScore: 90}},
	{"true_professional", "True Professional", "Score 95+ in professionalism", "skill", "🤝", "rare",
		badgeCriteria{Type: criteriaSkillScore, Skill: "professionalism", MinScore: 95}},
	{"problem_solver", "Problem Solver", "Score 90+ in problem solving", "skill", "🧩", "uncommon",
		badgeCriteria{Type: criteriaSkillScore, Skill: "problem_solving", MinScore: 90}},
	{"paper_trail", "Paper Trail", "Score 90+ in documentation", "skill", "📋", "uncommon",
		badgeCriteria{Type: criteriaSkillScore, Skill: "documentation", MinScore: 90}},

	{"on_a_roll", "On a Roll", "Train 3 days in a row", "streak", "🔥", "common",
		badgeCriteria{Type: criteriaStreakDays, Days: 3}},
	{"week_warrior", "Week Warrior", "Train 7 days in a row", "streak", "📅", "uncommon",
		badgeCriteria{Type: criteriaStreakDays, Days: 7}},
	{"unstoppable", "Unstoppable", "Train 30 days in a row", "streak", "🌟", "legendary",
		badgeCriteria{Type: criteriaStreakDays, Days: 30}},

	{"flawless", "Flawless", "Score a perfect 100 on any scenario", "special", "💯", "rare",
		badgeCriteria{Type: criteriaPerfectScore}},
	{"perfectionist", "Perfectionist", "Score a perfect 100 three times", "special", "💎", "legendary",
		badgeCriteria{Type: criteriaSpecial, Special: "perfectionist"}},

	{"first_impression", "First Impression", "Complete every initial contact scenario", "mastery", "🚪", "rare",
		badgeCriteria{Type: criteriaCategoryComplete, Category: CategoryInitialContact}},
	{"adjuster_whisperer", "Adjuster Whisperer", "Complete every adjuster relations scenario", "mastery", "🎯", "rare",
		badgeCriteria{Type: criteriaCategoryComplete, Category: CategoryAdjusterRelations}},
	{"template_titan", "Template Titan", "Complete every template usage scenario", "mastery", "📄", "rare",
		badgeCriteria{Type: criteriaCategoryComplete, Category: CategoryTemplateUsage}},
	{"code_scholar", "Code Scholar", "Complete every code citation scenario", "mastery", "📚", "rare",
		badgeCriteria{Type: criteriaCategoryComplete, Category: CategoryCodeCitations}},
	{"peacekeeper", "Peacekeeper", "Complete every escalation scenario", "mastery", "🕊️", "rare",
		badgeCriteria{Type: criteriaCategoryComplete, Category: CategoryEscalation}},

	{"consistent_performer", "Consistent Performer", "Hold an 85+ average over 10+ scenarios", "mastery", "📈", "rare",
		badgeCriteria{Type: criteriaMinAverageScore, MinScore: 85, Count: 10}},
	{"challenge_accepted", "Challenge Accepted", "Complete 5 challenge scenarios", "mastery", "🎖️", "rare",
		badgeCriteria{Type: criteriaChallengeScenarios, Count: 5}},
	{"quick_study", "Quick Study", "Finish a scenario with 80+ in under 10 minutes", "special", "⚡", "uncommon",
		badgeCriteria{Type: criteriaMaxDuration, MaxMinutes: 10, MinScore: 80}},

	{"early_bird", "Early Bird", "Complete a scenario before 9 AM", "special", "🌅", "common",
		badgeCriteria{Type: criteriaSpecial, Special: "early_bird"}},
	{"night_owl", "Night Owl", "Complete a scenario after 10 PM", "special", "🦉", "common",
		badgeCriteria{Type: criteriaSpecial, Special: "night_owl"}},
}

// SeedBadges installs the badge catalog, updating definitions in place.
func SeedBadges(d *sql.DB) error {
	for _, def := range badgeCatalog {
		b, err := def.toModel()
		if err != nil {
			return err
		}
		if err := queries.UpsertBadge(d, b); err != nil {
			return fmt.Errorf("failed to seed badge %s: %w", def.ID, err)
		}
	}
	logger.Debug("Badge catalog seeded", "badges", len(badgeCatalog))
	return nil
}

// badgeContext carries everything badge evaluation needs about the result
// that just landed.
type badgeContext struct {
	userID      string
	progress    *db.TrainingProgress
	grading     *Grading
	durationSec int
	completedAt time.Time
}

// EvaluateBadges checks the full catalog against the user's state after a
// scenario result and awards anything newly earned. Awards are idempotent.
func EvaluateBadges(d *sql.DB, ctx badgeContext) ([]*db.Badge, error) {
	earned, err := queries.EarnedBadgeIDs(d, ctx.userID)
	if err != nil {
		return nil, err
	}

	var newlyEarned []*db.Badge
	for _, def := range badgeCatalog {
		if _, has := earned[def.ID]; has {
			continue
		}

		met, err := criteriaMet(d, def.Criteria, ctx)
		if err != nil {
			logger.Warn("Badge criteria check failed", "badge", def.ID, "error", err)
			continue
		}
		if !met {
			continue
		}

		awarded, err := queries.AwardBadge(d, ctx.userID, def.ID)
		if err != nil {
			return nil, err
		}
		if awarded {
			b, err := def.toModel()
			if err != nil {
				return nil, err
			}
			newlyEarned = append(newlyEarned, b)
			logger.Info("Badge earned", "user", ctx.userID, "badge", def.ID)
		}
	}
	return newlyEarned, nil
}

func criteriaMet(d *sql.DB, c badgeCriteria, ctx badgeContext) (bool, error) {
	switch c.Type {
	case criteriaScenariosCompleted:
		return ctx.progress.TotalScenarios >= c.Count, nil

	case criteriaSkillScore:
		return ctx.grading.CategoryScores[c.Skill] >= c.MinScore, nil

	case criteriaStreakDays:
		return ctx.progress.CurrentStreakDays >= c.Days, nil

	case criteriaPerfectScore:
		return ctx.grading.OverallScore >= 100, nil

	case criteriaCategoryComplete:
		total, err := queries.CountScenariosByCategory(d, c.Category)
		if err != nil {
			return false, err
		}
		if total == 0 {
			return false, nil
		}
		done, err := queries.CompletedCategoryCount(d, ctx.userID, c.Category)
		if err != nil {
			return false, err
		}
		return done >= total, nil

	case criteriaMinAverageScore:
		return ctx.progress.TotalScenarios >= c.Count &&
			ctx.progress.AverageScore >= c.MinScore, nil

	case criteriaChallengeScenarios:
		done, err := queries.CountChallengeResults(d, ctx.userID)
		if err != nil {
			return false, err
		}
		return done >= c.Count, nil

	case criteriaMaxDuration:
		return ctx.durationSec > 0 &&
			ctx.durationSec <= c.MaxMinutes*60 &&
			ctx.grading.OverallScore >= c.MinScore, nil

	case criteriaSpecial:
		return specialCriteriaMet(c.Special, ctx), nil
	}
	return false, fmt.Errorf("unknown badge criteria type %q", c.Type)
}

func specialCriteriaMet(special string, ctx badgeContext) bool {
	switch special {
	case "first_scenario":
		return ctx.progress.TotalScenarios >= 1
	case "early_bird":
		return ctx.completedAt.Hour() < 9
	case "night_owl":
		return ctx.completedAt.Hour() >= 22
	case "perfectionist":
		return ctx.progress.PerfectScores >= 3
	}
	return false
}
