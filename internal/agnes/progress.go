package agnes

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
)

const dateLayout = "2006-01-02"

// skillToCategory maps a grading category to the scenario category that
// trains it, used when recommending the next scenario.
var skillToCategory = map[string]string{
	"professionalism":    CategoryInitialContact,
	"technical_accuracy": CategoryCodeCitations,
	"communication":      CategoryAdjusterRelations,
	"problem_solving":    CategoryEscalation,
	"documentation":      CategoryDocumentation,
}

// UpdateProgress folds a new scenario result into the user's training
// progress row: totals, per-category counters, rolling skill averages, and
// the daily streak.
func UpdateProgress(d *sql.DB, userID string, scenario *db.Scenario, grading *Grading, completedAt time.Time) (*db.TrainingProgress, error) {
	p, err := queries.GetProgress(d, userID)
	if err != nil {
		return nil, err
	}

	p.UserID = userID
	p.TotalScenarios++
	p.TotalScore += grading.OverallScore
	p.AverageScore = p.TotalScore / float64(p.TotalScenarios)

	var counts map[string]int
	if err := json.Unmarshal([]byte(p.CategoryCounts), &counts); err != nil || counts == nil {
		counts = make(map[string]int)
	}
	counts[scenario.Category]++
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return nil, err
	}
	p.CategoryCounts = string(countsJSON)

	// Skill averages update as a running mean over all completed scenarios.
	var averages map[string]float64
	if err := json.Unmarshal([]byte(p.CategoryAverages), &averages); err != nil || averages == nil {
		averages = make(map[string]float64)
	}
	n := float64(p.TotalScenarios)
	for _, skill := range GradingCategories {
		prev := averages[skill]
		averages[skill] = (prev*(n-1) + grading.CategoryScores[skill]) / n
	}
	averagesJSON, err := json.Marshal(averages)
	if err != nil {
		return nil, err
	}
	p.CategoryAverages = string(averagesJSON)

	updateStreak(p, completedAt)

	if grading.OverallScore >= 100 {
		p.PerfectScores++
	}
	if scenario.Difficulty == DifficultyChallenge {
		p.ChallengesDone++
	}

	if err := queries.SaveProgress(d, p); err != nil {
		return nil, err
	}
	return p, nil
}

// updateStreak advances the daily streak: same day keeps it, the next day
// extends it, any gap resets it to 1.
func updateStreak(p *db.TrainingProgress, completedAt time.Time) {
	today := completedAt.Format(dateLayout)

	switch {
	case !p.LastSessionDate.Valid || p.LastSessionDate.String == "":
		p.CurrentStreakDays = 1
	case p.LastSessionDate.String == today:
		// already counted today
	default:
		last, err := time.Parse(dateLayout, p.LastSessionDate.String)
		if err == nil && last.AddDate(0, 0, 1).Format(dateLayout) == today {
			p.CurrentStreakDays++
		} else {
			p.CurrentStreakDays = 1
		}
	}

	if p.CurrentStreakDays > p.LongestStreakDays {
		p.LongestStreakDays = p.CurrentStreakDays
	}
	p.LastSessionDate = sql.NullString{String: today, Valid: true}
}

// RecommendedDifficulty walks the progression ladder: new reps stay on
// beginner, then move up as volume and average score grow.
func RecommendedDifficulty(p *db.TrainingProgress) string {
	completed := p.TotalScenarios
	avg := p.AverageScore

	switch {
	case completed < 3:
		return DifficultyBeginner
	case completed < 10:
		if avg < 70 {
			return DifficultyBeginner
		}
		return DifficultyIntermediate
	case completed < 25:
		switch {
		case avg < 60:
			return DifficultyBeginner
		case avg < 75:
			return DifficultyIntermediate
		default:
			return DifficultyExpert
		}
	default:
		switch {
		case avg < 65:
			return DifficultyIntermediate
		case avg < 80:
			return DifficultyExpert
		default:
			return DifficultyChallenge
		}
	}
}

// Recommendation is the next scenario suggested for a rep, with the reason
// it was chosen.
type Recommendation struct {
	Scenario   *db.Scenario `json:"scenario"`
	Reason     string       `json:"reason"`
	Difficulty string       `json:"recommended_difficulty"`
	FocusSkill string       `json:"focus_skill,omitempty"`
}

// RecommendNext picks an uncompleted scenario targeting the rep's weakest
// skill at an appropriate difficulty, falling back to any uncompleted
// scenario, then to repeats.
func RecommendNext(d *sql.DB, userID string) (*Recommendation, error) {
	p, err := queries.GetProgress(d, userID)
	if err != nil {
		return nil, err
	}

	difficulty := RecommendedDifficulty(p)
	completed, err := queries.CompletedScenarioIDs(d, userID)
	if err != nil {
		return nil, err
	}

	focusSkill, focusCategory := weakestSkill(p)

	// First choice: weakest skill's category at the recommended difficulty.
	if focusCategory != "" {
		if s := firstUncompleted(d, focusCategory, difficulty, completed); s != nil {
			return &Recommendation{
				Scenario:   s,
				Reason:     recommendationReason(p, focusCategory),
				Difficulty: difficulty,
				FocusSkill: focusSkill,
			}, nil
		}
	}

	// Second: anything uncompleted at the recommended difficulty.
	if s := firstUncompleted(d, "", difficulty, completed); s != nil {
		return &Recommendation{
			Scenario:   s,
			Reason:     "A fresh scenario at your current level",
			Difficulty: difficulty,
		}, nil
	}

	// Third: anything uncompleted at all.
	if s := firstUncompleted(d, "", "", completed); s != nil {
		return &Recommendation{
			Scenario:   s,
			Reason:     "Expanding into new territory",
			Difficulty: difficulty,
		}, nil
	}

	// Everything is done; suggest repeating at the top difficulty.
	all, err := queries.ListScenarios(d, "", DifficultyChallenge)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, queries.ErrNotFound
	}
	return &Recommendation{
		Scenario:   all[0],
		Reason:     "You've completed everything. Revisit a challenge to stay sharp",
		Difficulty: DifficultyChallenge,
	}, nil
}

// weakestSkill returns the lowest rolling skill average and its training
// category. Empty when no scenarios are completed yet.
func weakestSkill(p *db.TrainingProgress) (skill, category string) {
	if p.TotalScenarios == 0 {
		return "", ""
	}
	var averages map[string]float64
	if err := json.Unmarshal([]byte(p.CategoryAverages), &averages); err != nil || len(averages) == 0 {
		return "", ""
	}

	lowest := 101.0
	for _, s := range GradingCategories {
		if avg, ok := averages[s]; ok && avg < lowest {
			lowest = avg
			skill = s
		}
	}
	return skill, skillToCategory[skill]
}

// recommendationReason explains why a category was picked based on how much
// of it the rep has already covered.
func recommendationReason(p *db.TrainingProgress, category string) string {
	var counts map[string]int
	_ = json.Unmarshal([]byte(p.CategoryCounts), &counts)

	done := counts[category]
	total := p.TotalScenarios
	if total == 0 {
		return "Start building your foundation"
	}

	pct := float64(done) / float64(total) * 100
	switch {
	case pct < 30:
		return "Building foundational skills in an area you haven't explored much"
	case pct < 70:
		return "Continuing to develop a skill that needs more reps"
	default:
		return "You're excelling here. Keep pushing toward mastery"
	}
}

func firstUncompleted(d *sql.DB, category, difficulty string, completed map[string]bool) *db.Scenario {
	scenarios, err := queries.ListScenarios(d, category, difficulty)
	if err != nil {
		return nil
	}
	for _, s := range scenarios {
		if !completed[s.ID] {
			return s
		}
	}
	return nil
}
