package agnes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roofdocs/nexus/internal/ai"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/pkg/logger"
)

// GradingCategories are the five skills every scenario is scored on.
var GradingCategories = []string{
	"professionalism",
	"technical_accuracy",
	"communication",
	"problem_solving",
	"documentation",
}

// Performance tiers for an overall score.
const (
	TierExcellent        = "excellent"
	TierGood             = "good"
	TierNeedsImprovement = "needs_improvement"
)

type KeyMoment struct {
	Moment   string `json:"moment"`
	Feedback string `json:"feedback"`
}

// Grading is the evaluation of one completed scenario.
type Grading struct {
	OverallScore    float64            `json:"overall_score"`
	CategoryScores  map[string]float64 `json:"category_scores"`
	PerformanceTier string             `json:"performance_tier"`
	Strengths       []string           `json:"strengths"`
	Improvements    []string           `json:"areas_for_improvement"`
	KeyMoments      []KeyMoment        `json:"key_moments"`
	NextSteps       string             `json:"next_steps"`
	Fallback        bool               `json:"-"`
}

// GradeTranscript asks the LLM to evaluate a transcript and falls back to a
// neutral grading when the model or the parse fails.
func GradeTranscript(ctx context.Context, manager *ai.Manager, userID string, scenario *db.Scenario, transcript []*db.SessionMessage) *Grading {
	prompt := buildGradingPrompt(scenario, transcript)

	resp, err := manager.Chat(ctx, ai.ChatRequest{
		Messages: []ai.Message{
			{Role: "system", Content: "You are an expert training evaluator for roofing insurance representatives. Provide detailed, constructive, and fair assessments."},
			{Role: "user", Content: prompt},
		},
		Feature: "agnes_grading",
		UserID:  userID,
	})
	if err != nil {
		logger.Error("AI grading failed, using fallback", "scenario", scenario.ID, "error", err)
		return fallbackGrading()
	}

	grading, err := parseGrading(resp.Content)
	if err != nil {
		logger.Error("Failed to parse grading response, using fallback", "scenario", scenario.ID, "error", err)
		return fallbackGrading()
	}

	validateGrading(grading)
	return grading
}

func buildGradingPrompt(scenario *db.Scenario, transcript []*db.SessionMessage) string {
	var convo strings.Builder
	for _, m := range transcript {
		speaker := "SCENARIO"
		if m.Role == "user" {
			speaker = "REP"
		}
		fmt.Fprintf(&convo, "%s: %s\n\n", speaker, m.Content)
	}

	var objectives []string
	_ = json.Unmarshal([]byte(scenario.Objectives), &objectives)

	return fmt.Sprintf(`Grade this training scenario completion for a roofing insurance representative.

**SCENARIO INFORMATION:**
- **Title:** %s
- **Category:** %s
- **Difficulty:** %s
- **Objective:** %s

**SITUATION:**
%s

**KEY CHALLENGES:**
%s

**FULL CONVERSATION:**
%s
---

**GRADING INSTRUCTIONS:**

Evaluate the rep's performance across these categories:
1. **Professionalism (0-100):** Tone, empathy, respect, courtesy
2. **Technical Accuracy (0-100):** Correct use of codes, guidelines, procedures, terminology
3. **Communication (0-100):** Clarity, active listening, explanation quality
4. **Problem Solving (0-100):** Handling objections, finding solutions, creative thinking
5. **Documentation (0-100):** Proper template usage, thoroughness, attention to detail

Then provide:
- **Overall Score:** Weighted average (all categories equal weight)
- **Performance Tier:** "excellent" (90+), "good" (75-89), or "needs_improvement" (<75)
- **Key Strengths:** Top 3 things they did well
- **Areas for Improvement:** Top 3 things to work on
- **Key Moments:** 2-3 specific moments (good or bad) with feedback
- **Next Steps:** Specific recommendation for their next training

**IMPORTANT:**
- Be fair but honest
- Use specific examples from the conversation
- Consider the difficulty level (be more lenient for beginner scenarios)
- Remember this is INSURANCE CLAIMS, not retail sales

**OUTPUT FORMAT (JSON):**
{
  "overall_score": <0-100>,
  "category_scores": {
    "professionalism": <0-100>,
    "technical_accuracy": <0-100>,
    "communication": <0-100>,
    "problem_solving": <0-100>,
    "documentation": <0-100>
  },
  "performance_tier": "<excellent|good|needs_improvement>",
  "strengths": ["..."],
  "areas_for_improvement": ["..."],
  "key_moments": [{"moment": "...", "feedback": "..."}],
  "next_steps": "..."
}

Provide ONLY the JSON output, no additional text.`,
		scenario.Title, scenario.Category, scenario.Difficulty, scenario.Description,
		scenario.Situation, strings.Join(objectives, ", "), convo.String())
}

// parseGrading extracts the JSON document from the model's reply, stripping
// markdown code fences when present.
func parseGrading(response string) (*Grading, error) {
	content := strings.TrimSpace(response)

	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}

	g := &Grading{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), g); err != nil {
		return nil, fmt.Errorf("grading response is not valid JSON: %w", err)
	}
	return g, nil
}

// validateGrading fills gaps and clamps every score into [0,100].
func validateGrading(g *Grading) {
	if g.CategoryScores == nil {
		g.CategoryScores = make(map[string]float64, len(GradingCategories))
	}
	for _, cat := range GradingCategories {
		score, ok := g.CategoryScores[cat]
		if !ok {
			score = 75
		}
		g.CategoryScores[cat] = clampScore(score)
	}

	if g.OverallScore == 0 {
		var sum float64
		for _, cat := range GradingCategories {
			sum += g.CategoryScores[cat]
		}
		g.OverallScore = sum / float64(len(GradingCategories))
	}
	g.OverallScore = clampScore(g.OverallScore)

	if g.PerformanceTier == "" {
		g.PerformanceTier = TierForScore(g.OverallScore)
	}
	if len(g.Strengths) == 0 {
		g.Strengths = []string{"Completed the scenario"}
	}
	if len(g.Improvements) == 0 {
		g.Improvements = []string{"Continue practicing to improve confidence"}
	}
}

func fallbackGrading() *Grading {
	scores := make(map[string]float64, len(GradingCategories))
	for _, cat := range GradingCategories {
		scores[cat] = 75
	}
	return &Grading{
		OverallScore:    75,
		CategoryScores:  scores,
		PerformanceTier: TierGood,
		Strengths: []string{
			"Completed the scenario",
			"Engaged with the training material",
			"Demonstrated willingness to learn",
		},
		Improvements: []string{
			"Continue practicing to build confidence",
			"Focus on specific technical details",
			"Work on communication clarity",
		},
		KeyMoments: []KeyMoment{
			{Moment: "Scenario completion", Feedback: "Successfully completed the training scenario"},
		},
		NextSteps: "Continue with similar difficulty scenarios to build confidence",
		Fallback:  true,
	}
}

// TierForScore maps an overall score to its performance tier label.
func TierForScore(score float64) string {
	switch {
	case score >= 90:
		return TierExcellent
	case score >= 75:
		return TierGood
	default:
		return TierNeedsImprovement
	}
}

// Medal tiers shown on results: bronze 0-69, silver 70-84, gold 85-94,
// platinum 95+.
func MedalForScore(score float64) string {
	switch {
	case score >= 95:
		return "platinum"
	case score >= 85:
		return "gold"
	case score >= 70:
		return "silver"
	default:
		return "bronze"
	}
}

// Insights summarizes a grading into strongest/weakest skills and trends.
type Insights struct {
	StrongestSkill string  `json:"strongest_skill"`
	StrongestScore float64 `json:"strongest_score"`
	WeakestSkill   string  `json:"weakest_skill"`
	WeakestScore   float64 `json:"weakest_score"`
	ScoreVariance  float64 `json:"score_variance"`
	Consistency    string  `json:"consistency"`
	OverallTrend   string  `json:"overall_trend"`
}

// PerformanceInsights derives insights from category scores. Consistency is
// based on the score spread; trend on the overall score.
func PerformanceInsights(g *Grading) *Insights {
	ins := &Insights{}

	first := true
	var minScore, maxScore float64
	for _, cat := range GradingCategories {
		score := g.CategoryScores[cat]
		if first || score > ins.StrongestScore {
			ins.StrongestSkill = cat
			ins.StrongestScore = score
		}
		if first || score < ins.WeakestScore {
			ins.WeakestSkill = cat
			ins.WeakestScore = score
		}
		if first || score < minScore {
			minScore = score
		}
		if first || score > maxScore {
			maxScore = score
		}
		first = false
	}

	ins.ScoreVariance = maxScore - minScore
	switch {
	case ins.ScoreVariance < 10:
		ins.Consistency = "high"
	case ins.ScoreVariance < 20:
		ins.Consistency = "medium"
	default:
		ins.Consistency = "low"
	}

	switch {
	case g.OverallScore >= 90:
		ins.OverallTrend = "excellent"
	case g.OverallScore >= 80:
		ins.OverallTrend = "strong"
	case g.OverallScore >= 70:
		ins.OverallTrend = "improving"
	default:
		ins.OverallTrend = "developing"
	}
	return ins
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
