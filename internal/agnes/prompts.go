package agnes

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roofdocs/nexus/internal/db"
)

// systemPrompt is Agnes' persona for every roleplay turn.
const systemPrompt = `You are Agnes, an expert training partner for roofing insurance sales reps working with Roof-ER.

Your role: Conduct interactive roleplay scenarios where reps practice real-world situations.

Scenario Types:
1. **Homeowner Interactions** - Play the homeowner, respond realistically
2. **Adjuster Negotiations** - Play the insurance adjuster, challenge the rep
3. **Template Usage** - Guide reps through Photo Report, iTel, Repair Attempt templates
4. **Code Citations** - Quiz and guide on IBC, IRC, FBC, NFPA, manufacturer guidelines
5. **Escalation Scenarios** - Practice involving Team Leaders, Sales Managers
6. **Documentation Excellence** - Review and improve documentation practices

Your behavior in scenarios:
- **Stay in character** - Be the homeowner or adjuster as described
- **Be realistic** - Show emotions, concerns, objections that real people have
- **Progressive difficulty** - Start cooperative, add challenges as scenario progresses
- **Educational moments** - When rep handles something well or poorly, briefly note it
- **Natural conversation** - Don't be a quiz bot, be a real person

Grading focus:
- **Professionalism** - Tone, empathy, respect
- **Technical accuracy** - Correct codes, guidelines, procedures
- **Template usage** - Proper documentation and forms
- **Problem-solving** - How they handle objections and challenges
- **Communication** - Clarity, confidence, listening

Remember: This is TRAINING. Be challenging but fair. Help them grow.

CRITICAL: This is for INSURANCE CLAIMS, not retail sales. Homeowners typically pay only the deductible; insurance covers the rest.`

// scenarioStartMessage kicks off the roleplay in character.
const scenarioStartMessage = "[SCENARIO_START] Begin the roleplay. Set the scene and start the interaction naturally."

// buildScenarioContext renders a scenario for the system prompt.
func buildScenarioContext(s *db.Scenario) string {
	parts := []string{
		fmt.Sprintf("**Scenario:** %s", s.Title),
		fmt.Sprintf("**Category:** %s", s.Category),
		fmt.Sprintf("**Difficulty:** %s", s.Difficulty),
		fmt.Sprintf("\n**Situation:** %s", s.Situation),
		fmt.Sprintf("\n**Objective:** %s", s.Description),
	}
	if s.Persona != "" {
		parts = append(parts, fmt.Sprintf("\n**Character Profile:** %s", s.Persona))
	}

	var objectives []string
	if err := json.Unmarshal([]byte(s.Objectives), &objectives); err == nil && len(objectives) > 0 {
		parts = append(parts, fmt.Sprintf("\n**Key Challenges:** %s", strings.Join(objectives, ", ")))
	}
	return strings.Join(parts, "\n")
}

// scenarioSystemPrompt combines the persona with the scenario context.
func scenarioSystemPrompt(s *db.Scenario) string {
	return systemPrompt + "\n\nCurrent scenario:\n" + buildScenarioContext(s)
}

// ScenarioTips returns up to three coaching tips for a scenario.
func ScenarioTips(s *db.Scenario) []string {
	var tips []string

	switch s.Category {
	case CategoryInitialContact:
		tips = append(tips, "Focus on building rapport and trust early",
			"Listen carefully to homeowner's concerns")
	case CategoryAdjusterRelations:
		tips = append(tips, "Stay professional even if adjuster is challenging",
			"Use specific code references to support your position")
	case CategoryTemplateUsage:
		tips = append(tips, "Follow the template structure carefully",
			"Be thorough in documentation")
	case CategoryCodeCitations:
		tips = append(tips, "Cite specific code sections with numbers",
			"Explain why the code applies to this situation")
	case CategoryEscalation:
		tips = append(tips, "Know when to escalate vs handle yourself",
			"Document everything before escalating")
	}

	switch s.Difficulty {
	case DifficultyBeginner:
		tips = append(tips, "Take your time - this is a learning exercise")
	case DifficultyExpert, DifficultyChallenge:
		tips = append(tips, "This scenario will challenge you - stay focused")
	}

	if len(tips) > 3 {
		tips = tips[:3]
	}
	return tips
}

// completionKeywords signal that the rep is wrapping up the interaction.
var completionKeywords = []string{
	"thank you for your help",
	"i'll proceed with",
	"sounds good",
	"perfect, i understand",
	"that makes sense",
}

// detectCompletion reports whether the roleplay should naturally end:
// after 20 messages, or after 8 when the rep signals a wrap-up.
func detectCompletion(messageCount int, newMessage string) bool {
	if messageCount >= 20 {
		return true
	}
	if messageCount < 8 {
		return false
	}
	lower := strings.ToLower(newMessage)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
