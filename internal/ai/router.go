package ai

import (
	"fmt"
	"regexp"
	"strings"
)

// Assistant names the router can pick between.
const (
	AssistantSusan = "susan"
	AssistantAgnes = "agnes"
)

// trainingKeywords route toward Agnes (practice and roleplay intent).
var trainingKeywords = map[string]float64{
	"practice":          1.0,
	"roleplay":          1.0,
	"training":          1.0,
	"scenario":          0.9,
	"teach me":          0.9,
	"learn":             0.8,
	"how to handle":     0.9,
	"what should i say": 0.9,
	"how do i respond":  0.9,
	"objection":         0.7,
	"script":            0.7,
	"agnes":             1.0,
	"train":             0.8,
	"rehearse":          0.9,
	"prepare for":       0.8,
}

// susanKeywords route toward Susan (insurance and technical intent).
var susanKeywords = map[string]float64{
	"building code": 1.0,
	"manufacturer":  0.9,
	"insurance":     0.9,
	"claim":         0.9,
	"adjuster":      0.9,
	"policy":        0.8,
	"coverage":      0.8,
	"gaf":           1.0,
	"owens corning": 1.0,
	"certainteed":   1.0,
	"ibc":           1.0,
	"irc":           1.0,
	"nfpa":          1.0,
	"wind":          0.6,
	"hail":          0.6,
	"storm":         0.6,
	"damage":        0.7,
	"susan":         1.0,
	"flashing":      0.8,
	"underlayment":  0.8,
	"shingles":      0.7,
	"roof":          0.6,
	"photo report":  0.9,
	"itel":          0.9,
	"template":      0.7,
	"documentation": 0.7,
	"estimate":      0.7,
	"complaint":     0.8,
	"arbitration":   0.8,
}

var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`what (is|are) the (code|requirement|guideline)`),
	regexp.MustCompile(`how (do|does) (insurance|claim|policy)`),
	regexp.MustCompile(`(can|should|must) (i|we|they)`),
	regexp.MustCompile(`what (does|is) (gaf|owens corning|ibc|irc)`),
	regexp.MustCompile(`(wind speed|hail size|storm)`),
}

var trainingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`how (do i|should i) (handle|respond|deal with)`),
	regexp.MustCompile(`what (should|would|could) i say`),
	regexp.MustCompile(`(practice|roleplay|train|rehearse)`),
	regexp.MustCompile(`(help me|teach me|show me) (how to|to)`),
}

// RouteContext carries conversation state the router can lean on.
type RouteContext struct {
	ActiveTrainingScenario     bool
	LastAssistant              string
	LastAssistantStreak        int
	RecentScenarioCompletion   bool
	RecentClaimDiscussion      bool
}

// Decision is the router's verdict for a message.
type Decision struct {
	Assistant  string  `json:"assistant"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Handoff suggests moving the conversation to the other assistant.
type Handoff struct {
	SuggestedAssistant string  `json:"suggested_assistant"`
	Reason             string  `json:"reason"`
	Confidence         float64 `json:"confidence"`
	Message            string  `json:"message"`
}

// Route picks susan or agnes for a message.
func Route(message string, rc RouteContext) Decision {
	lower := strings.ToLower(message)

	// Explicit mentions beat everything.
	mentionsSusan := strings.Contains(lower, AssistantSusan)
	mentionsAgnes := strings.Contains(lower, AssistantAgnes)
	if mentionsSusan && !mentionsAgnes {
		return Decision{AssistantSusan, "Explicit mention of Susan", 1.0}
	}
	if mentionsAgnes && !mentionsSusan {
		return Decision{AssistantAgnes, "Explicit mention of Agnes", 1.0}
	}

	if rc.ActiveTrainingScenario {
		return Decision{AssistantAgnes, "Active training scenario in progress", 1.0}
	}

	// A run of 3+ messages with one assistant keeps the conversation there.
	if rc.LastAssistantStreak >= 3 {
		switch rc.LastAssistant {
		case AssistantAgnes:
			return Decision{AssistantAgnes,
				fmt.Sprintf("Training session continuity (%d messages)", rc.LastAssistantStreak), 0.9}
		case AssistantSusan:
			return Decision{AssistantSusan,
				fmt.Sprintf("Technical consultation continuity (%d messages)", rc.LastAssistantStreak), 0.9}
		}
	}

	trainingScore := keywordScore(lower, trainingKeywords)
	technicalScore := keywordScore(lower, susanKeywords)

	if matchesAny(lower, trainingPatterns) {
		trainingScore += 0.5
	}
	if matchesAny(lower, technicalPatterns) {
		technicalScore += 0.5
	}

	if rc.RecentScenarioCompletion {
		trainingScore += 0.3
	}
	if rc.RecentClaimDiscussion {
		technicalScore += 0.3
	}

	switch {
	case trainingScore > technicalScore:
		conf := clampConfidence(trainingScore / (trainingScore + technicalScore + 0.1))
		return Decision{AssistantAgnes,
			fmt.Sprintf("Training intent detected (score: %.2f)", trainingScore), conf}
	case technicalScore > trainingScore:
		conf := clampConfidence(technicalScore / (trainingScore + technicalScore + 0.1))
		return Decision{AssistantSusan,
			fmt.Sprintf("Technical/insurance intent detected (score: %.2f)", technicalScore), conf}
	default:
		return Decision{AssistantSusan, "Default routing (no strong signal)", 0.5}
	}
}

// SuggestHandoff proposes switching assistants mid-conversation when the
// latest message clearly belongs to the other one.
func SuggestHandoff(currentAssistant, message string, conversationLength int) *Handoff {
	if conversationLength < 3 {
		return nil
	}

	d := Route(message, RouteContext{})
	if d.Assistant == currentAssistant || d.Confidence < 0.8 {
		return nil
	}

	return &Handoff{
		SuggestedAssistant: d.Assistant,
		Reason:             d.Reason,
		Confidence:         d.Confidence,
		Message:            handoffMessage(currentAssistant, d.Assistant),
	}
}

func handoffMessage(from, to string) string {
	if from == AssistantSusan && to == AssistantAgnes {
		return "It sounds like you'd like to practice this! Let me connect you with Agnes for some roleplay training. She's great at this!"
	}
	if from == AssistantAgnes && to == AssistantSusan {
		return "Great practice! For the actual technical details and insurance specifics, let me hand you over to Susan. She's the expert on real-world claims!"
	}
	if to == "" {
		return "Let me connect you with the right assistant for this."
	}
	return fmt.Sprintf("Let me connect you with %s for this.", strings.ToUpper(to[:1])+to[1:])
}

func keywordScore(message string, keywords map[string]float64) float64 {
	score := 0.0
	for kw, weight := range keywords {
		if strings.Contains(message, kw) {
			score += weight
		}
	}
	return score
}

func matchesAny(message string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

func clampConfidence(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
