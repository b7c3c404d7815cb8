package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteExplicitMentions(t *testing.T) {
	d := Route("Hey Susan, what does the IRC say about drip edge?", RouteContext{})
	assert.Equal(t, AssistantSusan, d.Assistant)
	assert.Equal(t, 1.0, d.Confidence)

	d = Route("Agnes, let's practice an adjuster call", RouteContext{})
	assert.Equal(t, AssistantAgnes, d.Assistant)
	assert.Equal(t, 1.0, d.Confidence)

	// Both mentioned falls through to scoring.
	d = Route("should I ask susan or agnes about this insurance claim?", RouteContext{})
	assert.NotEqual(t, 1.0, d.Confidence)
}

func TestRouteActiveScenario(t *testing.T) {
	d := Route("what is the building code for underlayment?", RouteContext{ActiveTrainingScenario: true})
	assert.Equal(t, AssistantAgnes, d.Assistant)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestRouteContinuity(t *testing.T) {
	d := Route("ok, continue", RouteContext{LastAssistant: AssistantAgnes, LastAssistantStreak: 3})
	assert.Equal(t, AssistantAgnes, d.Assistant)
	assert.Equal(t, 0.9, d.Confidence)

	d = Route("ok, continue", RouteContext{LastAssistant: AssistantSusan, LastAssistantStreak: 5})
	assert.Equal(t, AssistantSusan, d.Assistant)
	assert.Equal(t, 0.9, d.Confidence)

	// Streak below 3 does not pin the assistant.
	d = Route("I want to practice a roleplay", RouteContext{LastAssistant: AssistantSusan, LastAssistantStreak: 2})
	assert.Equal(t, AssistantAgnes, d.Assistant)
}

func TestRouteKeywordScoring(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"training intent", "I want to practice handling an objection", AssistantAgnes},
		{"technical intent", "what building code applies to hail damage on shingles?", AssistantSusan},
		{"manufacturer question", "does GAF cover wind damage under warranty?", AssistantSusan},
		{"roleplay request", "can we rehearse a scenario about escalation?", AssistantAgnes},
		{"no signal defaults to susan", "good morning", AssistantSusan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Route(tt.message, RouteContext{})
			assert.Equal(t, tt.want, d.Assistant)
		})
	}
}

func TestRouteTieDefaultsToSusan(t *testing.T) {
	d := Route("hello there", RouteContext{})
	assert.Equal(t, AssistantSusan, d.Assistant)
	assert.Equal(t, 0.5, d.Confidence)
}

func TestRouteConfidenceNormalized(t *testing.T) {
	d := Route("practice roleplay training scenario rehearse", RouteContext{})
	assert.Equal(t, AssistantAgnes, d.Assistant)
	assert.LessOrEqual(t, d.Confidence, 1.0)
	assert.Greater(t, d.Confidence, 0.5)
}

func TestSuggestHandoff(t *testing.T) {
	// Too early in the conversation.
	assert.Nil(t, SuggestHandoff(AssistantSusan, "let's practice a roleplay scenario", 2))

	h := SuggestHandoff(AssistantSusan, "I want to practice a roleplay training scenario", 5)
	require.NotNil(t, h)
	assert.Equal(t, AssistantAgnes, h.SuggestedAssistant)
	assert.GreaterOrEqual(t, h.Confidence, 0.8)
	assert.Contains(t, h.Message, "Agnes")

	// Already with the right assistant.
	assert.Nil(t, SuggestHandoff(AssistantAgnes, "I want to practice a roleplay training scenario", 5))

	// Weak signal suggests nothing.
	assert.Nil(t, SuggestHandoff(AssistantAgnes, "thanks", 5))
}
