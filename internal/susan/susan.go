// Package susan is the claims-expert chat assistant: conversations,
// history-aware prompting and knowledge-base grounding.
package susan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roofdocs/nexus/internal/ai"
	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/rag"
	"github.com/roofdocs/nexus/pkg/logger"
)

const systemPrompt = `You are Susan, an expert insurance claims specialist for roofing contractors working with RoofDocs.

Your expertise includes:
- Insurance policies and claims procedures for storm damage
- Building codes (IBC, IRC, FBC, NFPA) and requirements
- Manufacturer specifications and guidelines (GAF, Owens Corning, CertainTeed)
- Storm damage assessment (hail, wind, impact)
- Working with insurance adjusters professionally
- Documentation requirements (Photo Report Template, iTel, Repair Attempt Template)
- Escalation processes (Team Leader to Sales Manager to Arbitration)
- State-specific requirements (Maryland, Virginia, Florida)

Your role:
- Provide accurate, detailed insurance and technical information
- Cite specific codes, manufacturer guidelines, and policy requirements
- Guide reps through the claims process step-by-step
- Help with documentation and template usage
- Advise on adjuster negotiations professionally
- Support escalation decisions with clear reasoning

Your style:
- Professional yet friendly
- Educational without being condescending
- Specific and actionable
- Always cite sources (codes, manufacturer docs, templates)
- Support reps in achieving claim approvals

Remember: Reps are working with INSURANCE CLAIMS, not retail sales. The homeowner typically pays only the deductible; insurance covers the rest. Focus on proper documentation and working through the insurance process.`

const maxTitleLength = 100

// Service answers rep questions with the knowledge base behind it.
type Service struct {
	cfg *config.Config
	db  *sql.DB
	ai  *ai.Manager
	rag *rag.System
}

func NewService(cfg *config.Config, database *sql.DB, manager *ai.Manager, knowledge *rag.System) *Service {
	return &Service{cfg: cfg, db: database, ai: manager, rag: knowledge}
}

// Reply is one assistant turn in a conversation.
type Reply struct {
	ConversationID string              `json:"conversation_id"`
	Message        string              `json:"message"`
	Role           string              `json:"role"`
	Provider       string              `json:"provider"`
	Model          string              `json:"model"`
	Sources        []*rag.SearchResult `json:"sources,omitempty"`
}

// Chat creates or continues a conversation and returns Susan's reply. The
// user message and the reply are both persisted.
func (s *Service) Chat(ctx context.Context, userID, conversationID, message string) (*Reply, error) {
	var conv *db.Conversation
	var err error

	if conversationID != "" {
		conv, err = queries.GetConversation(s.db, conversationID, userID)
		if err != nil {
			return nil, err
		}
	} else {
		title := message
		if len(title) > maxTitleLength {
			title = title[:maxTitleLength]
		}
		conv, err = queries.CreateConversation(s.db, userID, title, ai.AssistantSusan)
		if err != nil {
			return nil, err
		}
	}

	if _, err := queries.AddMessage(s.db, conv.ID, "user", message, 0, 0, ""); err != nil {
		return nil, err
	}

	history, err := queries.RecentMessages(s.db, conv.ID, s.historyWindow())
	if err != nil {
		return nil, err
	}

	messages := []ai.Message{{Role: "system", Content: systemPrompt}}

	sources := s.retrieveSources(ctx, message)
	if block := rag.ContextBlock(sources); block != "" {
		messages = append(messages, ai.Message{Role: "system", Content: block})
	}

	for _, m := range history {
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := s.ai.Chat(ctx, ai.ChatRequest{
		Messages: messages,
		Feature:  "susan_chat",
		UserID:   userID,
	})
	if err != nil {
		return nil, fmt.Errorf("susan is unavailable: %w", err)
	}

	if _, err := queries.AddMessage(s.db, conv.ID, "assistant", resp.Content,
		resp.TokensUsed, resp.Cost, resp.Provider); err != nil {
		return nil, err
	}

	if err := queries.BumpFeatureUsage(s.db, userID, "susan_chat"); err != nil {
		logger.Warn("Failed to bump feature usage", "feature", "susan_chat", "error", err)
	}

	return &Reply{
		ConversationID: conv.ID,
		Message:        resp.Content,
		Role:           "assistant",
		Provider:       resp.Provider,
		Model:          resp.Model,
		Sources:        sources,
	}, nil
}

// retrieveSources runs a knowledge search for the message. Retrieval
// failures degrade to an unassisted answer rather than failing the chat.
func (s *Service) retrieveSources(ctx context.Context, message string) []*rag.SearchResult {
	if !s.rag.Enabled() {
		return nil
	}
	results, err := s.rag.Search(ctx, message, s.cfg.RAG.TopK, s.cfg.RAG.SimilarityThreshold)
	if err != nil {
		logger.Warn("Knowledge retrieval failed, answering without context", "error", err)
		return nil
	}
	return results
}

func (s *Service) historyWindow() int {
	if s.cfg.RAG.MaxHistoryMessages > 0 {
		return s.cfg.RAG.MaxHistoryMessages
	}
	return 20
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Assistant     string `json:"assistant"`
	CreatedAt     string `json:"created_at"`
	LastMessageAt string `json:"last_message_at"`
}

// Conversations lists the user's conversations, newest first.
func (s *Service) Conversations(userID string, limit, offset int) ([]*ConversationSummary, error) {
	convs, err := queries.ListConversations(s.db, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, &ConversationSummary{
			ID:            c.ID,
			Title:         c.Title,
			Assistant:     c.Assistant,
			CreatedAt:     c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			LastMessageAt: c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out, nil
}

// ConversationDetail returns an owned conversation with its messages.
func (s *Service) ConversationDetail(userID, conversationID string) (*db.Conversation, []*db.Message, error) {
	conv, err := queries.GetConversation(s.db, conversationID, userID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := queries.ListMessages(s.db, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// DeleteConversation removes an owned conversation and its messages.
func (s *Service) DeleteConversation(userID, conversationID string) error {
	return queries.DeleteConversation(s.db, conversationID, userID)
}

// RouteMessage decides which assistant should take a message, with a
// handoff suggestion when the conversation leans the other way.
func (s *Service) RouteMessage(userID, conversationID, message string) (ai.Decision, *ai.Handoff) {
	rc := ai.RouteContext{}
	length := 0

	if conversationID != "" {
		if conv, err := queries.GetConversation(s.db, conversationID, userID); err == nil {
			msgs, err := queries.ListMessages(s.db, conv.ID)
			if err == nil {
				length = len(msgs)
			}
			rc.LastAssistant = conv.Assistant
			rc.LastAssistantStreak = streakFor(msgs, conv.Assistant)
		} else if !errors.Is(err, queries.ErrNotFound) {
			logger.Warn("Routing context lookup failed", "conversation", conversationID, "error", err)
		}
	}

	decision := ai.Route(message, rc)
	handoff := ai.SuggestHandoff(rc.LastAssistant, message, length)
	return decision, handoff
}

func streakFor(msgs []*db.Message, assistant string) int {
	if assistant == "" {
		return 0
	}
	streak := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != "assistant" {
			continue
		}
		streak++
	}
	return streak
}
