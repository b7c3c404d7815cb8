package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/server"
	"github.com/roofdocs/nexus/pkg/validation"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type knowledgeRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Source   string   `json:"source"`
	Tags     []string `json:"tags"`
}

// SusanChat handles POST /api/susan/chat.
func SusanChat(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	req := new(chatRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	reply, err := a.Susan.Chat(c.Request().Context(), user.ID, req.ConversationID, message)
	if err != nil {
		return httpError(err, "conversation not found")
	}
	return sendJSONResponse(c, http.StatusOK, reply)
}

// SusanRoute handles POST /api/susan/route: which assistant should take
// this message.
func SusanRoute(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	req := new(chatRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	decision, handoff := a.Susan.RouteMessage(user.ID, req.ConversationID, req.Message)
	resp := map[string]any{"decision": decision}
	if handoff != nil {
		resp["handoff"] = handoff
	}
	return sendJSONResponse(c, http.StatusOK, resp)
}

// ListConversations handles GET /api/susan/conversations.
func ListConversations(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	convs, err := a.Susan.Conversations(user.ID, limit, offset)
	if err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{"conversations": convs})
}

// GetConversation handles GET /api/susan/conversations/:id.
func GetConversation(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	conv, msgs, err := a.Susan.ConversationDetail(user.ID, c.Param("id"))
	if err != nil {
		return httpError(err, "conversation not found")
	}

	type messageView struct {
		ID        string  `json:"id"`
		Role      string  `json:"role"`
		Content   string  `json:"content"`
		Provider  string  `json:"provider,omitempty"`
		Tokens    int     `json:"tokens_used"`
		Cost      float64 `json:"cost"`
		CreatedAt string  `json:"created_at"`
	}
	views := make([]*messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, &messageView{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Provider:  m.Provider.String,
			Tokens:    m.TokensUsed,
			Cost:      m.Cost,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"id":       conv.ID,
		"title":    conv.Title,
		"messages": views,
	})
}

// DeleteConversation handles DELETE /api/susan/conversations/:id.
func DeleteConversation(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}
	if err := a.Susan.DeleteConversation(user.ID, c.Param("id")); err != nil {
		return httpError(err, "conversation not found")
	}
	return sendJSONResponse(c, http.StatusOK, map[string]string{"status": "deleted"})
}

// SearchKnowledge handles GET /api/susan/knowledge/search.
func SearchKnowledge(c echo.Context, a *server.App) error {
	if _, err := requestUser(c); err != nil {
		return err
	}

	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}
	if !a.RAG.Enabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge search is disabled")
	}

	topK := queryInt(c, "top_k", a.Config.RAG.TopK)
	results, err := a.RAG.Search(c.Request().Context(), query, topK, a.Config.RAG.SimilarityThreshold)
	if err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

// AddKnowledge handles POST /api/susan/knowledge (admin).
func AddKnowledge(c echo.Context, a *server.App) error {
	req := new(knowledgeRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	title := validation.StripHTML(strings.TrimSpace(req.Title))
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and content are required")
	}
	if !a.RAG.Enabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge base is disabled")
	}

	entry, err := a.RAG.AddEntry(c.Request().Context(), title, content, req.Category, req.Source, req.Tags)
	if err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusCreated, map[string]any{
		"id":       entry.ID,
		"title":    entry.Title,
		"category": entry.Category,
	})
}

// ListKnowledge handles GET /api/susan/knowledge (admin).
func ListKnowledge(c echo.Context, a *server.App) error {
	entries, err := queries.ListKnowledgeEntries(a.DB)
	if err != nil {
		return err
	}

	type entryView struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Category string `json:"category"`
		Source   string `json:"source,omitempty"`
	}
	views := make([]*entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, &entryView{
			ID:       e.ID,
			Title:    e.Title,
			Category: e.Category,
			Source:   e.Source.String,
		})
	}
	return sendJSONResponse(c, http.StatusOK, map[string]any{"entries": views})
}

// DeleteKnowledge handles DELETE /api/susan/knowledge/:id (admin).
func DeleteKnowledge(c echo.Context, a *server.App) error {
	if err := queries.DeleteKnowledgeEntry(a.DB, c.Param("id")); err != nil {
		return httpError(err, "knowledge entry not found")
	}
	return sendJSONResponse(c, http.StatusOK, map[string]string{"status": "deleted"})
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
