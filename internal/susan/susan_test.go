package susan

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/roofdocs/nexus/internal/ai"
	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/rag"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	stmts := []string{
		`CREATE TABLE conversations (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, title TEXT NOT NULL,
			assistant TEXT NOT NULL DEFAULT 'susan',
			created_at TIMESTAMP NOT NULL, updated_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE messages (
			id TEXT PRIMARY KEY, conversation_id TEXT NOT NULL,
			role TEXT NOT NULL, content TEXT NOT NULL,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0, provider TEXT,
			created_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE knowledge_entries (
			id TEXT PRIMARY KEY, title TEXT NOT NULL, content TEXT NOT NULL,
			category TEXT NOT NULL, source TEXT, tags TEXT NOT NULL DEFAULT '[]',
			embedding BLOB, created_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE feature_usage (
			user_id TEXT NOT NULL, feature TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0, last_used TIMESTAMP NOT NULL,
			UNIQUE(user_id, feature))`,
	}
	for _, stmt := range stmts {
		_, err := d.Exec(stmt)
		require.NoError(t, err)
	}
	return d
}

func newTestService(t *testing.T, d *sql.DB) *Service {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	manager := ai.NewManager(cfg, d)
	knowledge := rag.NewSystem(cfg, d)
	return NewService(cfg, d, manager, knowledge)
}

func TestChatFailsWithoutProvidersButKeepsUserMessage(t *testing.T) {
	d := newTestDB(t)
	s := newTestService(t, d)

	_, err := s.Chat(context.Background(), "u1", "", "What does IRC R905 require?")
	require.Error(t, err)

	convs, err := s.Conversations("u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)

	_, msgs, err := s.ConversationDetail("u1", convs[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestChatTruncatesLongTitle(t *testing.T) {
	d := newTestDB(t)
	s := newTestService(t, d)

	long := strings.Repeat("drip edge requirements ", 20)
	s.Chat(context.Background(), "u1", "", long)

	convs, err := s.Conversations("u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Len(t, convs[0].Title, maxTitleLength)
}

func TestChatRejectsForeignConversation(t *testing.T) {
	d := newTestDB(t)
	s := newTestService(t, d)

	conv, err := queries.CreateConversation(d, "owner", "mine", ai.AssistantSusan)
	require.NoError(t, err)

	_, err = s.Chat(context.Background(), "intruder", conv.ID, "hello")
	assert.ErrorIs(t, err, queries.ErrNotFound)
}

func TestConversationDetailAndDelete(t *testing.T) {
	d := newTestDB(t)
	s := newTestService(t, d)

	conv, err := queries.CreateConversation(d, "u1", "hail claim", ai.AssistantSusan)
	require.NoError(t, err)
	_, err = queries.AddMessage(d, conv.ID, "user", "hi", 0, 0, "")
	require.NoError(t, err)
	_, err = queries.AddMessage(d, conv.ID, "assistant", "hello", 12, 0.001, "groq")
	require.NoError(t, err)

	got, msgs, err := s.ConversationDetail("u1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "hail claim", got.Title)
	require.Len(t, msgs, 2)
	assert.Equal(t, "assistant", msgs[1].Role)

	require.NoError(t, s.DeleteConversation("u1", conv.ID))
	_, _, err = s.ConversationDetail("u1", conv.ID)
	assert.ErrorIs(t, err, queries.ErrNotFound)
}

func TestRouteMessageUsesConversationContext(t *testing.T) {
	d := newTestDB(t)
	s := newTestService(t, d)

	decision, _ := s.RouteMessage("u1", "", "what does the building code say about drip edge")
	assert.Equal(t, ai.AssistantSusan, decision.Assistant)

	decision, _ = s.RouteMessage("u1", "", "let's practice a roleplay with agnes")
	assert.Equal(t, ai.AssistantAgnes, decision.Assistant)
}
