package queries

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// CreateConversation starts a new conversation for a user.
func CreateConversation(d *sql.DB, userID, title, assistant string) (*db.Conversation, error) {
	now := time.Now().UTC()
	c := &db.Conversation{
		ID:        generateUUID(),
		UserID:    userID,
		Title:     title,
		Assistant: assistant,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := d.Exec(`INSERT INTO conversations (id, user_id, title, assistant, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.Assistant, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation returns a conversation only when owned by userID.
func GetConversation(d *sql.DB, id, userID string) (*db.Conversation, error) {
	c := &db.Conversation{}
	err := d.QueryRow(`SELECT id, user_id, title, assistant, created_at, updated_at
		FROM conversations WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Title, &c.Assistant, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListConversations returns a user's conversations newest first.
func ListConversations(d *sql.DB, userID string, limit, offset int) ([]*db.Conversation, error) {
	rows, err := d.Query(`SELECT id, user_id, title, assistant, created_at, updated_at
		FROM conversations WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.Conversation
	for rows.Next() {
		c := &db.Conversation{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Assistant, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes an owned conversation and its messages.
func DeleteConversation(d *sql.DB, id, userID string) error {
	res, err := d.Exec("DELETE FROM conversations WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	_, err = d.Exec("DELETE FROM messages WHERE conversation_id = ?", id)
	return err
}

// AddMessage appends a message and bumps the conversation's updated_at.
func AddMessage(d *sql.DB, conversationID, role, content string, tokensUsed int, cost float64, provider string) (*db.Message, error) {
	m := &db.Message{
		ID:             generateUUID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokensUsed:     tokensUsed,
		Cost:           cost,
		CreatedAt:      time.Now().UTC(),
	}
	if provider != "" {
		m.Provider = sql.NullString{String: provider, Valid: true}
	}
	_, err := d.Exec(`INSERT INTO messages (id, conversation_id, role, content, tokens_used, cost, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.TokensUsed, m.Cost, m.Provider, m.CreatedAt)
	if err != nil {
		return nil, err
	}
	_, err = d.Exec("UPDATE conversations SET updated_at = ? WHERE id = ?", m.CreatedAt, conversationID)
	return m, err
}

// ListMessages returns conversation messages oldest first.
func ListMessages(d *sql.DB, conversationID string) ([]*db.Message, error) {
	rows, err := d.Query(`SELECT id, conversation_id, role, content, tokens_used, cost, provider, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*db.Message
	for rows.Next() {
		m := &db.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.TokensUsed, &m.Cost, &m.Provider, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentMessages returns the last n messages of a conversation, oldest first.
func RecentMessages(d *sql.DB, conversationID string, n int) ([]*db.Message, error) {
	msgs, err := ListMessages(d, conversationID)
	if err != nil {
		return nil, err
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}
