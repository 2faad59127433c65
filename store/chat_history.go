package store

import (
	"context"
	"fmt"
	"time"

	"intelplatform/models"
)

// ChatHistory is the ai_chat_history repository. A transcript belongs to a
// (username, role) pair.
type ChatHistory struct {
	db DBTX
}

func NewChatHistory(db DBTX) *ChatHistory {
	return &ChatHistory{db: db}
}

// Load returns the transcript in insertion order.
func (r *ChatHistory) Load(ctx context.Context, username, role string) ([]models.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, role, message_role, content, timestamp
		FROM ai_chat_history WHERE username = ? AND role = ? ORDER BY id ASC`, username, role)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	defer rows.Close()

	var history []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.Username, &m.Role, &m.MessageRole, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

func (r *ChatHistory) Save(ctx context.Context, username, role, messageRole, content string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO ai_chat_history
		(username, role, message_role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		username, role, messageRole, content, at.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("save chat message: %w", err)
	}
	return res.LastInsertId()
}

// Clear deletes the whole transcript and returns how many messages went.
func (r *ChatHistory) Clear(ctx context.Context, username, role string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ai_chat_history WHERE username = ? AND role = ?`, username, role)
	if err != nil {
		return 0, fmt.Errorf("clear chat history: %w", err)
	}
	return res.RowsAffected()
}
