package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/agent-marketplace/internal/models"
)

// ChatRepository отвечает за сообщения в чатах заданий.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository создаёт новый экземпляр.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateMessage сохраняет сообщение.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.JobMessage) error {
	query := `
		INSERT INTO job_messages (job_id, sender_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, is_read, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, msg.JobID, msg.SenderID, msg.Content).
		Scan(&msg.ID, &msg.IsRead, &msg.CreatedAt); err != nil {
		return fmt.Errorf("chat repository: insert message %w", err)
	}
	return nil
}

// ListByJob возвращает сообщения задания в хронологическом порядке.
func (r *ChatRepository) ListByJob(ctx context.Context, jobID int64, limit, offset int) ([]models.JobMessage, error) {
	var messages []models.JobMessage
	query := `
		SELECT id, job_id, sender_id, content, is_read, created_at
		FROM job_messages WHERE job_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &messages, query, jobID, limit, offset); err != nil {
		return nil, fmt.Errorf("chat repository: list by job %w", err)
	}
	return messages, nil
}

// MarkRead помечает чужие сообщения прочитанными. Операция идемпотентна:
// повторный вызов с тем же набором id ничего не меняет.
func (r *ChatRepository) MarkRead(ctx context.Context, jobID int64, readerID uuid.UUID, messageIDs []int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_messages SET is_read = TRUE
		WHERE job_id = $1 AND sender_id <> $2 AND id = ANY($3) AND is_read = FALSE
	`, jobID, readerID, pq.Array(messageIDs))
	if err != nil {
		return fmt.Errorf("chat repository: mark read %w", err)
	}
	return nil
}

// CountUnread возвращает число непрочитанных сообщений для пользователя.
func (r *ChatRepository) CountUnread(ctx context.Context, jobID int64, readerID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM job_messages
		WHERE job_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, jobID, readerID)
	if err != nil {
		return 0, fmt.Errorf("chat repository: count unread %w", err)
	}
	return count, nil
}
