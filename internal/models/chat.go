package models

import (
	"time"

	"github.com/google/uuid"
)

// JobMessage — сообщение в чате задания между клиентом и исполнителем.
type JobMessage struct {
	ID        int64     `db:"id" json:"id"`
	JobID     int64     `db:"job_id" json:"job_id"`
	SenderID  uuid.UUID `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
