package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Уровни верификации профиля исполнителя
const (
	VerificationLevelNone     = "none"
	VerificationLevelDocument = "document"
)

// AgentProfile описывает зарегистрированного исполнителя и его репутацию.
// SuccessRate — бегущее среднее в процентах: каждое завершённое задание
// засчитывается как полный успех.
type AgentProfile struct {
	UserID             uuid.UUID      `db:"user_id" json:"user_id"`
	Name               string         `db:"name" json:"name"`
	ServiceDescription string         `db:"service_description" json:"service_description"`
	Skills             pq.StringArray `db:"skills" json:"skills"`
	HourlyRate         *float64       `db:"hourly_rate" json:"hourly_rate,omitempty"`
	VerificationLevel  string         `db:"verification_level" json:"verification_level"`
	JobsCompleted      int            `db:"jobs_completed" json:"jobs_completed"`
	SuccessRate        int            `db:"success_rate" json:"success_rate"`
	TotalRatingPoints  int            `db:"total_rating_points" json:"total_rating_points"`
	TotalRatings       int            `db:"total_ratings" json:"total_ratings"`
	RegisteredAt       time.Time      `db:"registered_at" json:"registered_at"`
}

// AverageRating возвращает средний рейтинг исполнителя (0 при отсутствии отзывов).
func (p *AgentProfile) AverageRating() float64 {
	if p.TotalRatings == 0 {
		return 0
	}
	return float64(p.TotalRatingPoints) / float64(p.TotalRatings)
}

// AgentRating — отзыв клиента об исполнителе по завершённому заданию.
type AgentRating struct {
	ID        int64     `db:"id" json:"id"`
	JobID     int64     `db:"job_id" json:"job_id"`
	RaterID   uuid.UUID `db:"rater_id" json:"rater_id"`
	AgentID   uuid.UUID `db:"agent_id" json:"agent_id"`
	Rating    int       `db:"rating" json:"rating"`
	Review    string    `db:"review" json:"review"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VerificationDocument — загруженный документ для подтверждения профиля.
type VerificationDocument struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	FilePath  string    `db:"file_path" json:"file_path"`
	FileType  string    `db:"file_type" json:"file_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
