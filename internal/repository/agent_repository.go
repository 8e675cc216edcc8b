package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

// AgentRepository отвечает за профили исполнителей, отзывы и документы верификации.
type AgentRepository struct {
	db *sqlx.DB
}

// NewAgentRepository создаёт новый экземпляр.
func NewAgentRepository(db *sqlx.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

const profileColumns = `user_id, name, service_description, skills, hourly_rate, verification_level,
	jobs_completed, success_rate, total_rating_points, total_ratings, registered_at`

// GetProfile возвращает профиль исполнителя.
func (r *AgentRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error) {
	var profile models.AgentProfile
	query := `SELECT ` + profileColumns + ` FROM agent_profiles WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrAgentNotRegistered
		}
		return nil, fmt.Errorf("agent repository: get profile %w", err)
	}
	return &profile, nil
}

// CreateProfile регистрирует исполнителя. Повторная регистрация — конфликт.
func (r *AgentRepository) CreateProfile(ctx context.Context, profile *models.AgentProfile) error {
	query := `
		INSERT INTO agent_profiles (user_id, name, service_description, skills, hourly_rate, verification_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING registered_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		profile.UserID, profile.Name, profile.ServiceDescription, profile.Skills,
		profile.HourlyRate, profile.VerificationLevel,
	).Scan(&profile.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrAgentAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("agent repository: create profile %w", err)
	}
	return nil
}

// UpdateProfile меняет описательные поля профиля.
func (r *AgentRepository) UpdateProfile(ctx context.Context, profile *models.AgentProfile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE agent_profiles
		SET name = $2, service_description = $3, skills = $4, hourly_rate = $5
		WHERE user_id = $1
	`, profile.UserID, profile.Name, profile.ServiceDescription, profile.Skills, profile.HourlyRate)
	if err != nil {
		return fmt.Errorf("agent repository: update profile %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrAgentNotRegistered
	}
	return nil
}

// SetVerificationLevel обновляет уровень верификации профиля.
func (r *AgentRepository) SetVerificationLevel(ctx context.Context, userID uuid.UUID, level string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE agent_profiles SET verification_level = $2 WHERE user_id = $1`, userID, level)
	if err != nil {
		return fmt.Errorf("agent repository: set verification level %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrAgentNotRegistered
	}
	return nil
}

// AgentSearchParams описывает фильтры поиска исполнителей.
type AgentSearchParams struct {
	MinJobsCompleted  *int
	MinRating         *float64
	Skill             string
	VerificationLevel string
	SortBy            string
	SortDesc          bool
	Limit             int
	Offset            int
}

// Search возвращает профили по фильтрам витрины.
func (r *AgentRepository) Search(ctx context.Context, params AgentSearchParams) ([]models.AgentProfile, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.MinJobsCompleted != nil {
		where = append(where, "jobs_completed >= "+arg(*params.MinJobsCompleted))
	}
	if params.MinRating != nil {
		where = append(where, "total_ratings > 0 AND total_rating_points::float / total_ratings >= "+arg(*params.MinRating))
	}
	if params.Skill != "" {
		where = append(where, arg(params.Skill)+" = ANY(skills)")
	}
	if params.VerificationLevel != "" {
		where = append(where, "verification_level = "+arg(params.VerificationLevel))
	}

	sortColumn := "jobs_completed"
	switch params.SortBy {
	case "rating":
		sortColumn = "CASE WHEN total_ratings > 0 THEN total_rating_points::float / total_ratings ELSE 0 END"
	case "registered":
		sortColumn = "registered_at"
	}
	direction := "ASC"
	if params.SortDesc {
		direction = "DESC"
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM agent_profiles WHERE %s ORDER BY %s %s LIMIT %s OFFSET %s`,
		profileColumns, strings.Join(where, " AND "), sortColumn, direction, arg(limit), arg(offset))

	var profiles []models.AgentProfile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("agent repository: search %w", err)
	}
	return profiles, nil
}

// CreateRating сохраняет отзыв и обновляет агрегаты профиля в одной транзакции.
func (r *AgentRepository) CreateRating(ctx context.Context, rating *models.AgentRating) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("agent repository: begin tx %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO ratings (job_id, rater_id, agent_id, rating, review)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, rater_id) DO NOTHING
		RETURNING id, created_at
	`
	err = tx.QueryRowxContext(ctx, query,
		rating.JobID, rating.RaterID, rating.AgentID, rating.Rating, rating.Review,
	).Scan(&rating.ID, &rating.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrAlreadyRated
	}
	if err != nil {
		return fmt.Errorf("agent repository: insert rating %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE agent_profiles
		SET total_rating_points = total_rating_points + $2, total_ratings = total_ratings + 1
		WHERE user_id = $1
	`, rating.AgentID, rating.Rating); err != nil {
		return fmt.Errorf("agent repository: update rating aggregates %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("agent repository: commit %w", err)
	}
	return nil
}

// ListRatings возвращает отзывы об исполнителе.
func (r *AgentRepository) ListRatings(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]models.AgentRating, error) {
	var ratings []models.AgentRating
	query := `
		SELECT id, job_id, rater_id, agent_id, rating, review, created_at
		FROM ratings WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &ratings, query, agentID, limit, offset); err != nil {
		return nil, fmt.Errorf("agent repository: list ratings %w", err)
	}
	return ratings, nil
}

// CreateVerificationDocument сохраняет метаданные загруженного документа.
func (r *AgentRepository) CreateVerificationDocument(ctx context.Context, doc *models.VerificationDocument) error {
	query := `
		INSERT INTO verification_documents (id, user_id, file_path, file_type)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, doc.ID, doc.UserID, doc.FilePath, doc.FileType).
		Scan(&doc.CreatedAt); err != nil {
		return fmt.Errorf("agent repository: insert verification document %w", err)
	}
	return nil
}
