package service

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/agent-marketplace/internal/repository"
)

type AgentRepo interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error)
	CreateProfile(ctx context.Context, profile *models.AgentProfile) error
	UpdateProfile(ctx context.Context, profile *models.AgentProfile) error
	SetVerificationLevel(ctx context.Context, userID uuid.UUID, level string) error
	Search(ctx context.Context, params repository.AgentSearchParams) ([]models.AgentProfile, error)
	CreateRating(ctx context.Context, rating *models.AgentRating) error
	ListRatings(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]models.AgentRating, error)
	CreateVerificationDocument(ctx context.Context, doc *models.VerificationDocument) error
}

type JobRepoForAgent interface {
	GetByID(ctx context.Context, id int64) (*models.Job, error)
}

type DocumentStorage interface {
	Save(ctx context.Context, userID uuid.UUID, originalName string, r io.Reader) (string, int64, error)
}

// AgentService ведёт профили исполнителей: регистрацию, поиск, отзывы и
// верификацию по документу.
type AgentService struct {
	agents  AgentRepo
	jobs    JobRepoForAgent
	storage DocumentStorage
	log     *logrus.Logger
}

func NewAgentService(agents AgentRepo, jobs JobRepoForAgent, storage DocumentStorage, log *logrus.Logger) *AgentService {
	return &AgentService{agents: agents, jobs: jobs, storage: storage, log: log}
}

// RegisterAgentInput — параметры регистрации исполнителя.
type RegisterAgentInput struct {
	Name               string   `json:"name" binding:"required,max=100"`
	ServiceDescription string   `json:"service_description" binding:"required"`
	Skills             []string `json:"skills" binding:"max=20"`
	HourlyRate         *float64 `json:"hourly_rate"`
}

// Register создаёт профиль исполнителя. Повторная регистрация — конфликт.
func (s *AgentService) Register(ctx context.Context, userID uuid.UUID, input RegisterAgentInput) (*models.AgentProfile, error) {
	if input.HourlyRate != nil && *input.HourlyRate <= 0 {
		return nil, apperror.ErrInvalidAmount
	}

	profile := &models.AgentProfile{
		UserID:             userID,
		Name:               input.Name,
		ServiceDescription: input.ServiceDescription,
		Skills:             input.Skills,
		HourlyRate:         input.HourlyRate,
		VerificationLevel:  models.VerificationLevelNone,
	}
	if err := s.agents.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", userID).Info("исполнитель зарегистрирован")
	return profile, nil
}

// UpdateProfile обновляет описательные поля профиля.
func (s *AgentService) UpdateProfile(ctx context.Context, userID uuid.UUID, input RegisterAgentInput) (*models.AgentProfile, error) {
	if input.HourlyRate != nil && *input.HourlyRate <= 0 {
		return nil, apperror.ErrInvalidAmount
	}

	profile := &models.AgentProfile{
		UserID:             userID,
		Name:               input.Name,
		ServiceDescription: input.ServiceDescription,
		Skills:             input.Skills,
		HourlyRate:         input.HourlyRate,
	}
	if err := s.agents.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return s.agents.GetProfile(ctx, userID)
}

// GetProfile возвращает профиль исполнителя.
func (s *AgentService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error) {
	return s.agents.GetProfile(ctx, userID)
}

// Search возвращает профили по фильтрам витрины.
func (s *AgentService) Search(ctx context.Context, params repository.AgentSearchParams) ([]models.AgentProfile, error) {
	return s.agents.Search(ctx, params)
}

// RateAgent оставляет отзыв об исполнителе по завершённому заданию.
// Оценивать может только клиент задания и только один раз.
func (s *AgentService) RateAgent(ctx context.Context, jobID int64, raterID uuid.UUID, rating int, review string) (*models.AgentRating, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.ErrInvalidRating
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isClient(job, raterID) {
		return nil, apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusCompleted {
		return nil, apperror.ErrInvalidStatus
	}
	if job.AgentID == nil {
		return nil, apperror.ErrInvalidStatus
	}

	r := &models.AgentRating{
		JobID:   jobID,
		RaterID: raterID,
		AgentID: *job.AgentID,
		Rating:  rating,
		Review:  review,
	}
	if err := s.agents.CreateRating(ctx, r); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"job_id": jobID, "agent_id": r.AgentID, "rating": rating}).Info("отзыв оставлен")
	return r, nil
}

// ListRatings возвращает отзывы об исполнителе.
func (s *AgentService) ListRatings(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]models.AgentRating, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.agents.ListRatings(ctx, agentID, limit, offset)
}

// UploadVerificationDocument сохраняет документ и поднимает уровень
// верификации профиля. Тип файла уже проверен по магическим байтам на
// уровне обработчика.
func (s *AgentService) UploadVerificationDocument(ctx context.Context, userID uuid.UUID, originalName, fileType string, r io.Reader) (*models.VerificationDocument, error) {
	if _, err := s.agents.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	path, size, err := s.storage.Save(ctx, userID, originalName, r)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось сохранить документ")
	}

	doc := &models.VerificationDocument{
		ID:       uuid.New(),
		UserID:   userID,
		FilePath: path,
		FileType: fileType,
	}
	if err := s.agents.CreateVerificationDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.agents.SetVerificationLevel(ctx, userID, models.VerificationLevelDocument); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "size": size}).Info("документ верификации загружен")
	return doc, nil
}
