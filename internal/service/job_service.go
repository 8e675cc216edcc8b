package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/agent-marketplace/internal/repository"
	"github.com/ignatzorin/agent-marketplace/internal/validation"
)

type JobRepo interface {
	GetByID(ctx context.Context, id int64) (*models.Job, error)
	Create(ctx context.Context, job *models.Job, milestones []models.Milestone) error
	Cancel(ctx context.Context, jobID int64) error
	AcceptBid(ctx context.Context, jobID int64, agentID, clientID uuid.UUID, amount float64) (*models.Escrow, error)
	TransitionMilestone(ctx context.Context, jobID int64, t repository.MilestoneTransition) error
	Complete(ctx context.Context, jobID int64, agentID uuid.UUID) (jobsCompleted, successRate int, err error)
	List(ctx context.Context, params repository.JobListParams) ([]models.Job, int, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Job, error)
	GetStats(ctx context.Context) (*models.MarketplaceStats, error)
}

// JobNotifier рассылает событие задания его участникам.
type JobNotifier interface {
	NotifyJobEvent(jobID int64, event string, recipients ...uuid.UUID)
}

// JobService реализует жизненный цикл задания: размещение, принятие ставки,
// сдачу и приёмку этапов, завершение. Проверки предусловий живут здесь,
// а атомарность переходов обеспечивает репозиторий.
type JobService struct {
	jobs     JobRepo
	notifier JobNotifier
	log      *logrus.Logger
}

func NewJobService(jobs JobRepo, notifier JobNotifier, log *logrus.Logger) *JobService {
	return &JobService{jobs: jobs, notifier: notifier, log: log}
}

// MilestoneInput — этап оплаты при размещении задания.
type MilestoneInput struct {
	Title             string     `json:"title" binding:"required,max=200"`
	PaymentPercentage int        `json:"payment_percentage" binding:"required,min=1,max=100"`
	DueAt             *time.Time `json:"due_at"`
}

// PostJobInput — параметры нового задания.
type PostJobInput struct {
	Title       string           `json:"title" binding:"required,max=200"`
	Description string           `json:"description" binding:"required"`
	Category    string           `json:"category" binding:"required,max=100"`
	Tags        []string         `json:"tags" binding:"max=10"`
	Payment     float64          `json:"payment" binding:"required"`
	DeadlineAt  *time.Time       `json:"deadline_at"`
	Milestones  []MilestoneInput `json:"milestones"`
}

// PostJob размещает задание. Задание без явных этапов этапами не управляется:
// единственная поставка принимается напрямую через CompleteJob.
func (s *JobService) PostJob(ctx context.Context, clientID uuid.UUID, input PostJobInput) (*models.Job, error) {
	if err := validation.ValidateJobTitle(input.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateJobDescription(input.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePayment(input.Payment); err != nil {
		return nil, apperror.ErrInvalidAmount
	}
	if input.DeadlineAt != nil && input.DeadlineAt.Before(time.Now()) {
		return nil, apperror.ErrDeadlinePassed
	}

	milestones := make([]models.Milestone, 0, len(input.Milestones))
	if len(input.Milestones) > 0 {
		total := 0
		for i, m := range input.Milestones {
			if m.PaymentPercentage <= 0 {
				return nil, apperror.ErrInvalidMilestonePercentages
			}
			total += m.PaymentPercentage
			milestones = append(milestones, models.Milestone{
				Ordinal:           i + 1,
				Title:             m.Title,
				PaymentPercentage: m.PaymentPercentage,
				Status:            models.MilestoneStatusPending,
				DueAt:             m.DueAt,
			})
		}
		if total != 100 {
			return nil, apperror.ErrInvalidMilestonePercentages
		}
	}

	job := &models.Job{
		ClientID:    clientID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Tags:        input.Tags,
		Payment:     input.Payment,
		Status:      models.JobStatusPosted,
		DeadlineAt:  input.DeadlineAt,
	}
	if err := s.jobs.Create(ctx, job, milestones); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "client_id": clientID}).Info("задание размещено")
	return job, nil
}

// GetJob возвращает задание со ставками и этапами.
func (s *JobService) GetJob(ctx context.Context, jobID int64) (*models.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListJobs возвращает страницу витрины заданий.
func (s *JobService) ListJobs(ctx context.Context, params repository.JobListParams) ([]models.Job, int, error) {
	return s.jobs.List(ctx, params)
}

// ListMyJobs возвращает задания, где пользователь — клиент или исполнитель.
func (s *JobService) ListMyJobs(ctx context.Context, userID uuid.UUID) ([]models.Job, error) {
	return s.jobs.ListByParticipant(ctx, userID)
}

// GetStats возвращает агрегированную статистику маркетплейса.
func (s *JobService) GetStats(ctx context.Context) (*models.MarketplaceStats, error) {
	return s.jobs.GetStats(ctx)
}

// CancelJob отменяет задание. Доступно только клиенту и только пока
// ни одна ставка не принята.
func (s *JobService) CancelJob(ctx context.Context, jobID int64, userID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !isClient(job, userID) {
		return apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusPosted {
		return apperror.ErrInvalidStatus
	}
	if err := s.jobs.Cancel(ctx, jobID); err != nil {
		return err
	}
	s.log.WithField("job_id", jobID).Info("задание отменено")
	return nil
}

// AcceptBid принимает ставку: клиент выбирает исполнителя, сумма ставки
// блокируется в escrow, задание уходит в работу.
func (s *JobService) AcceptBid(ctx context.Context, jobID int64, clientID uuid.UUID, bidID int64) (*models.Escrow, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isClient(job, clientID) {
		return nil, apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusPosted {
		return nil, apperror.ErrInvalidStatus
	}

	var bid *models.Bid
	for i := range job.Bids {
		if job.Bids[i].ID == bidID {
			bid = &job.Bids[i]
			break
		}
	}
	if bid == nil {
		return nil, apperror.ErrBidNotFound
	}

	escrow, err := s.jobs.AcceptBid(ctx, jobID, bid.AgentID, clientID, bid.Amount)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id": jobID, "agent_id": bid.AgentID, "escrow_id": escrow.ID, "amount": bid.Amount,
	}).Info("ставка принята, средства заблокированы")
	if s.notifier != nil {
		s.notifier.NotifyJobEvent(jobID, "bid_accepted", bid.AgentID)
	}
	return escrow, nil
}

// SubmitMilestone сдаёт текущий этап на приёмку клиенту.
func (s *JobService) SubmitMilestone(ctx context.Context, jobID int64, agentID uuid.UUID, milestoneID int64) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !isAssignedAgent(job, agentID) {
		return apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusInProgress {
		return apperror.ErrInvalidStatus
	}

	milestone := findMilestone(job, milestoneID)
	if milestone == nil {
		return apperror.ErrMilestoneNotFound
	}
	if milestone.Status != models.MilestoneStatusInProgress {
		return apperror.ErrInvalidStatus
	}

	if err := s.jobs.TransitionMilestone(ctx, jobID, repository.MilestoneTransition{
		MilestoneID:   milestoneID,
		MilestoneFrom: models.MilestoneStatusInProgress,
		MilestoneTo:   models.MilestoneStatusSubmitted,
		JobFrom:       models.JobStatusInProgress,
		JobTo:         models.JobStatusPendingApproval,
	}); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"job_id": jobID, "milestone_id": milestoneID}).Info("этап сдан на приёмку")
	if s.notifier != nil {
		s.notifier.NotifyJobEvent(jobID, "milestone_submitted", job.ClientID)
	}
	return nil
}

// ApproveMilestone принимает сданный этап. Приёмка последнего этапа
// завершает задание целиком и освобождает escrow исполнителю; иначе
// стартует следующий этап и задание возвращается в работу.
func (s *JobService) ApproveMilestone(ctx context.Context, jobID int64, clientID uuid.UUID, milestoneID int64) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !isClient(job, clientID) {
		return apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusPendingApproval {
		return apperror.ErrInvalidStatus
	}

	milestone := findMilestone(job, milestoneID)
	if milestone == nil {
		return apperror.ErrMilestoneNotFound
	}
	if milestone.Status != models.MilestoneStatusSubmitted {
		return apperror.ErrInvalidStatus
	}

	if isLastUnapproved(job, milestoneID) {
		return s.completeJob(ctx, job)
	}

	if err := s.jobs.TransitionMilestone(ctx, jobID, repository.MilestoneTransition{
		MilestoneID:     milestoneID,
		MilestoneFrom:   models.MilestoneStatusSubmitted,
		MilestoneTo:     models.MilestoneStatusApproved,
		JobFrom:         models.JobStatusPendingApproval,
		JobTo:           models.JobStatusInProgress,
		NextMilestoneID: nextPendingMilestoneID(job),
	}); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"job_id": jobID, "milestone_id": milestoneID}).Info("этап принят")
	if job.AgentID != nil && s.notifier != nil {
		s.notifier.NotifyJobEvent(jobID, "milestone_approved", *job.AgentID)
	}
	return nil
}

// RequestRevision возвращает сданный этап на доработку.
func (s *JobService) RequestRevision(ctx context.Context, jobID int64, clientID uuid.UUID, milestoneID int64) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !isClient(job, clientID) {
		return apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusPendingApproval {
		return apperror.ErrInvalidStatus
	}

	milestone := findMilestone(job, milestoneID)
	if milestone == nil {
		return apperror.ErrMilestoneNotFound
	}
	if milestone.Status != models.MilestoneStatusSubmitted {
		return apperror.ErrInvalidStatus
	}

	if err := s.jobs.TransitionMilestone(ctx, jobID, repository.MilestoneTransition{
		MilestoneID:   milestoneID,
		MilestoneFrom: models.MilestoneStatusSubmitted,
		MilestoneTo:   models.MilestoneStatusRejected,
		JobFrom:       models.JobStatusPendingApproval,
		JobTo:         models.JobStatusInProgress,
	}); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"job_id": jobID, "milestone_id": milestoneID}).Info("этап возвращён на доработку")
	if job.AgentID != nil && s.notifier != nil {
		s.notifier.NotifyJobEvent(jobID, "revision_requested", *job.AgentID)
	}
	return nil
}

// ResubmitMilestone возобновляет работу над этапом после доработки.
func (s *JobService) ResubmitMilestone(ctx context.Context, jobID int64, agentID uuid.UUID, milestoneID int64) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !isAssignedAgent(job, agentID) {
		return apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusInProgress {
		return apperror.ErrInvalidStatus
	}

	milestone := findMilestone(job, milestoneID)
	if milestone == nil {
		return apperror.ErrMilestoneNotFound
	}
	if milestone.Status != models.MilestoneStatusRejected {
		return apperror.ErrInvalidStatus
	}

	return s.jobs.TransitionMilestone(ctx, jobID, repository.MilestoneTransition{
		MilestoneID:   milestoneID,
		MilestoneFrom: models.MilestoneStatusRejected,
		MilestoneTo:   models.MilestoneStatusInProgress,
		JobFrom:       models.JobStatusInProgress,
		JobTo:         models.JobStatusInProgress,
	})
}

// CompleteJob досрочно завершает задание по инициативе клиента: оставшиеся
// этапы засчитываются принятыми, вся сумма escrow уходит исполнителю.
func (s *JobService) CompleteJob(ctx context.Context, jobID int64, clientID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !isClient(job, clientID) {
		return apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusInProgress && job.Status != models.JobStatusPendingApproval {
		return apperror.ErrInvalidStatus
	}
	return s.completeJob(ctx, job)
}

// completeJob просит репозиторий провести завершение одной транзакцией.
// Репутация пересчитывается там же, от актуальной строки профиля: формула
// бегущего среднего в целых процентах new = (old*(n-1) + 100) / n, где n —
// новое число завершённых заданий.
func (s *JobService) completeJob(ctx context.Context, job *models.Job) error {
	if job.AgentID == nil {
		return apperror.ErrInvalidStatus
	}
	agentID := *job.AgentID

	jobsCompleted, successRate, err := s.jobs.Complete(ctx, job.ID, agentID)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"job_id": job.ID, "agent_id": agentID, "jobs_completed": jobsCompleted, "success_rate": successRate,
	}).Info("задание завершено, средства освобождены")
	if s.notifier != nil {
		s.notifier.NotifyJobEvent(job.ID, "job_completed", agentID, job.ClientID)
	}
	return nil
}

func findMilestone(job *models.Job, milestoneID int64) *models.Milestone {
	for i := range job.Milestones {
		if job.Milestones[i].ID == milestoneID {
			return &job.Milestones[i]
		}
	}
	return nil
}

// isLastUnapproved — все этапы, кроме указанного, уже приняты.
func isLastUnapproved(job *models.Job, milestoneID int64) bool {
	for _, m := range job.Milestones {
		if m.ID != milestoneID && m.Status != models.MilestoneStatusApproved {
			return false
		}
	}
	return true
}

// nextPendingMilestoneID — первый по порядку этап, ещё не взятый в работу.
func nextPendingMilestoneID(job *models.Job) *int64 {
	for i := range job.Milestones {
		if job.Milestones[i].Status == models.MilestoneStatusPending {
			return &job.Milestones[i].ID
		}
	}
	return nil
}
